package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest an extracted textbook document",
	Long: `Ingests an extracted document (JSON produced by the PDF extraction
pipeline) into the vector index. Re-ingesting a revised document only
re-embeds the units whose content actually changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading document file: %w", err)
	}

	var doc domain.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing document file: %w", err)
	}

	version, err := ingestService.Ingest(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		out, err := json.MarshalIndent(version, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("Ingested %s as version %d (%d units)\n",
		version.DocumentID, version.Number, len(version.Units))
	return nil
}
