package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show the ingestion status of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	status, err := ingestService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("Document: %s\n", status.DocumentID)
	cmd.Printf("State:    %s\n", status.State)
	if status.UnitsTotal > 0 {
		cmd.Printf("Units:    %d total, %d embedded, %d deleted\n",
			status.UnitsTotal, status.UnitsEmbedded, status.UnitsDeleted)
	}
	if status.Error != "" {
		cmd.Printf("Error:    %s\n", status.Error)
	}
	return nil
}
