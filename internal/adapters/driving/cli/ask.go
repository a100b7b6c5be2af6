package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
)

var (
	askStudent  string
	askChapter  string
	askBoard    string
	askGrade    string
	askSubject  string
	askLanguage string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in the ingested curriculum",
	Long: `Answers a student question using retrieved textbook content. Segments
from the active chapter are preferred, and every answer carries citations
back to chapter, section and page.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askStudent, "student", "", "student identifier (required)")
	askCmd.Flags().StringVar(&askChapter, "chapter", "", "active chapter identifier (required)")
	askCmd.Flags().StringVar(&askBoard, "board", "", "education board filter")
	askCmd.Flags().StringVar(&askGrade, "grade", "", "grade filter")
	askCmd.Flags().StringVar(&askSubject, "subject", "", "subject filter")
	askCmd.Flags().StringVar(&askLanguage, "language", "en", "answer language")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if tutorService == nil {
		return errors.New("tutor service not configured")
	}
	if askStudent == "" || askChapter == "" {
		return errors.New("--student and --chapter are required")
	}

	answer, err := tutorService.AskQuestion(context.Background(), driving.AskRequest{
		StudentID: askStudent,
		ChapterID: askChapter,
		Scope: domain.ScopeFilter{
			Board:   askBoard,
			Grade:   askGrade,
			Subject: askSubject,
		},
		Question: args[0],
		Language: askLanguage,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		out, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(answer.Text)
	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range answer.Citations {
			cmd.Printf("  - chapter %s, %q, page %d\n", c.ChapterID, c.SectionTitle, c.PageNumber)
		}
	}
	if !answer.Grounded {
		cmd.Println()
		cmd.Println("Note: this answer could not be fully grounded in the textbook.")
	}
	return nil
}
