package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	resetStudent string
	resetChapter string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a conversation session",
	Long:  `Clears the stored conversation turns for a student and chapter.`,
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetStudent, "student", "", "student identifier (required)")
	resetCmd.Flags().StringVar(&resetChapter, "chapter", "", "chapter identifier (required)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if tutorService == nil {
		return errors.New("tutor service not configured")
	}
	if resetStudent == "" || resetChapter == "" {
		return errors.New("--student and --chapter are required")
	}

	if err := tutorService.ResetConversation(context.Background(), resetStudent, resetChapter); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	cmd.Printf("Conversation reset for student %s, chapter %s\n", resetStudent, resetChapter)
	return nil
}
