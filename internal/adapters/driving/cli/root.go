// Package cli provides the command-line interface for tutorcore.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by commands. Set via SetServices before Execute.
var (
	ingestService driving.Ingestor
	tutorService  driving.Tutor
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "tutorcore",
	Short: "Curriculum-grounded tutoring over ingested textbooks",
	Long: `tutorcore ingests curriculum textbooks into a vector index and answers
student questions grounded in the ingested content, with citations back
to chapter, section and page.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
}

// SetServices injects the driving ports used by commands.
func SetServices(ingestor driving.Ingestor, tutor driving.Tutor) {
	ingestService = ingestor
	tutorService = tutor
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
