package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gregpriday/copytree/pkg/copytree"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/style"
)

var (
	verbosity   int
	profileName string
	scanRoot    string
	outputPath  string
	format      string
	noCache     bool

	rootCmd = &cobra.Command{
		Use:   "copytree",
		Short: "Turn a codebase into an AI-ready snapshot",
		Long: `copytree scans a file tree, selects files with rule-based profiles,
transforms content that models cannot read directly, and renders the
result as a single reproducible document.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
	}
)

// Execute runs the root command. Called by main.main().
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.Flags().StringVarP(&profileName, "profile", "p", "", "Profile name or path (default: the default profile)")
	rootCmd.Flags().StringVarP(&scanRoot, "root", "r", ".", "Directory to scan")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the document to a file instead of stdout")
	rootCmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format: markdown or xml")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the transform cache")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	res, err := copytree.Run(cmd.Context(), copytree.Options{
		Root:    scanRoot,
		Profile: profileName,
		Format:  format,
		NoCache: noCache,
	})
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, res.Output, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outputPath, err)
		}
	} else {
		if _, err := os.Stdout.Write(res.Output); err != nil {
			return err
		}
	}

	// The summary goes to stderr so piping stdout stays clean
	printSummary(res.Summary)
	return nil
}

func printSummary(s copytree.Summary) {
	p := style.NewPrinter(os.Stderr)
	p.Header("Snapshot complete")
	p.Line(style.StatusOK, "discovered", s.Discovered)
	p.Line(style.StatusOK, "selected", s.Selected)
	p.Line(style.StatusOK, "transformed", s.Transformed)
	errStatus := style.StatusOK
	if s.Errors > 0 {
		errStatus = style.StatusWarn
	}
	p.Line(errStatus, "errors", s.Errors)
	p.Line(style.StatusOK, "output", fmt.Sprintf("%d bytes", s.OutputBytes))
	p.Line(style.StatusOK, "duration", s.Duration.Round(time.Millisecond))
}
