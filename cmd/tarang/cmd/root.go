// Package cmd provides the CLI commands for tarang: the indexing,
// retrieval, and streaming-task surface of the engine described in
// DESIGN.md, wired together here with no business logic of its own.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/logging"
	"github.com/tarang-dev/tarang/internal/tarangerr"
	"github.com/tarang-dev/tarang/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the tarang CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "tarang",
		Short:   "Client-side code chunking, indexing, retrieval, and task execution engine",
		Version: version.Version,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg := logging.DefaultConfig()
			if debugMode {
				cfg = logging.DebugConfig()
			}
			logger, cleanup, err := logging.Setup(cfg)
			if err != nil {
				return err
			}
			loggingCleanup = cleanup
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}

	root.SetVersionTemplate("tarang version {{.Version}}\n")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.tarang/logs/")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command, rendering any failure through the
// structured error formatter instead of cobra's bare error line, so a
// typed engine error surfaces its hint and code.
func Execute() error {
	root := NewRootCmd()
	root.SilenceErrors = true

	err := root.Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, tarangerr.FormatForCLI(err))
	}
	return err
}
