// Package main implements the forge CLI - a knowledge-graph surveyor that
// walks a set of source repositories and maps the services, APIs,
// databases, queues, and cloud resources they expose, plus the couplings
// between them.
//
// # File Index
//
//   - main.go        - Entry point, rootCmd, global flags, exit-code plumbing
//   - cmd_init.go    - init command: writes a starter config document
//   - cmd_survey.go  - survey command: builds/updates the knowledge graph
//   - cmd_map.go     - map command: renders a graph slice for a question
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

var (
	verbose bool
	quiet   bool

	// logger is the console-facing structured logger (as opposed to
	// internal/logging's file-based telemetry), matching the teacher's
	// split between a zap console logger and its own file logging system.
	logger *zap.Logger
)

// exitCodeError carries a process exit code alongside the underlying error,
// letting a command function return a plain error while still controlling
// how main() exits (spec.md §6.1's exit-code table).
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// withExit wraps err (if non-nil) so main() exits with code instead of the
// generic failure code cobra would otherwise produce.
func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

const (
	exitOK              = 0
	exitConfigError     = 1
	exitCollaboratorErr = 2
	exitParseAbort      = 3
	exitGraphMissing    = 4
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge maps service ecosystems from source repositories",
	Long: `forge surveys a set of source repositories and builds a knowledge
graph of the services, APIs, databases, queues, and cloud resources they
reference, inferring couplings between services that share storage, a
queue, or an API surface without calling each other directly.

Run "forge init" once to generate a config document, then "forge survey"
to build the graph and "forge map" to ask questions of it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		} else if quiet {
			level = "error"
		}

		zapCfg := zap.NewProductionConfig()
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		switch {
		case verbose:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		case quiet:
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ws, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		if err := logging.Initialize(ws, verbose, level, false, nil); err != nil {
			logger.Warn("failed to initialize file logging", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.AddCommand(initCmd, surveyCmd, mapCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		os.Exit(1)
	}
}
