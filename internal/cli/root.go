package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	LogLevel string

	// Journal is the default journal path for run and trace, set from the
	// config file.
	Journal string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nsaga CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nsaga",
		Short: "nsaga - namespaced sagas over a reducer chain",
		Long: `Drive a dispatch loop of matcher-chain reducers with one saga task per
mounted namespace.

Specs are CUE files with a reducer section and an optional saga section.
Scenarios are YAML files that mount namespaces, dispatch events and assert
on the resulting trace and model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return prepare(cmd, opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./"+DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

func prepare(cmd *cobra.Command, opts *RootOptions) error {
	path := opts.Config
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return WrapExitError(ExitCommandError, "stat config", err)
		}
	}
	if path != "" {
		if err := applyConfig(cmd, opts, path); err != nil {
			return WrapExitError(ExitCommandError, "invalid config", err)
		}
	}

	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if _, err := parseLogLevel(opts.LogLevel); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
