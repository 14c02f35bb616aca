package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// DefaultConfigFile is read when --config is not given and the file exists in
// the working directory.
const DefaultConfigFile = "nsaga.toml"

// fileConfig mirrors the keys accepted in a config file. Flags given on the
// command line win over the file.
//
//	format    = "json"
//	verbose   = true
//	journal   = "./nsaga.db"
//	log_level = "warn"
type fileConfig struct {
	Format   string `toml:"format"`
	Verbose  bool   `toml:"verbose"`
	Journal  string `toml:"journal"`
	LogLevel string `toml:"log_level"`
}

// applyConfig loads path into opts. Keys whose flag was set explicitly on cmd
// are left alone.
func applyConfig(cmd *cobra.Command, opts *RootOptions, path string) error {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	flags := cmd.Flags()
	if meta.IsDefined("format") && !flags.Changed("format") {
		opts.Format = cfg.Format
	}
	if meta.IsDefined("verbose") && !flags.Changed("verbose") {
		opts.Verbose = cfg.Verbose
	}
	if meta.IsDefined("log_level") && !flags.Changed("log-level") {
		opts.LogLevel = cfg.LogLevel
	}
	if meta.IsDefined("journal") {
		opts.Journal = cfg.Journal
	}
	return nil
}

// parseLogLevel accepts the slog level names (debug, info, warn, error).
func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	return level, nil
}

// newLogger builds the diagnostic logger. Verbose forces debug.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level, err := parseLogLevel(opts.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
