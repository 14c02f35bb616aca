package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/nsaga/internal/engine"
	"github.com/roach88/nsaga/internal/harness"
	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/metrics"
	"github.com/roach88/nsaga/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Model    ir.Model             `json:"model"`
	Errors   []string             `json:"errors,omitempty"`
	Journal  string               `json:"journal,omitempty"`
	Metrics  string               `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute one scenario and print its trace",
		Long: `Execute a scenario against its spec and print the processed events and
the final model.

With --db every processed event and effect failure is journaled to SQLite.
Sequence numbers continue from the last journaled event, so one journal can
collect several runs. With --metrics the Prometheus collectors of the run
are printed after the trace.

Examples:
  nsaga run ./scenarios/counter.yaml
  nsaga run ./scenarios/counter.yaml --db ./nsaga.db
  nsaga run ./scenarios/counter.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal processed events to this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := []harness.Option{harness.WithLogger(logger)}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Journal
	}
	var journal *store.Journal
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("close journal", "error", closeErr)
			}
		}()

		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		logger.Debug("journal opened", "path", dbPath, "last_seq", last)

		journal = store.NewJournal(st, logger)
		runOpts = append(runOpts,
			harness.WithObserver(journal),
			harness.WithClock(engine.NewClockAt(last)),
		)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		m := metrics.New(reg)
		runOpts = append(runOpts, harness.WithObserver(m), harness.WithHooks(m))
	}

	logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}

	if journal != nil {
		if err := journal.Err(); err != nil {
			return WrapExitError(ExitFailure, "journal write failed", err)
		}
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Model:    result.Model,
		Errors:   result.Errors,
		Journal:  dbPath,
	}
	if reg != nil {
		text, err := gatherText(reg)
		if err != nil {
			return WrapExitError(ExitFailure, "gather metrics", err)
		}
		out.Metrics = text
	}

	if formatter.JSON() {
		return outputRunJSON(formatter, out)
	}
	return outputRunText(formatter.Writer, out, logger)
}

// gatherText renders reg in the Prometheus text exposition format.
func gatherText(reg *prometheus.Registry) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func outputRunJSON(formatter *OutputFormatter, out RunResult) error {
	if out.Pass {
		return formatter.Success(out)
	}
	if err := formatter.Respond(CLIResponse{
		Status: "error",
		Data:   out,
		Error: &CLIError{
			Code:    ErrCodeScenarioFail,
			Message: fmt.Sprintf("scenario %s failed", out.Scenario),
			Details: out.Errors,
		},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
}

func outputRunText(w io.Writer, out RunResult, logger *slog.Logger) error {
	fmt.Fprintf(w, "Scenario: %s\n\n", out.Scenario)
	for _, ev := range out.Trace {
		fmt.Fprintf(w, "  %s\n", formatTraceLine(ev.Seq, ev.Type, ev.Namespace, ev.Arg))
		if ev.Error != "" {
			fmt.Fprintf(w, "      effect failed: %s\n", ev.Error)
		}
	}

	model, err := ir.MarshalCanonical(out.Model)
	if err != nil {
		logger.Warn("model is not canonical", "error", err)
		model = fmt.Appendf(nil, "%v", out.Model)
	}
	fmt.Fprintf(w, "\nModel: %s\n", model)

	if out.Journal != "" {
		fmt.Fprintf(w, "Journal: %s\n", out.Journal)
	}
	if out.Metrics != "" {
		fmt.Fprintf(w, "\n%s", out.Metrics)
	}

	fmt.Fprintln(w)
	if !out.Pass {
		fmt.Fprintf(w, "✗ %s failed\n", out.Scenario)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	fmt.Fprintf(w, "✓ %s passed\n", out.Scenario)
	return nil
}

// formatTraceLine renders one event as "[seq] type ns=X arg=v", leaving out
// an empty namespace and a nil arg.
func formatTraceLine(seq int64, typ, ns string, arg any) string {
	line := fmt.Sprintf("[%d] %s", seq, typ)
	if ns != "" {
		line += " ns=" + ns
	}
	if arg != nil {
		line += fmt.Sprintf(" arg=%v", arg)
	}
	return line
}
