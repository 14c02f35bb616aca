package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/nsaga/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Namespace string
	Type      string
	Failed    bool
}

// JournalEvent is one journaled event in trace output.
type JournalEvent struct {
	Seq       int64    `json:"seq"`
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Namespace string   `json:"namespace,omitempty"`
	Wrap      string   `json:"wrap,omitempty"`
	Arg       any      `json:"arg,omitempty"`
	Failures  []string `json:"failures,omitempty"`
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Namespace string         `json:"namespace,omitempty"`
	Events    []JournalEvent `json:"events"`
	Stats     TraceStats     `json:"stats"`
}

// TraceStats summarizes a journal slice.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Failures    int            `json:"failures"`
	Namespaces  map[string]int `json:"namespaces"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the events of a journal",
		Long: `Print journaled events in sequence order with their effect failures.

--namespace restricts the output to events routed to one namespace; pass an
empty value to select root events. --type and --failed narrow it further.

Examples:
  nsaga trace --db ./nsaga.db
  nsaga trace --db ./nsaga.db --namespace X
  nsaga trace --db ./nsaga.db --type Inc --failed
  nsaga trace --db ./nsaga.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "only show events of this namespace")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show events of this type")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only show events with failed effects")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Journal
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal in the config file")
	}
	// store.Open creates missing files; a trace of a path that does not exist
	// is a usage error.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	byNamespace := cmd.Flags().Changed("namespace")
	records, err := st.Query(ctx, traceFilter(opts, byNamespace))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildTrace(records)
	if byNamespace {
		result.Namespace = opts.Namespace
	}
	filtered := byNamespace || opts.Type != "" || opts.Failed

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result, filtered)
	return nil
}

// traceFilter turns the filter flags into a journal predicate.
func traceFilter(opts *TraceOptions, byNamespace bool) store.Predicate {
	var and store.And
	if byNamespace {
		and.Predicates = append(and.Predicates, store.Equals{Column: store.ColumnNamespace, Value: opts.Namespace})
	}
	if opts.Type != "" {
		and.Predicates = append(and.Predicates, store.Equals{Column: store.ColumnType, Value: opts.Type})
	}
	if opts.Failed {
		and.Predicates = append(and.Predicates, store.HasFailure{})
	}
	return and
}

func buildTrace(records []store.Record) TraceResult {
	result := TraceResult{
		Events: make([]JournalEvent, 0, len(records)),
		Stats:  TraceStats{Namespaces: map[string]int{}},
	}
	for _, rec := range records {
		result.Events = append(result.Events, JournalEvent{
			Seq:       rec.Seq,
			ID:        rec.ID,
			Type:      rec.Type,
			Namespace: rec.Namespace,
			Wrap:      rec.Wrap,
			Arg:       rec.Arg,
			Failures:  rec.Failures,
		})
		result.Stats.Failures += len(rec.Failures)
		result.Stats.Namespaces[rec.Namespace]++
	}
	result.Stats.TotalEvents = len(records)
	return result
}

func outputTraceText(formatter *OutputFormatter, result TraceResult, filtered bool) {
	w := formatter.Writer

	if len(result.Events) == 0 {
		if filtered {
			fmt.Fprintln(w, "No matching events found.")
		} else {
			fmt.Fprintln(w, "No events found.")
		}
		return
	}

	for _, ev := range result.Events {
		fmt.Fprintf(w, "%s\n", formatTraceLine(ev.Seq, ev.Type, ev.Namespace, ev.Arg))
		if formatter.Verbose {
			fmt.Fprintf(w, "    id=%s\n", ev.ID)
		}
		for _, f := range ev.Failures {
			fmt.Fprintf(w, "    effect failed: %s\n", f)
		}
	}

	namespaces := make([]string, 0, len(result.Stats.Namespaces))
	for ns := range result.Stats.Namespaces {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events: %d, failures: %d\n", result.Stats.TotalEvents, result.Stats.Failures)
	for _, ns := range namespaces {
		label := ns
		if label == "" {
			label = "(root)"
		}
		fmt.Fprintf(w, "  %s: %d\n", label, result.Stats.Namespaces[ns])
	}
}
