package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/nsaga/internal/compiler"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
	Reducers int                        `json:"reducers"`
	Cases    int                        `json:"cases"`
	HasSaga  bool                       `json:"has_saga"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec.cue>",
		Short: "Compile and check a spec without running it",
		Long: `Compile a CUE spec and check it against the semantic rules.

Reports every rule violation (E2xx codes) and warns about saga reactions
that can trigger each other forever.

Exit codes:
  0 - Spec is valid (warnings allowed)
  1 - Spec does not compile or breaks a rule
  2 - Spec file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	spec, err := compiler.CompileFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("spec file not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "spec file not found", err)
	}
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := ValidationResult{
		Errors:   compiler.Validate(spec),
		Reducers: len(spec.Reducers),
		Cases:    spec.CaseCount(),
		HasSaga:  spec.Saga != nil,
	}
	if spec.Saga != nil {
		result.Warnings = compiler.AnalyzeReactions(spec.Saga)
	}
	result.Valid = len(result.Errors) == 0
	formatter.VerboseLog("compiled %s: %d reducer(s), %d case(s)", path, result.Reducers, result.Cases)

	if formatter.JSON() {
		return outputValidateJSON(formatter, result)
	}
	return outputValidateText(formatter, result)
}

func outputCompileError(formatter *OutputFormatter, err error) error {
	var details any
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) && cerr.Pos.IsValid() {
		details = map[string]any{"field": cerr.Field, "line": cerr.Pos.Line()}
	}
	_ = formatter.Error(ErrCodeCompile, err.Error(), details)
	return WrapExitError(ExitFailure, "compile failed", err)
}

func outputValidateJSON(formatter *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return formatter.Success(result)
	}

	first := result.Errors[0]
	if err := formatter.Respond(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: first.Code, Message: first.Message},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	if !result.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "line %d\n", e.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	saga := "no saga"
	if result.HasSaga {
		saga = "saga"
	}
	fmt.Fprintf(w, "✓ Spec valid (%d reducer(s), %d case(s), %s)\n", result.Reducers, result.Cases, saga)
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
	return nil
}
