package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidSpec(t *testing.T) {
	out, _, err := execute(t, "validate", counterSpec)
	require.NoError(t, err)
	assert.Equal(t, "✓ Spec valid (1 reducer(s), 2 case(s), saga)\n", out)
}

func TestValidate_ValidSpecJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", counterSpec)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Reducers)
	assert.Equal(t, 2, result.Cases)
	assert.True(t, result.HasSaga)
}

func TestValidate_MissingFile(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: spec file not found")
}

func TestValidate_RuleViolations(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "bad.cue")
	writeFile(t, spec, `reducer: r: cases: [{match: "A.*.B", op: "explode"}]`)

	out, _, err := execute(t, "validate", spec)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E202: reducer.r.cases[0].match")
	assert.Contains(t, out, "E203: reducer.r.cases[0].op")
}

func TestValidate_RuleViolationsJSON(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "bad.cue")
	writeFile(t, spec, `reducer: r: cases: [{match: "A.*.B", op: "explode"}]`)

	out, _, err := execute(t, "--format", "json", "validate", spec)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "E203", result.Errors[1].Code)
}

func TestValidate_CompileError(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "broken.cue")
	writeFile(t, spec, "reducer: {\n")

	out, _, err := execute(t, "validate", spec)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E100]")
}

func TestValidate_ReactionCycleWarning(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "cycle.cue")
	writeFile(t, spec, `
reducer: r: cases: [{match: "A", op: "add", field: "n"}]
saga: react: {A: "B", B: "A"}
`)

	out, _, err := execute(t, "validate", spec)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Spec valid (1 reducer(s), 1 case(s), saga)")
	assert.Contains(t, out, "warning: reaction cycle: A -> B -> A")

	out, _, err = execute(t, "--format", "json", "validate", spec)
	require.NoError(t, err)

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, []string{"A", "B", "A"}, result.Warnings[0].Path)
}
