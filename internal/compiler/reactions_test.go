package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeReactions_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeReactions(nil))
	assert.Empty(t, AnalyzeReactions(&SagaSpec{Start: []string{"Ready"}}))
}

func TestAnalyzeReactions_Chain(t *testing.T) {
	s := &SagaSpec{React: []Reaction{
		{On: "Inc", Emit: "Seen"},
		{On: "Seen", Emit: "Logged"},
	}}
	assert.Empty(t, AnalyzeReactions(s))
}

func TestAnalyzeReactions_SelfLoop(t *testing.T) {
	s := &SagaSpec{React: []Reaction{{On: "Ping", Emit: "Ping"}}}

	warnings := AnalyzeReactions(s)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Ping", "Ping"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Ping -> Ping")
}

func TestAnalyzeReactions_TwoNodeCycle(t *testing.T) {
	s := &SagaSpec{React: []Reaction{
		{On: "Seen", Emit: "Inc"},
		{On: "Inc", Emit: "Seen"},
		{On: "Other", Emit: "Inc"},
	}}

	warnings := AnalyzeReactions(s)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Inc", "Seen", "Inc"}, warnings[0].Path)
	assert.Equal(t, "reaction cycle: Inc -> Seen -> Inc", warnings[0].Message)
}

func TestAnalyzeReactions_ThreeNodeCycle(t *testing.T) {
	s := &SagaSpec{React: []Reaction{
		{On: "C", Emit: "A"},
		{On: "A", Emit: "B"},
		{On: "B", Emit: "C"},
	}}

	warnings := AnalyzeReactions(s)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
}
