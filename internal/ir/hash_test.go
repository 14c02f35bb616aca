package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterminism(t *testing.T) {
	ev := Event{Type: "Inc", Namespace: "X", Arg: map[string]any{"by": 2}}

	id1, err := EventID(1, ev)
	require.NoError(t, err)
	id2, err := EventID(1, ev)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "EventID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestEventIDChangesWithInput(t *testing.T) {
	base := Event{Type: "Inc", Namespace: "X"}

	id1 := MustEventID(1, base)
	id2 := MustEventID(2, base)
	id3 := MustEventID(1, Event{Type: "Inc", Namespace: "Y"})
	id4 := MustEventID(1, Event{Type: "Inc", Namespace: "X", Wrap: "A."})

	assert.NotEqual(t, id1, id2, "different seq")
	assert.NotEqual(t, id1, id3, "different namespace")
	assert.NotEqual(t, id1, id4, "different wrap")
}

func TestEventIDIgnoresExec(t *testing.T) {
	ev := Event{Type: "Inc"}
	withExec := ev.WithExec(func(Effect) {})

	assert.Equal(t, MustEventID(1, ev), MustEventID(1, withExec))
}

func TestEventIDRejectsFloatArg(t *testing.T) {
	_, err := EventID(1, Event{Type: "Inc", Arg: 0.5})
	assert.Error(t, err)
}
