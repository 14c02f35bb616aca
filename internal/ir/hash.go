package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainEvent prefixes every event id hash. Bump the suffix if the canonical
// form of an event ever changes.
const DomainEvent = "nsaga/event/v1"

// digest is hex(SHA256(domain || 0x00 || data)).
func digest(domain string, data []byte) string {
	sum := sha256.New()
	sum.Write(append([]byte(domain), 0))
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil))
}

// EventID is the journal id of ev processed at turn seq: a digest of the
// canonical form of its seq, type, namespace, wrap and arg. Exec is ignored.
func EventID(seq int64, ev Event) (string, error) {
	fields := map[string]any{
		"namespace": ev.Namespace,
		"seq":       seq,
		"type":      ev.Type,
		"wrap":      ev.Wrap,
	}
	if ev.Arg != nil {
		fields["arg"] = ev.Arg
	}

	data, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("event id for seq %d: %w", seq, err)
	}
	return digest(DomainEvent, data), nil
}

// MustEventID panics where EventID would fail.
func MustEventID(seq int64, ev Event) string {
	id, err := EventID(seq, ev)
	if err != nil {
		panic(err)
	}
	return id
}
