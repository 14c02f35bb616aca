package harness

import (
	"sync"

	"github.com/roach88/nsaga/internal/ir"
)

// TraceEvent is one processed event as seen by the engine.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	Arg       any    `json:"arg,omitempty"`

	// Error holds the failures of the event's effects, if any.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when no step failed and every assertion held.
	Pass bool `json:"pass"`

	// Trace lists processed events in processing order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Model is the final accumulator.
	Model ir.Model `json:"model"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Model:  ir.Model{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// traceRecorder is the engine observer that builds a scenario trace.
type traceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *traceRecorder) Processed(seq int64, ev ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, TraceEvent{
		Seq:       seq,
		Type:      ev.Type,
		Namespace: ev.Namespace,
		Arg:       ev.Arg,
	})
}

func (r *traceRecorder) Failed(seq int64, _ ir.Event, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Seq != seq {
			continue
		}
		if r.events[i].Error != "" {
			r.events[i].Error += "; "
		}
		r.events[i].Error += err.Error()
		return
	}
}

func (r *traceRecorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent{}, r.events...)
}
