package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ExitHandler is called once per task when its body returns.
// err is nil for a clean exit or an exit caused by cancellation.
type ExitHandler func(namespace, id string, err error)

// GoRunner runs each task body on its own goroutine under a cancellable context.
type GoRunner[S any] struct {
	saga   Saga[S]
	ids    IDGenerator
	base   context.Context
	logger *slog.Logger
	onExit ExitHandler
}

// RunnerOption configures a GoRunner.
type RunnerOption[S any] func(*GoRunner[S])

// WithIDGenerator sets the handle id source. Default: UUIDv7Generator.
func WithIDGenerator[S any](ids IDGenerator) RunnerOption[S] {
	return func(r *GoRunner[S]) {
		r.ids = ids
	}
}

// WithBaseContext sets the parent context of every task. Cancelling it
// stops task bodies but does not move their handles to the cancelled state.
func WithBaseContext[S any](ctx context.Context) RunnerOption[S] {
	return func(r *GoRunner[S]) {
		r.base = ctx
	}
}

// WithLogger sets the runner's logger. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) RunnerOption[S] {
	return func(r *GoRunner[S]) {
		r.logger = logger
	}
}

// WithExitHandler registers fn to observe task exits.
func WithExitHandler[S any](fn ExitHandler) RunnerOption[S] {
	return func(r *GoRunner[S]) {
		r.onExit = fn
	}
}

// NewGoRunner creates a runner for saga.
func NewGoRunner[S any](saga Saga[S], opts ...RunnerOption[S]) *GoRunner[S] {
	r := &GoRunner[S]{
		saga:   saga,
		ids:    UUIDv7Generator{},
		base:   context.Background(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the saga definition for scope and launches its body.
//
// The definition runs synchronously on the caller's goroutine; if it fails the
// task is never started and the error is returned wrapped with the namespace.
func (r *GoRunner[S]) Start(scope Scope[S]) (Handle, error) {
	if scope.Registry == nil || scope.Dispatch == nil {
		return nil, fmt.Errorf("start task %q: scope requires a registry and a dispatch function", scope.Namespace)
	}

	ctx, cancel := context.WithCancel(r.base)
	h := newHandle(r.ids.Generate(), scope.Namespace, cancel)
	caps := &Capabilities[S]{scope: scope, handle: h}

	body, err := r.saga(caps)
	if err != nil {
		h.Cancel()
		h.finish(err)
		return nil, fmt.Errorf("start task %q: %w", scope.Namespace, err)
	}

	r.logger.Info("task started",
		"namespace", scope.Namespace,
		"task_id", h.id,
	)

	if body == nil {
		h.finish(nil)
		return h, nil
	}

	go r.run(ctx, h, body)
	return h, nil
}

// run executes body and records its outcome on h.
func (r *GoRunner[S]) run(ctx context.Context, h *handle, body Body) {
	err := body(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		err = nil
	}

	if err != nil {
		r.logger.Error("task failed",
			"namespace", h.namespace,
			"task_id", h.id,
			"error", err,
		)
	} else {
		r.logger.Debug("task exited",
			"namespace", h.namespace,
			"task_id", h.id,
			"cancelled", h.Cancelled(),
		)
	}

	h.finish(err)
	if r.onExit != nil {
		r.onExit(h.namespace, h.id, err)
	}
}
