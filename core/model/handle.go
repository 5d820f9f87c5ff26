package model

import (
	"context"
	"log/slog"
	"sync"

	"github.com/adalundhe/lattice/core/errors"
)

// Loader constructs the capability on first use.
type Loader func(ctx context.Context) (Capability, error)

// Handle serializes all model operations through a single point of access.
// The model's incremental cache makes it a stateful, non-reentrant resource:
// two reasoning or reconstruction loops must never interleave forward
// evaluations, so callers hold the handle for the whole loop.
//
// Loading is lazy and treated as the first queued operation: the process
// starts instantly and pays the model-load cost on the first real request.
type Handle struct {
	loader Loader
	logger *slog.Logger

	gate chan struct{}

	mu     sync.Mutex
	cap    Capability
	err    error
	loaded bool
}

// NewHandle wraps a loader in a serialized lazy handle.
func NewHandle(loader Loader, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{
		loader: loader,
		logger: logger,
		gate:   make(chan struct{}, 1),
	}
}

// Acquire blocks until the caller owns the model, loading it first if this
// is the initial operation. The returned release function must be called
// when the multi-evaluation operation completes. Cancellation applies only
// while queued; once acquired, the operation runs to completion.
func (h *Handle) Acquire(ctx context.Context) (Capability, func(), error) {
	select {
	case h.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	h.mu.Lock()
	if !h.loaded {
		h.logger.Info("loading model on first request")
		h.cap, h.err = h.loader(ctx)
		h.loaded = true
		if h.err == nil {
			h.logger.Info("model loaded", slog.String("model", h.cap.Profile().Name))
		}
	}
	capability, err := h.cap, h.err
	h.mu.Unlock()

	if err != nil {
		<-h.gate
		return nil, nil, errors.Wrap(errors.KindConfiguration, err, "model capability unavailable")
	}

	release := func() { <-h.gate }
	return capability, release, nil
}

// Loaded reports whether the model has been loaded, without triggering a
// load. Used by health reporting.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded && h.err == nil
}
