package model_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandle_LazyLoadOnFirstAcquire verifies the loader does not run until
// the first acquisition, and runs exactly once.
func TestHandle_LazyLoadOnFirstAcquire(t *testing.T) {
	var loads atomic.Int64
	h := model.NewHandle(func(ctx context.Context) (model.Capability, error) {
		loads.Add(1)
		return modeltest.New(), nil
	}, nil)

	assert.False(t, h.Loaded())
	assert.Zero(t, loads.Load())

	capability, release, err := h.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.Equal(t, int64(1), loads.Load())
	assert.Equal(t, "fake-tied", capability.Profile().Name)

	_, release, err = h.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.Equal(t, int64(1), loads.Load(), "loader must run once")
	assert.True(t, h.Loaded())
}

func TestHandle_LoaderFailureIsConfigurationError(t *testing.T) {
	h := model.NewHandle(func(ctx context.Context) (model.Capability, error) {
		return nil, fmt.Errorf("no such model")
	}, nil)

	_, _, err := h.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
	assert.False(t, h.Loaded())

	// The gate must have been released despite the failure.
	_, _, err = h.Acquire(context.Background())
	require.Error(t, err)
}

// TestHandle_SerializesOperations verifies mutual exclusion: while one
// operation holds the handle, a second acquisition blocks.
func TestHandle_SerializesOperations(t *testing.T) {
	h := model.NewHandle(func(ctx context.Context) (model.Capability, error) {
		return modeltest.New(), nil
	}, nil)

	_, release, err := h.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, rel, err := h.Acquire(context.Background())
		if err == nil {
			close(acquired)
			rel()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	wg.Wait()
	select {
	case <-acquired:
	default:
		t.Fatal("second acquire never completed after release")
	}
}

// TestHandle_QueuedAcquireHonorsCancellation verifies a caller can abort
// while queued, before it reaches the front of the serialization queue.
func TestHandle_QueuedAcquireHonorsCancellation(t *testing.T) {
	h := model.NewHandle(func(ctx context.Context) (model.Capability, error) {
		return modeltest.New(), nil
	}, nil)

	_, release, err := h.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = h.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
