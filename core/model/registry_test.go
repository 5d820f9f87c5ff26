package model_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/model/modeltest"
)

// TestOpenBackend_ResolvesRegisteredLoader verifies a registered backend
// resolves and loads.
func TestOpenBackend_ResolvesRegisteredLoader(t *testing.T) {
	model.RegisterBackend("registry-test-fake", func(_ context.Context) (model.Capability, error) {
		return modeltest.New(), nil
	})

	loader, err := model.OpenBackend("registry-test-fake")
	require.NoError(t, err)

	capability, err := loader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake-tied", capability.Profile().Name)
}

// TestOpenBackend_UnknownNameIsConfigurationError verifies the missing
// backend surfaces as a configuration failure.
func TestOpenBackend_UnknownNameIsConfigurationError(t *testing.T) {
	_, err := model.OpenBackend("never-registered")
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}
