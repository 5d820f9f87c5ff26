package realign_test

import (
	"math/rand"
	"testing"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/model/modeltest"
	"github.com/adalundhe/lattice/core/realign"
	"github.com/adalundhe/lattice/core/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMatrix(rows, cols int, seed int64) *tensor.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := tensor.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = float32(rng.NormFloat64())
	}
	return m
}

func TestCalibrate_RejectsNonPositiveLambda(t *testing.T) {
	w := randomMatrix(32, 4, 1)
	_, err := realign.Calibrate(w, w, 0, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}

func TestCalibrate_RejectsDimensionMismatch(t *testing.T) {
	_, err := realign.Calibrate(randomMatrix(32, 4, 1), randomMatrix(32, 6, 2), 1e-3, nil)
	require.Error(t, err)
}

// TestCalibrate_TiedEmbeddingsNearIdentity verifies that with
// W_out == W_in the ridge solution converges near the identity matrix.
func TestCalibrate_TiedEmbeddingsNearIdentity(t *testing.T) {
	fake := modeltest.New()
	wIn, err := fake.InputEmbeddings()
	require.NoError(t, err)
	wOut, err := fake.OutputProjection()
	require.NoError(t, err)

	state, err := realign.Calibrate(wIn, wOut, 1e-4, nil)
	require.NoError(t, err)

	h := wIn.Cols
	for i := 0; i < h; i++ {
		for j := 0; j < h; j++ {
			want := float32(0)
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, state.Matrix.Data[i*h+j], 0.01,
				"M[%d,%d] should be near identity", i, j)
		}
	}
	assert.Greater(t, state.TargetNorm, 0.0)
}

// TestApply_NormEqualsTargetNorm pins the rescaling property: for any
// nonzero input the projected vector's Euclidean norm equals TargetNorm.
func TestApply_NormEqualsTargetNorm(t *testing.T) {
	wIn := randomMatrix(64, 6, 3)
	wOut := randomMatrix(64, 6, 4)
	state, err := realign.Calibrate(wIn, wOut, 1e-3, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	for trial := 0; trial < 20; trial++ {
		h := make([]float32, 6)
		for i := range h {
			h[i] = float32(rng.NormFloat64() * 10)
		}
		out, err := state.Apply(h)
		require.NoError(t, err)
		assert.InDelta(t, state.TargetNorm, tensor.Norm(out), 1e-3)
	}
}

// TestApply_NearZeroHiddenDoesNotBlowUp verifies the clamp: a vanishing
// hidden vector produces finite output instead of dividing by near-zero.
func TestApply_NearZeroHiddenDoesNotBlowUp(t *testing.T) {
	wIn := randomMatrix(64, 6, 5)
	state, err := realign.Calibrate(wIn, wIn, 1e-3, nil)
	require.NoError(t, err)

	out, err := state.Apply(make([]float32, 6))
	require.NoError(t, err)
	for _, v := range out {
		assert.False(t, v != v, "output must not be NaN")
	}
}

func TestApplyRows_RealignsEveryRow(t *testing.T) {
	wIn := randomMatrix(64, 6, 6)
	state, err := realign.Calibrate(wIn, wIn, 1e-3, nil)
	require.NoError(t, err)

	m := randomMatrix(5, 6, 7)
	out, err := state.ApplyRows(m)
	require.NoError(t, err)
	require.Equal(t, 5, out.Rows)
	for i := 0; i < out.Rows; i++ {
		assert.InDelta(t, state.TargetNorm, tensor.Norm(out.Row(i)), 1e-3)
	}
}
