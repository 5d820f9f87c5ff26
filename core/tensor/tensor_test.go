package tensor_test

import (
	"math"
	"testing"

	"github.com/adalundhe/lattice/core/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFromRows_RejectsRaggedInput verifies that stacking rows of unequal
// length fails instead of producing a corrupt matrix.
func TestFromRows_RejectsRaggedInput(t *testing.T) {
	_, err := tensor.FromRows([][]float32{{1, 2}, {3}})
	require.Error(t, err)
}

func TestMeanRows_AveragesElementwise(t *testing.T) {
	m, err := tensor.FromRows([][]float32{
		{1, 2, 3},
		{3, 4, 5},
	})
	require.NoError(t, err)

	mean := m.MeanRows()
	assert.InDeltaSlice(t, []float32{2, 3, 4}, mean, 1e-6)
}

func TestNormalized_UnitNorm(t *testing.T) {
	v := []float32{3, 4}
	n := tensor.Normalized(v, 1e-8)
	assert.InDelta(t, 1.0, tensor.Norm(n), 1e-6)
	assert.InDelta(t, 0.6, n[0], 1e-6)
	assert.InDelta(t, 0.8, n[1], 1e-6)
}

// TestNormalized_NearZeroVector verifies the division guard: vectors below
// the epsilon come back as zeros, not NaN.
func TestNormalized_NearZeroVector(t *testing.T) {
	v := []float32{1e-12, 0}
	n := tensor.Normalized(v, 1e-8)
	for _, x := range n {
		assert.False(t, math.IsNaN(float64(x)))
		assert.Zero(t, x)
	}
}

func TestMulVecLeft_MatchesManualProduct(t *testing.T) {
	m, err := tensor.FromRows([][]float32{
		{1, 0, 2},
		{0, 1, 1},
	})
	require.NoError(t, err)

	out, err := tensor.MulVecLeft([]float32{2, 3}, m)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2, 3, 7}, out, 1e-6)

	_, err = tensor.MulVecLeft([]float32{1, 2, 3}, m)
	require.Error(t, err)
}

func TestCodec_RoundTripsMatrixAndShape(t *testing.T) {
	m, err := tensor.FromRows([][]float32{
		{1.5, -2.25},
		{0, 3.75},
		{-1, 0.125},
	})
	require.NoError(t, err)

	got, err := tensor.Decode(tensor.Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m.Rows, got.Rows)
	assert.Equal(t, m.Cols, got.Cols)
	assert.Equal(t, m.Data, got.Data)
}

func TestDecode_RejectsTruncatedBlob(t *testing.T) {
	m := tensor.NewMatrix(2, 2)
	blob := tensor.Encode(m)

	_, err := tensor.Decode(blob[:len(blob)-3])
	require.Error(t, err)

	_, err = tensor.Decode([]byte{1, 2})
	require.Error(t, err)
}

func TestDecodeVector_RejectsMultiRowBlob(t *testing.T) {
	m := tensor.NewMatrix(2, 3)
	_, err := tensor.DecodeVector(tensor.Encode(m))
	require.Error(t, err)

	v, err := tensor.DecodeVector(tensor.EncodeVector([]float32{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}
