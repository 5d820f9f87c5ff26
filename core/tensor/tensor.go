// Package tensor provides the float32 matrix and vector primitives shared by
// the calibrator, the latent engine, and the vector index.
package tensor

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// FromRows stacks equal-length vectors into a matrix, copying each row.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("stack: no rows")
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("stack: row %d has %d cols, want %d", i, len(r), cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Row returns a mutable view of row i.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// MeanRows returns the elementwise mean over all rows.
func (m *Matrix) MeanRows() []float32 {
	out := make([]float32, m.Cols)
	for i := 0; i < m.Rows; i++ {
		vek32.Add_Inplace(out, m.Row(i))
	}
	inv := float32(1.0 / float64(m.Rows))
	for j := range out {
		out[j] *= inv
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(float64(vek32.Dot(v, v)))
}

// Normalized returns a unit-norm copy of v. Vectors with norm below eps are
// returned as zero copies rather than dividing by a vanishing norm.
func Normalized(v []float32, eps float64) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n < eps {
		return out
	}
	inv := float32(1.0 / n)
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// MulVecLeft computes v @ m for a row vector v of length m.Rows, returning a
// vector of length m.Cols.
func MulVecLeft(v []float32, m *Matrix) ([]float32, error) {
	if len(v) != m.Rows {
		return nil, fmt.Errorf("mulvec: vector length %d != matrix rows %d", len(v), m.Rows)
	}
	out := make([]float32, m.Cols)
	scaled := make([]float32, m.Cols)
	for i, x := range v {
		if x == 0 {
			continue
		}
		row := m.Row(i)
		for j := range scaled {
			scaled[j] = row[j] * x
		}
		vek32.Add_Inplace(out, scaled)
	}
	return out, nil
}
