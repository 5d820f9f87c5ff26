// Package realign computes and applies the projection that maps a model's
// hidden-state space back onto its input-embedding space. The projection is
// what lets the reasoning loop feed hidden states back in as embeddings
// without re-tokenizing.
package realign

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/tensor"
)

// normSampleRows bounds the embedding-norm sample used for TargetNorm.
const normSampleRows = 2000

// minProjectedNorm guards the rescale against near-zero projections.
const minProjectedNorm = 1e-8

// State is the calibrated realignment: the projection matrix and the norm
// every projected vector is rescaled to. Computed once per model lifetime
// and read-only afterward.
type State struct {
	Matrix     *tensor.Matrix // hidden x hidden
	TargetNorm float64
}

// Calibrate solves the ridge-regularized normal equations
//
//	(W_outᵀ W_out + λI) M = W_outᵀ W_in
//
// for M via Cholesky factorization of the symmetric positive-definite Gram
// matrix. λ must be strictly positive so the system stays non-singular even
// with tied embeddings, where M converges near the identity. TargetNorm is
// the mean Euclidean length over a bounded prefix of W_in.
func Calibrate(wIn, wOut *tensor.Matrix, lambda float64, logger *slog.Logger) (*State, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if lambda <= 0 {
		return nil, errors.Configuration("realign lambda must be > 0, got %v", lambda)
	}
	if wIn.Cols != wOut.Cols {
		return nil, errors.Configuration("embedding dims differ: W_in %d, W_out %d", wIn.Cols, wOut.Cols)
	}
	h := wIn.Cols

	out := denseFrom(wOut)
	in := denseFrom(wIn)

	var gram mat.Dense
	gram.Mul(out.T(), out)

	sym := mat.NewSymDense(h, nil)
	for i := 0; i < h; i++ {
		for j := i; j < h; j++ {
			v := gram.At(i, j)
			if i == j {
				v += lambda
			}
			sym.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, errors.Numerical("gram matrix not positive definite (lambda=%v)", lambda)
	}

	var target mat.Dense
	target.Mul(out.T(), in)

	var solved mat.Dense
	if err := chol.SolveTo(&solved, &target); err != nil {
		return nil, errors.Numerical("solve realignment system: %v", err)
	}

	m := tensor.NewMatrix(h, h)
	for i := 0; i < h; i++ {
		for j := 0; j < h; j++ {
			m.Data[i*h+j] = float32(solved.At(i, j))
		}
	}

	sample := wIn.Rows
	if sample > normSampleRows {
		sample = normSampleRows
	}
	var total float64
	for i := 0; i < sample; i++ {
		total += tensor.Norm(wIn.Row(i))
	}
	targetNorm := total / float64(sample)

	logger.Info("realignment calibrated",
		slog.Int("hidden_dim", h),
		slog.Float64("lambda", lambda),
		slog.Float64("target_norm", targetNorm))

	return &State{Matrix: m, TargetNorm: targetNorm}, nil
}

// Apply projects a hidden vector through M and rescales its Euclidean norm
// to exactly TargetNorm. Near-zero projections are clamped rather than
// divided through.
func (s *State) Apply(hidden []float32) ([]float32, error) {
	projected, err := tensor.MulVecLeft(hidden, s.Matrix)
	if err != nil {
		return nil, err
	}
	norm := tensor.Norm(projected)
	if norm < minProjectedNorm {
		norm = minProjectedNorm
	}
	scale := float32(s.TargetNorm / norm)
	for i := range projected {
		projected[i] *= scale
	}
	return projected, nil
}

// ApplyRows realigns every row of a matrix, returning a new matrix.
func (s *State) ApplyRows(m *tensor.Matrix) (*tensor.Matrix, error) {
	out := tensor.NewMatrix(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		row, err := s.Apply(m.Row(i))
		if err != nil {
			return nil, err
		}
		copy(out.Row(i), row)
	}
	return out, nil
}

func denseFrom(m *tensor.Matrix) *mat.Dense {
	data := make([]float64, len(m.Data))
	for i, v := range m.Data {
		data[i] = float64(v)
	}
	return mat.NewDense(m.Rows, m.Cols, data)
}
