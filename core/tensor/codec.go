package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Blob layout: uint32 rows, uint32 cols, then rows*cols little-endian
// float32 values. Vectors are encoded as 1 x n matrices.

const headerSize = 8

// Encode serializes a matrix into a byte blob.
func Encode(m *Matrix) []byte {
	buf := make([]byte, headerSize+4*len(m.Data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Cols))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(v))
	}
	return buf
}

// EncodeVector serializes a vector as a single-row matrix blob.
func EncodeVector(v []float32) []byte {
	m := Matrix{Rows: 1, Cols: len(v), Data: v}
	return Encode(&m)
}

// Decode deserializes a matrix blob produced by Encode.
func Decode(blob []byte) (*Matrix, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("tensor blob too short: %d bytes", len(blob))
	}
	rows := int(binary.LittleEndian.Uint32(blob[0:4]))
	cols := int(binary.LittleEndian.Uint32(blob[4:8]))
	want := headerSize + 4*rows*cols
	if len(blob) != want {
		return nil, fmt.Errorf("tensor blob size mismatch: got %d bytes, want %d for %dx%d", len(blob), want, rows, cols)
	}
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[headerSize+4*i:]))
	}
	return m, nil
}

// DecodeVector deserializes a single-row matrix blob into a vector.
func DecodeVector(blob []byte) ([]float32, error) {
	m, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	if m.Rows != 1 {
		return nil, fmt.Errorf("expected vector blob, got %dx%d matrix", m.Rows, m.Cols)
	}
	return m.Data, nil
}
