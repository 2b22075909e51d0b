package model

import "gonum.org/v1/gonum/mat"

// emptyRows is a 0×cols matrix. gonum's Dense cannot represent zero rows, but
// transforms of an empty batch still have to report their output width.
type emptyRows struct {
	cols int
}

func (e emptyRows) Dims() (int, int) { return 0, e.cols }

func (e emptyRows) At(i, j int) float64 {
	panic(mat.ErrIndexOutOfRange)
}

func (e emptyRows) T() mat.Matrix { return mat.Transpose{Matrix: e} }

// NewMatrix returns a rows×cols matrix backed by data (row-major, may be nil for
// zeros). Zero rows yield an empty matrix that still reports cols.
func NewMatrix(rows, cols int, data []float64) mat.Matrix {
	if rows == 0 || cols == 0 {
		return emptyRows{cols: cols}
	}
	return mat.NewDense(rows, cols, data)
}

// Column returns column j of m.
func Column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, j)
	}
	return out
}
