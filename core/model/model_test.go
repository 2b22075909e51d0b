package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

func TestStateManagerLifecycle(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Pipeline", "Predict")
	var nf *cyerrors.NotFittedError
	require.True(t, cyerrors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	require.NoError(t, s.RequireUnfitted("Fit"))
	require.NoError(t, s.MarkFitted("Fit", 6, 800))
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("Pipeline", "Predict"))

	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 6, nFeatures)
	assert.Equal(t, 800, nSamples)

	err = s.MarkFitted("Fit", 3, 10)
	require.Error(t, err)
	assert.True(t, cyerrors.Is(err, cyerrors.ErrAlreadyFitted))
	assert.True(t, cyerrors.Is(s.RequireUnfitted("Fit"), cyerrors.ErrAlreadyFitted))

	// dimensions from the first fit are kept
	nFeatures, _ = s.GetDimensions()
	assert.Equal(t, 6, nFeatures)
}

func TestNewMatrix(t *testing.T) {
	m := NewMatrix(0, 6, nil)
	r, c := m.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, 6, c)
	tr, tc := m.T().Dims()
	assert.Equal(t, 6, tr)
	assert.Equal(t, 0, tc)
	assert.Panics(t, func() { m.At(0, 0) })

	d := NewMatrix(2, 2, []float64{1, 2, 3, 4})
	assert.Equal(t, []float64{2, 4}, Column(d, 1))
	assert.Empty(t, Column(m, 0))
}

type savedForest struct {
	Name   string
	Values []float64
	State  *StateManager
}

func TestPersistenceRoundTrip(t *testing.T) {
	in := savedForest{Name: "forest", Values: []float64{1.5, 2.5}, State: NewStateManager()}
	require.NoError(t, in.State.MarkFitted("Fit", 2, 10))

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&in, &buf))

	var out savedForest
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Values, out.Values)
	assert.True(t, out.State.IsFitted())

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveModel(&in, path))
	var fromFile savedForest
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, in.Values, fromFile.Values)

	assert.Error(t, LoadModel(&fromFile, filepath.Join(t.TempDir(), "missing.gob")))
}
