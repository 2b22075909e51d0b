package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/dataset/synthetic"
	"github.com/YuminosukeSato/cropyield/pipeline"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/sklearn/ensemble"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cropyield.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	empty, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	records, err := synthetic.New(25, 42).Records()
	require.NoError(t, err)
	require.NoError(t, s.SaveRecords(ctx, records[:10]))
	require.NoError(t, s.SaveRecords(ctx, records[10:]))
	require.NoError(t, s.SaveRecords(ctx, nil))

	ds, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, ds.Records())
}

func TestSaveRecordsRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	records, err := synthetic.New(3, 1).Records()
	require.NoError(t, err)
	records[2].Yield = -1

	err = s.SaveRecords(ctx, records)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, dataset.Yield, ve.ParamName)

	ds, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, ds.Len(), "nothing is written when any record is invalid")
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := Run{Model: pipeline.ModelName, NEstimators: 50, MaxDepth: 8, RandomState: 7,
		TrainSize: 80, TestSize: 20, MAE: 1.4, R2: 0.81, TrainedAt: base}
	newer := older
	newer.NEstimators = 100
	newer.TrainedAt = base.Add(time.Hour)

	id1, err := s.SaveRun(ctx, older)
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	id2, err := s.SaveRun(ctx, newer)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, id2, runs[0].ID, "newest first")
	assert.Equal(t, 100, runs[0].NEstimators)
	assert.True(t, runs[1].TrainedAt.Equal(base))
	assert.Equal(t, uint64(7), runs[1].RandomState)
	assert.Equal(t, 0.81, runs[1].R2)

	dup := older
	dup.ID = id1
	_, err = s.SaveRun(ctx, dup)
	assert.Error(t, err, "run ids are unique")
}

func TestRunFromResult(t *testing.T) {
	ds, err := synthetic.New(100, 3).Generate()
	require.NoError(t, err)
	res, err := pipeline.Train(context.Background(), ds,
		pipeline.WithPipelineOptions(pipeline.WithForestOptions(ensemble.WithNEstimators(5), ensemble.WithRandomState(9))))
	require.NoError(t, err)

	at := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	run := RunFromResult(res, at)
	assert.Equal(t, res.Pipeline.ID, run.ID)
	assert.Equal(t, 5, run.NEstimators)
	assert.Equal(t, uint64(9), run.RandomState)
	assert.Equal(t, 80, run.TrainSize)
	assert.Equal(t, res.Metrics.MAE, run.MAE)

	s := openStore(t)
	id, err := s.SaveRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, run.ID, id)
}
