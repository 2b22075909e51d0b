package pipeline

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/dataset/synthetic"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/sklearn/ensemble"
)

func syntheticData(t *testing.T, n int, seed uint64) dataset.Dataset {
	t.Helper()
	ds, err := synthetic.New(n, seed).Generate()
	require.NoError(t, err)
	return ds
}

func smallForest(extra ...ensemble.Option) TrainOption {
	opts := append([]ensemble.Option{ensemble.WithNEstimators(20)}, extra...)
	return WithPipelineOptions(WithForestOptions(opts...))
}

var reference = dataset.Record{
	TemperatureMean:     28.0,
	AnnualPrecipitation: 1500,
	FertilizerUse:       180,
	SoilType:            "Franco",
}

func TestTrainSeed42Scenario(t *testing.T) {
	ds := syntheticData(t, 1000, 42)
	res, err := Train(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 800, res.TrainSize)
	assert.Equal(t, 200, res.TestSize)
	assert.Equal(t, 200, res.Metrics.N)

	expected := synthetic.ExpectedYield(reference)
	require.InDelta(t, 32.5, expected, 1e-9)

	got, err := res.Pipeline.PredictOne(reference)
	require.NoError(t, err)

	// recorded from a reference run of the default configuration
	assert.InDelta(t, 31.7592, got, 0.5)
	assert.InDelta(t, 1.5124, res.Metrics.MAE, 0.05)
	assert.InDelta(t, 0.8604, res.Metrics.R2, 0.02)

	// bounds implied by the generator noise
	assert.InDelta(t, expected, got, 2.5)
	assert.Less(t, res.Metrics.MAE, 2.0)
	assert.Greater(t, res.Metrics.R2, 0.6)
	assert.Equal(t, 42, int(res.Pipeline.Params()["random_state"].(uint64)))
}

func TestDeterminism(t *testing.T) {
	ds := syntheticData(t, 300, 7)
	sample := ds.Features()[:50]

	predict := func(jobs int) []float64 {
		res, err := Train(context.Background(), ds, smallForest(ensemble.WithNJobs(jobs)))
		require.NoError(t, err)
		out, err := res.Pipeline.Predict(sample)
		require.NoError(t, err)
		return out
	}

	first := predict(1)
	assert.Equal(t, first, predict(1))
	assert.Equal(t, first, predict(4))
}

func TestTrainConstantYield(t *testing.T) {
	records := make([]dataset.LabeledRecord, 50)
	for i := range records {
		records[i] = dataset.LabeledRecord{
			Record: dataset.Record{
				TemperatureMean:     15 + float64(i%20),
				AnnualPrecipitation: 500 + float64(i*37),
				FertilizerUse:       50 + float64(i*5),
				SoilType:            []string{"Argiloso", "Arenoso", "Franco"}[i%3],
			},
		}
	}
	ds, err := dataset.New(records)
	require.NoError(t, err)

	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer log.SetProvider(log.Provider())

	res, err := Train(context.Background(), ds, smallForest())
	require.NoError(t, err)
	require.NotNil(t, res.Pipeline)
	assert.True(t, res.Pipeline.State.IsFitted())
	assert.Equal(t, 1.0, res.Metrics.R2, "exact predictions of a constant target")
	assert.Zero(t, res.Metrics.MAE)

	require.Len(t, warnings, 1)
	var w *errors.UndefinedMetricWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, "R2Score", w.Metric)

	got, err := res.Pipeline.PredictOne(reference)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestUnknownSoilType(t *testing.T) {
	res, err := Train(context.Background(), syntheticData(t, 300, 3), smallForest())
	require.NoError(t, err)

	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer log.SetProvider(log.Provider())

	unknown := reference
	unknown.SoilType = "Turfoso"
	got, err := res.Pipeline.PredictOne(unknown)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
	assert.GreaterOrEqual(t, got, 0.0)

	require.Len(t, warnings, 1)
	var w *errors.UnknownCategoryWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, []string{"Turfoso"}, w.Values)
}

func TestMonotonicSweeps(t *testing.T) {
	ds := syntheticData(t, 600, 11)
	res, err := Train(context.Background(), ds, smallForest(ensemble.WithNEstimators(40)))
	require.NoError(t, err)
	base := ds.Features()[:40]

	sweep := func(lo, hi float64, set func(*dataset.Record, float64)) []float64 {
		const steps = 20
		means := make([]float64, steps)
		for s := 0; s < steps; s++ {
			v := lo + (hi-lo)*float64(s)/float64(steps-1)
			records := make([]dataset.Record, len(base))
			for i, r := range base {
				set(&r, v)
				records[i] = r
			}
			pred, err := res.Pipeline.Predict(records)
			require.NoError(t, err)
			for _, p := range pred {
				means[s] += p / float64(len(pred))
			}
		}
		return means
	}
	quartileMeans := func(means []float64) (first, last float64) {
		q := len(means) / 4
		for i := 0; i < q; i++ {
			first += means[i] / float64(q)
			last += means[len(means)-1-i] / float64(q)
		}
		return first, last
	}

	tests := []struct {
		name   string
		lo, hi float64
		set    func(*dataset.Record, float64)
	}{
		{"fertilizer", synthetic.FertilizerMin, synthetic.FertilizerMax, func(r *dataset.Record, v float64) { r.FertilizerUse = v }},
		{"temperature", synthetic.TemperatureMin, synthetic.TemperatureMax, func(r *dataset.Record, v float64) { r.TemperatureMean = v }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := quartileMeans(sweep(tt.lo, tt.hi, tt.set))
			assert.GreaterOrEqual(t, last, first)
		})
	}
}

func TestPipelineLifecycle(t *testing.T) {
	ds := syntheticData(t, 200, 5)
	p := New(WithForestOptions(ensemble.WithNEstimators(10)))

	_, err := p.Predict(ds.Features())
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	_, err = p.Evaluate(ds)
	assert.True(t, errors.As(err, &nf))
	_, err = p.FeatureImportances()
	assert.True(t, errors.As(err, &nf))
	assert.Error(t, p.Save(filepath.Join(t.TempDir(), "unfitted.gob")))
	assert.Contains(t, p.String(), "unfitted")

	require.NoError(t, p.Fit(ds))
	assert.NotContains(t, p.String(), "unfitted")

	err = p.Fit(ds)
	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	assert.True(t, errors.Is(err, errors.ErrAlreadyFitted))

	empty, err := p.Predict(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	// order is preserved
	records := ds.Features()[:10]
	all, err := p.Predict(records)
	require.NoError(t, err)
	for i := len(records) - 1; i >= 0; i-- {
		one, err := p.PredictOne(records[i])
		require.NoError(t, err)
		assert.Equal(t, all[i], one)
	}

	names, err := p.FeatureNamesOut()
	require.NoError(t, err)
	assert.Len(t, names, 6)

	imp, err := p.FeatureImportances()
	require.NoError(t, err)
	sum := 0.0
	for _, name := range names {
		sum += imp[name]
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Greater(t, imp["num__fertilizer_use"], imp["cat__soil_type_Arenoso"])

	report, err := p.Evaluate(ds)
	require.NoError(t, err)
	again, err := p.Evaluate(ds)
	require.NoError(t, err)
	assert.Equal(t, report, again, "evaluation must not alter the model")
}

func TestFitFailuresLeavePipelineUnfitted(t *testing.T) {
	p := New(WithForestOptions(ensemble.WithNEstimators(5)))
	err := p.Fit(dataset.Dataset{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
	assert.False(t, p.State.IsFitted())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := syntheticData(t, 100, 1)
	err = p.FitContext(ctx, ds)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, p.State.IsFitted())
	assert.Nil(t, p.Forest)
	assert.Nil(t, p.Preprocessor)

	bad := New(WithForestOptions(ensemble.WithNEstimators(0)))
	var ve *errors.ValidationError
	assert.True(t, errors.As(bad.Fit(ds), &ve))

	require.NoError(t, p.Fit(ds))
	assert.True(t, p.State.IsFitted())
}

func TestTrainErrors(t *testing.T) {
	ds := syntheticData(t, 1, 1)
	_, err := Train(context.Background(), ds)
	assert.Error(t, err, "one record cannot be split")

	_, err = Train(context.Background(), syntheticData(t, 50, 1), WithTestSize(1.5))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSaveLoad(t *testing.T) {
	ds := syntheticData(t, 200, 9)
	res, err := Train(context.Background(), ds, smallForest(), WithSplitSeed(3), WithTestSize(0.25))
	require.NoError(t, err)
	assert.Equal(t, 50, res.TestSize)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, res.Pipeline.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, res.Pipeline.ID, loaded.ID)

	want, err := res.Pipeline.Predict(ds.Features())
	require.NoError(t, err)
	got, err := loaded.Predict(ds.Features())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.True(t, errors.Is(loaded.Fit(ds), errors.ErrAlreadyFitted))

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestPipelineLogs(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelInfo)
	prev := log.Provider()
	log.SetProvider(provider)
	defer log.SetProvider(prev)

	_, err := Train(context.Background(), syntheticData(t, 100, 2), smallForest())
	require.NoError(t, err)

	logger := provider.Logger()
	assert.True(t, logger.ContainsMessage("Pipeline fit completed"))
	assert.True(t, logger.ContainsMessage("Evaluation completed"))
	assert.True(t, logger.ContainsField(log.ComponentKey, "pipeline"))
	assert.True(t, logger.ContainsField(log.TrainSamplesKey, float64(80)))
}
