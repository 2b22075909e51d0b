package pipeline

import (
	"context"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/metrics"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
)

// TrainResult is the outcome of Train.
type TrainResult struct {
	Pipeline  *Pipeline
	Metrics   metrics.Report
	TrainSize int
	TestSize  int
}

type trainConfig struct {
	testSize float64
	seed     uint64
	pipeline []Option
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

// WithTestSize sets the held-out fraction (default 0.2).
func WithTestSize(fraction float64) TrainOption {
	return func(c *trainConfig) { c.testSize = fraction }
}

// WithSplitSeed sets the shuffle seed for the train/test split (default 42).
func WithSplitSeed(seed uint64) TrainOption {
	return func(c *trainConfig) { c.seed = seed }
}

// WithPipelineOptions configures the pipeline that Train fits.
func WithPipelineOptions(opts ...Option) TrainOption {
	return func(c *trainConfig) { c.pipeline = append(c.pipeline, opts...) }
}

// Train splits ds, fits a new pipeline on the training part and evaluates it
// on the held-out part.
func Train(ctx context.Context, ds dataset.Dataset, opts ...TrainOption) (*TrainResult, error) {
	cfg := trainConfig{testSize: dataset.DefaultTestSize, seed: dataset.DefaultSeed}
	for _, opt := range opts {
		opt(&cfg)
	}

	train, test, err := ds.Split(cfg.testSize, cfg.seed)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline.Train")
	}

	p := New(cfg.pipeline...)
	p.logger().Info("Dataset split",
		log.OperationKey, log.OperationSplit,
		log.TrainSamplesKey, train.Len(),
		log.TestSamplesKey, test.Len(),
		log.RandomSeedKey, cfg.seed,
	)

	if err := p.FitContext(ctx, train); err != nil {
		return nil, err
	}
	report, err := p.Evaluate(test)
	if err != nil {
		return nil, err
	}
	return &TrainResult{
		Pipeline:  p,
		Metrics:   report,
		TrainSize: train.Len(),
		TestSize:  test.Len(),
	}, nil
}
