// Package ensemble implements the random-forest regressor.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/core/parallel"
	"github.com/YuminosukeSato/cropyield/metrics"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/sklearn/tree"
)

// Defaults match the crop-yield model configuration.
const (
	DefaultNEstimators     = 100
	DefaultMaxDepth        = 10
	DefaultMinSamplesLeaf  = 5
	DefaultMinSamplesSplit = 2
	DefaultRandomState     = 42
)

// predictParallelThreshold is the row count below which Predict stays on one goroutine.
const predictParallelThreshold = 256

// RandomForestRegressor averages regression trees, each grown on a bootstrap
// sample with random feature subsets at every split.
//
// Tree i draws its bootstrap sample and its feature subsets from a PCG stream
// seeded with (RandomState, i), so a fit is reproducible for any NJobs.
type RandomForestRegressor struct {
	State *model.StateManager
	Trees []*tree.DecisionTreeRegressor

	NEstimators     int
	MaxDepth        int
	MinSamplesLeaf  int
	MinSamplesSplit int
	MaxFeatures     int // 0 means ceil(n_features/3)
	RandomState     uint64
	NJobs           int // <= 0 means all CPUs

	NFeatures int

	onTreeDone func(done, total int)
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) { f.NEstimators = n }
}

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) { f.MaxDepth = depth }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesLeaf = n }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesSplit = n }
}

// WithMaxFeatures sets the number of features tried per split.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForestRegressor) { f.MaxFeatures = n }
}

// WithRandomState seeds the bootstrap and feature sampling of every tree.
func WithRandomState(seed uint64) Option {
	return func(f *RandomForestRegressor) { f.RandomState = seed }
}

// WithNJobs sets the number of goroutines for fitting and predicting; <= 0 means all CPUs.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) { f.NJobs = n }
}

// WithTreeCallback registers fn to be called after each tree is grown. It may
// be called from several goroutines at once.
func WithTreeCallback(fn func(done, total int)) Option {
	return func(f *RandomForestRegressor) { f.onTreeDone = fn }
}

// NewRandomForestRegressor returns an unfitted forest with the default
// hyperparameters overridden by opts.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     DefaultNEstimators,
		MaxDepth:        DefaultMaxDepth,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		MinSamplesSplit: DefaultMinSamplesSplit,
		RandomState:     DefaultRandomState,
		NJobs:           -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RandomForestRegressor) validate() error {
	switch {
	case f.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	case f.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", f.MaxDepth)
	case f.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", f.MinSamplesLeaf)
	case f.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", f.MinSamplesSplit)
	case f.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", f.MaxFeatures)
	}
	return nil
}

// maxFeatures resolves MaxFeatures for p input features.
func (f *RandomForestRegressor) maxFeatures(p int) int {
	if f.MaxFeatures > 0 {
		return min(f.MaxFeatures, p)
	}
	return max(1, int(math.Ceil(float64(p)/3)))
}

// Fit is FitContext with context.Background().
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext grows the forest. ctx is checked before each tree; on
// cancellation or any other failure the forest stays unfitted.
func (f *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := f.validate(); err != nil {
		return err
	}
	if err := f.State.RequireUnfitted("RandomForestRegressor.Fit"); err != nil {
		return err
	}
	data, err := tree.NewData("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	n, p := data.NSamples(), data.NFeatures()
	k := f.maxFeatures(p)
	logger := log.GetLoggerWithName("ensemble.random_forest").With(log.ModelNameKey, "RandomForestRegressor")
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.TreesKey, f.NEstimators,
		log.RandomSeedKey, f.RandomState,
	)
	start := time.Now()

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	var done atomic.Int64

	parallel.ParallelizeWithWorkers(f.NEstimators, parallel.Workers(f.NJobs), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if cerr := ctx.Err(); cerr != nil {
				errs[i] = cerr
				continue
			}
			errs[i] = errors.SafeExecute(fmt.Sprintf("RandomForestRegressor.Fit tree %d", i), func() error {
				t, err := f.growTree(data, i, k)
				trees[i] = t
				return err
			})
			if errs[i] == nil && f.onTreeDone != nil {
				f.onTreeDone(int(done.Add(1)), f.NEstimators)
			}
		}
	})

	for i, e := range errs {
		if e == nil {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("Training cancelled", log.TreeIdxKey, i)
			return errors.Wrap(ctx.Err(), "RandomForestRegressor.Fit cancelled")
		}
		logger.Error("Training failed", e, log.TreeIdxKey, i)
		return errors.Wrapf(e, "tree %d", i)
	}

	f.Trees = trees
	f.NFeatures = p
	logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return f.State.MarkFitted("RandomForestRegressor.Fit", p, n)
}

// growTree fits tree i on its own bootstrap sample.
func (f *RandomForestRegressor) growTree(data *tree.Data, i, maxFeatures int) (*tree.DecisionTreeRegressor, error) {
	rng := rand.New(rand.NewPCG(f.RandomState, uint64(i)))
	n := data.NSamples()
	sample := make([]int, n)
	for j := range sample {
		sample[j] = rng.IntN(n)
	}
	t := tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(f.RandomState),
	)
	if err := t.FitSample(data, sample, rng); err != nil {
		return nil, err
	}
	return t, nil
}

// Predict returns an n×1 matrix holding, for each row, the mean of the tree
// predictions taken in tree order.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != f.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", f.NFeatures, c, 1)
	}

	out := make([]float64, r)
	predictRange := func(lo, hi int) {
		row := make([]float64, c)
		for i := lo; i < hi; i++ {
			mat.Row(row, i, X)
			sum := 0.0
			for _, t := range f.Trees {
				sum += t.PredictRow(row)
			}
			out[i] = sum / float64(len(f.Trees))
		}
	}
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, parallel.Workers(f.NJobs), predictRange)
	return model.NewMatrix(r, 1, out), nil
}

// Score returns R² on (X, y).
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the mean over trees of each tree's normalized
// SSE reduction per feature.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	out := make([]float64, f.NFeatures)
	for _, t := range f.Trees {
		for j, v := range t.Importances {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(f.Trees))
	}
	return out, nil
}

// GetParams returns the forest's hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"min_samples_split": f.MinSamplesSplit,
		"max_features":      f.MaxFeatures,
		"random_state":      f.RandomState,
		"n_jobs":            f.NJobs,
	}
}

func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, min_samples_leaf=%d, random_state=%d)",
		f.NEstimators, f.MaxDepth, f.MinSamplesLeaf, f.RandomState)
}
