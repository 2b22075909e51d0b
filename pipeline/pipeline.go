// Package pipeline composes the feature preprocessor and the random-forest
// regressor into one estimator with a fit / predict / evaluate protocol.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/metrics"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/preprocessing"
	"github.com/YuminosukeSato/cropyield/sklearn/ensemble"
)

// ModelName is reported in logs and stored training runs.
const ModelName = "RandomForestRegressor"

// Pipeline is a ColumnTransformer followed by a RandomForestRegressor.
//
// A Pipeline is fitted at most once. Once fitted it is read-only and safe for
// concurrent Predict calls.
type Pipeline struct {
	ID           string
	Schema       dataset.FeatureSchema
	Preprocessor *preprocessing.ColumnTransformer
	Forest       *ensemble.RandomForestRegressor
	State        *model.StateManager

	forestOpts []ensemble.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSchema replaces the default crop-yield feature schema.
func WithSchema(schema dataset.FeatureSchema) Option {
	return func(p *Pipeline) { p.Schema = schema }
}

// WithForestOptions passes options to the regressor built by Fit.
func WithForestOptions(opts ...ensemble.Option) Option {
	return func(p *Pipeline) { p.forestOpts = append(p.forestOpts, opts...) }
}

// New returns an unfitted pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		ID:     uuid.NewString(),
		Schema: dataset.CropYieldSchema(),
		State:  model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) logger() log.Logger {
	return log.GetLoggerWithName("pipeline").With(
		log.ModelNameKey, ModelName,
		log.EstimatorIDKey, p.ID,
	)
}

// Fit is FitContext with context.Background().
func (p *Pipeline) Fit(train dataset.Dataset) error {
	return p.FitContext(context.Background(), train)
}

// FitContext fits the preprocessor and then the forest on train. Both are
// built into locals and attached only when both succeed, so a failed or
// cancelled fit leaves the pipeline unfitted.
func (p *Pipeline) FitContext(ctx context.Context, train dataset.Dataset) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if err := p.State.RequireUnfitted("Pipeline.Fit"); err != nil {
		return err
	}
	if train.Len() == 0 {
		return errors.NewModelError("Pipeline.Fit", "empty training set", errors.ErrEmptyData)
	}

	logger := p.logger()
	start := time.Now()
	logger.Info("Pipeline fit started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, train.Len(),
	)

	ct, err := preprocessing.NewColumnTransformer(p.Schema)
	if err != nil {
		return err
	}
	X, err := ct.FitTransform(train.Features())
	if err != nil {
		logger.Error("Preprocessing failed", err)
		return errors.Wrap(err, "Pipeline.Fit")
	}

	n := train.Len()
	y := model.NewMatrix(n, 1, train.Targets())
	forest := ensemble.NewRandomForestRegressor(p.forestOpts...)
	if err := forest.FitContext(ctx, X, y); err != nil {
		logger.Error("Regressor fit failed", err)
		return errors.Wrap(err, "Pipeline.Fit")
	}

	if err := p.State.MarkFitted("Pipeline.Fit", ct.NOutputFeatures(), n); err != nil {
		return err
	}
	p.Preprocessor = ct
	p.Forest = forest

	logger.Info("Pipeline fit completed",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, ct.NOutputFeatures(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns one yield prediction per record, in input order.
func (p *Pipeline) Predict(records []dataset.Record) ([]float64, error) {
	if err := p.State.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []float64{}, nil
	}
	X, err := p.Preprocessor.Transform(records)
	if err != nil {
		return nil, errors.Wrap(err, "Pipeline.Predict")
	}
	pred, err := p.Forest.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, "Pipeline.Predict")
	}
	p.logger().Debug("Predicted",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, len(records),
	)
	return model.Column(pred, 0), nil
}

// PredictOne predicts a single record.
func (p *Pipeline) PredictOne(record dataset.Record) (float64, error) {
	out, err := p.Predict([]dataset.Record{record})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Evaluate predicts test and compares the predictions with its yields.
func (p *Pipeline) Evaluate(test dataset.Dataset) (metrics.Report, error) {
	if err := p.State.RequireFitted("Pipeline", "Evaluate"); err != nil {
		return metrics.Report{}, err
	}
	pred, err := p.Predict(test.Features())
	if err != nil {
		return metrics.Report{}, err
	}
	report, err := metrics.Regression(test.Targets(), pred)
	if err != nil {
		return metrics.Report{}, errors.Wrap(err, "Pipeline.Evaluate")
	}
	p.logger().Info("Evaluation completed",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, report.N,
		log.MAEKey, report.MAE,
		log.RMSEKey, report.RMSE,
		log.R2ScoreKey, report.R2,
	)
	return report, nil
}

// FeatureNamesOut returns the names of the preprocessed columns fed to the forest.
func (p *Pipeline) FeatureNamesOut() ([]string, error) {
	if err := p.State.RequireFitted("Pipeline", "FeatureNamesOut"); err != nil {
		return nil, err
	}
	return p.Preprocessor.FeatureNamesOut(), nil
}

// FeatureImportances maps each preprocessed column to its forest importance.
func (p *Pipeline) FeatureImportances() (map[string]float64, error) {
	names, err := p.FeatureNamesOut()
	if err != nil {
		return nil, err
	}
	imp, err := p.Forest.FeatureImportances()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = imp[i]
	}
	return out, nil
}

// Params returns the forest hyperparameters this pipeline fits or was fitted with.
func (p *Pipeline) Params() map[string]interface{} {
	if p.Forest != nil {
		return p.Forest.GetParams()
	}
	return ensemble.NewRandomForestRegressor(p.forestOpts...).GetParams()
}

// Save writes the fitted pipeline to path.
func (p *Pipeline) Save(path string) error {
	if err := p.State.RequireFitted("Pipeline", "Save"); err != nil {
		return err
	}
	return model.SaveModel(p, path)
}

// Load reads a pipeline written by Save.
func Load(path string) (*Pipeline, error) {
	var p Pipeline
	if err := model.LoadModel(&p, path); err != nil {
		return nil, err
	}
	if p.State == nil || !p.State.IsFitted() || p.Preprocessor == nil || p.Forest == nil {
		return nil, errors.NewModelError("pipeline.Load", "file does not hold a fitted pipeline", errors.Newf("%s", path))
	}
	return &p, nil
}

func (p *Pipeline) String() string {
	state := "unfitted"
	if p.State.IsFitted() {
		state = "fitted"
	}
	return fmt.Sprintf("Pipeline(id=%s, %s, %s)", p.ID, ModelName, state)
}
