package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one training run or model instance (UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	ComponentKey = "ml.component"
	PhaseKey     = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// TrainSamplesKey and TestSamplesKey report the two sides of a split.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"

	// RejectedKey counts input rows rejected at ingestion.
	RejectedKey = "data.rejected"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	MAEKey        = "metrics.mae"
	RMSEKey       = "metrics.rmse"
	R2ScoreKey    = "metrics.r2_score"

	CacheHitsKey   = "cache.hits"
	CacheMissesKey = "cache.misses"
)

// Predictions.
const (
	PredsKey   = "preds.count"
	TreesKey   = "forest.trees"
	TreeIdxKey = "forest.tree_index"
)

// Error context.
const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	ErrorDetailKey    = "error_detail"
)

// Configuration.
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	ConfigPathKey  = "config.path"
)

const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationSplit     = "split"
	OperationIngest    = "ingest"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
