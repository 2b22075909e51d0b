// Package cropyield predicts crop yields (t/ha) from field conditions.
//
// A field is described by its mean temperature, annual precipitation,
// fertilizer use and soil type. The pipeline standardizes the numeric
// columns, one-hot encodes the soil type and fits a random forest
// regressor on the result.
//
// # Quick Start
//
//	ds, err := synthetic.New(1000, 42).Generate()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := pipeline.Train(context.Background(), ds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Metrics)
//
//	yield, err := res.Pipeline.PredictOne(dataset.Record{
//	    TemperatureMean:     28,
//	    AnnualPrecipitation: 1500,
//	    FertilizerUse:       180,
//	    SoilType:            "Franco",
//	})
//
// # Packages
//
//   - dataset: records, feature schema, CSV ingestion and train/test split
//   - dataset/synthetic: seeded generator for the demo dataset
//   - preprocessing: StandardScaler, OneHotEncoder and ColumnTransformer
//   - sklearn/tree, sklearn/ensemble: decision tree and random forest regressors
//   - metrics: MAE, MSE, RMSE and R²
//   - pipeline: preprocessing plus forest as a single estimator
//   - storage: SQLite store for records and training runs
//   - serving: cached predictor for repeated queries
//   - report: terminal summaries and prediction plots
//   - cmd/cropyield: command line tool
//
// A fitted pipeline is read-only and safe for concurrent prediction.
package cropyield
