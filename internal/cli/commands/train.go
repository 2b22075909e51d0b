package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/dataset/synthetic"
	"github.com/YuminosukeSato/cropyield/pipeline"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/report"
	"github.com/YuminosukeSato/cropyield/sklearn/ensemble"
	"github.com/YuminosukeSato/cropyield/storage"
)

// referenceField is the prediction highlighted after training.
var referenceField = dataset.Record{
	TemperatureMean:     28.0,
	AnnualPrecipitation: 1500,
	FertilizerUse:       180,
	SoilType:            "Franco",
}

type trainFlags struct {
	data      string
	synthetic bool
	db        string
	model     string
	plot      string
	progress  bool
}

func newTrainCommand(o *globalOptions) *cobra.Command {
	f := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "train a model, print its test metrics and optionally store it",
		Long: `Train splits the dataset into train and test parts (split.test_size,
split.seed), fits the preprocessing and random-forest pipeline on the
training part and reports metrics on the test part.

The dataset comes from --data, from --synthetic, or, when neither is given,
from the records table of --db.`,
		Example: `  $ cropyield train --synthetic --progress
  $ cropyield train --data crops.csv --db runs.db --model model.gob --plot pred.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, o, f)
		},
	}
	cmd.Flags().StringVar(&f.data, "data", "", "labeled CSV file")
	cmd.Flags().BoolVar(&f.synthetic, "synthetic", false, "train on generated data (synthetic.samples, synthetic.seed)")
	cmd.Flags().StringVar(&f.db, "db", "", "SQLite database for records and training runs")
	cmd.Flags().StringVar(&f.model, "model", "", "write the fitted pipeline to this file")
	cmd.Flags().StringVar(&f.plot, "plot", "", "write a predicted-vs-observed plot (png, svg or pdf)")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "show a progress bar while trees are grown")
	cmd.MarkFlagsMutuallyExclusive("data", "synthetic")
	return cmd
}

func runTrain(cmd *cobra.Command, o *globalOptions, f *trainFlags) error {
	ctx := cmd.Context()
	logger := log.GetLoggerWithName("cli.train")

	var store *storage.Store
	if f.db != "" {
		s, err := storage.Open(f.db)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	ds, fromStore, err := loadTrainingData(ctx, o, f, store)
	if err != nil {
		return err
	}

	forestOpts := o.cfg.ForestOptions()
	var bar *pb.ProgressBar
	if f.progress {
		bar = pb.New(o.cfg.Forest.NEstimators).SetWriter(cmd.ErrOrStderr()).Start()
		forestOpts = append(forestOpts, ensemble.WithTreeCallback(func(done, total int) {
			bar.Increment()
		}))
	}

	res, err := pipeline.Train(ctx, ds,
		pipeline.WithTestSize(o.cfg.Split.TestSize),
		pipeline.WithSplitSeed(o.cfg.Split.Seed),
		pipeline.WithPipelineOptions(pipeline.WithForestOptions(forestOpts...)),
	)
	// the bar writes to stderr from its own goroutine until finished
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	imp, err := res.Pipeline.FeatureImportances()
	if err != nil {
		return err
	}
	highlight, err := res.Pipeline.PredictOne(referenceField)
	if err != nil {
		return err
	}
	if err := report.Print(cmd.OutOrStdout(), report.Summary{
		Model:       pipeline.ModelName,
		TrainSize:   res.TrainSize,
		TestSize:    res.TestSize,
		Metrics:     res.Metrics,
		Importances: imp,
		Highlight:   &report.Highlight{Record: referenceField, Prediction: highlight},
	}); err != nil {
		return err
	}

	if f.plot != "" {
		_, test, err := ds.Split(o.cfg.Split.TestSize, o.cfg.Split.Seed)
		if err != nil {
			return err
		}
		pred, err := res.Pipeline.Predict(test.Features())
		if err != nil {
			return err
		}
		if err := report.PlotPredictions(f.plot, test.Targets(), pred); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved plot to %s\n", f.plot)
	}

	if f.model != "" {
		if err := res.Pipeline.Save(f.model); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved model to %s\n", f.model)
	}

	if store != nil {
		if !fromStore {
			if err := store.SaveRecords(ctx, ds.Records()); err != nil {
				return err
			}
		}
		id, err := store.SaveRun(ctx, storage.RunFromResult(res, time.Now()))
		if err != nil {
			return err
		}
		logger.Info("Run stored", log.EstimatorIDKey, id)
	}
	return nil
}

// loadTrainingData returns the dataset and whether it was read from store.
func loadTrainingData(ctx context.Context, o *globalOptions, f *trainFlags, store *storage.Store) (dataset.Dataset, bool, error) {
	switch {
	case f.data != "":
		ds, err := readLabeledFile(f.data)
		return ds, false, err
	case f.synthetic:
		ds, err := synthetic.New(o.cfg.Synthetic.Samples, o.cfg.Synthetic.Seed).Generate()
		return ds, false, err
	case store != nil:
		ds, err := store.LoadRecords(ctx)
		if err != nil {
			return dataset.Dataset{}, false, err
		}
		if ds.Len() == 0 {
			return dataset.Dataset{}, false, errors.NewModelError("train", "database holds no records", errors.ErrEmptyData)
		}
		return ds, true, nil
	}
	return dataset.Dataset{}, false, errors.New("one of --data, --synthetic or --db is required")
}

func readLabeledFile(path string) (dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataset.Dataset{}, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	records, rejected, err := dataset.ReadLabeledCSV(file)
	if err != nil {
		return dataset.Dataset{}, err
	}
	logRejected(path, rejected)
	return dataset.New(records)
}

func logRejected(path string, rejected []dataset.RowError) {
	if len(rejected) == 0 {
		return
	}
	logger := log.GetLoggerWithName("cli.ingest")
	for _, r := range rejected {
		logger.Warn("Row rejected", log.OperationKey, log.OperationIngest, "file", path, "line", r.Line, log.ErrAttrKey, r.Err.Error())
	}
	logger.Warn("Rows rejected", log.OperationKey, log.OperationIngest, "file", path, log.RejectedKey, len(rejected))
}
