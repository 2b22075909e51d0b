package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/pipeline"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/report"
	"github.com/YuminosukeSato/cropyield/serving"
)

type predictFlags struct {
	model  string
	input  string
	record dataset.Record
}

func newPredictCommand(o *globalOptions) *cobra.Command {
	f := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "predict yields with a saved model",
		Long: `Predict prints one yield (t/ha) per input record, in input order. Input is
either a CSV file with the four feature columns or a single record given
by flags. Soil types not seen in training are accepted.`,
		Example: `  $ cropyield predict --model model.gob --input fields.csv
  $ cropyield predict --model model.gob --temperature 28 --precipitation 1500 --fertilizer 180 --soil Franco`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, o, f)
		},
	}
	cmd.Flags().StringVar(&f.model, "model", "", "fitted pipeline written by train --model")
	cmd.Flags().StringVar(&f.input, "input", "", "CSV file of records to predict")
	cmd.Flags().Float64Var(&f.record.TemperatureMean, "temperature", 0, "mean temperature (°C)")
	cmd.Flags().Float64Var(&f.record.AnnualPrecipitation, "precipitation", 0, "annual precipitation (mm)")
	cmd.Flags().Float64Var(&f.record.FertilizerUse, "fertilizer", 0, "fertilizer use (kg/ha)")
	cmd.Flags().StringVar(&f.record.SoilType, "soil", "", "soil type, e.g. Franco")
	_ = cmd.MarkFlagRequired("model")
	cmd.MarkFlagsMutuallyExclusive("input", "soil")
	cmd.MarkFlagsOneRequired("input", "soil")
	return cmd
}

func runPredict(cmd *cobra.Command, o *globalOptions, f *predictFlags) error {
	p, err := pipeline.Load(f.model)
	if err != nil {
		return err
	}
	predictor, err := serving.NewPredictor(p, o.cfg.Serving.CacheSize)
	if err != nil {
		return err
	}

	records := []dataset.Record{f.record}
	if f.input != "" {
		records, err = readRecordsFile(f.input)
		if err != nil {
			return err
		}
	}

	pred, err := predictor.Predict(records)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range pred {
		fmt.Fprintf(out, "%.4f\n", v)
	}

	alerts := 0
	for _, v := range pred {
		if v < report.AlertThreshold {
			alerts++
		}
	}
	if alerts > 0 {
		color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(),
			"ALERT: %d of %d predictions below %.1f t/ha\n", alerts, len(pred), report.AlertThreshold)
	}

	st := predictor.Stats()
	log.GetLoggerWithName("cli.predict").Debug("Predictions served",
		log.PredsKey, len(pred),
		log.CacheHitsKey, st.Hits,
		log.CacheMissesKey, st.Misses,
	)
	return nil
}

func readRecordsFile(path string) ([]dataset.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	records, rejected, err := dataset.ReadRecordsCSV(file)
	if err != nil {
		return nil, err
	}
	logRejected(path, rejected)
	return records, nil
}
