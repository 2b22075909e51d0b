package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/dataset/synthetic"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

func newGenerateCommand(o *globalOptions) *cobra.Command {
	var (
		n    int
		seed uint64
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "write a synthetic labeled dataset as CSV",
		Example: `  $ cropyield generate --n 1000 --seed 42 --out crops.csv
  $ cropyield generate --n 10 > sample.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("n") {
				n = o.cfg.Synthetic.Samples
			}
			if !cmd.Flags().Changed("seed") {
				seed = o.cfg.Synthetic.Seed
			}
			records, err := synthetic.New(n, seed).Records()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return dataset.WriteCSV(cmd.OutOrStdout(), records)
			}
			if err := writeCSVFile(out, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1000, "number of records (default synthetic.samples)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "generator seed (default synthetic.seed)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - or empty for stdout")
	return cmd
}

func writeCSVFile(path string, records []dataset.LabeledRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return dataset.WriteCSV(f, records)
}
