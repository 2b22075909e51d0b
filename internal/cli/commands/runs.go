package commands

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cropyield/report"
	"github.com/YuminosukeSato/cropyield/storage"
)

func newRunsCommand(o *globalOptions) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "list stored training runs, newest first",
		Example: `  $ cropyield runs --db runs.db`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				db = o.cfg.Storage.Path
			}
			store, err := storage.Open(db)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return report.PrintRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite database (default storage.path)")
	return cmd
}
