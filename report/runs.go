package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/YuminosukeSato/cropyield/storage"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))

const runsRowFormat = "%-36s  %-20s  %5s  %5s  %6s  %5s/%-5s  %7s  %7s\n"

// PrintRuns writes runs as a table, one line per run.
func PrintRuns(w io.Writer, runs []storage.Run) error {
	ew := &errWriter{w: w}
	if len(runs) == 0 {
		ew.println("no training runs stored")
		return ew.err
	}
	header := fmt.Sprintf(runsRowFormat, "ID", "TRAINED AT", "TREES", "DEPTH", "SEED", "TRAIN", "TEST", "MAE", "R2")
	ew.println(headerStyle.Render(strings.TrimSuffix(header, "\n")))
	for _, r := range runs {
		ew.printf(runsRowFormat,
			r.ID,
			r.TrainedAt.UTC().Format("2006-01-02 15:04:05"),
			fmt.Sprint(r.NEstimators),
			fmt.Sprint(r.MaxDepth),
			fmt.Sprint(r.RandomState),
			fmt.Sprint(r.TrainSize),
			fmt.Sprint(r.TestSize),
			fmt.Sprintf("%.4f", r.MAE),
			fmt.Sprintf("%.4f", r.R2),
		)
	}
	return ew.err
}
