// Package report renders training summaries for the terminal and plots
// predicted against observed yields.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/metrics"
)

// AlertThreshold is the predicted yield (t/ha) below which a food-security
// alert is printed.
const AlertThreshold = 5.0

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 2)

	labelColor = color.New(color.Bold)
	goodColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow, color.Bold)
	alertColor = color.New(color.FgRed, color.Bold)
)

// Importance is one named feature importance.
type Importance struct {
	Feature string
	Value   float64
}

// Highlight is a single prediction shown at the end of the report.
type Highlight struct {
	Record     dataset.Record
	Prediction float64
}

// Summary is everything Print renders.
type Summary struct {
	Model       string
	TrainSize   int
	TestSize    int
	Metrics     metrics.Report
	Importances map[string]float64
	Highlight   *Highlight
}

// SortedImportances returns the importances in descending order; ties are
// broken by feature name.
func SortedImportances(imp map[string]float64) []Importance {
	out := make([]Importance, 0, len(imp))
	for name, v := range imp {
		out = append(out, Importance{Feature: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

// Print writes s to w. Colours follow fatih/color's global NoColor setting.
func Print(w io.Writer, s Summary) error {
	ew := &errWriter{w: w}

	ew.println(titleStyle.Render(fmt.Sprintf("Crop yield model: %s", s.Model)))
	ew.printf("%s %d train / %d test records\n", labelColor.Sprint("Data:"), s.TrainSize, s.TestSize)

	r2 := goodColor.Sprintf("%.4f", s.Metrics.R2)
	if s.Metrics.R2 < 0.5 {
		r2 = warnColor.Sprintf("%.4f", s.Metrics.R2)
	}
	ew.printf("%s MAE %.4f t/ha, RMSE %.4f t/ha, R² %s\n",
		labelColor.Sprint("Test metrics:"), s.Metrics.MAE, s.Metrics.RMSE, r2)

	if len(s.Importances) > 0 {
		ew.println(labelColor.Sprint("Feature importances:"))
		for _, imp := range SortedImportances(s.Importances) {
			ew.printf("  %-32s %.4f\n", imp.Feature, imp.Value)
		}
	}

	if h := s.Highlight; h != nil {
		r := h.Record
		ew.printf("%s T=%.1f°C P=%.0fmm F=%.0fkg/ha soil=%s -> %.2f t/ha\n",
			labelColor.Sprint("Prediction:"),
			r.TemperatureMean, r.AnnualPrecipitation, r.FertilizerUse, r.SoilType, h.Prediction)
		if h.Prediction < AlertThreshold {
			ew.println(alertColor.Sprintf("ALERT: predicted yield below %.1f t/ha, food-security risk", AlertThreshold))
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(s string) {
	e.printf("%s\n", s)
}
