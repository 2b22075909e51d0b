package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Frame is a column-oriented view of records under a schema.
type Frame struct {
	schema      FeatureSchema
	rows        int
	numeric     map[string][]float64
	categorical map[string][]string
}

// NewFrame extracts every schema column from records. A record that cannot
// provide a column, or provides a non-finite number or an empty category,
// is a ValidationError naming its index.
func NewFrame(schema FeatureSchema, records []Record) (*Frame, error) {
	f := &Frame{
		schema:      schema,
		rows:        len(records),
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
	}
	for _, feat := range schema.Features {
		switch feat.Kind {
		case Numeric:
			col := make([]float64, len(records))
			for i, r := range records {
				v, ok := r.Numeric(feat.Name)
				if !ok {
					return nil, cyerrors.Wrapf(cyerrors.NewValidationError(feat.Name, "record has no such numeric column", nil), "record %d", i)
				}
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, cyerrors.Wrapf(cyerrors.NewValidationError(feat.Name, "must be a finite number", v), "record %d", i)
				}
				col[i] = v
			}
			f.numeric[feat.Name] = col
		case Categorical:
			col := make([]string, len(records))
			for i, r := range records {
				v, ok := r.Categorical(feat.Name)
				if !ok {
					return nil, cyerrors.Wrapf(cyerrors.NewValidationError(feat.Name, "record has no such categorical column", nil), "record %d", i)
				}
				if v == "" {
					return nil, cyerrors.Wrapf(cyerrors.NewValidationError(feat.Name, "must not be empty", v), "record %d", i)
				}
				col[i] = v
			}
			f.categorical[feat.Name] = col
		}
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Schema returns the frame's schema.
func (f *Frame) Schema() FeatureSchema { return f.schema }

// NumericColumns returns the named numeric columns as a rows×len(names) matrix.
func (f *Frame) NumericColumns(names []string) (mat.Matrix, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		col, ok := f.numeric[name]
		if !ok {
			return nil, cyerrors.NewValidationError(name, "not a numeric column of the frame", name)
		}
		cols[j] = col
	}
	data := make([]float64, f.rows*len(names))
	for i := 0; i < f.rows; i++ {
		for j := range names {
			data[i*len(names)+j] = cols[j][i]
		}
	}
	return model.NewMatrix(f.rows, len(names), data), nil
}

// CategoricalColumns returns the named categorical columns as rows×len(names) values.
func (f *Frame) CategoricalColumns(names []string) ([][]string, error) {
	cols := make([][]string, len(names))
	for j, name := range names {
		col, ok := f.categorical[name]
		if !ok {
			return nil, cyerrors.NewValidationError(name, "not a categorical column of the frame", name)
		}
		cols[j] = col
	}
	out := make([][]string, f.rows)
	for i := range out {
		row := make([]string, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}
