package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
)

// Step is one column group of a ColumnTransformer. Exactly one of Scaler and
// Encoder is set after Fit, matching Kind.
type Step struct {
	Name    string
	Kind    dataset.Kind
	Columns []string

	Scaler  *StandardScaler
	Encoder *OneHotEncoder
}

// ColumnTransformer applies a StandardScaler to the numeric columns and a
// OneHotEncoder to the categorical columns of a schema, and concatenates the
// results: numeric block first, then indicator block.
type ColumnTransformer struct {
	Schema  dataset.FeatureSchema
	Steps   []Step
	State   *model.StateManager
	NOutput int
}

// NewColumnTransformer builds the "num" and "cat" steps from schema. A kind
// with no columns gets no step.
func NewColumnTransformer(schema dataset.FeatureSchema) (*ColumnTransformer, error) {
	if schema.Len() == 0 {
		return nil, errors.NewValidationError("schema", "at least one feature is required", 0)
	}
	var steps []Step
	if cols := schema.Names(dataset.Numeric); len(cols) > 0 {
		steps = append(steps, Step{Name: "num", Kind: dataset.Numeric, Columns: cols})
	}
	if cols := schema.Names(dataset.Categorical); len(cols) > 0 {
		steps = append(steps, Step{Name: "cat", Kind: dataset.Categorical, Columns: cols})
	}
	return &ColumnTransformer{Schema: schema, Steps: steps, State: model.NewStateManager()}, nil
}

// Fit learns the statistics of every step from the training records.
func (ct *ColumnTransformer) Fit(records []dataset.Record) error {
	frame, err := dataset.NewFrame(ct.Schema, records)
	if err != nil {
		return errors.Wrap(err, "ColumnTransformer.Fit")
	}
	return ct.FitFrame(frame)
}

// FitFrame is Fit on a prebuilt frame. On failure the transformer stays unfitted.
func (ct *ColumnTransformer) FitFrame(frame *dataset.Frame) error {
	if err := ct.State.RequireUnfitted("ColumnTransformer.Fit"); err != nil {
		return err
	}
	if frame.Len() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	fitted := make([]Step, len(ct.Steps))
	width := 0
	for i, step := range ct.Steps {
		step.Scaler, step.Encoder = nil, nil
		switch step.Kind {
		case dataset.Numeric:
			X, err := frame.NumericColumns(step.Columns)
			if err != nil {
				return errors.Wrapf(err, "step %q", step.Name)
			}
			scaler := NewStandardScalerDefault()
			if err := scaler.Fit(X); err != nil {
				return errors.Wrapf(err, "step %q", step.Name)
			}
			step.Scaler = scaler
			width += scaler.NFeatures
		case dataset.Categorical:
			X, err := frame.CategoricalColumns(step.Columns)
			if err != nil {
				return errors.Wrapf(err, "step %q", step.Name)
			}
			encoder := NewOneHotEncoder()
			encoder.FeatureNames = append([]string(nil), step.Columns...)
			if err := encoder.Fit(X); err != nil {
				return errors.Wrapf(err, "step %q", step.Name)
			}
			step.Encoder = encoder
			width += encoder.NOutputFeatures()
		default:
			return errors.NewValidationError(step.Name, "unsupported step kind", step.Kind.String())
		}
		fitted[i] = step
	}

	ct.Steps = fitted
	ct.NOutput = width
	log.GetLoggerWithName("preprocessing.column_transformer").Debug("Column transformer fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, width,
	)
	return ct.State.MarkFitted("ColumnTransformer.Fit", width, frame.Len())
}

// Transform maps records to a len(records)×NOutputFeatures() matrix.
func (ct *ColumnTransformer) Transform(records []dataset.Record) (mat.Matrix, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	frame, err := dataset.NewFrame(ct.Schema, records)
	if err != nil {
		return nil, errors.Wrap(err, "ColumnTransformer.Transform")
	}
	return ct.TransformFrame(frame)
}

// TransformFrame is Transform on a prebuilt frame.
func (ct *ColumnTransformer) TransformFrame(frame *dataset.Frame) (mat.Matrix, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}

	blocks := make([]mat.Matrix, 0, len(ct.Steps))
	for _, step := range ct.Steps {
		var (
			block mat.Matrix
			err   error
		)
		switch step.Kind {
		case dataset.Numeric:
			var X mat.Matrix
			if X, err = frame.NumericColumns(step.Columns); err == nil {
				block, err = step.Scaler.Transform(X)
			}
		case dataset.Categorical:
			var X [][]string
			if X, err = frame.CategoricalColumns(step.Columns); err == nil {
				block, err = step.Encoder.Transform(X)
			}
		default:
			err = errors.NewValidationError(step.Name, "unsupported step kind", step.Kind.String())
		}
		if err != nil {
			return nil, errors.Wrapf(err, "step %q", step.Name)
		}
		blocks = append(blocks, block)
	}
	return hstack(frame.Len(), ct.NOutput, blocks), nil
}

// FitTransform fits on records and transforms them.
func (ct *ColumnTransformer) FitTransform(records []dataset.Record) (mat.Matrix, error) {
	frame, err := dataset.NewFrame(ct.Schema, records)
	if err != nil {
		return nil, errors.Wrap(err, "ColumnTransformer.FitTransform")
	}
	if err := ct.FitFrame(frame); err != nil {
		return nil, err
	}
	return ct.TransformFrame(frame)
}

// NOutputFeatures returns the fixed output width; 0 before Fit.
func (ct *ColumnTransformer) NOutputFeatures() int { return ct.NOutput }

// FeatureNamesOut names every output column "<step>__<feature>".
func (ct *ColumnTransformer) FeatureNamesOut() []string {
	names := make([]string, 0, ct.NOutput)
	for _, step := range ct.Steps {
		switch step.Kind {
		case dataset.Numeric:
			for _, c := range step.Columns {
				names = append(names, step.Name+"__"+c)
			}
		case dataset.Categorical:
			if step.Encoder == nil {
				continue
			}
			for _, c := range step.Encoder.FeatureNamesOut() {
				names = append(names, step.Name+"__"+c)
			}
		}
	}
	return names
}

func (ct *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer(steps=%d, n_output=%d, fitted=%t)", len(ct.Steps), ct.NOutput, ct.State.IsFitted())
}

func hstack(rows, width int, blocks []mat.Matrix) mat.Matrix {
	data := make([]float64, rows*width)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < c; j++ {
				data[i*width+offset+j] = b.At(i, j)
			}
		}
		offset += c
	}
	return model.NewMatrix(rows, width, data)
}
