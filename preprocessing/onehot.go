package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Unknown-category policies.
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// OneHotEncoder maps each categorical column to one indicator column per value
// seen during Fit. Vocabularies are sorted, so the output layout depends only on
// the set of training values.
type OneHotEncoder struct {
	State *model.StateManager

	// Categories holds the sorted vocabulary of each input column.
	Categories [][]string

	// FeatureNames labels the input columns in warnings and output names.
	FeatureNames []string

	HandleUnknown string
}

// NewOneHotEncoder returns an encoder that encodes unknown values as all zeros.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager(), HandleUnknown: HandleUnknownIgnore}
}

// Fit learns the vocabulary of each column of the row-major n×k input.
func (e *OneHotEncoder) Fit(X [][]string) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.HandleUnknown != HandleUnknownIgnore && e.HandleUnknown != HandleUnknownError {
		return errors.NewValidationError("handle_unknown", "must be \"ignore\" or \"error\"", e.HandleUnknown)
	}
	if err := e.State.RequireUnfitted("OneHotEncoder.Fit"); err != nil {
		return err
	}
	k := len(X[0])
	if e.FeatureNames != nil && len(e.FeatureNames) != k {
		return errors.NewDimensionError("OneHotEncoder.Fit", len(e.FeatureNames), k, 1)
	}

	seen := make([]map[string]struct{}, k)
	for j := range seen {
		seen[j] = make(map[string]struct{})
	}
	for i, row := range X {
		if len(row) != k {
			return errors.Wrapf(errors.NewDimensionError("OneHotEncoder.Fit", k, len(row), 1), "row %d", i)
		}
		for j, v := range row {
			seen[j][v] = struct{}{}
		}
	}

	categories := make([][]string, k)
	for j, set := range seen {
		vocab := make([]string, 0, len(set))
		for v := range set {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)
		categories[j] = vocab
	}
	e.Categories = categories
	if e.FeatureNames == nil {
		e.FeatureNames = make([]string, k)
		for j := range e.FeatureNames {
			e.FeatureNames[j] = fmt.Sprintf("x%d", j)
		}
	}
	return e.State.MarkFitted("OneHotEncoder.Fit", k, len(X))
}

// position returns the index of v in the sorted vocabulary of column j.
func (e *OneHotEncoder) position(j int, v string) (int, bool) {
	vocab := e.Categories[j]
	pos := sort.SearchStrings(vocab, v)
	return pos, pos < len(vocab) && vocab[pos] == v
}

// NOutputFeatures returns the total number of indicator columns.
func (e *OneHotEncoder) NOutputFeatures() int {
	n := 0
	for _, vocab := range e.Categories {
		n += len(vocab)
	}
	return n
}

// Transform encodes X. Under the default policy a value not seen during Fit
// produces an all-zero block for its column and one UnknownCategoryWarning per
// column per call.
func (e *OneHotEncoder) Transform(X [][]string) (mat.Matrix, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	k := len(e.Categories)
	width := e.NOutputFeatures()

	offsets := make([]int, k)
	for j := 1; j < k; j++ {
		offsets[j] = offsets[j-1] + len(e.Categories[j-1])
	}

	unknown := make([][]string, k)
	unknownCount := make([]int, k)
	data := make([]float64, len(X)*width)
	for i, row := range X {
		if len(row) != k {
			return nil, errors.Wrapf(errors.NewDimensionError("OneHotEncoder.Transform", k, len(row), 1), "row %d", i)
		}
		for j, v := range row {
			pos, ok := e.position(j, v)
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OneHotEncoder.Transform",
						fmt.Sprintf("found unknown category %q in column %q at row %d", v, e.FeatureNames[j], i))
				}
				if !contains(unknown[j], v) {
					unknown[j] = append(unknown[j], v)
				}
				unknownCount[j]++
				continue
			}
			data[i*width+offsets[j]+pos] = 1
		}
	}
	for j, n := range unknownCount {
		if n > 0 {
			errors.Warn(errors.NewUnknownCategoryWarning(e.FeatureNames[j], unknown[j], n))
		}
	}
	return model.NewMatrix(len(X), width, data), nil
}

// FitTransform fits on X and encodes it.
func (e *OneHotEncoder) FitTransform(X [][]string) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// FeatureNamesOut returns "<feature>_<value>" for every indicator column.
func (e *OneHotEncoder) FeatureNamesOut() []string {
	names := make([]string, 0, e.NOutputFeatures())
	for j, vocab := range e.Categories {
		for _, v := range vocab {
			names = append(names, e.FeatureNames[j]+"_"+v)
		}
	}
	return names
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
