package dataset

import (
	"math"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// ParseRecord builds a Record from a decoded row, e.g. a JSON object. Numeric
// fields must hold a Go number and soil_type a string; values of any other
// type are rejected, never coerced.
func ParseRecord(raw map[string]any) (Record, error) {
	var r Record
	var err error
	if r.TemperatureMean, err = numberField(raw, TemperatureMean); err != nil {
		return Record{}, err
	}
	if r.AnnualPrecipitation, err = numberField(raw, AnnualPrecipitation); err != nil {
		return Record{}, err
	}
	if r.FertilizerUse, err = numberField(raw, FertilizerUse); err != nil {
		return Record{}, err
	}
	if r.SoilType, err = stringField(raw, SoilType); err != nil {
		return Record{}, err
	}
	return r, r.Validate()
}

// ParseLabeledRecord is ParseRecord plus a required, non-negative yield.
func ParseLabeledRecord(raw map[string]any) (LabeledRecord, error) {
	rec, err := ParseRecord(raw)
	if err != nil {
		return LabeledRecord{}, err
	}
	y, err := numberField(raw, Yield)
	if err != nil {
		return LabeledRecord{}, err
	}
	lr := LabeledRecord{Record: rec, Yield: y}
	return lr, lr.Validate()
}

func numberField(raw map[string]any, name string) (float64, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return 0, cyerrors.NewValidationError(name, "required field is missing", nil)
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, cyerrors.NewValidationError(name, "must be a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, cyerrors.NewValidationError(name, "must be a finite number", f)
	}
	return f, nil
}

func stringField(raw map[string]any, name string) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return "", cyerrors.NewValidationError(name, "required field is missing", nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", cyerrors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}
