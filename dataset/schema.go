// Package dataset holds the crop-yield record types, the feature schema that
// names their columns, and the validated Dataset used for training.
package dataset

import (
	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Kind is the role a feature plays in preprocessing.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column names of the crop-yield schema.
const (
	TemperatureMean     = "temperature_mean"
	AnnualPrecipitation = "annual_precipitation"
	FertilizerUse       = "fertilizer_use"
	SoilType            = "soil_type"
	Yield               = "yield"
)

// Feature is one named input column.
type Feature struct {
	Name string
	Kind Kind
}

// FeatureSchema is an ordered, immutable list of features. The zero value is an
// empty schema.
type FeatureSchema struct {
	Features []Feature // exported for gob; treat as read-only
}

// NewFeatureSchema validates features and returns a schema owning a copy of them.
func NewFeatureSchema(features ...Feature) (FeatureSchema, error) {
	if len(features) == 0 {
		return FeatureSchema{}, cyerrors.NewValidationError("schema", "at least one feature is required", 0)
	}
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f.Name == "" {
			return FeatureSchema{}, cyerrors.NewValidationError("schema", "feature name must not be empty", f)
		}
		if f.Kind != Numeric && f.Kind != Categorical {
			return FeatureSchema{}, cyerrors.NewValidationError(f.Name, "unknown feature kind", int(f.Kind))
		}
		if _, dup := seen[f.Name]; dup {
			return FeatureSchema{}, cyerrors.NewValidationError(f.Name, "duplicate feature name", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return FeatureSchema{Features: append([]Feature(nil), features...)}, nil
}

// CropYieldSchema returns the default schema: three numeric features followed
// by the soil type.
func CropYieldSchema() FeatureSchema {
	return FeatureSchema{Features: []Feature{
		{Name: TemperatureMean, Kind: Numeric},
		{Name: AnnualPrecipitation, Kind: Numeric},
		{Name: FertilizerUse, Kind: Numeric},
		{Name: SoilType, Kind: Categorical},
	}}
}

// Len returns the number of features.
func (s FeatureSchema) Len() int { return len(s.Features) }

// All returns a copy of the features in schema order.
func (s FeatureSchema) All() []Feature {
	return append([]Feature(nil), s.Features...)
}

// Names returns the names of all features of kind k, in schema order.
func (s FeatureSchema) Names(k Kind) []string {
	var names []string
	for _, f := range s.Features {
		if f.Kind == k {
			names = append(names, f.Name)
		}
	}
	return names
}

// Lookup returns the kind of the named feature.
func (s FeatureSchema) Lookup(name string) (Kind, bool) {
	for _, f := range s.Features {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return 0, false
}
