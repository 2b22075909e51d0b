package dataset

import (
	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Record is one observation of the crop-yield features.
type Record struct {
	TemperatureMean     float64 // °C
	AnnualPrecipitation float64 // mm
	FertilizerUse       float64 // kg/ha
	SoilType            string
}

// Numeric returns the value of a numeric column by schema name.
func (r Record) Numeric(name string) (float64, bool) {
	switch name {
	case TemperatureMean:
		return r.TemperatureMean, true
	case AnnualPrecipitation:
		return r.AnnualPrecipitation, true
	case FertilizerUse:
		return r.FertilizerUse, true
	}
	return 0, false
}

// Categorical returns the value of a categorical column by schema name.
func (r Record) Categorical(name string) (string, bool) {
	if name == SoilType {
		return r.SoilType, true
	}
	return "", false
}

// Validate checks that numeric fields are finite and the soil type is set.
func (r Record) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{TemperatureMean, r.TemperatureMean},
		{AnnualPrecipitation, r.AnnualPrecipitation},
		{FertilizerUse, r.FertilizerUse},
	} {
		if cyerrors.CheckScalar(f.name, f.v) != nil {
			return cyerrors.NewValidationError(f.name, "must be a finite number", f.v)
		}
	}
	if r.SoilType == "" {
		return cyerrors.NewValidationError(SoilType, "must not be empty", r.SoilType)
	}
	return nil
}

// LabeledRecord is a Record with its observed yield in t/ha.
type LabeledRecord struct {
	Record
	Yield float64
}

// Validate checks the features and that the yield is finite and non-negative.
func (r LabeledRecord) Validate() error {
	if err := r.Record.Validate(); err != nil {
		return err
	}
	if cyerrors.CheckScalar(Yield, r.Yield) != nil {
		return cyerrors.NewValidationError(Yield, "must be a finite number", r.Yield)
	}
	if r.Yield < 0 {
		return cyerrors.NewValidationError(Yield, "must be non-negative", r.Yield)
	}
	return nil
}

// Dataset is an ordered collection of validated labeled records.
type Dataset struct {
	records []LabeledRecord
}

// New validates every record and returns a Dataset holding a copy of them.
// The error names the index of the first invalid record.
func New(records []LabeledRecord) (Dataset, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return Dataset{}, cyerrors.Wrapf(err, "record %d", i)
		}
	}
	return Dataset{records: append([]LabeledRecord(nil), records...)}, nil
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.records) }

// At returns record i.
func (d Dataset) At(i int) LabeledRecord { return d.records[i] }

// Records returns a copy of the labeled records.
func (d Dataset) Records() []LabeledRecord {
	return append([]LabeledRecord(nil), d.records...)
}

// Features returns the unlabeled records in order.
func (d Dataset) Features() []Record {
	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = r.Record
	}
	return out
}

// Targets returns the yields in order.
func (d Dataset) Targets() []float64 {
	out := make([]float64, len(d.records))
	for i, r := range d.records {
		out[i] = r.Yield
	}
	return out
}
