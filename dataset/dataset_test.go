package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

func sampleRecords(n int) []LabeledRecord {
	soils := []string{"Argiloso", "Arenoso", "Franco"}
	out := make([]LabeledRecord, n)
	for i := range out {
		out[i] = LabeledRecord{
			Record: Record{
				TemperatureMean:     15 + float64(i%20),
				AnnualPrecipitation: 500 + float64(i*7%2000),
				FertilizerUse:       50 + float64(i*3%250),
				SoilType:            soils[i%3],
			},
			Yield: float64(i % 30),
		}
	}
	return out
}

func TestFeatureSchema(t *testing.T) {
	s := CropYieldSchema()
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{TemperatureMean, AnnualPrecipitation, FertilizerUse}, s.Names(Numeric))
	assert.Equal(t, []string{SoilType}, s.Names(Categorical))

	kind, ok := s.Lookup(SoilType)
	assert.True(t, ok)
	assert.Equal(t, Categorical, kind)
	_, ok = s.Lookup("humidity")
	assert.False(t, ok)

	all := s.All()
	all[0].Name = "mutated"
	assert.Equal(t, TemperatureMean, s.All()[0].Name, "All must return a copy")

	tests := []struct {
		name     string
		features []Feature
	}{
		{"empty", nil},
		{"blank name", []Feature{{Name: "", Kind: Numeric}}},
		{"duplicate", []Feature{{Name: "a", Kind: Numeric}, {Name: "a", Kind: Categorical}}},
		{"bad kind", []Feature{{Name: "a", Kind: Kind(7)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeatureSchema(tt.features...)
			var ve *cyerrors.ValidationError
			assert.True(t, cyerrors.As(err, &ve), "want ValidationError, got %v", err)
		})
	}
}

func TestNewRejectsInvalidRecords(t *testing.T) {
	good := sampleRecords(3)

	tests := []struct {
		name   string
		mutate func(*LabeledRecord)
		param  string
	}{
		{"negative yield", func(r *LabeledRecord) { r.Yield = -0.1 }, Yield},
		{"nan yield", func(r *LabeledRecord) { r.Yield = math.NaN() }, Yield},
		{"inf temperature", func(r *LabeledRecord) { r.TemperatureMean = math.Inf(1) }, TemperatureMean},
		{"empty soil", func(r *LabeledRecord) { r.SoilType = "" }, SoilType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := append([]LabeledRecord(nil), good...)
			tt.mutate(&records[1])
			_, err := New(records)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "record 1")
			var ve *cyerrors.ValidationError
			require.True(t, cyerrors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	ds, err := New(good)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	good[0].Yield = 99
	assert.NotEqual(t, 99.0, ds.At(0).Yield, "New must copy its input")
	assert.Len(t, ds.Features(), 3)
	assert.Len(t, ds.Targets(), 3)
}

func TestSplit(t *testing.T) {
	ds, err := New(sampleRecords(1000))
	require.NoError(t, err)

	train, test, err := ds.Split(DefaultTestSize, DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, 800, train.Len())
	assert.Equal(t, 200, test.Len())

	train2, test2, err := ds.Split(DefaultTestSize, DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, train.Records(), train2.Records(), "same seed must give the same split")
	assert.Equal(t, test.Records(), test2.Records())

	_, test3, err := ds.Split(DefaultTestSize, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test.Records(), test3.Records(), "different seeds should shuffle differently")

	// partitions are disjoint and cover the dataset
	seen := make(map[LabeledRecord]int)
	for _, r := range ds.Records() {
		seen[r]++
	}
	for _, r := range append(train.Records(), test.Records()...) {
		seen[r]--
	}
	for r, c := range seen {
		assert.Zero(t, c, "record %+v", r)
	}

	small, err := New(sampleRecords(1))
	require.NoError(t, err)
	_, _, err = small.Split(0.2, 1)
	assert.Error(t, err)

	for _, bad := range []float64{0, 1, -0.5, math.NaN()} {
		_, _, err := ds.Split(bad, 1)
		assert.Error(t, err, "test size %v", bad)
	}
}

func TestFrame(t *testing.T) {
	records := []Record{
		{TemperatureMean: 20, AnnualPrecipitation: 1000, FertilizerUse: 100, SoilType: "Franco"},
		{TemperatureMean: 30, AnnualPrecipitation: 2000, FertilizerUse: 200, SoilType: "Arenoso"},
	}
	f, err := NewFrame(CropYieldSchema(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	num, err := f.NumericColumns([]string{FertilizerUse, TemperatureMean})
	require.NoError(t, err)
	r, c := num.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 200.0, num.At(1, 0))
	assert.Equal(t, 20.0, num.At(0, 1))

	cat, err := f.CategoricalColumns([]string{SoilType})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Franco"}, {"Arenoso"}}, cat)

	_, err = f.NumericColumns([]string{SoilType})
	assert.Error(t, err)

	empty, err := NewFrame(CropYieldSchema(), nil)
	require.NoError(t, err)
	m, err := empty.NumericColumns(CropYieldSchema().Names(Numeric))
	require.NoError(t, err)
	r, c = m.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, 3, c)

	custom, err := NewFeatureSchema(Feature{Name: "humidity", Kind: Numeric})
	require.NoError(t, err)
	_, err = NewFrame(custom, records)
	var ve *cyerrors.ValidationError
	assert.True(t, cyerrors.As(err, &ve))

	_, err = NewFrame(CropYieldSchema(), []Record{{TemperatureMean: math.NaN(), SoilType: "Franco"}})
	assert.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	valid := map[string]any{
		TemperatureMean:     28.0,
		AnnualPrecipitation: 1500,
		FertilizerUse:       float32(180),
		SoilType:            "Franco",
		Yield:               31.2,
	}
	lr, err := ParseLabeledRecord(valid)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, lr.AnnualPrecipitation)
	assert.Equal(t, "Franco", lr.SoilType)
	assert.Equal(t, 31.2, lr.Yield)

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"string temperature", TemperatureMean, "28.0"},
		{"missing precipitation", AnnualPrecipitation, nil},
		{"numeric soil", SoilType, 3},
		{"negative yield", Yield, -2.0},
		{"nan fertilizer", FertilizerUse, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := make(map[string]any, len(valid))
			for k, v := range valid {
				raw[k] = v
			}
			if tt.value == nil {
				delete(raw, tt.key)
			} else {
				raw[tt.key] = tt.value
			}
			_, err := ParseLabeledRecord(raw)
			var ve *cyerrors.ValidationError
			require.True(t, cyerrors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tt.key, ve.ParamName)
		})
	}

	delete(valid, Yield)
	rec, err := ParseRecord(valid)
	require.NoError(t, err)
	assert.Equal(t, 28.0, rec.TemperatureMean)
}

func TestCSVRoundTrip(t *testing.T) {
	records := sampleRecords(5)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	got, rejected, err := ReadLabeledCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Equal(t, records, got)
}

func TestReadCSVRejectsRows(t *testing.T) {
	input := strings.Join([]string{
		"soil_type,temperature_mean,annual_precipitation,fertilizer_use,yield",
		"Franco,28,1500,180,31.5",
		"Franco,warm,1500,180,30",
		"Arenoso,20,900,100,-1",
		"Argiloso,22,1100,120,20",
	}, "\n")

	got, rejected, err := ReadLabeledCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Argiloso", got[1].SoilType)
	require.Len(t, rejected, 2)
	assert.Equal(t, 3, rejected[0].Line)
	assert.Equal(t, 4, rejected[1].Line)
	assert.Contains(t, rejected[0].Error(), "temperature_mean")

	records, rejected, err := ReadRecordsCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 3, "yield is ignored for unlabeled reads")
	assert.Len(t, rejected, 1)

	_, _, err = ReadLabeledCSV(strings.NewReader("temperature_mean,soil_type\n1,Franco\n"))
	assert.Error(t, err)
	_, _, err = ReadLabeledCSV(strings.NewReader(""))
	assert.True(t, cyerrors.Is(err, cyerrors.ErrEmptyData))
}
