// Package synthetic generates reproducible crop-yield datasets for demos and tests.
package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/cropyield/dataset"
	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Soil types emitted by the generator.
var SoilTypes = []string{"Argiloso", "Arenoso", "Franco"}

// Generator parameters. Ranges are [min, max) of the uniform draws.
const (
	TemperatureMin, TemperatureMax     = 15.0, 35.0
	PrecipitationMin, PrecipitationMax = 500.0, 2500.0
	FertilizerMin, FertilizerMax       = 50.0, 300.0
	NoiseStdDev                        = 1.5
)

// Generator draws labeled records from a fixed linear yield model plus
// Gaussian noise. Samples and Seed fully determine the output.
type Generator struct {
	Samples int
	Seed    uint64
}

// New returns a generator for n records seeded with seed.
func New(n int, seed uint64) *Generator {
	return &Generator{Samples: n, Seed: seed}
}

// soilOffset is the base yield contribution of each soil type.
func soilOffset(soil string) float64 {
	switch soil {
	case "Franco":
		return 5
	case "Argiloso":
		return 3
	default:
		return 2
	}
}

// ExpectedYield is the noise-free yield of r under the generating model,
// before clipping.
func ExpectedYield(r dataset.Record) float64 {
	return 0.5*r.TemperatureMean +
		0.003*r.AnnualPrecipitation +
		0.05*r.FertilizerUse +
		soilOffset(r.SoilType)
}

// Records returns the generated records. Yields are clipped at zero.
func (g *Generator) Records() ([]dataset.LabeledRecord, error) {
	if g.Samples < 0 {
		return nil, cyerrors.NewValidationError("samples", "must be non-negative", g.Samples)
	}
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed))
	uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*rng.Float64() }

	// all features of every record are drawn before any noise, column by column
	temps := make([]float64, g.Samples)
	precs := make([]float64, g.Samples)
	ferts := make([]float64, g.Samples)
	soils := make([]string, g.Samples)
	for i := range temps {
		temps[i] = uniform(TemperatureMin, TemperatureMax)
	}
	for i := range precs {
		precs[i] = uniform(PrecipitationMin, PrecipitationMax)
	}
	for i := range ferts {
		ferts[i] = uniform(FertilizerMin, FertilizerMax)
	}
	for i := range soils {
		soils[i] = SoilTypes[rng.IntN(len(SoilTypes))]
	}

	out := make([]dataset.LabeledRecord, g.Samples)
	for i := range out {
		rec := dataset.Record{
			TemperatureMean:     temps[i],
			AnnualPrecipitation: precs[i],
			FertilizerUse:       ferts[i],
			SoilType:            soils[i],
		}
		y := ExpectedYield(rec) + rng.NormFloat64()*NoiseStdDev
		out[i] = dataset.LabeledRecord{Record: rec, Yield: cyerrors.ClipValue(y, 0, math.Inf(1))}
	}
	return out, nil
}

// Generate returns the generated records as a validated Dataset.
func (g *Generator) Generate() (dataset.Dataset, error) {
	records, err := g.Records()
	if err != nil {
		return dataset.Dataset{}, err
	}
	return dataset.New(records)
}
