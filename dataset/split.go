package dataset

import (
	"math"
	"math/rand/v2"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

const (
	// DefaultTestSize is the fraction of records held out for evaluation.
	DefaultTestSize = 0.2
	// DefaultSeed seeds the split and the forest unless configured otherwise.
	DefaultSeed = 42
)

// Split partitions d into disjoint train and test datasets. The records are
// shuffled with a PCG generator seeded by seed, and the first
// ceil(n*testSize) shuffled records form the test set. Both sides must be
// non-empty.
func (d Dataset) Split(testSize float64, seed uint64) (train, test Dataset, err error) {
	if !(testSize > 0 && testSize < 1) {
		return Dataset{}, Dataset{}, cyerrors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := d.Len()
	nTest := int(math.Ceil(float64(n)*testSize - 1e-9))
	if nTest < 1 || n-nTest < 1 {
		return Dataset{}, Dataset{}, cyerrors.NewValueError("Split",
			"dataset too small: both train and test partitions need at least one record")
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	testRecords := make([]LabeledRecord, nTest)
	for i, idx := range perm[:nTest] {
		testRecords[i] = d.records[idx]
	}
	trainRecords := make([]LabeledRecord, n-nTest)
	for i, idx := range perm[nTest:] {
		trainRecords[i] = d.records[idx]
	}
	return Dataset{records: trainRecords}, Dataset{records: testRecords}, nil
}
