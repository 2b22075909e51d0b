// Package serving answers prediction requests from a fitted pipeline through
// an LRU cache keyed on the input record.
package serving

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/pipeline"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
)

// DefaultCacheSize is used when NewPredictor is given a non-positive size.
const DefaultCacheSize = 1024

// Stats are cumulative cache counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// Predictor is safe for concurrent use.
type Predictor struct {
	pipeline *pipeline.Pipeline
	cache    *lru.Cache[dataset.Record, float64]
	hits     atomic.Int64
	misses   atomic.Int64
	log      log.Logger
}

// NewPredictor wraps a fitted pipeline.
func NewPredictor(p *pipeline.Pipeline, cacheSize int) (*Predictor, error) {
	if err := p.State.RequireFitted("Pipeline", "NewPredictor"); err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[dataset.Record, float64](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create prediction cache")
	}
	return &Predictor{
		pipeline: p,
		cache:    cache,
		log:      log.GetLoggerWithName("serving"),
	}, nil
}

// Predict returns one prediction per record, in input order. Only records not
// in the cache reach the pipeline, each distinct record once.
func (s *Predictor) Predict(records []dataset.Record) ([]float64, error) {
	out := make([]float64, len(records))
	var (
		missing []dataset.Record
		slots   = make(map[dataset.Record][]int)
	)
	for i, r := range records {
		if v, ok := s.cache.Get(r); ok {
			out[i] = v
			continue
		}
		if _, seen := slots[r]; !seen {
			missing = append(missing, r)
		}
		slots[r] = append(slots[r], i)
	}

	hits := int64(len(records) - len(missing))
	s.hits.Add(hits)
	s.misses.Add(int64(len(missing)))

	if len(missing) > 0 {
		pred, err := s.pipeline.Predict(missing)
		if err != nil {
			return nil, err
		}
		for j, r := range missing {
			s.cache.Add(r, pred[j])
			for _, i := range slots[r] {
				out[i] = pred[j]
			}
		}
	}

	s.log.Debug("Served predictions",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, len(records),
		log.CacheHitsKey, hits,
		log.CacheMissesKey, len(missing),
	)
	return out, nil
}

// Stats returns the cumulative hit and miss counts.
func (s *Predictor) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

// Len returns the number of cached predictions.
func (s *Predictor) Len() int {
	return s.cache.Len()
}
