// Package config loads the YAML configuration for training and serving.
package config

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
	"github.com/YuminosukeSato/cropyield/serving"
	"github.com/YuminosukeSato/cropyield/sklearn/ensemble"
)

type Config struct {
	Forest    Forest    `yaml:"forest"`
	Split     Split     `yaml:"split"`
	Synthetic Synthetic `yaml:"synthetic"`
	Log       Log       `yaml:"log"`
	Storage   Storage   `yaml:"storage"`
	Serving   Serving   `yaml:"serving"`
}

type Forest struct {
	NEstimators     int    `yaml:"n_estimators"`
	MaxDepth        int    `yaml:"max_depth"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MaxFeatures     int    `yaml:"max_features"`
	RandomState     uint64 `yaml:"random_state"`
	NJobs           int    `yaml:"n_jobs"`
}

type Split struct {
	TestSize float64 `yaml:"test_size"`
	Seed     uint64  `yaml:"seed"`
}

type Synthetic struct {
	Samples int    `yaml:"samples"`
	Seed    uint64 `yaml:"seed"`
}

// Log configures the process-wide logger. An empty File logs to stderr.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "console"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type Serving struct {
	CacheSize int `yaml:"cache_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Forest: Forest{
			NEstimators:     ensemble.DefaultNEstimators,
			MaxDepth:        ensemble.DefaultMaxDepth,
			MinSamplesLeaf:  ensemble.DefaultMinSamplesLeaf,
			MinSamplesSplit: ensemble.DefaultMinSamplesSplit,
			RandomState:     ensemble.DefaultRandomState,
			NJobs:           -1,
		},
		Split:     Split{TestSize: dataset.DefaultTestSize, Seed: dataset.DefaultSeed},
		Synthetic: Synthetic{Samples: 1000, Seed: 42},
		Log:       Log{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 3},
		Storage:   Storage{Path: "cropyield.db"},
		Serving:   Serving{CacheSize: serving.DefaultCacheSize},
	}
}

// Load reads the YAML file at path over Default() and validates the result.
// Fields absent from the file keep their defaults; unknown fields are errors.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config %s", path)
	}
	defer file.Close()
	return Decode(file)
}

// Decode is Load on a reader.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that the forest and splitter would otherwise reject later.
func (c Config) Validate() error {
	switch {
	case c.Forest.NEstimators < 1:
		return errors.NewValidationError("forest.n_estimators", "must be >= 1", c.Forest.NEstimators)
	case c.Forest.MaxDepth < 0:
		return errors.NewValidationError("forest.max_depth", "must be >= 0", c.Forest.MaxDepth)
	case c.Forest.MinSamplesLeaf < 1:
		return errors.NewValidationError("forest.min_samples_leaf", "must be >= 1", c.Forest.MinSamplesLeaf)
	case c.Forest.MinSamplesSplit < 2:
		return errors.NewValidationError("forest.min_samples_split", "must be >= 2", c.Forest.MinSamplesSplit)
	case c.Forest.MaxFeatures < 0:
		return errors.NewValidationError("forest.max_features", "must be >= 0", c.Forest.MaxFeatures)
	case !(c.Split.TestSize > 0 && c.Split.TestSize < 1):
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	case c.Synthetic.Samples < 0:
		return errors.NewValidationError("synthetic.samples", "must be non-negative", c.Synthetic.Samples)
	case c.Log.Format != "json" && c.Log.Format != "console":
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ForestOptions maps the forest section to regressor options.
func (c Config) ForestOptions() []ensemble.Option {
	f := c.Forest
	return []ensemble.Option{
		ensemble.WithNEstimators(f.NEstimators),
		ensemble.WithMaxDepth(f.MaxDepth),
		ensemble.WithMinSamplesLeaf(f.MinSamplesLeaf),
		ensemble.WithMinSamplesSplit(f.MinSamplesSplit),
		ensemble.WithMaxFeatures(f.MaxFeatures),
		ensemble.WithRandomState(f.RandomState),
		ensemble.WithNJobs(f.NJobs),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewProvider builds a zerolog provider for l. When File is set the output is
// a size-rotated file; the returned Closer closes it.
func (l Log) NewProvider() (*log.ZerologProvider, io.Closer, error) {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if l.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
		}
		out, closer = rotated, rotated
	}
	opts := []log.ProviderOption{log.WithOutput(out)}
	if l.Format == "console" {
		opts = append(opts, log.WithConsole())
	}
	return log.NewZerologProvider(level, opts...), closer, nil
}
