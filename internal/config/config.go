package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a letternet run.
type Config struct {
	TrainPath       string `yaml:"train_path"`
	TestPath        string `yaml:"test_path"`
	CachePath       string `yaml:"cache_path"`
	CheckpointPath  string `yaml:"checkpoint_path"`
	PredictionsPath string `yaml:"predictions_path"`
	PlotPath        string `yaml:"plot_path"`

	LabelColumn int  `yaml:"label_column"`
	HasHeader   bool `yaml:"has_header"`
	// ValidationFraction is nil when unset; an explicit 0 trains on every
	// labeled row.
	ValidationFraction *float64 `yaml:"validation_fraction"`
	SoftHigh           float64  `yaml:"soft_high"`
	SoftLow            float64  `yaml:"soft_low"`

	HiddenSize int     `yaml:"hidden_size"`
	InitScale  float64 `yaml:"init_scale"`
	BatchSize  int     `yaml:"batch_size"`
	Epochs     int     `yaml:"epochs"`
	ScoreEvery int     `yaml:"score_every"`

	RatesV     []float64 `yaml:"rates_v"`
	RatesW     []float64 `yaml:"rates_w"`
	DecayRates []float64 `yaml:"decay_rates"`

	Seed       int64 `yaml:"seed"`
	NumWorkers int   `yaml:"num_workers"`
	LogEvery   int   `yaml:"log_every"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	TrainPath  string
	TestPath   string
	BatchSize  int
	Epochs     int
	HiddenSize int
	NumWorkers int
	Seed       int64
	LogEvery   int
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML into a Config, rejecting unknown keys.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainPath != "" {
		c.TrainPath = o.TrainPath
	}
	if o.TestPath != "" {
		c.TestPath = o.TestPath
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.HiddenSize > 0 {
		c.HiddenSize = o.HiddenSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate fills defaults and verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TrainPath == "" && c.CachePath == "" {
		return errors.New("train_path or cache_path must be set")
	}
	c.defaults()

	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.HiddenSize <= 0 {
		return errors.Errorf("hidden_size must be > 0 (got %d)", c.HiddenSize)
	}
	if c.ScoreEvery <= 0 {
		return errors.Errorf("score_every must be > 0 (got %d)", c.ScoreEvery)
	}
	if f := *c.ValidationFraction; f < 0 || f >= 1 {
		return errors.Errorf("validation_fraction must be in [0,1) (got %g)", f)
	}
	if c.SoftLow >= c.SoftHigh {
		return errors.Errorf("soft_low %g must be below soft_high %g", c.SoftLow, c.SoftHigh)
	}
	for _, list := range [][]float64{c.RatesV, c.RatesW, c.DecayRates} {
		for _, v := range list {
			if v < 0 {
				return errors.Errorf("rates and decays must be non-negative (got %g)", v)
			}
		}
	}
	if c.NumWorkers <= 0 {
		return errors.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	return nil
}

func (c *Config) defaults() {
	if c.HiddenSize == 0 {
		c.HiddenSize = 200
	}
	if c.InitScale == 0 {
		c.InitScale = 0.1
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.Epochs == 0 {
		c.Epochs = 10
	}
	if c.ScoreEvery == 0 {
		c.ScoreEvery = 5000
	}
	if c.ValidationFraction == nil {
		f := 0.2
		c.ValidationFraction = &f
	}
	if c.SoftHigh == 0 && c.SoftLow == 0 {
		c.SoftHigh, c.SoftLow = 0.85, 0.15
	}
	if len(c.RatesV) == 0 {
		c.RatesV = []float64{0.01}
	}
	if len(c.RatesW) == 0 {
		c.RatesW = []float64{0.001}
	}
	if len(c.DecayRates) == 0 {
		c.DecayRates = []float64{0.9}
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
}
