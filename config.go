package colm

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/optim"
	"github.com/fan1dy/personalized-llms-colm/pkg/trust"
)

// Config holds the hyperparameter presets loaded from a TOML file: the model
// to build, its optimizer and the trust weighting strategy. The run shape
// (iterations, batch sizes, cadences) comes from the environment in cmd.
type Config struct {
	Model     model.Config       `toml:"model"`
	Optimizer optim.Config       `toml:"optimizer"`
	Scheduler SchedulerConfig    `toml:"scheduler"`
	Trust     trust.PolicyConfig `toml:"trust"`
}

type SchedulerConfig struct {
	Name          string  `toml:"name"`
	WarmupPercent float64 `toml:"warmup_percent"`
}

// DefaultConfig mirrors the preset used by the reference experiments.
func DefaultConfig() Config {
	return Config{
		Model: model.Config{
			Type:      "lora",
			VocabSize: 256,
			Rank:      4,
			Alpha:     8,
			Dropout:   0.0,
		},
		Optimizer: optim.Config{
			Name:        "adamw",
			LR:          1e-3,
			Beta1:       0.9,
			Beta2:       0.95,
			WeightDecay: 0.1,
		},
		Scheduler: SchedulerConfig{
			Name:          "cos",
			WarmupPercent: 0.02,
		},
		Trust: trust.PolicyConfig{
			Name:        "softmax",
			Temperature: 1.0,
		},
	}
}

// LoadConfig reads hyperparameter presets from a TOML file, starting from
// the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
