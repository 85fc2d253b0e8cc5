// Package optim implements the local optimizers and learning-rate schedules
// applied to each client's adapter parameters.
package optim

import (
	"fmt"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/backend"
	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

// Config selects and parameterizes an optimizer.
type Config struct {
	Name        string  `toml:"name"`
	LR          float64 `toml:"lr"`
	Beta1       float64 `toml:"beta1"`
	Beta2       float64 `toml:"beta2"`
	Epsilon     float64 `toml:"epsilon"`
	WeightDecay float64 `toml:"weight_decay"`
	Momentum    float64 `toml:"momentum"`
}

type Optimizer interface {
	// Step applies one update from the model's current gradients.
	Step()
	LR() float64
	SetLR(lr float64)
}

// group is one optimizer parameter group after backend name translation.
type group struct {
	names   []string
	noDecay bool
}

// resolveGroups translates the model's group specs through the backend and
// checks every name resolves to a live tensor.
func resolveGroups(m model.Model, b backend.Backend) ([]group, error) {
	params := m.TrainableParams()
	specs := m.ParameterGroupSpecs()
	groups := make([]group, 0, len(specs))
	for _, spec := range specs {
		g := group{noDecay: spec.NoDecay}
		for _, name := range spec.Params {
			for _, translated := range b.TranslateParamName(name) {
				if _, ok := params[translated]; !ok {
					return nil, fmt.Errorf("%w: parameter %q not found on model", errors.ErrInvalidConfig, translated)
				}
				g.names = append(g.names, translated)
			}
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// New builds an optimizer over the model's parameter groups. An unknown
// optimizer name is a fatal configuration error.
func New(cfg Config, m model.Model, b backend.Backend) (Optimizer, error) {
	groups, err := resolveGroups(m, b)
	if err != nil {
		return nil, err
	}

	switch cfg.Name {
	case "adamw":
		return newAdamW(cfg, m, groups), nil
	case "sgd":
		return newSGD(cfg, m, groups), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownOptimizer, cfg.Name)
	}
}
