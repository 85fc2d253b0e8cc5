// Package trust computes inter-client trust weights from losses on peer
// reference data and applies the trust-weighted parameter aggregation.
package trust

import (
	"fmt"
	"math"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

// PolicyConfig parameterizes the named weighting strategies.
type PolicyConfig struct {
	Name string `toml:"name"`
	// Temperature sharpens (<1) or flattens (>1) the softmax policy.
	Temperature float64 `toml:"temperature"`
	// Epsilon keeps the inverse policy finite on near-zero losses.
	Epsilon float64 `toml:"epsilon"`
}

// Policy converts one target client's row of source losses into mixing
// weights. Returned weights are non-negative and sum to 1.
type Policy interface {
	Name() string
	Weights(losses []float64) ([]float64, error)
}

// NewPolicy builds a weighting strategy by name. An unknown name is a fatal
// configuration error.
func NewPolicy(cfg PolicyConfig) (Policy, error) {
	switch cfg.Name {
	case "softmax":
		t := cfg.Temperature
		if t == 0 {
			t = 1
		}
		if t < 0 {
			return nil, fmt.Errorf("%w: softmax temperature must be positive", errors.ErrInvalidConfig)
		}

		return &softmaxPolicy{temperature: t}, nil
	case "inverse":
		eps := cfg.Epsilon
		if eps == 0 {
			eps = 1e-8
		}

		return &inversePolicy{epsilon: eps}, nil
	case "uniform":
		return &uniformPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownPolicy, cfg.Name)
	}
}

// softmaxPolicy weighs sources by softmax(-loss/temperature): lower loss on
// the target's reference data means higher trust. Every source, including
// the target itself, keeps a strictly positive weight.
type softmaxPolicy struct {
	temperature float64
}

func (p *softmaxPolicy) Name() string { return "softmax" }

func (p *softmaxPolicy) Weights(losses []float64) ([]float64, error) {
	if len(losses) == 0 {
		return nil, fmt.Errorf("%w: empty loss row", errors.ErrInvalidConfig)
	}

	minLoss := losses[0]
	for _, l := range losses[1:] {
		if l < minLoss {
			minLoss = l
		}
	}

	weights := make([]float64, len(losses))
	var sum float64
	for i, l := range losses {
		weights[i] = math.Exp(-(l - minLoss) / p.temperature)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	return weights, nil
}

// inversePolicy weighs sources by 1/(loss+epsilon), normalized.
type inversePolicy struct {
	epsilon float64
}

func (p *inversePolicy) Name() string { return "inverse" }

func (p *inversePolicy) Weights(losses []float64) ([]float64, error) {
	if len(losses) == 0 {
		return nil, fmt.Errorf("%w: empty loss row", errors.ErrInvalidConfig)
	}

	weights := make([]float64, len(losses))
	var sum float64
	for i, l := range losses {
		if l < 0 {
			return nil, fmt.Errorf("%w: negative loss %f", errors.ErrInvalidConfig, l)
		}
		weights[i] = 1 / (l + p.epsilon)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	return weights, nil
}

// uniformPolicy ignores losses and averages all clients equally, the plain
// federated-averaging baseline.
type uniformPolicy struct{}

func (p *uniformPolicy) Name() string { return "uniform" }

func (p *uniformPolicy) Weights(losses []float64) ([]float64, error) {
	if len(losses) == 0 {
		return nil, fmt.Errorf("%w: empty loss row", errors.ErrInvalidConfig)
	}

	weights := make([]float64, len(losses))
	for i := range weights {
		weights[i] = 1 / float64(len(losses))
	}

	return weights, nil
}
