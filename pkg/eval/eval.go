// Package eval scores a model on a validation stream without touching any
// training state.
package eval

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/shard"
)

type Result struct {
	Loss       float64
	Perplexity float64
	Accuracy   float64
}

// Evaluate runs up to maxBatches forward-only passes over s. The model is
// switched to inference mode for the duration and restored to training mode
// afterward, including on error.
func Evaluate(m model.Model, s *shard.Shard, rng *rand.Rand, sequenceLength, batchSize, maxBatches int) (Result, error) {
	if maxBatches <= 0 {
		return Result{}, fmt.Errorf("max batches must be positive, got %d", maxBatches)
	}

	m.SetTraining(false)
	defer m.SetTraining(true)

	var (
		lossSum float64
		correct int
		total   int
	)
	for i := 0; i < maxBatches; i++ {
		batch, err := s.Sample(rng, sequenceLength, batchSize)
		if err != nil {
			return Result{}, fmt.Errorf("sampling validation batch: %w", err)
		}
		loss, c, n, err := m.Eval(batch)
		if err != nil {
			return Result{}, fmt.Errorf("evaluating batch: %w", err)
		}
		lossSum += loss
		correct += c
		total += n
	}

	meanLoss := lossSum / float64(maxBatches)

	return Result{
		Loss:       meanLoss,
		Perplexity: math.Exp(meanLoss),
		Accuracy:   float64(correct) / float64(total),
	}, nil
}
