// Package model defines the contracts between the training orchestrator and
// the adapter models it drives. The orchestrator never looks inside a model;
// it only moves batches, gradients and named parameter tensors across this
// boundary.
package model

import (
	"fmt"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

// Batch is a set of fixed-length token windows with next-token targets.
type Batch struct {
	Inputs  [][]int32
	Targets [][]int32
}

// Precision selects the compute precision for a forward pass. Reduced
// precision is a performance hint only and must not change the accumulated
// gradient semantics.
type Precision uint8

const (
	PrecisionFull Precision = iota
	PrecisionBFloat16
)

// StepContext carries the execution backend's instructions for a single
// microstep. SyncGradients is true only on the last microstep of a gradient
// accumulation window.
type StepContext struct {
	Precision     Precision
	SyncGradients bool
}

// GroupSpec names the parameters of one optimizer group. Names are model
// parameter names before any backend translation.
type GroupSpec struct {
	Params  []string
	NoDecay bool
}

// Model is a trainable adapter over a frozen backbone. TrainableParams and
// Grads return live storage: writing into the returned slices mutates the
// model, which is how trust aggregation commits updates.
type Model interface {
	// ForwardBackward runs one forward/backward pass, accumulating gradients
	// scaled by lossScale. It returns the unscaled mean loss over the batch.
	ForwardBackward(batch Batch, lossScale float64, sc StepContext) (float64, error)

	// Eval runs a forward-only pass, returning the mean loss and the number
	// of correct next-token predictions out of total positions.
	Eval(batch Batch) (loss float64, correct, total int, err error)

	TrainableParams() Params
	Grads() Params
	ZeroGrads()
	GradNorm() float64
	ClipGradNorm(maxNorm float64)

	// SetTraining toggles between training and inference behaviour
	// (e.g. dropout). It never touches parameters or gradients.
	SetTraining(training bool)

	ParameterGroupSpecs() []GroupSpec
}

// Config selects and parameterizes a model type.
type Config struct {
	Type      string  `toml:"type"`
	VocabSize int     `toml:"vocab_size"`
	Rank      int     `toml:"rank"`
	Alpha     float64 `toml:"alpha"`
	Dropout   float64 `toml:"dropout"`
	Seed      int64   `toml:"seed"`
}

// New builds a model from its configuration. An unknown type is a fatal
// configuration error.
func New(cfg Config) (Model, error) {
	switch cfg.Type {
	case "lora":
		return NewLoRA(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownModel, cfg.Type)
	}
}
