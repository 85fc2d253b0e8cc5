// Package trainer drives rounds of local gradient steps across all clients,
// triggers trust-weighted aggregation and evaluation on their cadences, and
// accumulates the run's metrics.
package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
	"github.com/fan1dy/personalized-llms-colm/pkg/optim"
	"github.com/fan1dy/personalized-llms-colm/pkg/results"
	"github.com/fan1dy/personalized-llms-colm/pkg/shard"
)

// Client is one participant: its own model, optimizer, schedule and data.
// The orchestrator owns the list of clients; each client owns its optimizer
// and schedule state. Model parameters are the only state shared across
// client boundaries, and only during aggregation.
type Client struct {
	ID        int
	Model     model.Model
	Optimizer optim.Optimizer
	Scheduler optim.Scheduler
	Data      shard.Set

	Iteration   int
	Substep     int
	BestValLoss float64

	rng *rand.Rand
}

// NewClient builds a client with its own deterministic sampling stream.
func NewClient(id int, m model.Model, opt optim.Optimizer, sched optim.Scheduler, data shard.Set, seed int64) *Client {
	return &Client{
		ID:          id,
		Model:       m,
		Optimizer:   opt,
		Scheduler:   sched,
		Data:        data,
		BestValLoss: math.Inf(1),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Config is the run configuration, echoed into the persisted summary.
type Config struct {
	Dataset        string  `json:"dataset"`
	Model          string  `json:"model"`
	NumClients     int     `json:"num_clients"`
	Iterations     int     `json:"iterations"`
	AccSteps       int     `json:"acc_steps"`
	BatchSize      int     `json:"batch_size"`
	SequenceLength int     `json:"sequence_length"`
	EvalFreq       int     `json:"eval_freq"`
	EvalBatches    int     `json:"eval_batches"`
	TrustFreq      int     `json:"trust_freq"`
	Pretraining    int     `json:"pretraining_rounds"`
	TrustPolicy    string  `json:"trust"`
	GradClip       float64 `json:"grad_clip"`
	LR             float64 `json:"lr"`
	LoRARank       int     `json:"lora_rank"`
	LoRAAlpha      float64 `json:"lora_alpha"`
	LoRADropout    float64 `json:"lora_dropout"`
	Seed           int64   `json:"seed"`
}

// DefaultEvalBatches bounds an evaluation pass when the config leaves it
// unset.
const DefaultEvalBatches = 12

// ExpName derives the experiment name used for the results path.
func (c Config) ExpName() string {
	name := fmt.Sprintf("%s_lr_%g_bs_%dx%d_trust_update_every_%d", c.Model, c.LR, c.BatchSize, c.AccSteps, c.TrustFreq)
	name += fmt.Sprintf("_lora_rank_%d_alpha_%g_dropout_%g", c.LoRARank, c.LoRAAlpha, c.LoRADropout)
	name += fmt.Sprintf("_seed=%d", c.Seed)

	return name
}

// Validate rejects configurations that must fail before any training begins.
func (c Config) Validate() error {
	switch {
	case c.NumClients <= 0:
		return fmt.Errorf("%w: number of clients must be positive", errors.ErrInvalidConfig)
	case c.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive", errors.ErrInvalidConfig)
	case c.AccSteps <= 0:
		return fmt.Errorf("%w: accumulation steps must be positive", errors.ErrInvalidConfig)
	case c.BatchSize <= 0 || c.SequenceLength <= 0:
		return fmt.Errorf("%w: batch size and sequence length must be positive", errors.ErrInvalidConfig)
	case c.EvalFreq <= 0:
		return fmt.Errorf("%w: evaluation frequency must be positive", errors.ErrInvalidConfig)
	case c.TrustFreq <= 0:
		return fmt.Errorf("%w: trust update frequency must be positive", errors.ErrInvalidConfig)
	case c.GradClip < 0:
		return fmt.Errorf("%w: gradient clip bound must not be negative", errors.ErrInvalidConfig)
	}

	return nil
}

// Service runs one full training run to completion.
type Service interface {
	Run(ctx context.Context) (results.Summary, error)
}
