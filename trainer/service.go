package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/fan1dy/personalized-llms-colm/pkg/backend"
	"github.com/fan1dy/personalized-llms-colm/pkg/checkpoint"
	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
	"github.com/fan1dy/personalized-llms-colm/pkg/eval"
	"github.com/fan1dy/personalized-llms-colm/pkg/results"
	"github.com/fan1dy/personalized-llms-colm/pkg/telemetry"
	"github.com/fan1dy/personalized-llms-colm/pkg/trust"
)

type service struct {
	clients []*Client
	policy  trust.Policy
	backend backend.Backend
	sink    telemetry.Sink
	ckpt    checkpoint.Store
	cfg     Config
	logger  *slog.Logger

	// aggRNG drives reference-batch sampling during aggregation, separate
	// from the clients' training streams so aggregation cadence does not
	// perturb local sampling.
	aggRNG *rand.Rand
}

func NewService(clients []*Client, policy trust.Policy, b backend.Backend, sink telemetry.Sink,
	ckpt checkpoint.Store, cfg Config, logger *slog.Logger,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(clients) != cfg.NumClients {
		return nil, fmt.Errorf("%w: %d clients configured but %d provided", errors.ErrInvalidConfig, cfg.NumClients, len(clients))
	}
	for i, c := range clients {
		if c.ID != i {
			return nil, fmt.Errorf("%w: client at position %d has ID %d", errors.ErrInvalidConfig, i, c.ID)
		}
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: no trust policy", errors.ErrInvalidConfig)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: no execution backend", errors.ErrInvalidConfig)
	}
	if cfg.EvalBatches <= 0 {
		cfg.EvalBatches = DefaultEvalBatches
	}
	if sink == nil {
		sink = telemetry.NewNoopSink()
	}
	if ckpt == nil {
		ckpt = checkpoint.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		clients: clients,
		policy:  policy,
		backend: b,
		sink:    sink,
		ckpt:    ckpt,
		cfg:     cfg,
		logger:  logger,
		aggRNG:  rand.New(rand.NewSource(cfg.Seed + 1)),
	}, nil
}

// lastIteration is the global round counter: the last client's iteration
// count, which under the lockstep invariant equals every client's count.
func (svc *service) lastIteration() int {
	return svc.clients[len(svc.clients)-1].Iteration
}

// evalRNG derives a fresh stream for one evaluation event. Evaluation never
// draws from a client's training stream, so the evaluation cadence cannot
// change the training batch sequence, and repeating an evaluation at the
// same iteration reproduces its draws.
func evalRNG(seed int64, clientID, iteration int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(clientID)<<32 + int64(iteration)))
}

// checkLockstep enforces the invariant that no client races ahead of or
// falls behind another across a round.
func (svc *service) checkLockstep() error {
	want := svc.clients[0].Iteration
	for _, c := range svc.clients[1:] {
		if c.Iteration != want {
			return fmt.Errorf("clients out of lockstep: client %d at iteration %d, client %d at %d",
				svc.clients[0].ID, want, c.ID, c.Iteration)
		}
	}

	return nil
}

func (svc *service) Run(ctx context.Context) (results.Summary, error) {
	cfg := svc.cfg
	summary := results.NewSummary(len(svc.clients))
	summary.Args = cfg

	substepsPerEpoch := make([]int, len(svc.clients))
	for i, c := range svc.clients {
		substepsPerEpoch[i] = c.Data.Train.Len() / (cfg.BatchSize * cfg.SequenceLength)
		if substepsPerEpoch[i] < 1 {
			substepsPerEpoch[i] = 1
		}
	}

	lastTrainLoss := make([]float64, len(svc.clients))
	lastGradNorm := make([]float64, len(svc.clients))
	lossScale := 1 / float64(cfg.AccSteps)

	for _, c := range svc.clients {
		c.Model.SetTraining(true)
	}

	for svc.lastIteration() < cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		for _, c := range svc.clients {
			for micro := 0; micro < cfg.AccSteps; micro++ {
				batch, err := c.Data.Train.Sample(c.rng, cfg.SequenceLength, cfg.BatchSize)
				if err != nil {
					return summary, fmt.Errorf("client %d local step: %w", c.ID, err)
				}
				sc := svc.backend.MicrostepContext(micro, cfg.AccSteps)
				loss, err := c.Model.ForwardBackward(batch, lossScale, sc)
				if err != nil {
					return summary, fmt.Errorf("client %d local step at iteration %d: %w", c.ID, c.Iteration, err)
				}
				lastTrainLoss[c.ID] = loss
				c.Substep++
			}

			if cfg.GradClip != 0.0 {
				c.Model.ClipGradNorm(cfg.GradClip)
			}
			lastGradNorm[c.ID] = c.Model.GradNorm()
			c.Optimizer.Step()
			c.Scheduler.Step()
			c.Iteration++
		}

		round := svc.lastIteration()
		if err := svc.checkLockstep(); err != nil {
			return summary, err
		}

		if round%cfg.TrustFreq == 0 && round >= cfg.Pretraining-1 {
			parts := make([]trust.Participant, len(svc.clients))
			for i, c := range svc.clients {
				parts[i] = trust.Participant{Model: c.Model, Ref: c.Data.Ref}
			}
			if err := trust.Aggregate(parts, svc.policy, svc.aggRNG, cfg.SequenceLength, cfg.BatchSize); err != nil {
				return summary, err
			}
			svc.logger.Info("trust aggregation completed",
				slog.Int("round", round),
				slog.String("policy", svc.policy.Name()),
			)
		}

		var (
			evaluated int
			means     telemetry.Means
		)
		for _, c := range svc.clients {
			c.Model.ZeroGrads()

			if c.Iteration%cfg.EvalFreq != 0 && c.Iteration != cfg.Iterations {
				continue
			}
			if !svc.backend.IsMaster() {
				continue
			}

			res, err := eval.Evaluate(c.Model, c.Data.Val, evalRNG(cfg.Seed, c.ID, c.Iteration), cfg.SequenceLength, cfg.BatchSize, cfg.EvalBatches)
			if err != nil {
				return summary, fmt.Errorf("evaluating client %d: %w", c.ID, err)
			}
			if res.Loss < c.BestValLoss {
				c.BestValLoss = res.Loss
			}

			summary.Append(c.ID, lastTrainLoss[c.ID], res.Loss, res.Perplexity, res.Accuracy)

			ev := telemetry.Event{
				Round:        round,
				ClientID:     c.ID,
				Iteration:    c.Iteration,
				Epoch:        c.Substep / substepsPerEpoch[c.ID],
				TrainLoss:    lastTrainLoss[c.ID],
				ValLoss:      res.Loss,
				ValPP:        res.Perplexity,
				ValAccuracy:  res.Accuracy,
				LearningRate: c.Scheduler.LastLR(),
				GradNorm:     lastGradNorm[c.ID],
			}
			if err := svc.sink.RecordEval(ctx, ev); err != nil {
				return summary, fmt.Errorf("recording evaluation for client %d: %w", c.ID, err)
			}

			means.TrainLoss += ev.TrainLoss
			means.ValLoss += ev.ValLoss
			means.ValPP += ev.ValPP
			means.ValAccuracy += ev.ValAccuracy
			evaluated++
		}

		if evaluated > 0 {
			n := float64(evaluated)
			means.Round = round
			means.TrainLoss /= n
			means.ValLoss /= n
			means.ValPP /= n
			means.ValAccuracy /= n
			if err := svc.sink.RecordMeans(ctx, means); err != nil {
				return summary, fmt.Errorf("recording evaluation means: %w", err)
			}

			for _, c := range svc.clients {
				if err := svc.ckpt.Save(ctx, c.ID, round, c.Model.TrainableParams()); err != nil {
					return summary, fmt.Errorf("checkpointing client %d: %w", c.ID, err)
				}
			}
		}
	}

	return summary, nil
}
