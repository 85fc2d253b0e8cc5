package optim

import (
	"fmt"
	"math"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

// One-cycle shape constants matching the runs this trainer reproduces:
// initial LR is maxLR/divFactor and the final LR is initialLR/finalDivFactor.
const (
	divFactor      = 1e2
	finalDivFactor = 0.05
)

type Scheduler interface {
	// Step advances the schedule by one optimizer step.
	Step()
	LastLR() float64
}

// NewScheduler builds a schedule by name: "cos" and "linear" select the
// one-cycle anneal style, "none" keeps the optimizer's LR constant. An
// unknown name is a fatal configuration error raised before training starts.
func NewScheduler(name string, opt Optimizer, maxLR float64, totalSteps int, warmupPercent float64) (Scheduler, error) {
	switch name {
	case "none":
		return &constant{opt: opt}, nil
	case "cos", "linear":
		warmup := int(math.Round(warmupPercent * float64(totalSteps)))
		if warmup < 1 {
			warmup = 1
		}
		s := &oneCycle{
			opt:       opt,
			cosine:    name == "cos",
			maxLR:     maxLR,
			initialLR: maxLR / divFactor,
			finalLR:   maxLR / divFactor / finalDivFactor,
			warmup:    warmup,
			total:     totalSteps,
		}
		opt.SetLR(s.initialLR)

		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownScheduler, name)
	}
}

type constant struct {
	opt Optimizer
}

func (s *constant) Step() {}

func (s *constant) LastLR() float64 {
	return s.opt.LR()
}

// oneCycle warms the LR from initialLR up to maxLR over the warmup steps,
// then anneals down to finalLR over the remainder of the run.
type oneCycle struct {
	opt    Optimizer
	cosine bool

	maxLR     float64
	initialLR float64
	finalLR   float64
	warmup    int
	total     int

	step int
}

func (s *oneCycle) Step() {
	s.step++
	s.opt.SetLR(s.lrAt(s.step))
}

func (s *oneCycle) LastLR() float64 {
	return s.opt.LR()
}

func (s *oneCycle) lrAt(step int) float64 {
	if step >= s.total {
		return s.finalLR
	}
	if step <= s.warmup {
		return s.interp(s.initialLR, s.maxLR, float64(step)/float64(s.warmup))
	}

	frac := float64(step-s.warmup) / float64(s.total-s.warmup)

	return s.interp(s.maxLR, s.finalLR, frac)
}

func (s *oneCycle) interp(start, end, frac float64) float64 {
	if s.cosine {
		return end + (start-end)*(1+math.Cos(math.Pi*frac))/2
	}

	return start + (end-start)*frac
}
