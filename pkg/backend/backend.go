// Package backend abstracts single-process vs. multi-process execution. The
// orchestrator treats a backend purely as a capability provider and works
// the same whether it represents one process or many.
package backend

import (
	"fmt"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

type Backend interface {
	// TransformModel wraps a model for this execution mode (e.g. gradient
	// synchronization across processes). The single-node backend returns the
	// model unchanged.
	TransformModel(m model.Model) model.Model

	// RawModel unwraps whatever TransformModel produced.
	RawModel(m model.Model) model.Model

	// MicrostepContext returns the step context for one microstep of a
	// gradient accumulation window. SyncGradients is set only on the last
	// microstep so intermediate passes skip redundant communication.
	MicrostepContext(microstep, accumulationSteps int) model.StepContext

	// TranslateParamName maps a model parameter name to the per-node names
	// a sharded model exposes for it.
	TranslateParamName(name string) []string

	IsMaster() bool
	WorldSize() int
	Finalize()
}

// New builds a backend by name. An unknown backend is a fatal configuration
// error.
func New(name string) (Backend, error) {
	switch name {
	case "", "single":
		return NewSingleNode(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, name)
	}
}
