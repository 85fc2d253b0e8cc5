package backend

import "github.com/fan1dy/personalized-llms-colm/model"

// SingleNode runs everything in one process with full-precision compute.
type SingleNode struct{}

func NewSingleNode() *SingleNode {
	return &SingleNode{}
}

func (b *SingleNode) TransformModel(m model.Model) model.Model {
	return m
}

func (b *SingleNode) RawModel(m model.Model) model.Model {
	return m
}

func (b *SingleNode) MicrostepContext(microstep, accumulationSteps int) model.StepContext {
	return model.StepContext{
		Precision:     model.PrecisionFull,
		SyncGradients: microstep == accumulationSteps-1,
	}
}

func (b *SingleNode) TranslateParamName(name string) []string {
	return []string{name}
}

func (b *SingleNode) IsMaster() bool {
	return true
}

func (b *SingleNode) WorldSize() int {
	return 1
}

func (b *SingleNode) Finalize() {}
