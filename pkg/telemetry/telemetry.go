// Package telemetry fans per-client evaluation metrics out to external
// sinks: structured logs, Prometheus, an MQTT broker, or the evaluation
// history database.
package telemetry

import "context"

// Event is one client's metrics at one evaluation boundary.
type Event struct {
	Round        int     `json:"round"`
	ClientID     int     `json:"client_id"`
	Iteration    int     `json:"iteration"`
	Epoch        int     `json:"epoch"`
	TrainLoss    float64 `json:"train_loss"`
	ValLoss      float64 `json:"val_loss"`
	ValPP        float64 `json:"val_pp"`
	ValAccuracy  float64 `json:"val_acc"`
	LearningRate float64 `json:"lr"`
	GradNorm     float64 `json:"grad_norm"`
}

// Means are the cross-client metric means at one evaluation boundary.
type Means struct {
	Round       int     `json:"round"`
	TrainLoss   float64 `json:"train_loss_mean"`
	ValLoss     float64 `json:"val_loss_mean"`
	ValPP       float64 `json:"val_pp_mean"`
	ValAccuracy float64 `json:"val_acc_mean"`
}

type Sink interface {
	RecordEval(ctx context.Context, ev Event) error
	RecordMeans(ctx context.Context, m Means) error
	Close(ctx context.Context) error
}

type noopSink struct{}

func NewNoopSink() Sink {
	return &noopSink{}
}

func (s *noopSink) RecordEval(context.Context, Event) error  { return nil }
func (s *noopSink) RecordMeans(context.Context, Means) error { return nil }
func (s *noopSink) Close(context.Context) error              { return nil }

// multiSink forwards every record to all sinks, stopping on the first error.
type multiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (s *multiSink) RecordEval(ctx context.Context, ev Event) error {
	for _, sink := range s.sinks {
		if err := sink.RecordEval(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}

func (s *multiSink) RecordMeans(ctx context.Context, m Means) error {
	for _, sink := range s.sinks {
		if err := sink.RecordMeans(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

func (s *multiSink) Close(ctx context.Context) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
