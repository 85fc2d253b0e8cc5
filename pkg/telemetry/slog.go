package telemetry

import (
	"context"
	"log/slog"
)

type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink logs every evaluation event as a structured line.
func NewSlogSink(logger *slog.Logger) Sink {
	return &slogSink{logger: logger}
}

func (s *slogSink) RecordEval(_ context.Context, ev Event) error {
	s.logger.Info("evaluation completed",
		slog.Int("round", ev.Round),
		slog.Group("client",
			slog.Int("id", ev.ClientID),
			slog.Int("iteration", ev.Iteration),
			slog.Int("epoch", ev.Epoch),
		),
		slog.Float64("train_loss", ev.TrainLoss),
		slog.Float64("val_loss", ev.ValLoss),
		slog.Float64("val_pp", ev.ValPP),
		slog.Float64("val_acc", ev.ValAccuracy),
		slog.Float64("lr", ev.LearningRate),
		slog.Float64("grad_norm", ev.GradNorm),
	)

	return nil
}

func (s *slogSink) RecordMeans(_ context.Context, m Means) error {
	s.logger.Info("evaluation means",
		slog.Int("round", m.Round),
		slog.Float64("train_loss_mean", m.TrainLoss),
		slog.Float64("val_loss_mean", m.ValLoss),
		slog.Float64("val_pp_mean", m.ValPP),
		slog.Float64("val_acc_mean", m.ValAccuracy),
	)

	return nil
}

func (s *slogSink) Close(context.Context) error {
	return nil
}
