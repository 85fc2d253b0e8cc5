package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/fan1dy/personalized-llms-colm/pkg/results"
	"github.com/fan1dy/personalized-llms-colm/trainer"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    trainer.Service
}

func Logging(logger *slog.Logger, svc trainer.Service) trainer.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Run(ctx context.Context) (summary results.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Training run failed", args...)

			return
		}
		lm.logger.Info("Training run completed successfully", args...)
	}(time.Now())

	return lm.svc.Run(ctx)
}
