package telemetry

import (
	"context"
	"strconv"

	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type promSink struct {
	evalEvents metrics.Counter

	trainLoss    metrics.Gauge
	valLoss      metrics.Gauge
	valPP        metrics.Gauge
	valAccuracy  metrics.Gauge
	learningRate metrics.Gauge
	gradNorm     metrics.Gauge

	valLossMean     metrics.Gauge
	valPPMean       metrics.Gauge
	valAccuracyMean metrics.Gauge
	trainLossMean   metrics.Gauge
}

// NewPrometheusSink registers per-client gauges and evaluation counters on
// the default Prometheus registry, to be served by the cmd's /metrics
// endpoint.
func NewPrometheusSink(namespace, subsystem string) Sink {
	labels := []string{"client"}

	return &promSink{
		evalEvents: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluation_events_total",
			Help:      "Number of evaluation events per client.",
		}, labels),
		trainLoss: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "train_loss",
			Help:      "Latest training loss per client.",
		}, labels),
		valLoss: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_loss",
			Help:      "Latest validation loss per client.",
		}, labels),
		valPP: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_perplexity",
			Help:      "Latest validation perplexity per client.",
		}, labels),
		valAccuracy: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_accuracy",
			Help:      "Latest validation next-token accuracy per client.",
		}, labels),
		learningRate: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "learning_rate",
			Help:      "Current learning rate per client.",
		}, labels),
		gradNorm: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gradient_norm",
			Help:      "Gradient norm of the last local step per client.",
		}, labels),
		trainLossMean: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "train_loss_mean",
			Help:      "Training loss mean across clients.",
		}, nil),
		valLossMean: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_loss_mean",
			Help:      "Validation loss mean across clients.",
		}, nil),
		valPPMean: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_perplexity_mean",
			Help:      "Validation perplexity mean across clients.",
		}, nil),
		valAccuracyMean: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_accuracy_mean",
			Help:      "Validation accuracy mean across clients.",
		}, nil),
	}
}

func (s *promSink) RecordEval(_ context.Context, ev Event) error {
	client := strconv.Itoa(ev.ClientID)
	s.evalEvents.With("client", client).Add(1)
	s.trainLoss.With("client", client).Set(ev.TrainLoss)
	s.valLoss.With("client", client).Set(ev.ValLoss)
	s.valPP.With("client", client).Set(ev.ValPP)
	s.valAccuracy.With("client", client).Set(ev.ValAccuracy)
	s.learningRate.With("client", client).Set(ev.LearningRate)
	s.gradNorm.With("client", client).Set(ev.GradNorm)

	return nil
}

func (s *promSink) RecordMeans(_ context.Context, m Means) error {
	s.trainLossMean.Set(m.TrainLoss)
	s.valLossMean.Set(m.ValLoss)
	s.valPPMean.Set(m.ValPP)
	s.valAccuracyMean.Set(m.ValAccuracy)

	return nil
}

func (s *promSink) Close(context.Context) error {
	return nil
}
