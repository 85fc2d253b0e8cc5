package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

type captureSink struct {
	events []Event
	means  []Means
	closed bool
	err    error
}

func (s *captureSink) RecordEval(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)

	return nil
}

func (s *captureSink) RecordMeans(_ context.Context, m Means) error {
	if s.err != nil {
		return s.err
	}
	s.means = append(s.means, m)

	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.closed = true

	return s.err
}

func TestMultiSinkFansOut(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	sink := NewMultiSink(first, second)
	ctx := context.Background()

	ev := Event{Round: 2, ClientID: 1, ValLoss: 1.5}
	require.NoError(t, sink.RecordEval(ctx, ev))
	require.NoError(t, sink.RecordMeans(ctx, Means{Round: 2, ValLoss: 1.5}))
	require.NoError(t, sink.Close(ctx))

	for _, s := range []*captureSink{first, second} {
		require.Len(t, s.events, 1)
		assert.Equal(t, ev, s.events[0])
		require.Len(t, s.means, 1)
		assert.True(t, s.closed)
	}
}

func TestMultiSinkStopsOnFirstError(t *testing.T) {
	failing := &captureSink{err: errors.ErrInvalidConfig}
	last := &captureSink{}
	sink := NewMultiSink(failing, last)

	err := sink.RecordEval(context.Background(), Event{})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Empty(t, last.events, "sinks after the failing one must not record")
}

func TestMultiSinkCloseClosesAll(t *testing.T) {
	failing := &captureSink{err: errors.ErrInvalidConfig}
	last := &captureSink{}
	sink := NewMultiSink(failing, last)

	err := sink.Close(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.True(t, last.closed, "close must reach every sink even after an error")
}

func TestNoopSink(t *testing.T) {
	sink := NewNoopSink()
	ctx := context.Background()

	assert.NoError(t, sink.RecordEval(ctx, Event{}))
	assert.NoError(t, sink.RecordMeans(ctx, Means{}))
	assert.NoError(t, sink.Close(ctx))
}
