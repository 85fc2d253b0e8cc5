package telemetry

import (
	"context"
	"fmt"

	"github.com/fan1dy/personalized-llms-colm/pkg/mqtt"
)

type mqttSink struct {
	publisher mqtt.Publisher
	topicBase string
}

// NewMQTTSink publishes evaluation events as JSON under
// <topicBase>/clients/<id>/eval and means under <topicBase>/means.
func NewMQTTSink(publisher mqtt.Publisher, topicBase string) Sink {
	return &mqttSink{
		publisher: publisher,
		topicBase: topicBase,
	}
}

func (s *mqttSink) RecordEval(ctx context.Context, ev Event) error {
	topic := fmt.Sprintf("%s/clients/%d/eval", s.topicBase, ev.ClientID)

	return s.publisher.Publish(ctx, topic, ev)
}

func (s *mqttSink) RecordMeans(ctx context.Context, m Means) error {
	return s.publisher.Publish(ctx, s.topicBase+"/means", m)
}

func (s *mqttSink) Close(ctx context.Context) error {
	return s.publisher.Disconnect(ctx)
}
