// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package notify publishes change events of the generated CRUD routes to Kafka.
package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/logger"
)

// DefaultTopic is the topic used if none is configured
const DefaultTopic = "resource_notification"

// Event is the value of every published message. The message key is the resource.
type Event struct {
	Resource  string          `json:"resource"`
	Operation core.Operation  `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka is a core.Notifier publishing to a Kafka topic. Delivery is best
// effort, failures are logged and never reach the request.
type Kafka struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafka returns a notifier writing asynchronously to topic on brokers
func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	rlog := logger.Default()
	rlog.Infoln("publishing change events to kafka topic", topic)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				rlog.WithError(err).Errorf("Error 4801: cannot publish %d change events", len(messages))
			}
		},
	}
	return &Kafka{writer: writer, now: time.Now}
}

// Notify implements core.Notifier
func (k *Kafka) Notify(resource string, operation core.Operation, payload []byte) {
	value, err := json.Marshal(Event{
		Resource:  resource,
		Operation: operation,
		Payload:   payload,
		Timestamp: k.now().UTC(),
	})
	if err != nil {
		logger.Default().WithError(err).Errorf("Error 4802: cannot marshal change event for %s", resource)
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{Key: []byte(resource), Value: value})
	if err != nil {
		logger.Default().WithError(err).Errorf("Error 4803: cannot publish change event for %s", resource)
	}
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
