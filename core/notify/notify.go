// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notify publishes resource notifications for modifying storage
operations. The Kafka notifier writes one topic per resource; the log notifier
is the default when no brokers are configured. Notification failures are
logged and never surfaced to the HTTP caller.
*/
package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/logger"
)

// Kafka publishes resource notifications to one topic per resource,
// "<prefix>.<resource>", keyed by the resource id.
type Kafka struct {
	writer *kafka.Writer
	prefix string
}

// NewKafka returns a Kafka notifier for the given brokers. Topics are created
// on first use.
func NewKafka(brokers []string, topicPrefix string) *Kafka {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: writer, prefix: topicPrefix}
}

// Notify implements core.Notifier.
func (k *Kafka) Notify(resource string, operation core.Operation, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.prefix + "." + resource,
		Key:   messageKey(resource, payload),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(operation)},
		},
	})
	if err != nil {
		logger.Default().WithError(err).Errorln("could not publish notification for", resource, operation)
	}
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// messageKey keys messages by the row id so all events of one resource row
// land in the same partition.
func messageKey(resource string, payload []byte) []byte {
	var row struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(payload, &row); err == nil && row.ID != nil {
		data, _ := json.Marshal(row.ID)
		return data
	}
	return []byte(resource)
}

// Log is a notifier that merely logs the notification.
type Log struct{}

// Notify implements core.Notifier.
func (Log) Notify(resource string, operation core.Operation, payload []byte) {
	logger.Default().Infoln("notification:", resource, operation, string(payload))
}
