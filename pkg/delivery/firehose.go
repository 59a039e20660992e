package delivery

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/aminrj/storedesk/pkg/model"
)

// Publisher receives a copy of everything the coordinator persists or
// broadcasts, for out-of-process consumers: the durable notification store,
// back-office analytics. Publishing is best-effort and never gates delivery.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) error
	PublishNotification(ctx context.Context, n model.Notification) error
}

type firehoseRecord struct {
	Type         string              `json:"type"`
	Message      *model.Message      `json:"message,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
}

// KafkaPublisher writes firehose records to a single topic, keyed by
// conversation (messages) or notification id so per-key order is preserved.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) PublishMessage(ctx context.Context, msg *model.Message) error {
	val, err := json.Marshal(firehoseRecord{Type: "message", Message: msg})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ConversationID),
		Value: val,
		Time:  msg.CreatedAt,
	})
}

func (p *KafkaPublisher) PublishNotification(ctx context.Context, n model.Notification) error {
	val, err := json.Marshal(firehoseRecord{Type: "notification", Notification: &n})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.ID),
		Value: val,
		Time:  n.CreatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
