package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes counter events to Kafka. It is best-effort: with no
// brokers or topic every call is a no-op and write failures are only logged.
type Producer struct {
	writer *kafka.Writer
	topic  string
	now    func() time.Time
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{now: time.Now}
	}
	return &Producer{
		topic: topic,
		now:   time.Now,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Printf("kafka: write %d order events: %v", len(messages), err)
				}
			},
		},
	}
}

func (p *Producer) Enabled() bool {
	return p.writer != nil
}

func (p *Producer) Publish(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg, err := buildMessage(event, payload, p.now())
	if err != nil {
		log.Printf("kafka: marshal %s: %v", event, err)
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("kafka: write %s: %v", event, err)
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// buildMessage keys messages by order id so one order's events stay ordered
// within a partition.
func buildMessage(event string, payload map[string]interface{}, at time.Time) (kafka.Message, error) {
	body := map[string]interface{}{
		"event":       event,
		"occurred_at": at.UTC(),
	}
	for k, v := range payload {
		body[k] = v
	}
	value, err := json.Marshal(body)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{Value: value}
	if orderID, ok := payload["order_id"]; ok {
		msg.Key = []byte(fmt.Sprint(orderID))
	}
	return msg, nil
}
