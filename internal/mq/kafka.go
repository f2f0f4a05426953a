package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/esp-pix/authserver/config"
	"github.com/segmentio/kafka-go"
)

const headerMessageID = "message_id"

// writerBatchTimeout keeps a single synchronous write from waiting on
// kafka-go's default one second batch window.
const writerBatchTimeout = 5 * time.Millisecond

// KafkaClient publishes to and consumes from Kafka topics, one topic per channel.
type KafkaClient struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "esppix"
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: groupID,
		writers: map[string]*kafka.Writer{},
	}, nil
}

// Publish writes a message keyed by its generated id.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := newMessageID()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: headerMessageID, Value: []byte(messageID)})
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := k.writer(channel).WriteMessages(ctx, kafka.Message{
		Key:     []byte(attrs[AttrType]),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes the topic as part of the configured consumer group.
// Offsets are committed after each successful handler call; a failing
// message is skipped, not redelivered.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		GroupID: k.groupID,
		Topic:   channel,
	})
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		attrs := make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			attrs[h.Key] = string(h.Value)
		}
		message := Message{
			ID:         attrs[headerMessageID],
			Data:       m.Value,
			Attributes: attrs,
		}
		delete(message.Attributes, headerMessageID)

		if err := handler(ctx, message); err != nil {
			continue
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			return err
		}
	}
}

// Close flushes and closes every topic writer.
func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var errs []error
	for name, w := range k.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(k.writers, name)
	}
	return errors.Join(errs...)
}

func (k *KafkaClient) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           writerBatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w
}
