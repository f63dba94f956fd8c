package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"example.com/activitylog/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one record per event, keyed by activity ID so that all
// changes to one activity stay ordered within a partition.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

var _ domain.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher publishes to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(NewKafkaProducer(brokers), topic)
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{topic: topic, writer: writer}
}

// Publish encodes event and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(PayloadFor(event))
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := kafka.Message{
		Key:   []byte(event.Activity.ID),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderListSize, Value: []byte(strconv.Itoa(event.ListSize))},
		},
	}
	if err := p.writer.WriteMessages(ctx, p.topic, msg); err != nil {
		return errors.Wrapf(err, "publish %s", event.Type)
	}
	return nil
}

// Close releases the underlying writers.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// KafkaProducer lazily manages writers per topic.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := newKafkaWriter(p.brokers, topic)
	p.writers[topic] = writer
	return writer
}

// newKafkaWriter flushes each record almost immediately; publishing is one
// event at a time, so waiting to fill a batch only adds latency.
func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
