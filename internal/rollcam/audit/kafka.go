package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaQueueSize bounds events waiting for the broker.
const kafkaQueueSize = 256

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events as JSON to a Kafka topic, keyed by kind so
// events of one kind stay ordered within a partition. Writes happen on a
// background goroutine; Notify never waits for the broker.
type KafkaNotifier struct {
	writer  MessageWriter
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewKafkaNotifier starts the background writer; call Close to stop it.
func NewKafkaNotifier(w MessageWriter) *KafkaNotifier {
	k := &KafkaNotifier{
		writer:  w,
		timeout: 5 * time.Second,
		queue:   make(chan kafka.Message, kafkaQueueSize),
		done:    make(chan struct{}),
	}
	go k.run()
	return k
}

// Notify queues evt for publishing. When the queue is full, or the notifier
// is closed, the event is dropped with a warning.
func (k *KafkaNotifier) Notify(ctx context.Context, evt Event) {
	evt = evt.fill(ctx)
	value, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("audit kafka: marshal event", "kind", evt.Kind, "err", err)
		return
	}
	msg := kafka.Message{Key: []byte(evt.Kind), Value: value, Time: evt.Timestamp}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		slog.Warn("audit kafka: notifier closed, event dropped", "kind", evt.Kind, "trace_id", evt.TraceID)
		return
	}
	select {
	case k.queue <- msg:
	default:
		slog.Warn("audit kafka: queue full, event dropped", "kind", evt.Kind, "trace_id", evt.TraceID)
	}
}

func (k *KafkaNotifier) run() {
	defer close(k.done)
	for msg := range k.queue {
		ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
		err := k.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			slog.Warn("audit kafka: write failed", "kind", string(msg.Key), "err", err)
			continue
		}
		slog.Debug("audit kafka: event published", "kind", string(msg.Key))
	}
}

// Close stops accepting events, waits up to one write timeout for the queue
// to drain and closes the writer.
func (k *KafkaNotifier) Close() error {
	k.mu.Lock()
	if !k.closed {
		k.closed = true
		close(k.queue)
	}
	k.mu.Unlock()

	select {
	case <-k.done:
	case <-time.After(k.timeout):
		slog.Warn("audit kafka: closing with events still queued", "pending", len(k.queue))
	}
	return k.writer.Close()
}
