package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"nexcart/internal/logging"
	"nexcart/internal/persistence"
	"nexcart/internal/storage/fastkv"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Signal is the cross-process form of a cart change.
type Signal struct {
	Origin    string `json:"origin"`
	Instance  string `json:"instance"`
	Timestamp int64  `json:"timestamp"`
}

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(topic string, key string, event any) error
}

// Relay publishes local signals to a topic and turns signals from other
// instances into storage events on the local registry.
type Relay struct {
	producer EventPublisher
	registry *fastkv.Registry
	topic    string
	instance string
	logger   *logrus.Entry
	recorder Recorder

	mu     sync.RWMutex
	closed bool
	queue  chan Signal
	wg     sync.WaitGroup
}

const relayQueueSize = 256

func NewRelay(producer EventPublisher, registry *fastkv.Registry, topic, instance string, logger *logrus.Entry, recorder Recorder) *Relay {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Relay{
		producer: producer,
		registry: registry,
		topic:    topic,
		instance: instance,
		logger:   logger,
		recorder: recorder,
		queue:    make(chan Signal, relayQueueSize),
	}
}

// Start runs the publishing loop until Stop.
func (r *Relay) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for sig := range r.queue {
			if err := r.producer.PublishEvent(r.topic, sig.Origin, sig); err != nil {
				r.logger.WithError(err).WithField("origin", sig.Origin).Warn("notify: relay publish failed")
			}
		}
	}()
}

// Publish queues sig without blocking; when the queue is full the signal is dropped.
func (r *Relay) Publish(sig Signal) {
	sig.Instance = r.instance
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- sig:
	default:
		r.logger.WithField("origin", sig.Origin).Warn("notify: relay queue full, dropping signal")
	}
}

// Stop drains queued signals and stops publishing.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// HandleMessage is the consumer callback for the signal topic.
func (r *Relay) HandleMessage(_ context.Context, message *sarama.ConsumerMessage) error {
	var sig Signal
	if err := json.Unmarshal(message.Value, &sig); err != nil {
		return fmt.Errorf("decode cart signal: %w", err)
	}
	if sig.Origin == "" {
		return fmt.Errorf("cart signal without origin")
	}
	if sig.Instance == r.instance {
		return nil
	}

	value := strconv.FormatInt(sig.Timestamp, 10)
	r.registry.Area(sig.Origin).Broadcast(fastkv.Event{
		Key:      persistence.TimestampKey,
		NewValue: &value,
	})
	if r.recorder != nil {
		r.recorder.NotifySignal("remote")
	}
	return nil
}
