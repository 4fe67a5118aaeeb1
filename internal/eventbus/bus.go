// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mapasync/internal/config"
	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Message metadata keys.
const (
	MetadataInstanceID = "instance_id"
	MetadataConnID     = "conn_id"
	MetadataEventType  = "event_type"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

const (
	memoryBufferSize = 256
	closeTimeout     = 5 * time.Second
)

// Envelope is a marker event together with where it came from.
type Envelope struct {
	Event      models.Event
	InstanceID string
	ConnID     string
}

// Bus publishes and subscribes marker events on a single topic.
type Bus struct {
	backend    string
	topic      string
	instanceID string

	publisher  message.Publisher
	subscriber message.Subscriber
	closeFn    func() error

	breaker *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// New opens a bus for cfg. The nats backend connects to cfg.NATSURL, so an
// embedded server must be started first and its ClientURL copied there.
func New(cfg config.BusConfig) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("eventbus"))

	switch cfg.Backend {
	case "", BackendMemory:
		// Publish waits for the subscriber ack so one sender's events keep
		// their order. Subscribe acks before forwarding.
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            memoryBufferSize,
			BlockPublishUntilSubscriberAck: true,
		}, logger)
		return newBus(cfg, BackendMemory, ch, ch, ch.Close), nil

	case BackendNATS:
		return newNATSBus(cfg, logger)

	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Backend)
	}
}

func newNATSBus(cfg config.BusConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("mapasync-" + cfg.InstanceID),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	// No queue group: every instance must see every event.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		SubscribersCount: 1,
		CloseTimeout:     closeTimeout,
		AckWaitTimeout:   closeTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	closeFn := func() error {
		return errors.Join(pub.Close(), sub.Close())
	}
	return newBus(cfg, BackendNATS, pub, sub, closeFn), nil
}

func newBus(cfg config.BusConfig, backend string, pub message.Publisher, sub message.Subscriber, closeFn func() error) *Bus {
	return &Bus{
		backend:    backend,
		topic:      cfg.Topic,
		instanceID: cfg.InstanceID,
		publisher:  pub,
		subscriber: sub,
		closeFn:    closeFn,
		breaker:    newBreaker("eventbus-"+backend, cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

// newBreaker builds the publish circuit breaker.
func newBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[struct{}] {
	if failures == 0 {
		failures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.RecordCircuitTransition(name, from.String(), to.String())
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[struct{}](settings)
}

// Backend returns the backend name.
func (b *Bus) Backend() string {
	return b.backend
}

// Topic returns the topic events are published on.
func (b *Bus) Topic() string {
	return b.topic
}

// InstanceID returns the id stamped on published messages.
func (b *Bus) InstanceID() string {
	return b.instanceID
}

// BreakerState returns the publish breaker state: closed, half-open or open.
func (b *Bus) BreakerState() string {
	return b.breaker.State().String()
}

// Publish sends ev on the bus, tagged with this instance and connID.
func (b *Bus) Publish(ctx context.Context, connID string, ev models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataInstanceID, b.instanceID)
	msg.Metadata.Set(MetadataConnID, connID)
	msg.Metadata.Set(MetadataEventType, ev.Type)
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.publisher.Publish(b.topic, msg)
	})
	metrics.RecordBusPublish(err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe streams envelopes from the topic until ctx is done or the bus
// is closed. Envelopes arrive in publish order. Messages that cannot be
// decoded are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	out := make(chan Envelope, memoryBufferSize)
	go func() {
		defer close(out)
		for msg := range messages {
			env, err := decode(msg)
			msg.Ack()
			if err != nil {
				metrics.RecordEventDropped("invalid")
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable bus message")
				continue
			}
			metrics.BusMessagesConsumed.Inc()

			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decode(msg *message.Message) (Envelope, error) {
	ev, err := models.UnmarshalEvent(msg.Payload)
	if err != nil {
		return Envelope{}, err
	}
	if ev.Type == "" {
		return Envelope{}, errors.New("missing event type")
	}
	return Envelope{
		Event:      ev,
		InstanceID: msg.Metadata.Get(MetadataInstanceID),
		ConnID:     msg.Metadata.Get(MetadataConnID),
	}, nil
}

// Close shuts down the publisher and subscriber. Open subscriptions end.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.closeFn()
}
