package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/pkg/ports"
)

const (
	defaultClaimInterval = 30 * time.Second
	defaultClaimMinIdle  = time.Minute
	readCount            = 10
)

// StreamsEventBus implements EventBus using Redis Streams
type StreamsEventBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	claimInterval time.Duration
	claimMinIdle  time.Duration

	mu      sync.Mutex
	cancels map[string][]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a StreamsEventBus
type Option func(*StreamsEventBus)

// WithClaim sets how often pending entries are reclaimed and how long an
// entry must stay unacknowledged before it is taken over.
func WithClaim(interval, minIdle time.Duration) Option {
	return func(e *StreamsEventBus) {
		e.claimInterval = interval
		e.claimMinIdle = minIdle
	}
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger, opts ...Option) *StreamsEventBus {
	e := &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		claimInterval: defaultClaimInterval,
		claimMinIdle:  defaultClaimMinIdle,
		cancels:       make(map[string][]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	streamKey := getStreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("room_id", event.RoomID),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe joins the consumer group of a topic and delivers new events to
// handler until ctx is done or the topic is unsubscribed. Entries left
// unacknowledged by a failed handler, by this consumer or a dead one, are
// reclaimed and delivered again.
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[topic] = append(e.cancels[topic], cancel)
	e.mu.Unlock()

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.readStream(readCtx, streamKey, handler)
	}()
	go func() {
		defer e.wg.Done()
		e.claimPending(readCtx, streamKey, handler)
	}()

	return nil
}

// readStream reads events from a stream
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    e.consumerGroup,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    readCount,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			e.processBatch(ctx, streamKey, stream.Messages, handler)
		}
	}
}

// claimPending periodically takes over entries that stayed pending longer
// than claimMinIdle and hands them to handler again.
func (e *StreamsEventBus) claimPending(ctx context.Context, streamKey string, handler ports.EventHandler) {
	ticker := time.NewTicker(e.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := "0-0"
		for {
			messages, next, err := e.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   streamKey,
				Group:    e.consumerGroup,
				Consumer: e.consumerName,
				MinIdle:  e.claimMinIdle,
				Start:    start,
				Count:    readCount,
			}).Result()
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, redis.Nil) {
					e.logger.Error("failed to claim pending entries",
						zap.String("stream", streamKey),
						zap.Error(err))
				}
				break
			}

			if len(messages) > 0 {
				e.logger.Info("reclaimed pending entries",
					zap.String("stream", streamKey),
					zap.Int("count", len(messages)))
				e.processBatch(ctx, streamKey, messages, handler)
			}
			if next == "" || next == "0-0" || len(messages) == 0 {
				break
			}
			start = next
		}
	}
}

// processBatch handles the entries of one read concurrently; each entry is
// acknowledged on its own.
func (e *StreamsEventBus) processBatch(ctx context.Context, streamKey string, messages []redis.XMessage, handler ports.EventHandler) {
	var wg sync.WaitGroup
	for _, message := range messages {
		wg.Add(1)
		go func(m redis.XMessage) {
			defer wg.Done()
			e.processMessage(ctx, streamKey, m, handler)
		}(message)
	}
	wg.Wait()
}

// processMessage hands one stream entry to handler and acknowledges it on
// success. Malformed entries are acknowledged so they are not redelivered.
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		e.ack(ctx, streamKey, message.ID)
		return
	}

	var event ports.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		e.ack(ctx, streamKey, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}

	e.ack(ctx, streamKey, message.ID)
}

func (e *StreamsEventBus) ack(ctx context.Context, streamKey, messageID string) {
	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, messageID).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// Unsubscribe stops every reader of a topic. The consumer stays registered
// in the group so pending entries can be claimed later.
func (e *StreamsEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	cancels := e.cancels[topic]
	delete(e.cancels, topic)
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// Close stops all readers and waits for them to return. The Redis client
// is closed by its owner.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	for topic, cancels := range e.cancels {
		for _, cancel := range cancels {
			cancel()
		}
		delete(e.cancels, topic)
	}
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("omokpang:events:%s", topic)
}
