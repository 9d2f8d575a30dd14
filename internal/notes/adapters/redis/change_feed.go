// Package redis реализует канал изменений заметок поверх Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/realtime"
	"opennotes/pkg/logger"
)

// Константы для логирования.
const (
	LogPublished       = "change event published"
	LogSubscribed      = "subscribed to changes channel"
	LogUnsubscribed    = "unsubscribed from changes channel"
	LogDroppedMessage  = "dropping malformed change message"
	ErrEncodeEvent     = "failed to encode change event"
	ErrPublishEvent    = "failed to publish change event"
	ErrSubscribe       = "failed to subscribe to changes channel"
	ErrCloseSubscriber = "failed to close changes subscription"
)

const eventBuffer = 64

// ChangeFeed публикует события в канал Redis и подписывается на него.
type ChangeFeed struct {
	client  *redis.Client
	channel string
}

// NewChangeFeed создает канал изменений с указанным именем.
func NewChangeFeed(client *redis.Client, channel string) *ChangeFeed {
	return &ChangeFeed{client: client, channel: channel}
}

// Channel возвращает имя канала.
func (f *ChangeFeed) Channel() string {
	return f.channel
}

// Publish отправляет событие всем подписчикам канала.
func (f *ChangeFeed) Publish(ctx context.Context, event entities.ChangeEvent) error {
	log := logger.Log(ctx).With(
		zap.String("method", "ChangeFeed.Publish"),
		zap.String("event_type", string(event.EventType)),
		zap.String("noteID", event.Record.ID),
	)

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error(ctx, ErrEncodeEvent, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrEncodeEvent, err)
	}

	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		log.Error(ctx, ErrPublishEvent, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrPublishEvent, err)
	}

	log.Debug(ctx, LogPublished)
	return nil
}

// Subscribe подписывается на канал и ждет подтверждения от Redis,
// поэтому события, опубликованные после возврата, не теряются.
func (f *ChangeFeed) Subscribe(ctx context.Context) (realtime.Subscription, error) {
	log := logger.Log(ctx).With(zap.String("method", "ChangeFeed.Subscribe"), zap.String("channel", f.channel))

	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		log.Error(ctx, ErrSubscribe, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrSubscribe, err)
	}

	sub := &subscription{
		pubsub: ps,
		events: make(chan entities.ChangeEvent, eventBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go sub.pump(context.WithoutCancel(ctx))

	log.Info(ctx, LogSubscribed)
	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	events chan entities.ChangeEvent
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *subscription) Events() <-chan entities.ChangeEvent {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.stop)
		if err := s.pubsub.Close(); err != nil {
			s.err = fmt.Errorf("%s: %w", ErrCloseSubscriber, err)
		}
		<-s.done
	})
	return s.err
}

func (s *subscription) pump(ctx context.Context) {
	log := logger.Log(ctx).With(zap.String("method", "subscription.pump"))
	defer close(s.done)
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		var event entities.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn(ctx, LogDroppedMessage, zap.Error(err))
			continue
		}
		if err := event.Validate(); err != nil {
			log.Warn(ctx, LogDroppedMessage, zap.Error(err))
			continue
		}
		select {
		case s.events <- event:
		case <-s.stop:
			return
		}
	}

	log.Info(ctx, LogUnsubscribed)
}
