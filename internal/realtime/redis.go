package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultRedisChannel is the pub/sub channel shared by every instance.
const DefaultRedisChannel = "bitescout:notifications"

// backplaneMessage is the wire format on the redis channel. Delivered marks a
// message its origin already handed to its own hub.
type backplaneMessage struct {
	Origin       string              `json:"origin"`
	Delivered    bool                `json:"delivered,omitempty"`
	Notification models.Notification `json:"notification"`
}

// RedisBackplane fans notifications out across server instances. While the
// subscription is live, every instance, the origin included, delivers what it
// receives to its local hub. While it is down, Publish delivers locally and Run
// keeps resubscribing.
type RedisBackplane struct {
	client     redis.UniversalClient
	channel    string
	hub        *Hub
	origin     string
	subscribed atomic.Bool

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewRedisBackplane wires a redis client to the local hub.
func NewRedisBackplane(client redis.UniversalClient, channel string, hub *Hub) *RedisBackplane {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBackplane{
		client:       client,
		channel:      channel,
		hub:          hub,
		origin:       models.NewID(),
		retryInitial: time.Second,
		retryMax:     30 * time.Second,
	}
}

// Subscribed reports whether this instance currently receives from the channel.
func (b *RedisBackplane) Subscribed() bool {
	return b.subscribed.Load()
}

// Publish sends n to every instance. Without a live subscription the
// notification is delivered locally first. If redis is unreachable the error
// is returned for logging.
func (b *RedisBackplane) Publish(ctx context.Context, n models.Notification) error {
	local := !b.subscribed.Load()
	if local {
		b.deliver(n)
	}
	payload, errMarshal := json.Marshal(backplaneMessage{Origin: b.origin, Delivered: local, Notification: n})
	if errMarshal != nil {
		return fmt.Errorf("realtime: encode backplane message: %w", errMarshal)
	}
	if errPublish := b.client.Publish(ctx, b.channel, payload).Err(); errPublish != nil {
		if !local {
			b.deliver(n)
		}
		return fmt.Errorf("realtime: redis publish: %w", errPublish)
	}
	return nil
}

// Run subscribes to the channel and delivers messages until ctx is done. A
// failed or dropped subscription is retried with exponential backoff.
func (b *RedisBackplane) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.retryInitial
	policy.MaxInterval = b.retryMax
	policy.Reset()

	for {
		errSub := b.subscribe(ctx, policy)
		if ctx.Err() != nil {
			return nil
		}
		wait := policy.NextBackOff()
		log.WithError(errSub).Warnf("realtime: redis backplane unsubscribed, retrying in %s", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (b *RedisBackplane) subscribe(ctx context.Context, policy *backoff.ExponentialBackOff) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		b.subscribed.Store(false)
		_ = sub.Close()
	}()
	if _, errReceive := sub.Receive(ctx); errReceive != nil {
		return fmt.Errorf("realtime: redis subscribe: %w", errReceive)
	}
	b.subscribed.Store(true)
	policy.Reset()
	log.Infof("realtime: redis backplane subscribed (channel=%s)", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("realtime: redis subscription closed")
			}
			decoded, errDecode := decodeBackplaneMessage(msg.Payload)
			if errDecode != nil {
				log.WithError(errDecode).Warn("realtime: dropping malformed backplane message")
				continue
			}
			if decoded.Origin == b.origin && decoded.Delivered {
				continue
			}
			b.deliver(decoded.Notification)
		}
	}
}

func (b *RedisBackplane) deliver(n models.Notification) {
	b.hub.Deliver(n.UserID, Event{Event: EventNotification, Data: n})
}

func decodeBackplaneMessage(payload string) (backplaneMessage, error) {
	var msg backplaneMessage
	if errUnmarshal := json.Unmarshal([]byte(payload), &msg); errUnmarshal != nil {
		return backplaneMessage{}, fmt.Errorf("decode backplane message: %w", errUnmarshal)
	}
	if strings.TrimSpace(msg.Notification.UserID) == "" {
		return backplaneMessage{}, fmt.Errorf("decode backplane message: missing userId")
	}
	return msg, nil
}
