package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNotificationChannel is the redis channel goal lifecycle events
// are published on.
const DefaultNotificationChannel = "goals.lifecycle"

// GoalStatusNotification is the wire shape of a lifecycle event.
type GoalStatusNotification struct {
	GoalID string `json:"goal_id"`
	Status string `json:"status"`
}

// Notifier publishes goal lifecycle events so other processes can react
// to completion changes.
type Notifier struct {
	rdb     *redis.Client
	channel string
}

// NewNotifier connects a notifier to redis at addr.
func NewNotifier(addr, channel string) (*Notifier, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultNotificationChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Notifier{rdb: rdb, channel: channel}, nil
}

// Publish emits a lifecycle event for the goal.
func (n *Notifier) Publish(ctx context.Context, notification GoalStatusNotification) error {
	raw, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.rdb.Publish(ctx, n.channel, raw).Err()
}

// Close releases the redis connection.
func (n *Notifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}

// Listen subscribes to lifecycle events and invokes onEvent for each
// decoded notification until ctx is cancelled. Malformed payloads are
// logged and skipped.
func (n *Notifier) Listen(ctx context.Context, onEvent func(GoalStatusNotification)) error {
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var notification GoalStatusNotification
				if err := json.Unmarshal([]byte(m.Payload), &notification); err != nil {
					log.Printf("skipping malformed lifecycle payload: %v", err)
					continue
				}
				onEvent(notification)
			}
		}
	}()
	return nil
}
