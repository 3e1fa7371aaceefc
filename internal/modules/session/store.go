// README: Session store mirrors snapshots into Redis and fans them out over pub/sub.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix = "lookout:session:%s:snapshot"
	eventsChannelName = "lookout:session:%s:events"
	// Snapshots of abandoned sessions age out on their own.
	DefaultSnapshotTTL = 30 * time.Minute
)

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redis *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Store{redis: redis, ttl: ttl}
}

// Publish stores snap as the latest snapshot of its session and notifies
// subscribers.
func (s *Store) Publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, snapshotKey(snap.ID), payload, s.ttl)
	pipe.Publish(ctx, eventsChannel(snap.ID), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the last stored snapshot of a session.
func (s *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	raw, err := s.redis.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

var _ Discarder = (*Store)(nil)

// Delete drops the stored snapshot of a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, snapshotKey(id)).Err()
}

// Subscribe streams snapshots published for id until ctx ends. The returned
// channel is closed when the subscription is gone. Snapshots are not
// replayed: a subscriber only sees what is published after it joins.
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	sub := s.redis.Subscribe(ctx, eventsChannel(id))
	// Wait for the subscription to be confirmed so nothing published right
	// after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	out := make(chan Snapshot, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					log.Printf("session %s: drop undecodable event: %v", id, err)
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func snapshotKey(id string) string {
	return fmt.Sprintf(snapshotKeyPrefix, id)
}

func eventsChannel(id string) string {
	return fmt.Sprintf(eventsChannelName, id)
}
