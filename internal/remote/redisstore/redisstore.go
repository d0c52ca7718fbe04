// Package redisstore implements remote.Store on Redis.
//
// Each user's partition is the hash tasks:{uid}, one field per task id holding
// the JSON record. Every write publishes on tasks:{uid}:changed and
// subscribers reload the full hash on each message.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"tasksync/internal/logging"
	"tasksync/internal/remote"
	"tasksync/internal/task"
)

const (
	// maxTxRetries bounds optimistic-lock retries for partial updates.
	maxTxRetries = 5

	// reloadTimeout bounds a partition read shared by several subscribers.
	reloadTimeout = 10 * time.Second
)

// Store is a remote.Store backed by a Redis client.
type Store struct {
	client *redis.Client
	loads  singleflight.Group

	// Logger receives warnings about records that cannot be decoded.
	Logger *slog.Logger

	// beforeLoad runs at the start of each shared reload. Set by tests.
	beforeLoad func(ctx context.Context)
}

var _ remote.Store = (*Store)(nil)

// Connect opens a client from a redis:// URL or a bare host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// New wraps an existing client. The caller owns the client.
func New(client *redis.Client) *Store {
	return &Store{client: client, Logger: logging.Discard()}
}

func partitionKey(uid string) string { return "tasks:" + uid }
func channelName(uid string) string  { return "tasks:" + uid + ":changed" }

// NewKey implements remote.Store. Keys are UUIDv7, so lexical order is
// creation order.
func (s *Store) NewKey(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", task.ErrNotAuthenticated
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Put implements remote.Store. CreatedAt is taken from the server clock.
func (s *Store) Put(ctx context.Context, uid, id string, t task.Task) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	t.CreatedAt = now.UTC()
	data, err := task.Encode(t)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, partitionKey(uid), id, data)
		p.Publish(ctx, channelName(uid), revision())
		return nil
	})
	return err
}

// Update implements remote.Store. Only the record keys present in p are
// rewritten. The read-modify-write runs under WATCH and is retried when
// another writer touches the partition first.
func (s *Store) Update(ctx context.Context, uid, id string, p task.Patch) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	key := partitionKey(uid)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := task.Merge(raw, p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			pipe.Publish(ctx, channelName(uid), revision())
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too much contention", id)
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, uid, id string) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	n, err := s.client.HDel(ctx, partitionKey(uid), id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.client.Publish(ctx, channelName(uid), revision()).Err()
}

// Subscribe implements remote.Store. The channel subscription is confirmed
// before the initial snapshot is read, so no write between the two is lost.
func (s *Store) Subscribe(ctx context.Context, uid string, onSnapshot func([]task.Task), onError func(error)) (remote.Subscription, error) {
	if uid == "" {
		return nil, task.ErrNotAuthenticated
	}

	pubsub := s.client.Subscribe(ctx, channelName(uid))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	snap, err := s.load(ctx, uid)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	if onSnapshot != nil {
		onSnapshot(snap)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				snap, err := s.reload(subCtx, uid, msg.Payload)
				if subCtx.Err() != nil {
					return
				}
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onSnapshot != nil {
					onSnapshot(snap)
				}
			}
		}
	}()

	var once sync.Once
	return remote.SubscriptionFunc(func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}), nil
}

// reload shares one partition read among subscribers woken by the same write.
// The read does not belong to any one caller, so a caller that gives up only
// stops waiting for it.
func (s *Store) reload(ctx context.Context, uid, rev string) ([]task.Task, error) {
	ch := s.loads.DoChan(uid+"@"+rev, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()
		if s.beforeLoad != nil {
			s.beforeLoad(loadCtx)
		}
		return s.load(loadCtx, uid)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]task.Task), nil
	}
}

func (s *Store) load(ctx context.Context, uid string) ([]task.Task, error) {
	fields, err := s.client.HGetAll(ctx, partitionKey(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	records := make(map[string][]byte, len(fields))
	for id, data := range fields {
		records[id] = []byte(data)
	}
	return task.DecodePartition(records, func(id string, err error) {
		s.Logger.Warn("skipping undecodable task", "uid", uid, "task_id", id, "err", err)
	}), nil
}

// revision tags a change notification so concurrent reloads of different
// writes are never merged.
func revision() string {
	return uuid.NewString()
}
