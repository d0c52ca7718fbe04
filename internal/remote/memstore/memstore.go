// Package memstore implements remote.Store in process memory.
// It backs tests and the "memory" backend; data lives as long as the process.
package memstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasksync/internal/logging"
	"tasksync/internal/remote"
	"tasksync/internal/task"
)

// Store is an in-memory remote.Store. Records are kept in wire form so the
// codec is exercised the same way as with a real backend.
//
// Snapshots are delivered synchronously by the writing goroutine, after the
// write and before the write call returns.
type Store struct {
	mu    sync.Mutex
	parts map[string]map[string][]byte // uid -> id -> record
	subs  map[string]map[int]*subscriber
	seq   int

	// deliverMu serializes snapshot delivery so subscribers observe writes in order.
	deliverMu sync.Mutex

	// Now is the store clock used for CreatedAt.
	Now func() time.Time

	// Logger receives warnings about records that cannot be decoded.
	Logger *slog.Logger

	// Error injection for testing
	NewKeyErr    error
	PutErr       error
	UpdateErr    error
	DeleteErr    error
	SubscribeErr error
}

type subscriber struct {
	mu         sync.Mutex
	cancelled  bool
	onSnapshot func([]task.Task)
}

var _ remote.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		parts:  make(map[string]map[string][]byte),
		subs:   make(map[string]map[int]*subscriber),
		Now:    time.Now,
		Logger: logging.Discard(),
	}
}

// NewKey implements remote.Store.
func (s *Store) NewKey(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", task.ErrNotAuthenticated
	}
	if s.NewKeyErr != nil {
		return "", s.NewKeyErr
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Put implements remote.Store.
func (s *Store) Put(ctx context.Context, uid, id string, t task.Task) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	if s.PutErr != nil {
		return s.PutErr
	}
	t.CreatedAt = s.Now().UTC()
	data, err := task.Encode(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.parts[uid] == nil {
		s.parts[uid] = make(map[string][]byte)
	}
	s.parts[uid][id] = data
	s.mu.Unlock()

	s.publish(uid)
	return nil
}

// Update implements remote.Store. Only the keys present in p are rewritten.
func (s *Store) Update(ctx context.Context, uid, id string, p task.Patch) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	s.mu.Lock()
	data, ok := s.parts[uid][id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	updated, err := task.Merge(data, p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.parts[uid][id] = updated
	s.mu.Unlock()

	s.publish(uid)
	return nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, uid, id string) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	_, ok := s.parts[uid][id]
	delete(s.parts[uid], id)
	s.mu.Unlock()

	if ok {
		s.publish(uid)
	}
	return nil
}

// Subscribe implements remote.Store. The first snapshot is delivered before
// Subscribe returns. Reads from memory cannot fail, so the error callback is
// never called.
func (s *Store) Subscribe(ctx context.Context, uid string, onSnapshot func([]task.Task), _ func(error)) (remote.Subscription, error) {
	if uid == "" {
		return nil, task.ErrNotAuthenticated
	}
	if s.SubscribeErr != nil {
		return nil, s.SubscribeErr
	}

	sub := &subscriber{onSnapshot: onSnapshot}

	s.mu.Lock()
	s.seq++
	key := s.seq
	if s.subs[uid] == nil {
		s.subs[uid] = make(map[int]*subscriber)
	}
	s.subs[uid][key] = sub
	s.mu.Unlock()

	s.deliverMu.Lock()
	sub.deliver(s.snapshot(uid))
	s.deliverMu.Unlock()

	return remote.SubscriptionFunc(func() {
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()

		s.mu.Lock()
		delete(s.subs[uid], key)
		s.mu.Unlock()
	}), nil
}

// Snapshot returns the user's current tasks in key order.
func (s *Store) Snapshot(uid string) []task.Task {
	return s.snapshot(uid)
}

// SetRecord stores data verbatim under uid/id and notifies subscribers.
func (s *Store) SetRecord(uid, id string, data []byte) {
	s.mu.Lock()
	if s.parts[uid] == nil {
		s.parts[uid] = make(map[string][]byte)
	}
	s.parts[uid][id] = append([]byte(nil), data...)
	s.mu.Unlock()

	s.publish(uid)
}

// Record returns the stored wire record of uid/id.
func (s *Store) Record(uid, id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.parts[uid][id]
	return append([]byte(nil), data...), ok
}

// Subscribers returns the number of live subscriptions on a user's partition.
func (s *Store) Subscribers(uid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[uid])
}

// TotalSubscribers returns the number of live subscriptions across all users.
func (s *Store) TotalSubscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.subs {
		n += len(m)
	}
	return n
}

// publish recomputes the snapshot and delivers it to every subscriber of uid.
func (s *Store) publish(uid string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	snap := s.snapshot(uid)

	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs[uid]))
	keys := make([]int, 0, len(s.subs[uid]))
	for k := range s.subs[uid] {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		subs = append(subs, s.subs[uid][k])
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(snap)
	}
}

func (s *Store) snapshot(uid string) []task.Task {
	s.mu.Lock()
	records := make(map[string][]byte, len(s.parts[uid]))
	for id, data := range s.parts[uid] {
		records[id] = data
	}
	s.mu.Unlock()

	return task.DecodePartition(records, func(id string, err error) {
		s.Logger.Warn("skipping undecodable task", "uid", uid, "task_id", id, "err", err)
	})
}

func (sub *subscriber) deliver(snap []task.Task) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.cancelled {
		return
	}
	if sub.onSnapshot != nil {
		sub.onSnapshot(snap)
	}
}
