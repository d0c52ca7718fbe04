// Package store holds the in-memory mirror of the signed-in user's tasks.
//
// The mirror only changes through snapshots from the remote store. Mutations
// are sent to the remote store and come back as a new snapshot; nothing is
// applied optimistically.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"tasksync/internal/remote"
	"tasksync/internal/task"
)

// Status is the request status of the store.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// State is a point-in-time view of the store.
// Tasks is shared and must not be modified.
type State struct {
	UID    string
	Tasks  []task.Task
	Status Status
	Error  string
}

// Store mirrors one user's partition of a remote.Store.
type Store struct {
	remote remote.Store
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	version uint64 // bumped whenever state.Tasks is replaced
	gen     uint64 // bumped on every subscribe and unsubscribe
	sub     remote.Subscription
	changed chan struct{}

	pending   view
	completed view

	listeners map[int]func(State)
	order     []int
	next      int

	// emitMu keeps listener notifications in the order the states were produced.
	emitMu sync.Mutex
}

type view struct {
	version uint64
	valid   bool
	tasks   []task.Task
}

// New creates an idle store with no user.
func New(r remote.Store, logger *slog.Logger) *Store {
	return &Store{
		remote:    r,
		logger:    logger,
		state:     State{Tasks: []task.Task{}, Status: StatusIdle},
		changed:   make(chan struct{}),
		listeners: make(map[int]func(State)),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to be called with every new state. Calls are
// serialized. fn must not call methods of the store that change its state.
func (s *Store) OnChange(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	key := s.next
	s.next++
	s.listeners[key] = fn
	s.order = append(s.order, key)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, key)
			s.order = slices.DeleteFunc(s.order, func(k int) bool { return k == key })
			s.mu.Unlock()
		})
	}
}

// Subscribe replaces the mirror with a live view of uid's partition.
// Any previous subscription is cancelled before the new one is opened, and
// snapshots from it are dropped even if already in flight.
func (s *Store) Subscribe(ctx context.Context, uid string) error {
	if uid == "" {
		return task.ErrNotAuthenticated
	}

	s.emitMu.Lock()
	s.mu.Lock()
	prev := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	st := s.setLocked(State{UID: uid, Tasks: []task.Task{}, Status: StatusLoading}, true)
	s.mu.Unlock()
	s.emit(st)
	s.emitMu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	s.logger.Debug("subscribing", "uid", uid)
	sub, err := s.remote.Subscribe(ctx, uid,
		func(tasks []task.Task) { s.onSnapshot(gen, tasks) },
		func(err error) { s.onReadError(gen, err) },
	)
	if err != nil {
		err = fmt.Errorf("%w: %w", task.ErrRemoteReadFailed, err)
		s.logger.Warn("subscribe failed", "uid", uid, "err", err)
		s.update(gen, func(st *State) bool {
			st.Tasks = []task.Task{}
			st.Status = StatusFailed
			st.Error = err.Error()
			return true
		})
		return err
	}

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.sub = sub
	}
	s.mu.Unlock()
	if !current {
		sub.Cancel()
	}
	return nil
}

// Unsubscribe cancels the live subscription and resets the store to an
// empty, idle state with no user.
func (s *Store) Unsubscribe() {
	s.emitMu.Lock()
	s.mu.Lock()
	prev := s.sub
	s.sub = nil
	s.gen++
	st := s.setLocked(State{Tasks: []task.Task{}, Status: StatusIdle}, true)
	s.mu.Unlock()
	s.emit(st)
	s.emitMu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

// Close is Unsubscribe.
func (s *Store) Close() { s.Unsubscribe() }

// AddTask creates a task with the given text and returns its id.
func (s *Store) AddTask(ctx context.Context, text string) (string, error) {
	t, err := task.New(text)
	if err != nil {
		return "", err
	}
	uid, gen, err := s.begin()
	if err != nil {
		return "", err
	}
	id, err := s.remote.NewKey(ctx, uid)
	if err == nil {
		err = s.remote.Put(ctx, uid, id, t)
	}
	if err := s.finish(gen, "add", id, err); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateTask writes the present fields of p to the task id. An empty patch
// writes nothing.
func (s *Store) UpdateTask(ctx context.Context, id string, p task.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.IsEmpty() {
		return nil
	}
	uid, gen, err := s.begin()
	if err != nil {
		return err
	}
	return s.finish(gen, "update", id, s.remote.Update(ctx, uid, id, p))
}

// ToggleComplete flips the completion state of the mirrored task id.
func (s *Store) ToggleComplete(ctx context.Context, id string) error {
	t, ok := s.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", task.ErrNotFound, id)
	}
	return s.UpdateTask(ctx, id, task.Patch{Completed: task.Value(!t.Completed)})
}

// DeleteTask removes the task id. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	uid, gen, err := s.begin()
	if err != nil {
		return err
	}
	return s.finish(gen, "delete", id, s.remote.Delete(ctx, uid, id))
}

// Find returns the mirrored task with the given id.
func (s *Store) Find(id string) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.state.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

// Pending returns the uncompleted tasks. The result is the same slice until
// the next snapshot and must not be modified.
func (s *Store) Pending() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(&s.pending, task.Pending)
}

// Completed returns the completed tasks. The result is the same slice until
// the next snapshot and must not be modified.
func (s *Store) Completed() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(&s.completed, task.Completed)
}

// WaitSettled blocks until the status is not loading.
func (s *Store) WaitSettled(ctx context.Context) error {
	for {
		s.mu.Lock()
		status, ch := s.state.Status, s.changed
		s.mu.Unlock()
		if status != StatusLoading {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) viewLocked(v *view, filter func([]task.Task) []task.Task) []task.Task {
	if !v.valid || v.version != s.version {
		v.tasks = filter(s.state.Tasks)
		v.version = s.version
		v.valid = true
	}
	return v.tasks
}

func (s *Store) onSnapshot(gen uint64, tasks []task.Task) {
	applied := s.update(gen, func(st *State) bool {
		st.Tasks = slices.Clone(tasks)
		if st.Tasks == nil {
			st.Tasks = []task.Task{}
		}
		st.Status = StatusSucceeded
		st.Error = ""
		return true
	})
	if !applied {
		s.logger.Debug("dropped stale snapshot", "tasks", len(tasks))
	}
}

func (s *Store) onReadError(gen uint64, err error) {
	err = fmt.Errorf("%w: %w", task.ErrRemoteReadFailed, err)
	if s.update(gen, func(st *State) bool {
		st.Tasks = []task.Task{}
		st.Status = StatusFailed
		st.Error = err.Error()
		return true
	}) {
		s.logger.Warn("subscription error", "err", err)
	}
}

// begin marks a mutation as loading and returns the user it runs as. With no
// user the store fails with task.ErrNotAuthenticated.
func (s *Store) begin() (string, uint64, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	next := s.state
	uid, gen := next.UID, s.gen
	if uid == "" {
		next.Status = StatusFailed
		next.Error = task.ErrNotAuthenticated.Error()
	} else {
		next.Status = StatusLoading
	}
	st := s.setLocked(next, false)
	s.mu.Unlock()
	s.emit(st)

	if uid == "" {
		return "", 0, task.ErrNotAuthenticated
	}
	return uid, gen, nil
}

// finish settles a mutation started by begin.
func (s *Store) finish(gen uint64, op, id string, err error) error {
	if err != nil {
		err = fmt.Errorf("%w: %w", task.ErrRemoteWriteFailed, err)
		s.logger.Warn(op+" failed", "task_id", id, "err", err)
	} else {
		s.logger.Debug(op+" succeeded", "task_id", id)
	}
	s.update(gen, func(st *State) bool {
		if err != nil {
			st.Status = StatusFailed
			st.Error = err.Error()
		} else {
			st.Status = StatusSucceeded
			st.Error = ""
		}
		return false
	})
	return err
}

// update applies fn to the state if gen is still current and notifies
// listeners. fn reports whether it replaced the task list.
func (s *Store) update(gen uint64, fn func(*State) bool) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	next := s.state
	replaced := fn(&next)
	st := s.setLocked(next, replaced)
	s.mu.Unlock()
	s.emit(st)
	return true
}

// setLocked installs st and wakes waiters. Must be called with mu held.
func (s *Store) setLocked(st State, replaced bool) State {
	s.state = st
	if replaced {
		s.version++
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return st
}

// emit must be called with emitMu held and mu released.
func (s *Store) emit(st State) {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.order))
	for _, k := range s.order {
		fns = append(fns, s.listeners[k])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
