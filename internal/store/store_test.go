package store_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"tasksync/internal/remote"
	"tasksync/internal/remote/memstore"
	"tasksync/internal/store"
	"tasksync/internal/task"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) (*store.Store, *memstore.Store) {
	t.Helper()
	mem := memstore.New()
	s := store.New(mem, discard())
	t.Cleanup(s.Close)
	return s, mem
}

func subscribe(t *testing.T, s *store.Store, uid string) {
	t.Helper()
	if err := s.Subscribe(context.Background(), uid); err != nil {
		t.Fatalf("Subscribe(%s): %v", uid, err)
	}
}

func texts(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Text
	}
	return out
}

func TestBuyMilkScenario(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")

	id, err := s.AddTask(ctx, "Buy milk")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	pending := s.Pending()
	if len(pending) != 1 || pending[0].ID != id || pending[0].Completed || pending[0].DueDate != nil {
		t.Fatalf("unexpected pending view: %+v", pending)
	}
	if len(s.Completed()) != 0 {
		t.Fatalf("expected empty completed view")
	}
	if st := s.State(); st.Status != store.StatusSucceeded || st.Error != "" {
		t.Errorf("unexpected state: %+v", st)
	}

	if err := s.ToggleComplete(ctx, id); err != nil {
		t.Fatalf("ToggleComplete: %v", err)
	}
	completed := s.Completed()
	if len(s.Pending()) != 0 || len(completed) != 1 || !completed[0].Completed {
		t.Fatalf("expected task in completed view, got pending=%+v completed=%+v", s.Pending(), completed)
	}

	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if len(s.Pending()) != 0 || len(s.Completed()) != 0 {
		t.Errorf("expected both views empty")
	}
}

func TestAddTask_UniqueIDs(t *testing.T) {
	s, _ := newStore(t)
	subscribe(t, s, "alice")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := s.AddTask(context.Background(), fmt.Sprintf("task %d", i))
		if err != nil {
			t.Fatalf("AddTask: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	tasks := s.State().Tasks
	if len(tasks) != 20 {
		t.Fatalf("expected 20 tasks, got %d", len(tasks))
	}
	for i, tk := range tasks {
		if want := fmt.Sprintf("task %d", i); tk.Text != want {
			t.Errorf("position %d: expected %q, got %q", i, want, tk.Text)
		}
	}
}

func TestAddTask_EmptyText(t *testing.T) {
	s, _ := newStore(t)
	subscribe(t, s, "alice")
	before := s.State()

	if _, err := s.AddTask(context.Background(), "   "); !errors.Is(err, task.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if after := s.State(); after.Status != before.Status || len(after.Tasks) != 0 {
		t.Errorf("expected no state change, got %+v", after)
	}
}

func TestMutations_NotAuthenticated(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if _, err := s.AddTask(ctx, "x"); !errors.Is(err, task.ErrNotAuthenticated) {
		t.Errorf("AddTask: expected ErrNotAuthenticated, got %v", err)
	}
	if st := s.State(); st.Status != store.StatusFailed || st.Error == "" {
		t.Errorf("expected failed status with error, got %+v", st)
	}
	if err := s.DeleteTask(ctx, "x"); !errors.Is(err, task.ErrNotAuthenticated) {
		t.Errorf("DeleteTask: expected ErrNotAuthenticated, got %v", err)
	}
	if err := s.Subscribe(ctx, ""); !errors.Is(err, task.ErrNotAuthenticated) {
		t.Errorf("Subscribe: expected ErrNotAuthenticated, got %v", err)
	}
}

func TestUpdateTask_CompletedKeepsOtherFields(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")

	id, err := s.AddTask(ctx, "Dentist")
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2026, 11, 3, 10, 0, 0, 0, time.UTC)
	err = s.UpdateTask(ctx, id, task.Patch{
		DueDate:         task.Value(due),
		LocationCoords:  task.Value(task.Coords{Latitude: 40.4, Longitude: -3.7}),
		LocationAddress: task.Value("Calle Mayor 1, Madrid"),
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	if err := s.UpdateTask(ctx, id, task.Patch{Completed: task.Value(true)}); err != nil {
		t.Fatalf("UpdateTask completed: %v", err)
	}

	got, ok := s.Find(id)
	if !ok {
		t.Fatal("task disappeared")
	}
	if !got.Completed || got.Text != "Dentist" {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date changed: %v", got.DueDate)
	}
	if got.LocationCoords == nil || *got.LocationCoords != (task.Coords{Latitude: 40.4, Longitude: -3.7}) {
		t.Errorf("coords changed: %v", got.LocationCoords)
	}
	if got.LocationAddress == nil || *got.LocationAddress != "Calle Mayor 1, Madrid" {
		t.Errorf("address changed: %v", got.LocationAddress)
	}

	if err := s.UpdateTask(ctx, id, task.Patch{
		LocationCoords:  task.Null[task.Coords](),
		LocationAddress: task.Null[string](),
	}); err != nil {
		t.Fatalf("UpdateTask clear: %v", err)
	}
	got, _ = s.Find(id)
	if got.HasLocation() {
		t.Errorf("expected location cleared, got %+v", got)
	}
	if got.DueDate == nil {
		t.Error("expected due date to survive clearing location")
	}
}

func TestUpdateTask_MissingID(t *testing.T) {
	s, mem := newStore(t)
	subscribe(t, s, "alice")

	if err := s.UpdateTask(context.Background(), "missing", task.Patch{Text: task.Value("x")}); err != nil {
		t.Fatalf("expected update of missing id to resolve, got %v", err)
	}
	if got := mem.Snapshot("alice"); len(got) != 0 {
		t.Errorf("expected nothing to be created, got %+v", got)
	}
	if st := s.State(); st.Status != store.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", st.Status)
	}
}

func TestUpdateTask_InvalidPatch(t *testing.T) {
	s, _ := newStore(t)
	subscribe(t, s, "alice")
	ctx := context.Background()

	if err := s.UpdateTask(ctx, "x", task.Patch{Text: task.Value(" ")}); !errors.Is(err, task.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if err := s.UpdateTask(ctx, "x", task.Patch{Completed: task.Null[bool]()}); !errors.Is(err, task.ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestDeleteTask_Twice(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")

	id, err := s.AddTask(ctx, "once")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	subscribe(t, s, "alice")
	if _, ok := s.Find(id); ok {
		t.Error("deleted task reappeared in fresh snapshot")
	}
}

func TestToggleComplete_NotInMirror(t *testing.T) {
	s, _ := newStore(t)
	subscribe(t, s, "alice")
	if err := s.ToggleComplete(context.Background(), "nope"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoteWriteFailure_KeepsTasks(t *testing.T) {
	s, mem := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")
	if _, err := s.AddTask(ctx, "kept"); err != nil {
		t.Fatal(err)
	}

	mem.PutErr = errors.New("permission denied")
	_, err := s.AddTask(ctx, "rejected")
	if !errors.Is(err, task.ErrRemoteWriteFailed) {
		t.Fatalf("expected ErrRemoteWriteFailed, got %v", err)
	}

	st := s.State()
	if st.Status != store.StatusFailed {
		t.Errorf("expected failed, got %s", st.Status)
	}
	if st.Error != "remote write failed: permission denied" {
		t.Errorf("unexpected error message %q", st.Error)
	}
	if got := texts(st.Tasks); len(got) != 1 || got[0] != "kept" {
		t.Errorf("expected existing tasks retained, got %v", got)
	}

	mem.PutErr = nil
	if _, err := s.AddTask(ctx, "retried"); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); st.Status != store.StatusSucceeded || st.Error != "" {
		t.Errorf("expected recovery to succeeded, got %+v", st)
	}
}

func TestSubscribeFailure_ClearsTasks(t *testing.T) {
	s, mem := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")
	if _, err := s.AddTask(ctx, "A1"); err != nil {
		t.Fatal(err)
	}

	mem.SubscribeErr = errors.New("unavailable")
	err := s.Subscribe(ctx, "bob")
	if !errors.Is(err, task.ErrRemoteReadFailed) {
		t.Fatalf("expected ErrRemoteReadFailed, got %v", err)
	}
	st := s.State()
	if len(st.Tasks) != 0 || st.Status != store.StatusFailed || st.UID != "bob" {
		t.Errorf("unexpected state after failed subscribe: %+v", st)
	}
	if n := mem.TotalSubscribers(); n != 0 {
		t.Errorf("expected the old subscription to be cancelled, %d remain", n)
	}
}

func TestUserSwitch_NeverShowsPreviousUser(t *testing.T) {
	s, mem := newStore(t)
	ctx := context.Background()

	subscribe(t, s, "alice")
	for _, text := range []string{"T1", "T2"} {
		if _, err := s.AddTask(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	if got := texts(s.State().Tasks); len(got) != 2 {
		t.Fatalf("expected alice's two tasks, got %v", got)
	}

	var seen []store.State
	unsub := s.OnChange(func(st store.State) { seen = append(seen, st) })
	defer unsub()

	s.Unsubscribe()
	if st := s.State(); st.Status != store.StatusIdle || len(st.Tasks) != 0 || st.UID != "" {
		t.Errorf("expected empty idle state after sign-out, got %+v", st)
	}
	subscribe(t, s, "bob")

	if st := s.State(); len(st.Tasks) != 0 || st.UID != "bob" || st.Status != store.StatusSucceeded {
		t.Errorf("expected bob's empty list, got %+v", st)
	}
	for i, st := range seen {
		if len(st.Tasks) != 0 {
			t.Errorf("state %d leaked tasks %v", i, texts(st.Tasks))
		}
	}
	if mem.Subscribers("alice") != 0 || mem.Subscribers("bob") != 1 {
		t.Errorf("expected exactly bob's subscription live, got alice=%d bob=%d",
			mem.Subscribers("alice"), mem.Subscribers("bob"))
	}
}

func TestDirectSwitch_CancelsBeforeResubscribe(t *testing.T) {
	s, mem := newStore(t)
	subscribe(t, s, "alice")
	subscribe(t, s, "bob")
	subscribe(t, s, "carol")

	if n := mem.TotalSubscribers(); n != 1 {
		t.Errorf("expected one live subscription, got %d", n)
	}
	if mem.Subscribers("carol") != 1 {
		t.Error("expected the live subscription to be carol's")
	}
}

// captureRemote records snapshot callbacks so a test can fire them late.
type captureRemote struct {
	*memstore.Store
	callbacks []func([]task.Task)
}

func (c *captureRemote) Subscribe(ctx context.Context, uid string, onSnapshot func([]task.Task), onError func(error)) (remote.Subscription, error) {
	c.callbacks = append(c.callbacks, onSnapshot)
	return c.Store.Subscribe(ctx, uid, onSnapshot, onError)
}

func TestStaleSnapshotDropped(t *testing.T) {
	rem := &captureRemote{Store: memstore.New()}
	s := store.New(rem, discard())
	defer s.Close()
	ctx := context.Background()

	if err := s.Subscribe(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.Subscribe(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	rem.callbacks[0]([]task.Task{{ID: "a1", Text: "alice's task"}})

	st := s.State()
	if st.UID != "bob" || len(st.Tasks) != 0 {
		t.Errorf("stale snapshot leaked into bob's state: %+v", st)
	}
}

func TestViews_Memoized(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	subscribe(t, s, "alice")

	a, err := s.AddTask(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTask(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleComplete(ctx, a); err != nil {
		t.Fatal(err)
	}

	p1, p2 := s.Pending(), s.Pending()
	if &p1[0] != &p2[0] {
		t.Error("expected pending view to be reused while tasks are unchanged")
	}
	c1, c2 := s.Completed(), s.Completed()
	if &c1[0] != &c2[0] {
		t.Error("expected completed view to be reused while tasks are unchanged")
	}
	if len(p1)+len(c1) != len(s.State().Tasks) {
		t.Errorf("views do not partition tasks: %d + %d != %d", len(p1), len(c1), len(s.State().Tasks))
	}

	if _, err := s.AddTask(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	p3 := s.Pending()
	if len(p3) != 2 || &p3[0] == &p1[0] {
		t.Error("expected pending view to be recomputed after a snapshot")
	}
}

func TestWaitSettled(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.WaitSettled(ctx); err != nil {
		t.Fatalf("idle store should be settled: %v", err)
	}
	subscribe(t, s, "alice")
	if err := s.WaitSettled(ctx); err != nil {
		t.Fatalf("WaitSettled: %v", err)
	}
	if st := s.State(); st.Status != store.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", st.Status)
	}
}

func TestOnChange_StatusSequence(t *testing.T) {
	s, _ := newStore(t)
	subscribe(t, s, "alice")

	var statuses []store.Status
	unsub := s.OnChange(func(st store.State) { statuses = append(statuses, st.Status) })
	if _, err := s.AddTask(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	unsub()

	if len(statuses) == 0 || statuses[0] != store.StatusLoading || statuses[len(statuses)-1] != store.StatusSucceeded {
		t.Errorf("expected loading ... succeeded, got %v", statuses)
	}
}
