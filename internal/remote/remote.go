// Package remote defines the backend-agnostic contract of the remote task store.
// The task store and commands never import a storage SDK directly.
package remote

import (
	"context"

	"tasksync/internal/task"
)

// Store is a task collection partitioned by user id with push-based change
// notification. Every method returns task.ErrNotAuthenticated for an empty uid.
type Store interface {
	// NewKey generates a unique, time-ordered key in the user's partition.
	NewKey(ctx context.Context, uid string) (string, error)

	// Put writes a full record at id. CreatedAt is assigned by the store.
	Put(ctx context.Context, uid, id string, t task.Task) error

	// Update writes the present fields of p at id. Explicit nulls clear fields.
	// Updating a missing id succeeds and writes nothing.
	Update(ctx context.Context, uid, id string, p task.Patch) error

	// Delete removes the record at id. Deleting a missing id is not an error.
	Delete(ctx context.Context, uid, id string) error

	// Subscribe delivers the user's full snapshot now and after every change,
	// in key order. onError receives read failures; the subscription stays
	// open unless the failure is permanent. Callbacks for one subscription
	// never run concurrently.
	Subscribe(ctx context.Context, uid string, onSnapshot func([]task.Task), onError func(error)) (Subscription, error)
}

// Subscription is a live query handle.
type Subscription interface {
	// Cancel stops delivery. It is idempotent, and once it returns no
	// callback of this subscription will start.
	Cancel()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Cancel implements Subscription.
func (f SubscriptionFunc) Cancel() { f() }
