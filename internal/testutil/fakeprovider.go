// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"tasksync/internal/auth"
)

// FakeProvider is an in-memory auth.Provider for testing.
type FakeProvider struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount // email -> account
	nextID   int
	notifier auth.Notifier

	restoreOnce sync.Once

	// Restored is the identity resolved on the first OnIdentityChange.
	Restored *auth.Identity

	// Deferred delays resolution until Resolve is called.
	Deferred bool

	// Error injection for testing
	SignInErr  error
	SignUpErr  error
	SignOutErr error
}

type fakeAccount struct {
	uid      string
	password string
}

var _ auth.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a provider with no accounts and no persisted session.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{accounts: make(map[string]fakeAccount)}
}

// AddAccount registers an account and returns its identity.
func (f *FakeProvider) AddAccount(email, password string) *auth.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(email, password)
}

func (f *FakeProvider) addLocked(email, password string) *auth.Identity {
	f.nextID++
	uid := fmt.Sprintf("uid-%d", f.nextID)
	f.accounts[email] = fakeAccount{uid: uid, password: password}
	return &auth.Identity{UID: uid, Email: email}
}

// Resolve finishes a deferred restore.
func (f *FakeProvider) Resolve() {
	f.notifier.Resolve(f.Restored)
}

// SignIn implements auth.Provider.
func (f *FakeProvider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	f.mu.Lock()
	acct, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok {
		return nil, auth.Reject(auth.OpSignIn, auth.ReasonUserNotFound, nil)
	}
	if acct.password != password {
		return nil, auth.Reject(auth.OpSignIn, auth.ReasonWrongPassword, nil)
	}
	id := &auth.Identity{UID: acct.uid, Email: email}
	f.notifier.Set(id)
	return id, nil
}

// SignUp implements auth.Provider.
func (f *FakeProvider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	if len(password) < 6 {
		return nil, auth.Reject(auth.OpSignUp, auth.ReasonWeakPassword, nil)
	}
	f.mu.Lock()
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		return nil, auth.Reject(auth.OpSignUp, auth.ReasonEmailAlreadyInUse, nil)
	}
	id := f.addLocked(email, password)
	f.mu.Unlock()
	f.notifier.Set(id)
	return id, nil
}

// SignOut implements auth.Provider.
func (f *FakeProvider) SignOut(ctx context.Context) error {
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.notifier.Set(nil)
	return nil
}

// OnIdentityChange implements auth.Provider. Unless Deferred is set, the
// persisted identity is resolved before it returns.
func (f *FakeProvider) OnIdentityChange(fn func(*auth.Identity)) func() {
	unsubscribe := f.notifier.Subscribe(fn)
	if !f.Deferred {
		f.restoreOnce.Do(func() { f.notifier.Resolve(f.Restored) })
	}
	return unsubscribe
}
