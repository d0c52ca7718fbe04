// Package app ties the auth provider, the session cache and the task store
// together for one run of the client.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tasksync/internal/auth"
	"tasksync/internal/sessioncache"
	"tasksync/internal/store"
)

// DefaultTimeout bounds each remote or storage call made on an identity change.
const DefaultTimeout = 5 * time.Second

// Session is the explicit session context: it is started once, updated on
// every identity change and torn down by Close.
type Session struct {
	Provider auth.Provider
	Tasks    *store.Store

	// Timeout bounds calls made by the identity handler and by commands.
	Timeout time.Duration

	cache  *sessioncache.Cache
	logger *slog.Logger

	mu         sync.Mutex
	user       *auth.Identity
	cachedUser string
	started    bool
	stopAuth   func()
	closers    []func() error

	determined     chan struct{}
	determinedOnce sync.Once
}

// NewSession builds a session. cache may be nil to run without one.
func NewSession(p auth.Provider, tasks *store.Store, cache *sessioncache.Cache, logger *slog.Logger) *Session {
	return &Session{
		Provider:   p,
		Tasks:      tasks,
		Timeout:    DefaultTimeout,
		cache:      cache,
		logger:     logger,
		determined: make(chan struct{}),
	}
}

// Start initializes the session cache, reads the last active user and
// starts listening for identity changes. A cache that cannot be used is
// disabled and the run continues as if nobody was signed in.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	cache := s.cache
	s.mu.Unlock()

	cachedUser := ""
	if cache != nil {
		if err := cache.Initialize(ctx); err != nil {
			s.logger.Warn("session cache disabled", "err", err)
			cache = nil
		} else if uid, err := cache.LoadActiveUser(ctx); err != nil {
			s.logger.Warn("could not read session cache", "err", err)
		} else {
			cachedUser = uid
		}
	}

	s.mu.Lock()
	s.cache = cache
	s.cachedUser = cachedUser
	s.mu.Unlock()

	stop := s.Provider.OnIdentityChange(s.handleIdentity)
	s.mu.Lock()
	s.stopAuth = stop
	s.mu.Unlock()
	return nil
}

// handleIdentity runs for every identity change reported by the provider.
func (s *Session) handleIdentity(id *auth.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	s.mu.Lock()
	s.user = id
	cache := s.cache
	s.mu.Unlock()

	if id != nil {
		s.logger.Debug("signed in", "uid", id.UID)
		if cache != nil {
			if err := cache.SaveActiveUser(ctx, id.UID); err != nil {
				s.logger.Warn("could not record active user", "uid", id.UID, "err", err)
			}
		}
		if err := s.Tasks.Subscribe(ctx, id.UID); err != nil {
			s.logger.Warn("could not load tasks", "uid", id.UID, "err", err)
		}
	} else {
		s.logger.Debug("signed out")
		if cache != nil {
			if err := cache.ClearActiveUser(ctx); err != nil {
				s.logger.Warn("could not clear active user", "err", err)
			}
		}
		s.Tasks.Unsubscribe()
	}

	s.determinedOnce.Do(func() { close(s.determined) })
}

// AuthDetermined reports whether the provider has reported an identity yet.
func (s *Session) AuthDetermined() bool {
	select {
	case <-s.determined:
		return true
	default:
		return false
	}
}

// WaitAuthDetermined blocks until the first identity change has been handled.
func (s *Session) WaitAuthDetermined(ctx context.Context) error {
	select {
	case <-s.determined:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// User returns the signed-in user, or nil.
func (s *Session) User() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// CachedUser returns the user id recorded by the previous run, or "".
func (s *Session) CachedUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedUser
}

// SignIn signs in through the provider. The identity handler has run by the
// time SignIn returns successfully.
func (s *Session) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	return s.Provider.SignIn(ctx, email, password)
}

// SignUp creates an account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	return s.Provider.SignUp(ctx, email, password)
}

// SignOut signs out through the provider.
func (s *Session) SignOut(ctx context.Context) error {
	return s.Provider.SignOut(ctx)
}

// OnClose registers fn to run when the session is closed, after the task
// subscription has been cancelled.
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close stops listening for identity changes, cancels the task subscription
// and releases resources. Closers run in reverse registration order.
func (s *Session) Close() error {
	s.mu.Lock()
	stop := s.stopAuth
	s.stopAuth = nil
	closers := s.closers
	s.closers = nil
	cache := s.cache
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.Tasks.Close()

	var errs []error
	if cache != nil {
		errs = append(errs, cache.Close())
	}
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	return errors.Join(errs...)
}
