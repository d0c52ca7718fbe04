package app

import (
	"context"
	"fmt"
	"log/slog"

	"tasksync/internal/auth"
	"tasksync/internal/auth/identitytoolkit"
	"tasksync/internal/auth/localauth"
	"tasksync/internal/config"
	"tasksync/internal/remote"
	"tasksync/internal/remote/memstore"
	"tasksync/internal/remote/redisstore"
	"tasksync/internal/sessioncache"
	"tasksync/internal/store"
)

// BackendError marks a failure to reach the remote task store.
type BackendError struct{ Err error }

func (e *BackendError) Error() string { return e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }

// Open wires a Session from cfg. Settings are loaded if cfg has none yet.
// The returned session is not started.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	settings := cfg.Settings
	if settings == nil {
		var err error
		if settings, err = cfg.Load(); err != nil {
			return nil, err
		}
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	rem, closeRemote, err := openRemote(ctx, settings.Remote, logger)
	if err != nil {
		return nil, err
	}
	if closeRemote != nil {
		closers = append(closers, closeRemote)
	}

	provider, closeProvider, err := openProvider(ctx, cfg, settings.Auth, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	if closeProvider != nil {
		closers = append(closers, closeProvider)
	}

	tasks := store.New(rem, logger.With("component", "store"))
	cache := sessioncache.New(cfg.SessionCachePath())

	s := NewSession(provider, tasks, cache, logger.With("component", "session"))
	s.Timeout = settings.Remote.Timeout
	for _, c := range closers {
		s.OnClose(c)
	}
	return s, nil
}

func openRemote(ctx context.Context, rs config.RemoteSettings, logger *slog.Logger) (remote.Store, func() error, error) {
	switch rs.Backend {
	case config.BackendMemory:
		logger.Debug("using in-memory task store")
		mem := memstore.New()
		mem.Logger = logger.With("component", "remote")
		return mem, nil, nil
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, rs.RedisURL)
		if err != nil {
			return nil, nil, &BackendError{Err: err}
		}
		pingCtx, cancel := context.WithTimeout(ctx, rs.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, &BackendError{Err: fmt.Errorf("connect redis: %w", err)}
		}
		logger.Debug("connected to redis", "url", rs.RedisURL)
		st := redisstore.New(client)
		st.Logger = logger.With("component", "remote")
		return st, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote backend %q", rs.Backend)
	}
}

func openProvider(ctx context.Context, cfg *config.Config, as config.AuthSettings, logger *slog.Logger) (auth.Provider, func() error, error) {
	logger = logger.With("component", "auth")
	switch as.Provider {
	case config.ProviderLocal:
		p, err := localauth.Open(cfg.AccountsPath(), cfg.AuthSessionPath(), logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.ProviderIdentityToolkit:
		p, err := identitytoolkit.New(ctx, identitytoolkit.Config{
			APIKey:      as.APIKey,
			Endpoint:    as.Endpoint,
			TokenURL:    as.TokenURL,
			SessionPath: cfg.AuthSessionPath(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth provider %q", as.Provider)
	}
}
