// Package identitytoolkit implements auth.Provider against the Google Identity
// Toolkit REST API (the email/password backend of Firebase Authentication).
package identitytoolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	itk "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"tasksync/internal/auth"
)

const (
	// DefaultTokenURL is the secure token endpoint used to renew ID tokens.
	DefaultTokenURL = "https://securetoken.googleapis.com/v1/token"

	// restoreTimeout bounds the token refresh done while resolving a
	// persisted session.
	restoreTimeout = 10 * time.Second
)

// Config configures a Provider.
type Config struct {
	// APIKey is the project's web API key. Required.
	APIKey string

	// Endpoint overrides the relyingparty base URL.
	Endpoint string

	// TokenURL overrides DefaultTokenURL.
	TokenURL string

	// SessionPath is where the signed-in session is persisted.
	SessionPath string
}

// Provider is an auth.Provider backed by Identity Toolkit.
type Provider struct {
	svc         *itk.Service
	oauth       *oauth2.Config
	sessionPath string
	logger      *slog.Logger
	notifier    auth.Notifier
	restoreOnce sync.Once

	// Now is the clock used for token expiry.
	Now func() time.Time
}

var _ auth.Provider = (*Provider)(nil)

// New creates a Provider. It does not contact the service.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("identitytoolkit: api key is required (auth.api_key or TASKSYNC_API_KEY)")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := itk.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit: %w", err)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	sep := "?"
	if strings.Contains(tokenURL, "?") {
		sep = "&"
	}

	return &Provider{
		svc: svc,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL + sep + "key=" + cfg.APIKey,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		sessionPath: cfg.SessionPath,
		logger:      logger,
		Now:         time.Now,
	}, nil
}

// SignIn implements auth.Provider.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&itk.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, rejection(auth.OpSignIn, err)
	}
	return p.establish(auth.OpSignIn, resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

// SignUp implements auth.Provider.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&itk.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, rejection(auth.OpSignUp, err)
	}
	return p.establish(auth.OpSignUp, resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

// SignOut implements auth.Provider.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := auth.RemoveSession(p.sessionPath); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	p.notifier.Set(nil)
	return nil
}

// OnIdentityChange implements auth.Provider. The first registration starts
// resolving the persisted session in the background.
func (p *Provider) OnIdentityChange(fn func(*auth.Identity)) func() {
	unsubscribe := p.notifier.Subscribe(fn)
	p.restoreOnce.Do(func() { go p.restore() })
	return unsubscribe
}

func (p *Provider) establish(op, uid, email, idToken, refreshToken string, expiresIn int64) (*auth.Identity, error) {
	if uid == "" {
		return nil, auth.Reject(op, auth.ReasonOther, errors.New("response has no user id"))
	}
	s := &auth.Session{
		UID:   uid,
		Email: email,
		Token: &oauth2.Token{
			AccessToken:  idToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			Expiry:       p.Now().Add(time.Duration(expiresIn) * time.Second),
		},
	}
	if err := auth.SaveSession(p.sessionPath, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	id := s.Identity()
	p.notifier.Set(id)
	return id, nil
}

// restore resolves the persisted session, renewing its token if it expired.
func (p *Provider) restore() {
	id := p.restoreIdentity()
	if !p.notifier.Resolve(id) {
		p.logger.Debug("persisted session superseded")
	}
}

func (p *Provider) restoreIdentity() *auth.Identity {
	s, err := auth.LoadSession(p.sessionPath)
	if err != nil {
		p.logger.Warn("ignoring unreadable session file", "path", p.sessionPath, "err", err)
		return nil
	}
	if s == nil {
		return nil
	}
	if s.Token != nil && p.tokenValid(s.Token) {
		return s.Identity()
	}
	if s.Token == nil || s.Token.RefreshToken == "" {
		p.logger.Info("persisted session has no refresh token", "uid", s.UID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: s.Token.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			p.logger.Info("persisted session revoked", "uid", s.UID, "err", err)
			if rmErr := auth.RemoveSession(p.sessionPath); rmErr != nil {
				p.logger.Warn("remove session", "err", rmErr)
			}
		} else {
			p.logger.Warn("could not renew session", "uid", s.UID, "err", err)
		}
		return nil
	}
	if uid, ok := tok.Extra("user_id").(string); ok && uid != "" && uid != s.UID {
		p.logger.Warn("renewed token belongs to another user", "uid", s.UID, "token_uid", uid)
		return nil
	}

	s.Token = tok
	if err := auth.SaveSession(p.sessionPath, s); err != nil {
		p.logger.Warn("save renewed session", "err", err)
	}
	return s.Identity()
}

func (p *Provider) tokenValid(t *oauth2.Token) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || p.Now().Before(t.Expiry)
}

// rejection maps an Identity Toolkit error to an auth rejection.
func rejection(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return auth.Reject(op, auth.ReasonOther, err)
	}
	msg := gerr.Message
	if msg == "" && len(gerr.Errors) > 0 {
		msg = gerr.Errors[0].Message
	}
	return auth.Reject(op, reasonFor(msg), err)
}

func reasonFor(msg string) auth.Reason {
	code := strings.TrimSpace(msg)
	if i := strings.IndexAny(code, " :"); i >= 0 {
		code = code[:i]
	}
	switch code {
	case "EMAIL_NOT_FOUND":
		return auth.ReasonUserNotFound
	case "INVALID_PASSWORD":
		return auth.ReasonWrongPassword
	case "INVALID_LOGIN_CREDENTIALS":
		return auth.ReasonInvalidCredential
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return auth.ReasonInvalidEmail
	case "EMAIL_EXISTS":
		return auth.ReasonEmailAlreadyInUse
	case "WEAK_PASSWORD":
		return auth.ReasonWeakPassword
	default:
		return auth.ReasonOther
	}
}
