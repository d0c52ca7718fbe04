// Package localauth implements auth.Provider with accounts kept in a local
// sqlite database. It is the default provider and needs no network.
package localauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"tasksync/internal/auth"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	uid           TEXT PRIMARY KEY NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
)`

// Provider is an auth.Provider backed by a sqlite accounts table.
type Provider struct {
	db          *sql.DB
	sessionPath string
	logger      *slog.Logger
	notifier    auth.Notifier
	restoreOnce sync.Once

	// Cost is the bcrypt cost for new accounts.
	Cost int
}

var _ auth.Provider = (*Provider)(nil)

// Open opens or creates the accounts database at dbPath.
func Open(dbPath, sessionPath string, logger *slog.Logger) (*Provider, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open accounts database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize accounts database: %w", err)
	}
	return &Provider{
		db:          db,
		sessionPath: sessionPath,
		logger:      logger,
		Cost:        bcrypt.DefaultCost,
	}, nil
}

// Close closes the accounts database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// SignIn implements auth.Provider.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	email, err := normalizeEmail(auth.OpSignIn, email)
	if err != nil {
		return nil, err
	}

	var uid, hash string
	err = p.db.QueryRowContext(ctx,
		`SELECT uid, password_hash FROM accounts WHERE email = ?`, email).Scan(&uid, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.Reject(auth.OpSignIn, auth.ReasonUserNotFound, nil)
	}
	if err != nil {
		return nil, auth.Reject(auth.OpSignIn, auth.ReasonOther, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, auth.Reject(auth.OpSignIn, auth.ReasonWrongPassword, nil)
	}
	return p.establish(&auth.Identity{UID: uid, Email: email})
}

// SignUp implements auth.Provider.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	email, err := normalizeEmail(auth.OpSignUp, email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, auth.Reject(auth.OpSignUp, auth.ReasonWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.Cost)
	if err != nil {
		return nil, auth.Reject(auth.OpSignUp, auth.ReasonOther, err)
	}
	uid := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		uid, email, string(hash), time.Now().UnixMilli())
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, auth.Reject(auth.OpSignUp, auth.ReasonEmailAlreadyInUse, nil)
		}
		return nil, auth.Reject(auth.OpSignUp, auth.ReasonOther, err)
	}
	p.logger.Info("account created", "uid", uid)
	return p.establish(&auth.Identity{UID: uid, Email: email})
}

// SignOut implements auth.Provider.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := auth.RemoveSession(p.sessionPath); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	p.notifier.Set(nil)
	return nil
}

// OnIdentityChange implements auth.Provider.
func (p *Provider) OnIdentityChange(fn func(*auth.Identity)) func() {
	unsubscribe := p.notifier.Subscribe(fn)
	p.restoreOnce.Do(func() { go p.restore() })
	return unsubscribe
}

func (p *Provider) establish(id *auth.Identity) (*auth.Identity, error) {
	if err := auth.SaveSession(p.sessionPath, &auth.Session{UID: id.UID, Email: id.Email}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	p.notifier.Set(id)
	return id, nil
}

func (p *Provider) restore() {
	if !p.notifier.Resolve(p.restoreIdentity()) {
		p.logger.Debug("persisted session superseded")
	}
}

// restoreIdentity returns the persisted user if the account still exists.
func (p *Provider) restoreIdentity() *auth.Identity {
	s, err := auth.LoadSession(p.sessionPath)
	if err != nil {
		p.logger.Warn("ignoring unreadable session file", "path", p.sessionPath, "err", err)
		return nil
	}
	if s == nil {
		return nil
	}
	var email string
	err = p.db.QueryRow(`SELECT email FROM accounts WHERE uid = ?`, s.UID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		p.logger.Info("persisted account no longer exists", "uid", s.UID)
		return nil
	}
	if err != nil {
		p.logger.Warn("could not verify persisted session", "uid", s.UID, "err", err)
		return nil
	}
	return &auth.Identity{UID: s.UID, Email: email}
}

func normalizeEmail(op, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", auth.Reject(op, auth.ReasonInvalidEmail, nil)
	}
	return email, nil
}
