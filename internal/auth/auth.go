// Package auth defines the authentication provider contract shared by the
// identity backends, and the pieces they have in common.
package auth

import (
	"context"
	"errors"
	"fmt"
)

// Identity is a signed-in user as reported by a provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Provider issues identities on a successful credential check and reports
// every identity change, including the initial resolution of a persisted
// session.
type Provider interface {
	// SignIn checks the credentials. Failures are *RejectedError.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignUp creates an account and signs it in. Failures are *RejectedError.
	SignUp(ctx context.Context, email, password string) (*Identity, error)

	// SignOut ends the current session. Signing out while signed out is a no-op.
	SignOut(ctx context.Context) error

	// OnIdentityChange registers fn and returns its unsubscribe function.
	// fn is called with the current identity, or nil, on every change. The
	// first call happens once the provider has resolved its persisted
	// session, which may be after OnIdentityChange returns.
	OnIdentityChange(fn func(*Identity)) (unsubscribe func())
}

// Reason is the provider-reported cause of a rejected credential check.
type Reason string

const (
	ReasonUserNotFound      Reason = "user-not-found"
	ReasonWrongPassword     Reason = "wrong-password"
	ReasonInvalidCredential Reason = "invalid-credential"
	ReasonInvalidEmail      Reason = "invalid-email"
	ReasonEmailAlreadyInUse Reason = "email-already-in-use"
	ReasonWeakPassword      Reason = "weak-password"
	ReasonOther             Reason = "other"
)

// Message returns the text shown to the user for r.
func (r Reason) Message() string {
	switch r {
	case ReasonUserNotFound:
		return "no account exists for this email"
	case ReasonWrongPassword:
		return "incorrect password"
	case ReasonInvalidCredential:
		return "email or password is incorrect"
	case ReasonInvalidEmail:
		return "email address is not valid"
	case ReasonEmailAlreadyInUse:
		return "an account already exists for this email"
	case ReasonWeakPassword:
		return "password must be at least 6 characters"
	default:
		return "authentication failed"
	}
}

// Operation names used in RejectedError.
const (
	OpSignIn = "sign-in"
	OpSignUp = "sign-up"
)

// ErrRejected matches every *RejectedError with errors.Is.
var ErrRejected = errors.New("authentication rejected")

// RejectedError is a credential failure with its reason.
type RejectedError struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Reason == ReasonOther && e.Err != nil {
		return fmt.Sprintf("%s rejected: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason.Message())
}

func (e *RejectedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRejected.
func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Reject builds a *RejectedError.
func Reject(op string, reason Reason, err error) error {
	return &RejectedError{Op: op, Reason: reason, Err: err}
}

// ReasonOf returns the rejection reason carried by err, or "" if err is not
// a rejection.
func ReasonOf(err error) Reason {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
