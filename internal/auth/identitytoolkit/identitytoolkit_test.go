package identitytoolkit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"tasksync/internal/auth"
	"tasksync/internal/auth/identitytoolkit"
)

type fakeServer struct {
	t        *testing.T
	accounts map[string]string // email -> password
	refresh  map[string]string // refresh token -> uid
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != "test-key" {
		writeError(w, http.StatusBadRequest, "API_KEY_INVALID")
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/verifyPassword"):
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		pw, ok := f.accounts[req.Email]
		switch {
		case !ok:
			writeError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
		case pw != req.Password:
			writeError(w, http.StatusBadRequest, "INVALID_PASSWORD")
		default:
			writeJSON(w, map[string]string{
				"localId": "uid-" + req.Email, "email": req.Email,
				"idToken": "id-token", "refreshToken": "rt-" + req.Email, "expiresIn": "3600",
			})
		}
	case strings.HasSuffix(r.URL.Path, "/signupNewUser"):
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case !strings.Contains(req.Email, "@"):
			writeError(w, http.StatusBadRequest, "INVALID_EMAIL")
		case len(req.Password) < 6:
			writeError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
		case f.accounts[req.Email] != "":
			writeError(w, http.StatusBadRequest, "EMAIL_EXISTS")
		default:
			f.accounts[req.Email] = req.Password
			writeJSON(w, map[string]string{
				"localId": "uid-" + req.Email, "email": req.Email,
				"idToken": "id-token", "refreshToken": "rt-" + req.Email, "expiresIn": "3600",
			})
		}
	case strings.HasSuffix(r.URL.Path, "/token"):
		_ = r.ParseForm()
		uid, ok := f.refresh[r.PostForm.Get("refresh_token")]
		if r.PostForm.Get("grant_type") != "refresh_token" || !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		writeJSON(w, map[string]string{
			"access_token": "renewed", "expires_in": "3600", "token_type": "Bearer",
			"refresh_token": "rt2", "user_id": uid,
		})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"errors":  []map[string]string{{"message": message, "domain": "global", "reason": "invalid"}},
		},
	})
}

func newProvider(t *testing.T) (*identitytoolkit.Provider, *fakeServer, string) {
	t.Helper()
	fake := &fakeServer{
		t:        t,
		accounts: map[string]string{"ana@example.com": "secret1"},
		refresh:  map[string]string{},
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	sessionPath := filepath.Join(t.TempDir(), "auth.json")
	p, err := identitytoolkit.New(context.Background(), identitytoolkit.Config{
		APIKey:      "test-key",
		Endpoint:    srv.URL + "/v3/relyingparty/",
		TokenURL:    srv.URL + "/v1/token",
		SessionPath: sessionPath,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, fake, sessionPath
}

func firstIdentity(t *testing.T, p auth.Provider) *auth.Identity {
	t.Helper()
	ch := make(chan *auth.Identity, 4)
	unsub := p.OnIdentityChange(func(id *auth.Identity) { ch <- id })
	defer unsub()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("identity was never resolved")
		return nil
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := identitytoolkit.New(context.Background(), identitytoolkit.Config{}, slog.Default()); err == nil {
		t.Error("expected error without api key")
	}
}

func TestSignIn(t *testing.T) {
	p, _, sessionPath := newProvider(t)
	ctx := context.Background()

	id, err := p.SignIn(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if id.UID != "uid-ana@example.com" || id.Email != "ana@example.com" {
		t.Errorf("unexpected identity: %+v", id)
	}

	s, err := auth.LoadSession(sessionPath)
	if err != nil || s == nil {
		t.Fatalf("expected persisted session, got %+v, %v", s, err)
	}
	if s.Token.RefreshToken != "rt-ana@example.com" {
		t.Errorf("unexpected refresh token %q", s.Token.RefreshToken)
	}
}

func TestSignIn_Rejections(t *testing.T) {
	p, _, _ := newProvider(t)
	tests := []struct {
		name     string
		email    string
		password string
		want     auth.Reason
	}{
		{"unknown user", "bob@example.com", "secret1", auth.ReasonUserNotFound},
		{"wrong password", "ana@example.com", "nope", auth.ReasonWrongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignIn(context.Background(), tt.email, tt.password)
			if !errors.Is(err, auth.ErrRejected) {
				t.Fatalf("expected rejection, got %v", err)
			}
			if got := auth.ReasonOf(err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSignUp_Rejections(t *testing.T) {
	p, _, _ := newProvider(t)
	tests := []struct {
		name     string
		email    string
		password string
		want     auth.Reason
	}{
		{"existing", "ana@example.com", "secret1", auth.ReasonEmailAlreadyInUse},
		{"weak", "new@example.com", "123", auth.ReasonWeakPassword},
		{"bad email", "not-an-email", "secret1", auth.ReasonInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(context.Background(), tt.email, tt.password)
			if got := auth.ReasonOf(err); got != tt.want {
				t.Errorf("expected %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}

func TestSignUpThenSignOut(t *testing.T) {
	p, _, sessionPath := newProvider(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "new@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if got := firstIdentity(t, p); got == nil || got.UID != "uid-new@example.com" {
		t.Errorf("expected signed-up identity, got %+v", got)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := os.Stat(sessionPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected session file removed, stat err = %v", err)
	}
	if got := firstIdentity(t, p); got != nil {
		t.Errorf("expected signed out, got %+v", got)
	}
}

func TestRestore_NoSession(t *testing.T) {
	p, _, _ := newProvider(t)
	if got := firstIdentity(t, p); got != nil {
		t.Errorf("expected nil identity, got %+v", got)
	}
}

func TestRestore_ValidToken(t *testing.T) {
	p, _, sessionPath := newProvider(t)
	err := auth.SaveSession(sessionPath, &auth.Session{
		UID: "u1", Email: "ana@example.com",
		Token: &oauth2.Token{AccessToken: "id", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := firstIdentity(t, p); got == nil || got.UID != "u1" {
		t.Errorf("expected restored identity, got %+v", got)
	}
}

func TestRestore_RefreshesExpiredToken(t *testing.T) {
	p, fake, sessionPath := newProvider(t)
	fake.refresh["rt-old"] = "u1"
	err := auth.SaveSession(sessionPath, &auth.Session{
		UID: "u1", Email: "ana@example.com",
		Token: &oauth2.Token{AccessToken: "stale", RefreshToken: "rt-old", Expiry: time.Now().Add(-time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := firstIdentity(t, p); got == nil || got.UID != "u1" {
		t.Fatalf("expected restored identity, got %+v", got)
	}
	s, err := auth.LoadSession(sessionPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.Token.AccessToken != "renewed" || s.Token.RefreshToken != "rt2" {
		t.Errorf("expected renewed token to be saved, got %+v", s.Token)
	}
}

func TestRestore_RevokedRefreshToken(t *testing.T) {
	p, _, sessionPath := newProvider(t)
	err := auth.SaveSession(sessionPath, &auth.Session{
		UID: "u1", Email: "ana@example.com",
		Token: &oauth2.Token{AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := firstIdentity(t, p); got != nil {
		t.Errorf("expected signed out, got %+v", got)
	}
	if _, err := os.Stat(sessionPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected revoked session to be removed, stat err = %v", err)
	}
}
