package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/rdouglass/quicknotes/internal/database"
	"github.com/rdouglass/quicknotes/internal/email"
	"github.com/rdouglass/quicknotes/internal/model"
	"github.com/rdouglass/quicknotes/internal/store"
)

func setupService(t *testing.T, mailer *email.Client) *Service {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(store.NewUserStore(db), store.NewSessionStore(db), mailer, slog.Default())
}

type authEvent struct {
	event   Event
	session *model.Session
}

func subscribe(t *testing.T, svc *Service) chan authEvent {
	t.Helper()
	events := make(chan authEvent, 8)
	unsubscribe := svc.OnAuthStateChange(func(ev Event, sess *model.Session) {
		events <- authEvent{event: ev, session: sess}
	})
	t.Cleanup(unsubscribe)
	return events
}

func waitEvent(t *testing.T, events chan authEvent) authEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for auth event")
		return authEvent{}
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	events := subscribe(t, svc)

	user, err := svc.SignUp(ctx, "user@example.com", "correctpass", "/login")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if !user.Confirmed() {
		t.Error("expected auto-confirmed user without mailer")
	}

	sess, err := svc.SignInWithPassword(ctx, "user@example.com", "correctpass")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.UserID != user.ID {
		t.Errorf("session user = %q, want %q", sess.UserID, user.ID)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	ev := waitEvent(t, events)
	if ev.event != EventSignedIn {
		t.Errorf("event = %q, want %q", ev.event, EventSignedIn)
	}
	if ev.session == nil || ev.session.Token != sess.Token {
		t.Error("expected signed-in session in event")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "user@example.com", "correctpass", ""); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, err := svc.SignInWithPassword(ctx, "user@example.com", "wrongpass")
	if err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	svc := setupService(t, nil)

	_, err := svc.SignInWithPassword(context.Background(), "nobody@example.com", "pass")
	if err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "user@example.com", "pass1", ""); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, err := svc.SignUp(ctx, "user@example.com", "pass2", "")
	if err != ErrEmailTaken {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

type rewriteTransport struct {
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u, err := url.Parse(t.target)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = u.Scheme
	req.URL.Host = u.Host
	return http.DefaultTransport.RoundTrip(req)
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)

func TestSignUpConfirmationFlow(t *testing.T) {
	var textBody string
	mailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			TextBody string `json:"TextBody"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		textBody = payload.TextBody
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer mailServer.Close()

	mailer := email.NewClient("test-token", "noreply@example.com", "https://quicknotes.test",
		email.WithHTTPClient(&http.Client{Transport: &rewriteTransport{target: mailServer.URL}}))
	svc := setupService(t, mailer)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "bob@example.com", "secretpass", "/login")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Confirmed() {
		t.Error("expected unconfirmed user with mailer configured")
	}

	// Sign-in blocked until confirmation
	if _, err := svc.SignInWithPassword(ctx, "bob@example.com", "secretpass"); err != ErrEmailNotConfirmed {
		t.Errorf("err = %v, want ErrEmailNotConfirmed", err)
	}

	m := tokenPattern.FindStringSubmatch(textBody)
	if m == nil {
		t.Fatalf("no token in confirmation mail: %q", textBody)
	}

	confirmed, err := svc.ConfirmEmail(ctx, m[1])
	if err != nil {
		t.Fatalf("confirm email: %v", err)
	}
	if confirmed == nil || confirmed.ID != user.ID {
		t.Fatalf("confirmed = %+v, want user %q", confirmed, user.ID)
	}

	if _, err := svc.SignInWithPassword(ctx, "bob@example.com", "secretpass"); err != nil {
		t.Errorf("sign in after confirm: %v", err)
	}
}

func TestSignOut(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	svc.SignUp(ctx, "user@example.com", "pass", "")
	sess, err := svc.SignInWithPassword(ctx, "user@example.com", "pass")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	events := subscribe(t, svc)

	if err := svc.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	got, err := svc.GetSession(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected nil session after sign-out")
	}

	ev := waitEvent(t, events)
	if ev.event != EventSignedOut {
		t.Errorf("event = %q, want %q", ev.event, EventSignedOut)
	}
	if ev.session != nil {
		t.Error("expected nil session in sign-out event")
	}
}

func TestSignOutEmptyToken(t *testing.T) {
	svc := setupService(t, nil)
	if err := svc.SignOut(context.Background(), ""); err != nil {
		t.Errorf("sign out with empty token: %v", err)
	}
}

func TestGetSessionEmptyToken(t *testing.T) {
	svc := setupService(t, nil)

	sess, err := svc.GetSession(context.Background(), "")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for empty token")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	svc.SignUp(ctx, "user@example.com", "pass", "")
	old, _ := svc.SignInWithPassword(ctx, "user@example.com", "pass")

	events := subscribe(t, svc)

	fresh, err := svc.Refresh(ctx, old.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.Token == old.Token {
		t.Error("expected a new access token")
	}
	if fresh.UserID != old.UserID {
		t.Errorf("user = %q, want %q", fresh.UserID, old.UserID)
	}

	// The old session is revoked
	got, _ := svc.GetSession(ctx, old.Token)
	if got != nil {
		t.Error("expected old session revoked")
	}

	ev := waitEvent(t, events)
	if ev.event != EventTokenRefreshed {
		t.Errorf("event = %q, want %q", ev.event, EventTokenRefreshed)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc := setupService(t, nil)

	_, err := svc.Refresh(context.Background(), "bogus")
	if err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	events := make(chan authEvent, 8)
	unsubscribe := svc.OnAuthStateChange(func(ev Event, sess *model.Session) {
		events <- authEvent{event: ev, session: sess}
	})
	unsubscribe()

	svc.SignUp(ctx, "user@example.com", "pass", "")
	svc.SignInWithPassword(ctx, "user@example.com", "pass")

	select {
	case ev := <-events:
		t.Errorf("unexpected event after unsubscribe: %v", ev.event)
	case <-time.After(50 * time.Millisecond):
	}
}
