// Package identity implements the identity provider consumed by the session
// manager and the route guard: password sign-in/sign-up, session issuance and
// lookup, sign-out, and auth-state change notifications.
package identity

import (
	"context"
	"errors"

	"github.com/rdouglass/quicknotes/internal/model"
)

// Event identifies the kind of auth-state change delivered to subscribers.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no active session")
)

// Handler receives auth-state change notifications. The session is nil for
// sign-out events. Handlers are invoked asynchronously and must not assume
// any ordering relative to in-flight provider calls.
type Handler func(event Event, session *model.Session)

// Provider is the contract the session manager and route guard consume.
// GetSession returns (nil, nil) when no valid session exists for the token;
// an error indicates a provider failure, which callers treat as "no session".
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*model.User, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	OnAuthStateChange(h Handler) (unsubscribe func())
}
