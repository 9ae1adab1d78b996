package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/rdouglass/quicknotes/internal/email"
	"github.com/rdouglass/quicknotes/internal/model"
	"github.com/rdouglass/quicknotes/internal/store"
)

// Service is the SQLite-backed Provider implementation.
type Service struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	mailer       *email.Client
	logger       *slog.Logger

	mu          sync.RWMutex
	subscribers map[int]Handler
	nextSubID   int
}

func NewService(us *store.UserStore, ss *store.SessionStore, mailer *email.Client, logger *slog.Logger) *Service {
	return &Service{
		userStore:    us,
		sessionStore: ss,
		mailer:       mailer,
		logger:       logger,
		subscribers:  make(map[int]Handler),
	}
}

func (s *Service) SignInWithPassword(ctx context.Context, emailAddr, password string) (*model.Session, error) {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))

	id, hash, confirmed, err := s.userStore.Credentials(emailAddr)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if id == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !confirmed {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := s.sessionStore.Create(id)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.emit(EventSignedIn, sess)
	return sess, nil
}

// SignUp registers a new user and sends a confirmation email whose link lands
// the user on redirectTo after confirming. Without a configured mailer the
// account is confirmed immediately.
func (s *Service) SignUp(ctx context.Context, emailAddr, password, redirectTo string) (*model.User, error) {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))
	if emailAddr == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.userStore.GetByEmail(emailAddr)
	if err != nil {
		return nil, fmt.Errorf("sign up lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	confirmToken := ""
	if s.mailer.Configured() {
		confirmToken, err = randomToken()
		if err != nil {
			return nil, err
		}
	}

	user, err := s.userStore.Create(emailAddr, string(hash), confirmToken)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if confirmToken != "" {
		if err := s.mailer.SendConfirmation(emailAddr, confirmToken, redirectTo); err != nil {
			s.logger.Error("send confirmation email", "error", err)
		}
	}

	return user, nil
}

// SignOut deletes the session for the given token. Unknown tokens are not an
// error; the caller is already logged out.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessionStore.DeleteByToken(token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.emit(EventSignedOut, nil)
	return nil
}

func (s *Service) GetSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	return s.sessionStore.GetByToken(token)
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.userStore.GetByID(id)
}

// Refresh exchanges a refresh token for a fresh session, revoking the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	old, err := s.sessionStore.GetByRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if old == nil {
		return nil, ErrNoSession
	}

	if err := s.sessionStore.Delete(old.ID); err != nil {
		return nil, fmt.Errorf("revoke refreshed session: %w", err)
	}
	sess, err := s.sessionStore.Create(old.UserID)
	if err != nil {
		return nil, fmt.Errorf("create refreshed session: %w", err)
	}

	s.emit(EventTokenRefreshed, sess)
	return sess, nil
}

// ConfirmEmail redeems a single-use confirmation token. Returns nil if the
// token matches no pending confirmation.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*model.User, error) {
	return s.userStore.ConfirmByToken(token)
}

// OnAuthStateChange registers a handler for auth-state changes and returns a
// function that removes the registration.
func (s *Service) OnAuthStateChange(h Handler) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Service) emit(event Event, sess *model.Session) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.subscribers))
	for _, h := range s.subscribers {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		go h(event, sess)
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
