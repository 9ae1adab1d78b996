package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rdouglass/quicknotes/internal/identity"
	"github.com/rdouglass/quicknotes/internal/model"
)

// IdentityService is the slice of the identity provider the auth handlers use.
type IdentityService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*model.User, error)
	SignOut(ctx context.Context, token string) error
	ConfirmEmail(ctx context.Context, token string) (*model.User, error)
}

type AuthHandler struct {
	provider  IdentityService
	metrics   Metrics
	templates *template.Template
	logger    *slog.Logger
}

func NewAuthHandler(provider IdentityService, m Metrics, logger *slog.Logger) *AuthHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/auth_*.html"))
	return &AuthHandler{
		provider:  provider,
		metrics:   m,
		templates: tmpl,
		logger:    logger,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_login.html", map[string]any{
		"RedirectTo": sanitizeRedirect(r.URL.Query().Get("redirectTo"), ""),
	})
}

// Login signs the user in and redirects regardless of outcome: failures are
// logged server-side and the browser lands back on the target page, where the
// route guard bounces unauthenticated visitors to the login form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	target := sanitizeRedirect(r.FormValue("redirectTo"), "/profile")

	sess, err := h.provider.SignInWithPassword(r.Context(), emailAddr, password)
	if err != nil {
		h.logger.Warn("sign in failed", "email", emailAddr, "error", err)
		if h.metrics != nil {
			h.metrics.RecordSignIn("failure")
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	setSessionCookie(w, r, sess.Token)
	if h.metrics != nil {
		h.metrics.RecordSignIn("success")
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_signup.html", map[string]any{})
}

// Signup validates the form, registers the account, and shows the check-email
// page. An already-registered email shows the same page to prevent user
// enumeration.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if password != confirm {
		h.templates.ExecuteTemplate(w, "auth_signup.html", map[string]any{
			"Email": emailAddr,
			"Error": "passwords do not match",
		})
		return
	}
	if emailAddr == "" || password == "" {
		h.templates.ExecuteTemplate(w, "auth_signup.html", map[string]any{
			"Email": emailAddr,
			"Error": "email and password are required",
		})
		return
	}

	_, err := h.provider.SignUp(r.Context(), emailAddr, password, "/login")
	if err != nil && !errors.Is(err, identity.ErrEmailTaken) {
		h.logger.Error("sign up", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err == nil && h.metrics != nil {
		h.metrics.RecordSignUp()
	}

	h.templates.ExecuteTemplate(w, "auth_check_email.html", map[string]any{
		"Email": emailAddr,
	})
}

// Logout revokes the session server-side on a best-effort basis and always
// clears the browser's cookie, so the user ends up signed out locally even
// when revocation fails.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.provider.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("sign out", "error", err)
		}
	}

	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusMovedPermanently)
}

// Confirm redeems an email confirmation token from the link the mailer sent
// and forwards the user to the link's on-site destination.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	target := sanitizeRedirect(r.URL.Query().Get("redirect_to"), "/login")

	if token == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.provider.ConfirmEmail(r.Context(), token)
	if err != nil {
		h.logger.Error("confirm email", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		// Expired or already-used token
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}
