package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rdouglass/quicknotes/internal/auth"
	"github.com/rdouglass/quicknotes/internal/model"
)

const sessionCookieName = "quicknotes_session"

const (
	loginPath   = "/login"
	landingPath = "/dashboard"

	// redirectToParam carries the originally requested path through the
	// login redirect so the login flow can send the user back.
	redirectToParam = "redirectTo"
)

// Path classification: protected paths match exactly or by segment prefix,
// auth-only paths match exactly. Anything else is public.
var (
	protectedPaths = []string{"/dashboard", "/profile"}
	authOnlyPaths  = []string{"/login", "/signup"}
)

// SessionFetcher is the slice of the identity provider the guard needs.
type SessionFetcher interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
}

// GuardMetrics records guard redirect decisions. May be nil.
type GuardMetrics interface {
	RecordGuardRedirect(reason string)
}

// RouteGuard re-derives the session from the request's cookie on every
// navigation and enforces the path partition: protected paths without a
// session redirect to login with the requested path attached as redirectTo,
// auth-only paths with a session redirect to the dashboard, and everything
// else passes through. A session-fetch failure counts as "no session", so
// protected paths fail closed. Authenticated requests get an AuthContext.
func RouteGuard(provider SessionFetcher, m GuardMetrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := fetchSession(provider, r, logger)
			path := r.URL.Path

			if isProtected(path) && sess == nil {
				target := loginPath + "?" + redirectToParam + "=" + url.QueryEscape(path)
				if m != nil {
					m.RecordGuardRedirect("login")
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			if isAuthOnly(path) && sess != nil {
				if m != nil {
					m.RecordGuardRedirect("landing")
				}
				http.Redirect(w, r, landingPath, http.StatusSeeOther)
				return
			}

			if sess != nil {
				ac := auth.AuthContext{
					UserID:    sess.UserID,
					SessionID: sess.ID,
					Token:     sess.Token,
				}
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fetchSession(provider SessionFetcher, r *http.Request, logger *slog.Logger) *model.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := provider.GetSession(r.Context(), cookie.Value)
	if err != nil {
		// Fail closed: a provider error is treated as no session.
		logger.Error("route guard session fetch", "error", err)
		return nil
	}
	return sess
}

func isProtected(path string) bool {
	for _, p := range protectedPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isAuthOnly(path string) bool {
	for _, p := range authOnlyPaths {
		if path == p {
			return true
		}
	}
	return false
}
