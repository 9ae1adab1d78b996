package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const (
	sessionCookieName   = "quicknotes_session"
	sessionCookieMaxAge = 7 * 24 * 60 * 60
)

// Metrics is the slice of the metrics collector the handlers use. May be nil.
type Metrics interface {
	RecordSignIn(result string)
	RecordSignUp()
	RecordNoteCreated()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// sanitizeRedirect keeps redirect targets on-site. Anything that is not a
// rooted local path falls back to the given default.
func sanitizeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
