package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/rdouglass/quicknotes/internal/auth"
	"github.com/rdouglass/quicknotes/internal/model"
)

// AccountSource is the slice of the identity provider the profile page uses.
type AccountSource interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetSession(ctx context.Context, token string) (*model.Session, error)
}

type ProfileHandler struct {
	provider  AccountSource
	templates *template.Template
	logger    *slog.Logger
}

func NewProfileHandler(provider AccountSource, logger *slog.Logger) *ProfileHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/*.html"))
	return &ProfileHandler{
		provider:  provider,
		templates: tmpl,
		logger:    logger,
	}
}

// Profile shows the signed-in user's account details and how long the current
// session has left.
func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.provider.GetUser(r.Context(), ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("profile user lookup", "user_id", ac.UserID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	sess, err := h.provider.GetSession(r.Context(), ac.Token)
	if err != nil || sess == nil {
		h.logger.Error("profile session lookup", "user_id", ac.UserID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Title":            "Profile",
		"Email":            user.Email,
		"UserID":           user.ID,
		"Confirmed":        user.Confirmed(),
		"SessionExpiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
		"SessionMinutes":   int(time.Until(sess.ExpiresAt).Minutes()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "profile.html", data); err != nil {
		h.logger.Error("render template", "template", "profile.html", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
