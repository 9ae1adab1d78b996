package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/rdouglass/quicknotes/internal/auth"
)

type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

func NewPageHandler(logger *slog.Logger) *PageHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/*.html"))
	return &PageHandler{templates: tmpl, logger: logger}
}

// Home renders the public landing page.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":    "Quicknotes",
		"SignedIn": auth.IsAuthenticated(r.Context()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		h.logger.Error("render template", "template", "home.html", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
