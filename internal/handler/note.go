package handler

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/rdouglass/quicknotes/internal/auth"
	"github.com/rdouglass/quicknotes/internal/model"
	"github.com/rdouglass/quicknotes/internal/store"
	"github.com/rdouglass/quicknotes/internal/websocket"
)

type NoteHandler struct {
	noteStore *store.NoteStore
	hub       *websocket.Hub
	metrics   Metrics
	templates *template.Template
	logger    *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, hub *websocket.Hub, m Metrics, logger *slog.Logger) *NoteHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/*.html"))
	return &NoteHandler{
		noteStore: ns,
		hub:       hub,
		metrics:   m,
		templates: tmpl,
		logger:    logger,
	}
}

func (h *NoteHandler) publish(userID string, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Publish(userID, ev)
	}
}

// Dashboard lists the signed-in user's notes, most recent first. A query
// failure renders the error page with the failure detail so the problem is
// visible instead of a blank screen.
func (h *NoteHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	count, err := h.noteStore.CountByUserID(ac.UserID)
	if err == nil {
		var notes []model.Note
		notes, err = h.noteStore.ListByUserID(ac.UserID)
		if err == nil {
			h.render(w, "dashboard.html", map[string]any{
				"Title": "Dashboard",
				"Count": count,
				"Notes": notes,
			})
			return
		}
	}

	h.logger.Error("dashboard query", "user_id", ac.UserID, "error", err)
	h.render(w, "dashboard_error.html", map[string]any{
		"Title":  "Dashboard",
		"Detail": err.Error(),
	})
}

// NoteCreate saves a note from the dashboard form. Blank title or content is
// stored as absent, not as an empty string.
func (h *NoteHandler) NoteCreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	note, err := h.noteStore.Create(ac.UserID, formField(r, "title"), formField(r, "content"))
	if err != nil {
		h.logger.Error("create note", "user_id", ac.UserID, "error", err)
		http.Error(w, "failed to create note", http.StatusInternalServerError)
		return
	}

	h.publish(ac.UserID, websocket.NoteCreated(note.ID))
	if h.metrics != nil {
		h.metrics.RecordNoteCreated()
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// APIList returns the signed-in user's notes as JSON.
func (h *NoteHandler) APIList(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	notes, err := h.noteStore.ListByUserID(ac.UserID)
	if err != nil {
		h.logger.Error("list notes", "user_id", ac.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notes"})
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// APICreate saves a note from a JSON request body. Missing fields are stored
// as absent.
func (h *NoteHandler) APICreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	note, err := h.noteStore.Create(ac.UserID, req.Title, req.Content)
	if err != nil {
		h.logger.Error("create note", "user_id", ac.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create note"})
		return
	}

	h.publish(ac.UserID, websocket.NoteCreated(note.ID))
	if h.metrics != nil {
		h.metrics.RecordNoteCreated()
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// formField returns a pointer to the form value, or nil when blank.
func formField(r *http.Request, name string) *string {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}
