package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserkube-console/internal/catalog"
	"github.com/shehryarbajwa/browserkube-console/internal/client"
	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/filter"
	"github.com/shehryarbajwa/browserkube-console/internal/session"
	"github.com/shehryarbajwa/browserkube-console/internal/webdriver"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Backend is the console state the HTTP API exposes
type Backend interface {
	Store() *session.Store
	Status() models.SessionStatus
	Create(ctx context.Context, req models.CreateSessionRequest) (string, error)
	Delete(ctx context.Context, id string) error
	Select(ctx context.Context, id string) error
	Deselect()
	Active() details.View
	NextCommands(ctx context.Context) error
	Toasts() []console.Toast
	Dismiss(id string)
	VNCURL(id string) (string, error)
	LogsURL(id string) (string, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	backend Backend
}

// NewHandler creates a new HTTP handler
func NewHandler(backend Backend) *Handler {
	return &Handler{
		backend: backend,
	}
}

// Row is the JSON form of a session list line
type Row struct {
	Kind string `json:"kind"`
	models.Session
}

func toRow(r models.Row) Row {
	switch r := r.(type) {
	case models.ActiveRow:
		return Row{Kind: "active", Session: r.S}
	case models.TerminatedRow:
		return Row{Kind: "terminated", Session: r.S}
	}
	return Row{}
}

// ListSessions handles GET /v1/sessions
// Query: q=<name substring>, chrome=116,115, screenResolution=1920x1080, auto=Auto, manual=Manual
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f := filter.Filter{}
	for _, cat := range filter.Categories {
		raw := query.Get(string(cat))
		if raw == "" {
			continue
		}
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f[cat] = append(f[cat], v)
			}
		}
	}

	rows := filter.Search(query.Get("q"), filter.Apply(f, h.backend.Store().Rows()))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRow(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.backend.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"sessionId": id,
		"status":    string(h.backend.Store().CreateStatus()),
	})
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.backend.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ActiveView is the JSON form of the selected session
type ActiveView struct {
	ID       string                 `json:"id"`
	Session  *Row                   `json:"session,omitempty"`
	Details  *models.SessionDetails `json:"details,omitempty"`
	Logs     string                 `json:"logs,omitempty"`
	Loading  bool                   `json:"loading"`
	Error    string                 `json:"error,omitempty"`
	Commands CommandsView           `json:"commands"`
}

// CommandsView is the JSON form of the loaded command pages
type CommandsView struct {
	Items     []models.Command `json:"items"`
	Token     string           `json:"token,omitempty"`
	State     commands.State   `json:"state"`
	Exhausted bool             `json:"exhausted"`
}

func toActiveView(v details.View) ActiveView {
	out := ActiveView{
		ID:      v.ID,
		Details: v.Details,
		Logs:    string(v.Logs),
		Loading: v.Loading,
		Commands: CommandsView{
			Items:     v.Commands.Commands,
			Token:     v.Commands.Token,
			State:     v.Commands.State,
			Exhausted: v.Commands.Exhausted,
		},
	}
	if out.Commands.Items == nil {
		out.Commands.Items = []models.Command{}
	}
	if v.Row != nil {
		row := toRow(v.Row)
		out.Session = &row
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return out
}

// SelectSession handles PUT /v1/active/{id}
func (h *Handler) SelectSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.backend.Select(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveView(h.backend.Active()))
}

// ClearSelection handles DELETE /v1/active
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.backend.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

// GetActive handles GET /v1/active
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toActiveView(h.backend.Active()))
}

// GetCommands handles GET /v1/active/commands
func (h *Handler) GetCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toActiveView(h.backend.Active()).Commands)
}

// NextCommands handles POST /v1/active/commands/next
func (h *Handler) NextCommands(w http.ResponseWriter, r *http.Request) {
	err := h.backend.NextCommands(r.Context())
	switch {
	case errors.Is(err, commands.ErrExhausted):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveView(h.backend.Active()).Commands)
}

// GetStatus handles GET /v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Status())
}

// ListToasts handles GET /v1/toasts
func (h *Handler) ListToasts(w http.ResponseWriter, r *http.Request) {
	toasts := h.backend.Toasts()
	if toasts == nil {
		toasts = []console.Toast{}
	}
	writeJSON(w, http.StatusOK, toasts)
}

// DismissToast handles DELETE /v1/toasts/{id}
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	h.backend.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps console errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *client.RequestError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, commands.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, commands.ErrNoSession):
		status = http.StatusBadRequest
	case errors.As(err, &reqErr):
		status = http.StatusBadGateway
	case errors.Is(err, catalog.ErrUnsupported), errors.Is(err, webdriver.ErrBrowserRequired):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
