// Package editor serves the admin editing screens: one server-side editing
// session per browser session and collection, plus the collections API.
package editor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/session"
)

var editorLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

type Handler struct {
	registry *Registry
	sessions *Sessions
	env      Env
}

func NewHandler(registry *Registry, sessions *Sessions, env Env) *Handler {
	return &Handler{
		registry: registry,
		sessions: sessions,
		env:      env,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/{resource}", h.serveState)
	mux.HandleFunc("POST /admin/{resource}/ops", h.serveOp)
	mux.HandleFunc("POST /admin/{resource}/save", h.serveSave)
	mux.HandleFunc("POST /admin/{resource}/reset", h.serveReset)
	mux.HandleFunc("POST /admin/{resource}/conflict/{remedy}", h.serveConflict)
	mux.HandleFunc("GET /admin/{resource}/leave", h.serveLeave)
	mux.HandleFunc("GET /admin/{resource}/preview", h.servePreview)
	mux.HandleFunc("/api/collections/{resource}", h.serveCollection)
}

func (h *Handler) resource(w http.ResponseWriter, r *http.Request) (Resource, bool) {
	key := model.ResourceKey(r.PathValue("resource"))
	res, ok := h.registry.Get(key)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", model.ErrNotFound, key))
		return nil, false
	}
	return res, true
}

// editorSessionID returns the editor-session cookie, issuing one when absent.
func editorSessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieEditorSession); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieEditorSession,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// binding resolves the caller's session for the requested collection and
// loads it on first use.
func (h *Handler) binding(w http.ResponseWriter, r *http.Request) (Binding, bool) {
	res, ok := h.resource(w, r)
	if !ok {
		return nil, false
	}

	b, err := h.sessions.Get(r.Context(), editorSessionID(w, r), res, h.env)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return b, true
}

func confirmed(r *http.Request) *http.Request {
	if r.FormValue("confirm") != "true" {
		return r
	}
	return r.WithContext(session.WithConfirmation(r.Context(), true))
}

func (h *Handler) serveState(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.State())
}

func (h *Handler) serveOp(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}

	var op Op
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	result, err := b.Apply(op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Debug().
		Str("resource", string(b.Key())).
		Str("op", op.Op).
		Msg("Applied editing operation")

	writeJSON(w, http.StatusOK, struct {
		Result any `json:"result,omitempty"`
		State  any `json:"state"`
	}{result, b.State()})
}

func (h *Handler) serveSave(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}
	r = confirmed(r)

	if err := b.Save(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("resource", string(b.Key())).Msg("Collection saved")
	writeJSON(w, http.StatusOK, b.State())
}

func (h *Handler) serveReset(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}
	r = confirmed(r)

	if err := b.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.State())
}

func (h *Handler) serveConflict(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}

	remedy := model.Remedy(r.PathValue("remedy"))
	if err := b.Resolve(r.Context(), remedy); err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("resource", string(b.Key())).
		Str("remedy", string(remedy)).
		Msg("Conflict resolved")
	writeJSON(w, http.StatusOK, b.State())
}

func (h *Handler) serveLeave(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}
	r = confirmed(r)

	writeJSON(w, http.StatusOK, map[string]bool{"canLeave": b.ConfirmLeave(r.Context())})
}

func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request) {
	b, ok := h.binding(w, r)
	if !ok {
		return
	}

	html, err := b.Preview(r.URL.Query().Get("view") == "source")
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(html)
}

func (h *Handler) serveCollection(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	res.ServeCollection(w, r, h.env)
}

// Close ends every open editing session.
func (h *Handler) Close() {
	h.sessions.Close()
}
