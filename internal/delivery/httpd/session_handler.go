package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reset980reset980/write0917/internal/session"
)

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeSuccess(w, s.Snapshot())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, s.Snapshot())
}

// DispatchAction runs one transition and answers with the resulting state.
// Inline validation problems are part of that state, not an error status.
func (h *Handler) DispatchAction(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	var action session.Action
	if err := decodeJSON(r, &action); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if action.Type == "" {
		writeError(w, http.StatusBadRequest, "action type is required")
		return
	}

	if err := s.Dispatch(r.Context(), action); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, s.Snapshot())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.Delete(id) {
		h.handleServiceError(w, session.ErrNotFound)
		return
	}

	writeSuccess(w, map[string]string{"id": id})
}
