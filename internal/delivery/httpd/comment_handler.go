package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reset980reset980/write0917/internal/models"
)

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.commentService.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	writeSuccess(w, comments)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.EssayID = chi.URLParam(r, "id")

	comment, err := h.commentService.CreateComment(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, comment)
}
