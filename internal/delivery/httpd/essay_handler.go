package httpd

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/models"
)

// publicEssay hides the edit code from everyone but teachers.
func publicEssay(r *http.Request, essay models.Essay) models.Essay {
	if middleware.IsTeacher(r.Context()) {
		return essay
	}
	return essay.Public()
}

func (h *Handler) ListEssays(w http.ResponseWriter, r *http.Request) {
	essays, err := h.essayService.ListEssays(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	out := make([]models.Essay, len(essays))
	for i, e := range essays {
		out[i] = publicEssay(r, e)
	}
	writeSuccess(w, models.EssaysResponse{Essays: out, Total: len(out)})
}

// CreateEssay answers with the edit code; this is the only time the author
// sees it.
func (h *Handler) CreateEssay(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEssayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	essay, err := h.essayService.CreateEssay(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, essay)
}

func (h *Handler) GetEssay(w http.ResponseWriter, r *http.Request) {
	essay, err := h.essayService.GetEssay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, publicEssay(r, *essay))
}

func (h *Handler) ExportEssay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.essayService.ExportEssay(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"essay-%s.txt\"", id))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) DeleteEssay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.essayService.DeleteEssay(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]string{"id": id})
}

func (h *Handler) LikeEssay(w http.ResponseWriter, r *http.Request) {
	essay, err := h.essayService.IncrementLikes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, publicEssay(r, *essay))
}

func (h *Handler) GetEssayByCode(w http.ResponseWriter, r *http.Request) {
	essay, err := h.essayService.FindEssayByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, essay)
}

func (h *Handler) UpdateEssayByCode(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateEssayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	essay, err := h.essayService.UpdateEssay(r.Context(), chi.URLParam(r, "code"), req.EssayData)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, essay)
}

func (h *Handler) DeleteEssayByCode(w http.ResponseWriter, r *http.Request) {
	if err := h.essayService.DeleteEssayByCode(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]bool{"deleted": true})
}
