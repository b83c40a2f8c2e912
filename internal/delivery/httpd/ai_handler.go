package httpd

import (
	"net/http"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/validation"
)

// RefineTopic never fails once the request is valid; AI problems come back
// as a degraded suggestion.
func (h *Handler) RefineTopic(w http.ResponseWriter, r *http.Request) {
	var req models.RefineTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, h.topicService.RefineTopic(r.Context(), req.ViewerKey, req.Topic))
}

func (h *Handler) Advise(w http.ResponseWriter, r *http.Request) {
	var req models.AdviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, h.topicService.Advise(r.Context(), &req))
}
