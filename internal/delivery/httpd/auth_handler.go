package httpd

import (
	"net/http"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/validation"
)

func (h *Handler) LoginTeacher(w http.ResponseWriter, r *http.Request) {
	var req models.TeacherLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	token, err := h.authService.LoginTeacher(req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, token)
}
