package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service"
	"github.com/reset980reset980/write0917/internal/session"
	"github.com/reset980reset980/write0917/internal/validation"
)

type Handler struct {
	essayService   service.EssayService
	commentService service.CommentService
	authService    service.AuthService
	topicService   service.TopicService
	sessions       *session.Manager
	pinger         repository.Pinger
	setupMessage   string
	logger         zerolog.Logger
}

// NewHandler wires the API. A non-empty setupMessage means storage is not
// configured: the data routes answer 503 and only sessions stay reachable.
// pinger may be nil when there is no database to check.
func NewHandler(
	essayService service.EssayService,
	commentService service.CommentService,
	authService service.AuthService,
	topicService service.TopicService,
	sessions *session.Manager,
	pinger repository.Pinger,
	setupMessage string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		essayService:   essayService,
		commentService: commentService,
		authService:    authService,
		topicService:   topicService,
		sessions:       sessions,
		pinger:         pinger,
		setupMessage:   setupMessage,
		logger:         logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/actions", h.DispatchAction)
			r.Delete("/{id}", h.DeleteSession)
		})

		api.Group(func(api chi.Router) {
			if h.setupMessage != "" {
				api.Use(middleware.SetupRequired(h.setupMessage))
			}

			api.Post("/auth/teacher", h.LoginTeacher)

			api.Route("/essays", func(r chi.Router) {
				r.Get("/", h.ListEssays)
				r.Post("/", h.CreateEssay)
				r.Get("/code/{code}", h.GetEssayByCode)
				r.Put("/code/{code}", h.UpdateEssayByCode)
				r.Delete("/code/{code}", h.DeleteEssayByCode)
				r.Get("/{id}", h.GetEssay)
				r.Get("/{id}/document", h.ExportEssay)
				r.With(middleware.RequireTeacher).Delete("/{id}", h.DeleteEssay)
				r.Post("/{id}/likes", h.LikeEssay)
				r.Get("/{id}/comments", h.ListComments)
				r.Post("/{id}/comments", h.CreateComment)
			})

			api.Route("/ai", func(r chi.Router) {
				r.Post("/topic", h.RefineTopic)
				r.Post("/advice", h.Advise)
			})
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	switch {
	case h.setupMessage != "":
		status = "setup_required"
	case h.pinger != nil:
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("Database ping failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	response := map[string]interface{}{
		"status":    status,
		"service":   "write0917",
		"sessions":  h.sessions.Len(),
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, code, response)
}

// handleServiceError maps domain errors to status codes. Unknown errors are
// logged and answered with 500.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, service.ErrEssayNotFound), errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidEditCode),
		errors.Is(err, session.ErrBadAction),
		errors.Is(err, session.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrTeacherAuthOff), errors.Is(err, session.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrWrongView),
		errors.Is(err, session.ErrNoPendingDelete):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSetupRequired):
		writeError(w, http.StatusServiceUnavailable, h.setupMessage)
	default:
		h.logger.Error().Err(err).Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeValidationError(w http.ResponseWriter, err *validation.Error) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   http.StatusText(http.StatusBadRequest),
		"message": "validation failed",
		"fields":  err.Fields,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, http.StatusOK, response)
}
