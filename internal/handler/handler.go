package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appI18n "github.com/pavelanni/satsession/internal/i18n"
	"github.com/pavelanni/satsession/internal/metrics"
	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/session"
	"github.com/pavelanni/satsession/internal/store"
	"github.com/pavelanni/satsession/internal/token"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	svc      *session.Service
	tokens   *token.Issuer
	validate *validator.Validate
}

// New creates a new Handler.
func New(s *store.Store, svc *session.Service, tokens *token.Issuer) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{store: s, svc: svc, tokens: tokens, validate: v}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(metricsMiddleware)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Get("/sessions/find", h.handleFindSession)
		r.Post("/sessions/{sessionID}/join", h.handleJoin)
		r.Get("/sessions/{sessionID}/status", h.handleStatus)
		r.Get("/sessions/{sessionID}/analysis", h.handleAnalysisStatus)

		r.Group(func(r chi.Router) {
			r.Use(h.requireStudent)
			r.Post("/answers", h.handleAnswer)
			r.Post("/answers/submit", h.handleSubmitTest)
			r.Get("/retest/questions", h.handleRetestQuestions)
			r.Post("/retest/answer", h.handleRetestAnswer)
			r.Post("/retest/submit", h.handleSubmitRetest)
			r.Get("/practice", h.handlePractice)
			r.Get("/report", h.handleReport)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)

			r.Get("/tests", h.handleListTests)
			r.Post("/tests", h.handleImportTest)
			r.Get("/questions/{questionID}/counterpart", h.handleCounterpart)

			r.Post("/students", h.handleCreateStudent)
			r.Get("/students", h.handleListStudents)

			r.Post("/sessions", h.handleCreateSession)
			r.Get("/sessions", h.handleListSessions)
			r.Get("/sessions/{sessionID}", h.handleGetSession)
			r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
			r.Post("/sessions/{sessionID}/advance", h.handleAdvance)
			r.Post("/sessions/{sessionID}/pause", h.handlePause)
			r.Post("/sessions/{sessionID}/analysis", h.handleStartAnalysis)
			r.Post("/sessions/{sessionID}/prepare-retest", h.handlePrepareRetest)
			r.Get("/sessions/{sessionID}/groups", h.handleGroups)
			r.Get("/sessions/{sessionID}/export", h.handleExport)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/tutors", h.handleListTutors)
				r.Post("/tutors", h.handleCreateTutor)
				r.Post("/tutors/{userID}/active", h.handleSetTutorActive)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// metricsMiddleware counts requests by route pattern so that IDs in paths
// do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors to HTTP statuses with a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := http.StatusInternalServerError, "InternalError"
	switch {
	case errors.Is(err, model.ErrNotFound):
		status, msgID = http.StatusNotFound, "NotFound"
	case errors.Is(err, model.ErrConflict):
		status, msgID = http.StatusConflict, "Conflict"
	case errors.Is(err, model.ErrCannotAdvance):
		status, msgID = http.StatusBadRequest, "CannotAdvance"
	case errors.Is(err, model.ErrInvalid):
		status, msgID = http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, model.ErrUnauthorized):
		status, msgID = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, model.ErrForbidden):
		status, msgID = http.StatusForbidden, "Forbidden"
	}

	resp := errorResponse{Error: appI18n.T(r.Context(), msgID)}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("decode body: %w: %w", model.ErrInvalid, err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			writeValidationError(w, r, ve)
			return false
		}
		writeError(w, r, fmt.Errorf("validate body: %w: %w", model.ErrInvalid, err))
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, r *http.Request, ve validator.ValidationErrors) {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = appI18n.Td(r.Context(), "FieldInvalid", map[string]any{
			"Field": fe.Field(),
			"Rule":  fe.Tag(),
		})
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  appI18n.Tp(r.Context(), "InvalidFields", len(ve)),
		Fields: fields,
	})
}
