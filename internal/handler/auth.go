package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/satsession/internal/i18n"
	"github.com/pavelanni/satsession/internal/model"
)

func bearerToken(r *http.Request) string {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// requireAuth is middleware that checks for a valid tutor auth session.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, r, fmt.Errorf("missing bearer token: %w", model.ErrUnauthorized))
			return
		}

		authSess, err := h.store.GetAuthSession(r.Context(), tok)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				slog.Error("failed to get auth session", "error", err)
			}
			writeError(w, r, fmt.Errorf("auth session: %w", model.ErrUnauthorized))
			return
		}

		user, err := h.store.GetUserByID(r.Context(), authSess.UserID)
		if err != nil || !user.Active {
			writeError(w, r, fmt.Errorf("inactive or missing user: %w", model.ErrUnauthorized))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, model.ErrUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, fmt.Errorf("role %s: %w", user.Role, model.ErrForbidden))
		})
	}
}

// requireStudent is middleware that verifies a student token.
func (h *Handler) requireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, r, fmt.Errorf("missing student token: %w", model.ErrUnauthorized))
			return
		}
		id, err := h.tokens.Verify(tok)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithStudent(r.Context(), id)))
	})
}

func student(r *http.Request) model.StudentIdentity {
	id, _ := model.StudentFromContext(r.Context())
	return id
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, err)
		return
	}
	if err != nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: appI18n.T(r.Context(), "LoginError")})
		return
	}

	tok, err := h.store.CreateAuthSession(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, fmt.Errorf("create auth session: %w", err))
		return
	}
	slog.Info("tutor logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{Token: tok, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAuthSession(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
