package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/satsession/internal/model"
)

type createTutorRequest struct {
	Username    string         `json:"username" validate:"required,min=3,max=64"`
	DisplayName string         `json:"displayName" validate:"max=100"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	Role        model.UserRole `json:"role" validate:"omitempty,oneof=tutor admin"`
}

func (h *Handler) handleListTutors(w http.ResponseWriter, r *http.Request) {
	admin := model.UserFromContext(r.Context())
	users, err := h.store.ListUsers(r.Context(), admin.OrgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateTutor(w http.ResponseWriter, r *http.Request) {
	var req createTutorRequest
	if !h.decode(w, r, &req) {
		return
	}
	admin := model.UserFromContext(r.Context())

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if req.Role == "" {
		req.Role = model.UserRoleTutor
	}

	id, err := h.store.CreateUser(r.Context(), model.User{
		OrgID:        admin.OrgID,
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("created tutor", "username", user.Username, "role", user.Role, "by", admin.Username)
	writeJSON(w, http.StatusCreated, user)
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleSetTutorActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	admin := model.UserFromContext(r.Context())
	id := chi.URLParam(r, "userID")

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.OrgID != admin.OrgID {
		writeError(w, r, fmt.Errorf("user %s: %w", id, model.ErrNotFound))
		return
	}
	if user.ID == admin.ID && !*req.Active {
		writeError(w, r, fmt.Errorf("cannot deactivate yourself: %w", model.ErrInvalid))
		return
	}
	if err := h.store.SetUserActive(r.Context(), id, *req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	user.Active = *req.Active
	writeJSON(w, http.StatusOK, user)
}
