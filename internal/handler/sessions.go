package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/session"
)

var started = map[string]string{"status": "started"}

// authorized loads the URL's session for the tutor, writing the error
// response when access is denied.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	sess, err := h.svc.Authorize(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return sess, false
	}
	return sess, true
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateParams
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Create(r.Context(), model.UserFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.List(r.Context(), model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	next, err := h.svc.Advance(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	next, err := h.svc.TogglePause(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *Handler) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if err := h.svc.StartAnalysis(r.Context(), sess.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, started)
}

func (h *Handler) handlePrepareRetest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if err := h.svc.StartRetestPreparation(r.Context(), sess.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, started)
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	groups, err := h.svc.Groups(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authorized(w, r)
	if !ok {
		return
	}
	export, err := h.svc.Export(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleFindSession(w http.ResponseWriter, r *http.Request) {
	lobby, err := h.svc.FindByPIN(r.Context(), r.URL.Query().Get("pin"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lobby)
}

type joinRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	PIN       string `json:"pin" validate:"required,len=6,numeric"`
}

type joinResponse struct {
	session.Joined
	Token string `json:"token"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !h.decode(w, r, &req) {
		return
	}
	joined, err := h.svc.Join(r.Context(), chi.URLParam(r, "sessionID"), req.PIN, req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := h.tokens.Issue(model.StudentIdentity{StudentID: joined.StudentID, SessionID: joined.SessionID})
	if err != nil {
		slog.Error("issue student token", "session_id", joined.SessionID, "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Joined: joined, Token: tok})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.AnalysisStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
