package handler

import (
	"net/http"

	"github.com/pavelanni/satsession/internal/session"
)

var acknowledged = map[string]bool{"ok": true}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var in session.AnswerInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.svc.RecordAnswer(r.Context(), student(r), in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acknowledged)
}

func (h *Handler) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SubmitTest(r.Context(), student(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acknowledged)
}

func (h *Handler) handleRetestQuestions(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Retest(r.Context(), student(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRetestAnswer(w http.ResponseWriter, r *http.Request) {
	var in session.AnswerInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.svc.RecordRetestAnswer(r.Context(), student(r), in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acknowledged)
}

func (h *Handler) handleSubmitRetest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SubmitRetest(r.Context(), student(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acknowledged)
}

func (h *Handler) handlePractice(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Practice(r.Context(), student(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context(), student(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
