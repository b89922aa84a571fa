package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/satsession/internal/model"
)

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.store.ListTests(r.Context(), model.UserFromContext(r.Context()).OrgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tests == nil {
		tests = []model.Test{}
	}
	writeJSON(w, http.StatusOK, tests)
}

type importResponse struct {
	Test    model.Test `json:"test"`
	Skipped bool       `json:"skipped"`
}

// handleImportTest accepts a test document as the raw request body.
func (h *Handler) handleImportTest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("read test file: %w: %w", model.ErrInvalid, err))
		return
	}
	res, err := h.svc.ImportTest(r.Context(), model.UserFromContext(r.Context()), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, importResponse{Test: res.Test, Skipped: res.Skipped})
}

func (h *Handler) handleCounterpart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Counterpart(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type createStudentRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.svc.AddStudent(r.Context(), model.UserFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.ListStudents(r.Context(), model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}
