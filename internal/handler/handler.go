// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the ledger service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/idg-training/portfolio/internal/auth"
	"github.com/idg-training/portfolio/internal/images"
	"github.com/idg-training/portfolio/internal/model"
	"github.com/idg-training/portfolio/internal/service"
	"github.com/idg-training/portfolio/internal/storage"
)

// CourseHandler holds all HTTP handlers for the course and registration API.
type CourseHandler struct {
	svc     *service.Ledger
	banners *images.Library
}

// NewCourseHandler constructs a CourseHandler.
func NewCourseHandler(svc *service.Ledger, banners *images.Library) *CourseHandler {
	return &CourseHandler{svc: svc, banners: banners}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps ledger/storage error kinds onto HTTP statuses:
// validation → 400, conflicts → 409, missing → 404, backend down → 503.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "course not found")
	case errors.Is(err, storage.ErrCourseFull):
		writeError(w, http.StatusConflict, "course is full")
	case errors.Is(err, storage.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "taxpayer already registered for this course")
	case errors.Is(err, storage.ErrCourseHasRegistrations):
		writeError(w, http.StatusConflict, "cannot delete an open course with active registrations")
	case errors.Is(err, storage.ErrSlotsBelowRegistered):
		writeError(w, http.StatusConflict, "slots cannot shrink below the registered count")
	case errors.Is(err, storage.ErrUnavailable):
		slog.ErrorContext(r.Context(), "storage backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage backend unavailable")
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Course management (admin) ────────────────────────────────────────────────

// CreateCourse handles POST /api/courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ImageRef == "" {
		req.ImageRef = h.banners.DefaultRef()
	}

	course, err := h.svc.CreateCourse(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// ListCourses handles GET /api/courses
// Returns full course rows for the management views.
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.ListCourses(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

// GetCourse handles GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.svc.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// UpdateCourse handles PATCH /api/courses/{id}
func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	course, err := h.svc.UpdateCourse(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// DeleteCourse handles DELETE /api/courses/{id}
// The banner asset is released after the row is gone; registrations are
// kept as historical records.
func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	course, err := h.svc.GetCourse(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.svc.DeleteCourse(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.banners.Remove(course.ImageRef); err != nil {
		slog.WarnContext(r.Context(), "banner cleanup failed", "course_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadBanner handles POST /api/courses/{id}/banner (multipart field
// "banner"). The image is resized to card dimensions before storage.
func (h *CourseHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.svc.GetCourse(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("banner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "banner file is required")
		return
	}
	defer file.Close()

	ref, err := h.banners.SaveBanner(id, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image: "+err.Error())
		return
	}

	course, err := h.svc.UpdateCourse(r.Context(), id, model.UpdateCourseRequest{ImageRef: &ref})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// ListRegistrations handles GET /api/courses/{id}/registrations
func (h *CourseHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// Summary handles GET /api/summary
func (h *CourseHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.CourseSummary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if summary == nil {
		summary = []model.CourseSummary{}
	}
	writeJSON(w, http.StatusOK, summary)
}

// ─── Public catalog (library) ─────────────────────────────────────────────────

// Catalog handles GET /api/catalog
// Returns open courses with remaining slots and the sold-out flag.
func (h *CourseHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.ListOpenCourses(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if catalog == nil {
		catalog = []model.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, catalog)
}

// Register handles POST /api/courses/{id}/registrations
func (h *CourseHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	mgr *auth.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(mgr *auth.Manager) *AuthHandler {
	return &AuthHandler{mgr: mgr}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Scope string `json:"scope"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	token, scope, err := h.mgr.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Scope: scope})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Health returns a handler that reports liveness and backend reachability.
func Health(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage backend unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
