// Package service implements the registration ledger: input validation,
// capacity accounting and orchestration between HTTP handlers and the
// storage backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/idg-training/portfolio/internal/model"
	"github.com/idg-training/portfolio/internal/storage"
)

// ErrValidation is the base error for malformed or missing user input.
// All validation failures wrap it so handlers can match the whole class.
var ErrValidation = errors.New("invalid input")

var (
	// ErrMissingFields is returned when a required applicant field is empty.
	ErrMissingFields = fmt.Errorf("%w: missing fields", ErrValidation)
	// ErrInvalidTaxpayerID is returned when the taxpayer id does not have
	// exactly 11 digits after stripping punctuation.
	ErrInvalidTaxpayerID = fmt.Errorf("%w: invalid taxpayer id", ErrValidation)
	// ErrInvalidEmail is returned when the email has no local@domain.tld shape.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrValidation)
	// ErrInvalidStatus is returned for a status outside {open, completed}.
	ErrInvalidStatus = fmt.Errorf("%w: invalid status", ErrValidation)
)

var (
	nonDigits = regexp.MustCompile(`\D`)
	// Length check only, no checksum: the accepted input set is part of
	// the contract with existing registrants.
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
)

// Ledger owns course records and registration records and is the sole
// writer of the derived registered count.
type Ledger struct {
	store storage.Store
}

// NewLedger constructs a Ledger over the given backend.
func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// CreateCourse validates the request and persists a new open course with
// zero registrations.
func (l *Ledger) CreateCourse(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: course name is required", ErrValidation)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: course description is required", ErrValidation)
	}
	if req.Slots < 1 {
		return nil, fmt.Errorf("%w: slots must be a positive integer", ErrValidation)
	}

	course := &model.Course{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Slots:       req.Slots,
		Registered:  0,
		Status:      model.StatusOpen,
		ImageRef:    req.ImageRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.store.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

// GetCourse returns a single course by id.
func (l *Ledger) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	if id == "" {
		return nil, storage.ErrNotFound
	}
	return l.store.GetCourse(ctx, id)
}

// UpdateCourse validates the patch and delegates; the slots-vs-registered
// guard runs inside the store's per-course critical section. The
// registered counter is never touched here.
func (l *Ledger) UpdateCourse(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: course name is required", ErrValidation)
		}
		req.Name = &trimmed
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: course description is required", ErrValidation)
		}
		req.Description = &trimmed
	}
	if req.Slots != nil && *req.Slots < 1 {
		return nil, fmt.Errorf("%w: slots must be a positive integer", ErrValidation)
	}
	if req.Status != nil && !model.CourseStatus(*req.Status).Valid() {
		return nil, ErrInvalidStatus
	}
	return l.store.UpdateCourse(ctx, id, req)
}

// DeleteCourse removes a course. The store rejects the delete while the
// course is open with active registrations; registrations themselves are
// preserved for reporting.
func (l *Ledger) DeleteCourse(ctx context.Context, id string) error {
	return l.store.DeleteCourse(ctx, id)
}

// Register validates the applicant and performs the concurrency-safe
// registration. Validation short-circuits on the first failure, in order:
// required fields, taxpayer id, email, then capacity inside the store.
func (l *Ledger) Register(ctx context.Context, courseID string, req model.RegisterRequest) (*model.Registration, error) {
	if req.Name == "" || req.TaxpayerID == "" || req.Email == "" || req.Company == "" {
		return nil, ErrMissingFields
	}
	if len(nonDigits.ReplaceAllString(req.TaxpayerID, "")) != 11 {
		return nil, ErrInvalidTaxpayerID
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, ErrInvalidEmail
	}

	reg := &model.Registration{
		ID:         uuid.New().String(),
		CourseID:   courseID,
		Name:       req.Name,
		TaxpayerID: req.TaxpayerID,
		Email:      req.Email,
		Company:    req.Company,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.store.Register(ctx, courseID, reg); err != nil {
		// Surface domain errors directly so handlers can set the
		// correct HTTP status.
		if errors.Is(err, storage.ErrNotFound) ||
			errors.Is(err, storage.ErrCourseFull) ||
			errors.Is(err, storage.ErrAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("register for course: %w", err)
	}
	return reg, nil
}

// ListCourses returns every course, open and completed, for management
// views.
func (l *Ledger) ListCourses(ctx context.Context) ([]model.Course, error) {
	return l.store.ListCourses(ctx)
}

// ListOpenCourses returns the public catalog: open courses annotated with
// their remaining capacity and sold-out state.
func (l *Ledger) ListOpenCourses(ctx context.Context) ([]model.CatalogEntry, error) {
	courses, err := l.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	var catalog []model.CatalogEntry
	for _, c := range courses {
		if c.Status != model.StatusOpen {
			continue
		}
		catalog = append(catalog, model.CatalogEntry{
			Course:         c,
			RemainingSlots: c.Remaining(),
			SoldOut:        c.IsFull(),
		})
	}
	return catalog, nil
}

// CourseSummary projects every course, open and completed, for the admin
// dashboard.
func (l *Ledger) CourseSummary(ctx context.Context) ([]model.CourseSummary, error) {
	courses, err := l.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	var summary []model.CourseSummary
	for _, c := range courses {
		summary = append(summary, model.CourseSummary{
			Name:           c.Name,
			Slots:          c.Slots,
			Registered:     c.Registered,
			RemainingSlots: c.Remaining(),
			Status:         c.Status,
		})
	}
	return summary, nil
}

// ListRegistrations returns all registrations for an existing course.
func (l *Ledger) ListRegistrations(ctx context.Context, courseID string) ([]model.Registration, error) {
	if _, err := l.store.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return l.store.ListRegistrations(ctx, courseID)
}
