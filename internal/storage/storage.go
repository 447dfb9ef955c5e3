// Package storage defines the persistence contract shared by all backends.
// A backend is chosen once at startup; there is no fallback between
// backends, and backend failures surface as ErrUnavailable.
package storage

import (
	"context"
	"errors"

	"github.com/idg-training/portfolio/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrCourseFull is returned when a course has no remaining capacity.
var ErrCourseFull = errors.New("course is full")

// ErrAlreadyRegistered is returned when the same taxpayer id registers
// twice for the same course.
var ErrAlreadyRegistered = errors.New("taxpayer already registered for this course")

// ErrCourseHasRegistrations is returned when deleting an open course that
// still has active registrations.
var ErrCourseHasRegistrations = errors.New("course has active registrations")

// ErrSlotsBelowRegistered is returned when an update would shrink capacity
// below the number of committed registrations.
var ErrSlotsBelowRegistered = errors.New("slots below registered count")

// ErrUnavailable is returned when the backend itself failed (connection or
// I/O error). Callers decide what to do; the store never falls back.
var ErrUnavailable = errors.New("storage backend unavailable")

// Store is the persistence contract for courses and registrations.
//
// Register, Update and Delete are required to be serializable per course:
// the capacity check and any dependent mutation happen inside one critical
// section keyed by course id (a row lock for transactional backends, a
// workbook lock for the file backend). Read operations need no locking
// beyond the backend's own read consistency.
type Store interface {
	// CreateCourse persists a new course row.
	CreateCourse(ctx context.Context, c *model.Course) error
	// GetCourse returns a course by id, or ErrNotFound.
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	// ListCourses returns all courses in storage order.
	ListCourses(ctx context.Context) ([]model.Course, error)
	// UpdateCourse applies a partial update and returns the updated
	// course. Shrinking slots below the committed registration count
	// fails with ErrSlotsBelowRegistered and changes nothing.
	UpdateCourse(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error)
	// DeleteCourse removes a course. It fails with
	// ErrCourseHasRegistrations while the course is open with active
	// registrations. Registration rows are kept as historical records.
	DeleteCourse(ctx context.Context, id string) error

	// Register atomically checks capacity and the duplicate-taxpayer
	// guard, appends the registration and increments the course's
	// registered count by exactly one.
	Register(ctx context.Context, courseID string, reg *model.Registration) error
	// ListRegistrations returns all registrations for a course.
	ListRegistrations(ctx context.Context, courseID string) ([]model.Registration, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close()
}
