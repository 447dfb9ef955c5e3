// Package model defines the core domain types for the training portfolio.
package model

import "time"

// CourseStatus is the lifecycle state of a course.
type CourseStatus string

const (
	// StatusOpen means the course is visible in the public catalog and
	// accepts registrations while capacity remains.
	StatusOpen CourseStatus = "open"
	// StatusCompleted means the course has finished and is hidden from
	// the catalog. An admin may reopen it.
	StatusCompleted CourseStatus = "completed"
)

// Valid reports whether s is a known status value.
func (s CourseStatus) Valid() bool {
	return s == StatusOpen || s == StatusCompleted
}

// Course represents a training offering with finite slot capacity.
type Course struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Slots       int          `json:"slots"`
	Registered  int          `json:"registered"`
	Status      CourseStatus `json:"status"`
	ImageRef    string       `json:"image_ref"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Remaining returns the number of available slots.
func (c *Course) Remaining() int {
	return c.Slots - c.Registered
}

// IsFull returns true when no slots remain.
func (c *Course) IsFull() bool {
	return c.Registered >= c.Slots
}

// Registration represents an applicant's commitment against a course's
// capacity. Registrations are immutable once created and reference their
// course by id, never by name.
type Registration struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Name       string    `json:"name"`
	TaxpayerID string    `json:"taxpayer_id"`
	Email      string    `json:"email"`
	Company    string    `json:"company"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCourseRequest is the payload for creating a new course.
type CreateCourseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slots       int    `json:"slots"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// UpdateCourseRequest is the payload for a partial course update.
// Nil fields are left untouched.
type UpdateCourseRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Slots       *int    `json:"slots,omitempty"`
	Status      *string `json:"status,omitempty"`
	ImageRef    *string `json:"image_ref,omitempty"`
}

// RegisterRequest is the payload for registering an applicant.
type RegisterRequest struct {
	Name       string `json:"name"`
	TaxpayerID string `json:"taxpayer_id"`
	Email      string `json:"email"`
	Company    string `json:"company"`
}

// CatalogEntry is a course as shown in the public catalog, annotated with
// the derived remaining-slot count and the sold-out flag.
type CatalogEntry struct {
	Course
	RemainingSlots int  `json:"remaining_slots"`
	SoldOut        bool `json:"sold_out"`
}

// CourseSummary is the admin-dashboard projection over all courses.
// RemainingSlots is derived, never stored.
type CourseSummary struct {
	Name           string       `json:"name"`
	Slots          int          `json:"slots"`
	Registered     int          `json:"registered"`
	RemainingSlots int          `json:"remaining_slots"`
	Status         CourseStatus `json:"status"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
