// Package sheet implements storage.Store on a local Excel workbook with a
// Courses sheet and a Registrations sheet. The workbook is a single shared
// resource rewritten whole on every mutation, so all writes serialize
// behind one mutex; that subsumes the per-course critical section a
// transactional backend provides with row locks.
package sheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/idg-training/portfolio/internal/model"
	"github.com/idg-training/portfolio/internal/storage"
)

const (
	sheetCourses       = "Courses"
	sheetRegistrations = "Registrations"
)

var courseHeader = []interface{}{"id", "name", "description", "slots", "registered", "status", "image_ref", "created_at"}
var registrationHeader = []interface{}{"id", "course_id", "name", "taxpayer_id", "email", "company", "created_at"}

// Store is the workbook-backed persistence layer.
type Store struct {
	mu   sync.Mutex
	path string
	f    *excelize.File
}

// Open loads the workbook at path, creating it with empty Courses and
// Registrations sheets when it does not exist yet.
func Open(path string) (*Store, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return &Store{path: path, f: f}, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		// The file exists but cannot be read; never overwrite it.
		return nil, fmt.Errorf("open workbook: %w: %w", storage.ErrUnavailable, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %w", storage.ErrUnavailable, err)
	}
	f = excelize.NewFile()
	if _, err := f.NewSheet(sheetCourses); err != nil {
		return nil, fmt.Errorf("create sheet: %w: %w", storage.ErrUnavailable, err)
	}
	if _, err := f.NewSheet(sheetRegistrations); err != nil {
		return nil, fmt.Errorf("create sheet: %w: %w", storage.ErrUnavailable, err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w: %w", storage.ErrUnavailable, err)
	}
	if err := f.SetSheetRow(sheetCourses, "A1", &courseHeader); err != nil {
		return nil, fmt.Errorf("write header: %w: %w", storage.ErrUnavailable, err)
	}
	if err := f.SetSheetRow(sheetRegistrations, "A1", &registrationHeader); err != nil {
		return nil, fmt.Errorf("write header: %w: %w", storage.ErrUnavailable, err)
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("create workbook: %w: %w", storage.ErrUnavailable, err)
	}
	return &Store{path: path, f: f}, nil
}

// get returns the cell at index i, tolerating short rows: trailing empty
// cells are omitted by the xlsx reader.
func get(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func courseRow(c *model.Course) []interface{} {
	return []interface{}{
		c.ID, c.Name, c.Description, c.Slots, c.Registered,
		string(c.Status), c.ImageRef, c.CreatedAt.Format(time.RFC3339),
	}
}

func parseCourse(row []string) model.Course {
	return model.Course{
		ID:          get(row, 0),
		Name:        get(row, 1),
		Description: get(row, 2),
		Slots:       atoi(get(row, 3)),
		Registered:  atoi(get(row, 4)),
		Status:      model.CourseStatus(get(row, 5)),
		ImageRef:    get(row, 6),
		CreatedAt:   parseTime(get(row, 7)),
	}
}

func parseRegistration(row []string) model.Registration {
	return model.Registration{
		ID:         get(row, 0),
		CourseID:   get(row, 1),
		Name:       get(row, 2),
		TaxpayerID: get(row, 3),
		Email:      get(row, 4),
		Company:    get(row, 5),
		CreatedAt:  parseTime(get(row, 6)),
	}
}

// findCourse returns the 1-based workbook row holding the course, or 0.
// Row 1 is the header.
func (s *Store) findCourse(id string) (int, *model.Course, error) {
	rows, err := s.f.GetRows(sheetCourses)
	if err != nil {
		return 0, nil, fmt.Errorf("read courses: %w: %w", storage.ErrUnavailable, err)
	}
	for i := 1; i < len(rows); i++ {
		if get(rows[i], 0) == id {
			c := parseCourse(rows[i])
			return i + 1, &c, nil
		}
	}
	return 0, nil, nil
}

func (s *Store) save() error {
	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// CreateCourse appends a course row.
func (s *Store) CreateCourse(ctx context.Context, c *model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.f.GetRows(sheetCourses)
	if err != nil {
		return fmt.Errorf("read courses: %w: %w", storage.ErrUnavailable, err)
	}
	cell := fmt.Sprintf("A%d", len(rows)+1)
	row := courseRow(c)
	if err := s.f.SetSheetRow(sheetCourses, cell, &row); err != nil {
		return fmt.Errorf("append course: %w: %w", storage.ErrUnavailable, err)
	}
	return s.save()
}

// GetCourse returns a course by id, or storage.ErrNotFound.
func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

// ListCourses returns all courses in sheet order.
func (s *Store) ListCourses(ctx context.Context) ([]model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.f.GetRows(sheetCourses)
	if err != nil {
		return nil, fmt.Errorf("read courses: %w: %w", storage.ErrUnavailable, err)
	}
	var courses []model.Course
	for i := 1; i < len(rows); i++ {
		if get(rows[i], 0) == "" {
			continue
		}
		courses = append(courses, parseCourse(rows[i]))
	}
	return courses, nil
}

// UpdateCourse rewrites the course row under the workbook lock, enforcing
// the slots guard against the committed registration count.
func (s *Store) UpdateCourse(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowNum, c, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, storage.ErrNotFound
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Slots != nil {
		c.Slots = *req.Slots
	}
	if req.Status != nil {
		c.Status = model.CourseStatus(*req.Status)
	}
	if req.ImageRef != nil {
		c.ImageRef = *req.ImageRef
	}
	if c.Slots < c.Registered {
		return nil, storage.ErrSlotsBelowRegistered
	}

	row := courseRow(c)
	if err := s.f.SetSheetRow(sheetCourses, fmt.Sprintf("A%d", rowNum), &row); err != nil {
		return nil, fmt.Errorf("update course: %w: %w", storage.ErrUnavailable, err)
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCourse removes the course row unless it is open with active
// registrations. Registration rows are kept as historical records.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowNum, c, err := s.findCourse(id)
	if err != nil {
		return err
	}
	if c == nil {
		return storage.ErrNotFound
	}
	if c.Status == model.StatusOpen && c.Registered > 0 {
		return storage.ErrCourseHasRegistrations
	}
	if err := s.f.RemoveRow(sheetCourses, rowNum); err != nil {
		return fmt.Errorf("delete course: %w: %w", storage.ErrUnavailable, err)
	}
	return s.save()
}

// Register checks capacity and the duplicate-taxpayer guard, appends the
// registration and increments the course counter, all under the workbook
// lock and persisted in one save.
func (s *Store) Register(ctx context.Context, courseID string, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowNum, c, err := s.findCourse(courseID)
	if err != nil {
		return err
	}
	if c == nil {
		return storage.ErrNotFound
	}

	regRows, err := s.f.GetRows(sheetRegistrations)
	if err != nil {
		return fmt.Errorf("read registrations: %w: %w", storage.ErrUnavailable, err)
	}
	for i := 1; i < len(regRows); i++ {
		if get(regRows[i], 1) == courseID && get(regRows[i], 3) == reg.TaxpayerID {
			return storage.ErrAlreadyRegistered
		}
	}

	if c.Registered >= c.Slots {
		return storage.ErrCourseFull
	}

	regRow := []interface{}{
		reg.ID, reg.CourseID, reg.Name, reg.TaxpayerID, reg.Email, reg.Company,
		reg.CreatedAt.Format(time.RFC3339),
	}
	cell := fmt.Sprintf("A%d", len(regRows)+1)
	if err := s.f.SetSheetRow(sheetRegistrations, cell, &regRow); err != nil {
		return fmt.Errorf("append registration: %w: %w", storage.ErrUnavailable, err)
	}
	// column E holds the registered counter
	countCell := fmt.Sprintf("E%d", rowNum)
	if err := s.f.SetCellValue(sheetCourses, countCell, c.Registered+1); err != nil {
		return fmt.Errorf("increment registered: %w: %w", storage.ErrUnavailable, err)
	}
	return s.save()
}

// ListRegistrations returns all registrations for a course in sheet order.
func (s *Store) ListRegistrations(ctx context.Context, courseID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.f.GetRows(sheetRegistrations)
	if err != nil {
		return nil, fmt.Errorf("read registrations: %w: %w", storage.ErrUnavailable, err)
	}
	var regs []model.Registration
	for i := 1; i < len(rows); i++ {
		if get(rows[i], 1) != courseID {
			continue
		}
		regs = append(regs, parseRegistration(rows[i]))
	}
	return regs, nil
}

// Ping reports whether the workbook is loadable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.GetRows(sheetCourses); err != nil {
		return fmt.Errorf("ping: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// Close releases the in-memory workbook.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.f.Close()
}
