// Package postgres implements storage.Store on PostgreSQL using pgx
// directly (no ORM). Capacity-sensitive operations lock the course row
// with SELECT … FOR UPDATE so concurrent writers serialize per course.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idg-training/portfolio/internal/model"
	"github.com/idg-training/portfolio/internal/storage"
)

// Store is the PostgreSQL-backed persistence layer.
type Store struct {
	db *pgxpool.Pool
}

// New connects to PostgreSQL, retrying a few times to accommodate
// containers starting up, and creates the schema when absent.
func New(ctx context.Context, dsn string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingErr := pool.Ping(ctx)
			if pingErr == nil {
				break
			}
			pool.Close()
			err = pingErr
		}
		slog.Warn("db connect failed, retrying in 2s", "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w: %w", storage.ErrUnavailable, err)
	}

	s := &Store{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			slots       INT  NOT NULL,
			registered  INT  NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT 'open',
			image_ref   TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id          TEXT PRIMARY KEY,
			course_id   TEXT NOT NULL,
			name        TEXT NOT NULL,
			taxpayer_id TEXT NOT NULL,
			email       TEXT NOT NULL,
			company     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_course_id
			ON registrations (course_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w: %w", storage.ErrUnavailable, err)
		}
	}
	return nil
}

// CreateCourse inserts a new course row.
func (s *Store) CreateCourse(ctx context.Context, c *model.Course) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO courses (id, name, description, slots, registered, status, image_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Description, c.Slots, c.Registered, c.Status, c.ImageRef, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert course: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

const courseColumns = `id, name, description, slots, registered, status, image_ref, created_at`

func scanCourse(row pgx.Row) (*model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Slots, &c.Registered, &c.Status, &c.ImageRef, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCourse returns a single course or storage.ErrNotFound.
func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(s.db.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get course: %w: %w", storage.ErrUnavailable, err)
	}
	return c, nil
}

// ListCourses returns all courses ordered by creation time.
func (s *Store) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w: %w", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w: %w", storage.ErrUnavailable, err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courses: %w: %w", storage.ErrUnavailable, err)
	}
	return courses, nil
}

// UpdateCourse applies a partial update inside a transaction that locks the
// course row, so the slots guard cannot race with concurrent registrations.
func (s *Store) UpdateCourse(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w: %w", storage.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var c *model.Course
	c, err = scanCourse(tx.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock course row: %w: %w", storage.ErrUnavailable, err)
	}

	applyCourseUpdate(c, req)
	if c.Slots < c.Registered {
		err = storage.ErrSlotsBelowRegistered
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE courses SET name = $1, description = $2, slots = $3, status = $4, image_ref = $5
		 WHERE id = $6`,
		c.Name, c.Description, c.Slots, c.Status, c.ImageRef, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update course: %w: %w", storage.ErrUnavailable, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w: %w", storage.ErrUnavailable, err)
	}
	return c, nil
}

func applyCourseUpdate(c *model.Course, req model.UpdateCourseRequest) {
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
}

// DeleteCourse removes a course unless it is open with active
// registrations. Registration rows are preserved as historical records.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", storage.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var status model.CourseStatus
	var registered int
	err = tx.QueryRow(ctx,
		`SELECT status, registered FROM courses WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock course row: %w: %w", storage.ErrUnavailable, err)
	}
	if status == model.StatusOpen && registered > 0 {
		err = storage.ErrCourseHasRegistrations
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w: %w", storage.ErrUnavailable, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// Register performs a concurrency-safe registration inside a transaction.
//
// SELECT … FOR UPDATE takes a row-level exclusive lock on the course the
// moment the SELECT executes; any concurrent registration for the same
// course blocks until this transaction commits or rolls back. That
// serializes the check-then-increment so the course can never overcommit.
func (s *Store) Register(ctx context.Context, courseID string, reg *model.Registration) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", storage.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var slots, registered int
	err = tx.QueryRow(ctx,
		`SELECT slots, registered FROM courses WHERE id = $1 FOR UPDATE`,
		courseID,
	).Scan(&slots, &registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock course row: %w: %w", storage.ErrUnavailable, err)
	}

	var dupCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE course_id = $1 AND taxpayer_id = $2`,
		courseID, reg.TaxpayerID,
	).Scan(&dupCount)
	if err != nil {
		return fmt.Errorf("check duplicate: %w: %w", storage.ErrUnavailable, err)
	}
	if dupCount > 0 {
		err = storage.ErrAlreadyRegistered
		return err
	}

	if registered >= slots {
		err = storage.ErrCourseFull
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE courses SET registered = registered + 1 WHERE id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("increment registered: %w: %w", storage.ErrUnavailable, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, course_id, name, taxpayer_id, email, company, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reg.ID, reg.CourseID, reg.Name, reg.TaxpayerID, reg.Email, reg.Company, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w: %w", storage.ErrUnavailable, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// ListRegistrations returns all registrations for a course in arrival order.
func (s *Store) ListRegistrations(ctx context.Context, courseID string) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, course_id, name, taxpayer_id, email, company, created_at
		 FROM registrations
		 WHERE course_id = $1
		 ORDER BY created_at ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w: %w", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var r model.Registration
		if err := rows.Scan(&r.ID, &r.CourseID, &r.Name, &r.TaxpayerID, &r.Email, &r.Company, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w: %w", storage.ErrUnavailable, err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}
