package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idg-training/portfolio/internal/model"
	"github.com/idg-training/portfolio/internal/service"
	"github.com/idg-training/portfolio/internal/storage"
	"github.com/idg-training/portfolio/internal/storage/sheet"
)

func newLedger(t *testing.T) *service.Ledger {
	t.Helper()
	store, err := sheet.Open(filepath.Join(t.TempDir(), "portfolio.xlsx"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return service.NewLedger(store)
}

func createCourse(t *testing.T, l *service.Ledger, name string, slots int) *model.Course {
	t.Helper()
	c, err := l.CreateCourse(context.Background(), model.CreateCourseRequest{
		Name:        name,
		Description: "desc",
		Slots:       slots,
	})
	require.NoError(t, err)
	return c
}

func applicant(n int) model.RegisterRequest {
	return model.RegisterRequest{
		Name:       fmt.Sprintf("Applicant %d", n),
		TaxpayerID: fmt.Sprintf("%011d", n),
		Email:      fmt.Sprintf("applicant%d@example.com", n),
		Company:    "ACME",
	}
}

func TestCreateCourseValidation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.CreateCourseRequest
	}{
		{"empty name", model.CreateCourseRequest{Description: "d", Slots: 5}},
		{"blank name", model.CreateCourseRequest{Name: "   ", Description: "d", Slots: 5}},
		{"empty description", model.CreateCourseRequest{Name: "n", Slots: 5}},
		{"zero slots", model.CreateCourseRequest{Name: "n", Description: "d", Slots: 0}},
		{"negative slots", model.CreateCourseRequest{Name: "n", Description: "d", Slots: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateCourse(ctx, tt.req)
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}

	c := createCourse(t, l, "Valid", 5)
	require.Equal(t, 0, c.Registered)
	require.Equal(t, model.StatusOpen, c.Status)
	require.NotEmpty(t, c.ID)
}

func TestRegisterValidationOrder(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Course", 5)

	// Missing fields win over everything else.
	_, err := l.Register(ctx, c.ID, model.RegisterRequest{
		Name: "A", TaxpayerID: "bad", Email: "bad",
	})
	require.ErrorIs(t, err, service.ErrMissingFields)

	// Taxpayer id is checked before email.
	_, err = l.Register(ctx, c.ID, model.RegisterRequest{
		Name: "A", TaxpayerID: "12345", Email: "not-an-email", Company: "ACME",
	})
	require.ErrorIs(t, err, service.ErrInvalidTaxpayerID)

	_, err = l.Register(ctx, c.ID, model.RegisterRequest{
		Name: "A", TaxpayerID: "12345678901", Email: "not-an-email", Company: "ACME",
	})
	require.ErrorIs(t, err, service.ErrInvalidEmail)

	// Validation runs before the course lookup.
	_, err = l.Register(ctx, "no-such-course", model.RegisterRequest{
		Name: "A", TaxpayerID: "12345", Email: "a@b.c", Company: "ACME",
	})
	require.ErrorIs(t, err, service.ErrInvalidTaxpayerID)

	_, err = l.Register(ctx, "no-such-course", applicant(1))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTaxpayerIDValidation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Course", 10)

	// Punctuation is stripped; only the digit count matters, no checksum.
	req := applicant(1)
	req.TaxpayerID = "123.456.789-00"
	_, err := l.Register(ctx, c.ID, req)
	require.NoError(t, err)

	req = applicant(2)
	req.TaxpayerID = "12345"
	_, err = l.Register(ctx, c.ID, req)
	require.ErrorIs(t, err, service.ErrInvalidTaxpayerID)

	req = applicant(3)
	req.TaxpayerID = "123456789012" // 12 digits
	_, err = l.Register(ctx, c.ID, req)
	require.ErrorIs(t, err, service.ErrInvalidTaxpayerID)
}

func TestEmailValidation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Course", 10)

	accepted := []string{"a.b@example.com", "first-last@my-host.org", "x@y.z"}
	for i, email := range accepted {
		req := applicant(i + 1)
		req.Email = email
		_, err := l.Register(ctx, c.ID, req)
		require.NoError(t, err, "email %q should be accepted", email)
	}

	rejected := []string{"not-an-email", "a@b", "@example.com", "a b@example.com"}
	for i, email := range rejected {
		req := applicant(100 + i)
		req.Email = email
		_, err := l.Register(ctx, c.ID, req)
		require.ErrorIs(t, err, service.ErrInvalidEmail, "email %q should be rejected", email)
	}
}

func TestRegisterCapacity(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Tiny", 2)

	_, err := l.Register(ctx, c.ID, applicant(1))
	require.NoError(t, err)
	_, err = l.Register(ctx, c.ID, applicant(2))
	require.NoError(t, err)

	_, err = l.Register(ctx, c.ID, applicant(3))
	require.ErrorIs(t, err, storage.ErrCourseFull)

	// The failed attempt left the counter untouched.
	got, err := l.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Registered)
	require.Equal(t, 0, got.Remaining())
}

func TestRegisterDuplicateTaxpayer(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Course", 5)

	_, err := l.Register(ctx, c.ID, applicant(1))
	require.NoError(t, err)

	dup := applicant(1)
	dup.Email = "other@example.com"
	_, err = l.Register(ctx, c.ID, dup)
	require.ErrorIs(t, err, storage.ErrAlreadyRegistered)

	got, err := l.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Registered)
}

func TestConcurrentRegistrations(t *testing.T) {
	const slots = 3
	const attempts = 10

	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Contended", slots)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Register(ctx, c.ID, applicant(i+1))
		}(i)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, storage.ErrCourseFull)
			full++
		}
	}
	require.Equal(t, slots, ok)
	require.Equal(t, attempts-slots, full)

	got, err := l.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, slots, got.Registered)

	regs, err := l.ListRegistrations(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, regs, slots)
}

func TestDeleteCourseGuard(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	c := createCourse(t, l, "Active", 5)
	for i := 1; i <= 3; i++ {
		_, err := l.Register(ctx, c.ID, applicant(i))
		require.NoError(t, err)
	}
	err := l.DeleteCourse(ctx, c.ID)
	require.ErrorIs(t, err, storage.ErrCourseHasRegistrations)

	empty := createCourse(t, l, "Empty", 5)
	require.NoError(t, l.DeleteCourse(ctx, empty.ID))
	_, err = l.GetCourse(ctx, empty.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// A completed course may be deleted regardless of registrations, and
	// its registrations survive as historical records.
	completed := string(model.StatusCompleted)
	_, err = l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Status: &completed})
	require.NoError(t, err)
	require.NoError(t, l.DeleteCourse(ctx, c.ID))
}

func TestUpdateCourseSlotsGuard(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	c := createCourse(t, l, "Course", 8)
	for i := 1; i <= 5; i++ {
		_, err := l.Register(ctx, c.ID, applicant(i))
		require.NoError(t, err)
	}

	shrink := 2
	_, err := l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Slots: &shrink})
	require.ErrorIs(t, err, storage.ErrSlotsBelowRegistered)

	grow := 10
	updated, err := l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Slots: &grow})
	require.NoError(t, err)
	require.Equal(t, 10, updated.Slots)
	require.Equal(t, 5, updated.Registered)
	require.Equal(t, 5, updated.Remaining())
}

func TestUpdateCourseValidation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	c := createCourse(t, l, "Course", 5)

	blank := "  "
	_, err := l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Name: &blank})
	require.ErrorIs(t, err, service.ErrValidation)

	bogus := "archived"
	_, err = l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Status: &bogus})
	require.ErrorIs(t, err, service.ErrInvalidStatus)

	// Renaming never orphans registrations: they reference the course id.
	_, err = l.Register(ctx, c.ID, applicant(1))
	require.NoError(t, err)
	renamed := "Renamed Course"
	_, err = l.UpdateCourse(ctx, c.ID, model.UpdateCourseRequest{Name: &renamed})
	require.NoError(t, err)
	regs, err := l.ListRegistrations(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
}

func TestCatalogAndSummary(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	open := createCourse(t, l, "Open", 4)
	done := createCourse(t, l, "Done", 4)
	completed := string(model.StatusCompleted)
	_, err := l.UpdateCourse(ctx, done.ID, model.UpdateCourseRequest{Status: &completed})
	require.NoError(t, err)

	catalog, err := l.ListOpenCourses(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	require.Equal(t, open.ID, catalog[0].ID)
	require.Equal(t, 4, catalog[0].RemainingSlots)
	require.False(t, catalog[0].SoldOut)

	summary, err := l.CourseSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	for _, s := range summary {
		require.Equal(t, s.Slots-s.Registered, s.RemainingSlots)
	}
}

func TestEndToEndSingleSlotCourse(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	c, err := l.CreateCourse(ctx, model.CreateCourseRequest{
		Name:        "Safety 101",
		Description: "desc",
		Slots:       1,
	})
	require.NoError(t, err)

	_, err = l.Register(ctx, c.ID, applicant(1))
	require.NoError(t, err)

	catalog, err := l.ListOpenCourses(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	require.Equal(t, 0, catalog[0].RemainingSlots)
	require.True(t, catalog[0].SoldOut)

	_, err = l.Register(ctx, c.ID, applicant(2))
	require.ErrorIs(t, err, storage.ErrCourseFull)
}
