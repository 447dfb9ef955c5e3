package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/idg-training/portfolio/internal/auth"
	"github.com/idg-training/portfolio/internal/storage"
)

// NewRouter assembles the full route tree: open endpoints, the
// library-gated catalog and the admin-gated management API, plus the
// static banner directory.
func NewRouter(courses *CourseHandler, login *AuthHandler, mgr *auth.Manager, store storage.Store, imagesDir string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", Health(store))
	r.Post("/auth/login", login.Login)

	r.Route("/api", func(r chi.Router) {
		// Catalog and registration: library password is enough.
		r.Group(func(r chi.Router) {
			r.Use(RequireScope(mgr, auth.ScopeLibrary))
			r.Get("/catalog", courses.Catalog)
			r.Post("/courses/{id}/registrations", courses.Register)
		})

		// Management and reporting: admin only.
		r.Group(func(r chi.Router) {
			r.Use(RequireScope(mgr, auth.ScopeAdmin))
			r.Post("/courses", courses.CreateCourse)
			r.Get("/courses", courses.ListCourses)
			r.Get("/courses/{id}", courses.GetCourse)
			r.Patch("/courses/{id}", courses.UpdateCourse)
			r.Delete("/courses/{id}", courses.DeleteCourse)
			r.Post("/courses/{id}/banner", courses.UploadBanner)
			r.Get("/courses/{id}/registrations", courses.ListRegistrations)
			r.Get("/summary", courses.Summary)
		})
	})

	// Banner assets.
	fs := http.StripPrefix("/images/", http.FileServer(http.Dir(imagesDir)))
	r.Get("/images/*", fs.ServeHTTP)

	return r
}
