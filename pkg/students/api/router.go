package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/student-records/pkg/students"
)

// StudentsPath is where the student routes are mounted
const StudentsPath = "/api/v1/students"

// DefaultAllowedOrigin is the browser origin allowed when none is configured
const DefaultAllowedOrigin = "http://localhost:5173"

// RouterConfig configures NewRouter
type RouterConfig struct {
	Service students.Service
	Logger  *slog.Logger

	AllowedOrigins []string
	MaxUploadBytes int64

	// UploadRoot and UploadURLPath enable static serving of uploaded
	// pictures, e.g. "/srv/app/uploads" served under "/uploads/".
	UploadRoot    string
	UploadURLPath string
}

// NewRouter builds the complete HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{DefaultAllowedOrigin}
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware(origins))
	r.Use(RequestSizeLimitMiddleware(cfg.MaxUploadBytes))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Mount(StudentsPath, NewStudentHandler(cfg.Service, logger).Routes())

	if cfg.UploadRoot != "" {
		prefix := "/" + strings.Trim(cfg.UploadURLPath, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(cfg.UploadRoot)))))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, r, http.StatusNotFound, "No handler for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, r, http.StatusMethodNotAllowed, "Method "+r.Method+" not supported")
	})

	return r
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
