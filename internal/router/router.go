package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware tags every request with a KSUID, reusing an inbound
// X-Request-ID when present.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = utilities.NewKSUID()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			// JSON only; nothing here should ever be framed or scripted
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators mounted by RegisterRoutes.
type Deps struct {
	Users    *user.Handler
	Tasks    *task.Handler
	Comments *comment.Handler
	Resolver *auth.Resolver
	DB       Pinger
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.PingContext(ctx); err != nil {
				logger.Warnw("health check failed", "err", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// users
	mux.HandleFunc("POST /users/register", d.Users.Register)
	mux.HandleFunc("POST /users/login", d.Users.Login)
	mux.HandleFunc("PUT /users/update", d.Users.Update)
	mux.HandleFunc("GET /users", d.Users.List)
	mux.HandleFunc("GET /users/{id}", d.Users.Get)
	mux.HandleFunc("DELETE /users/{id}/delete", d.Users.Delete)

	// tasks
	mux.HandleFunc("POST /tasks/create", d.Tasks.Create)
	mux.HandleFunc("PUT /tasks/{id}/update", d.Tasks.Update)
	mux.HandleFunc("DELETE /tasks/{id}/delete", d.Tasks.Delete)
	mux.HandleFunc("GET /tasks/{id}", d.Tasks.Get)
	mux.HandleFunc("GET /tasks/criteria", d.Tasks.Criteria)
	mux.HandleFunc("GET /tasks/all", d.Tasks.All)
	mux.HandleFunc("GET /tasks/lazy", d.Tasks.Lazy)
	mux.HandleFunc("GET /tasks/by-author/{id}", d.Tasks.ByAuthor)
	mux.HandleFunc("GET /tasks/by-executor/{id}", d.Tasks.ByExecutor)
	mux.HandleFunc("GET /tasks/by-status/{status}", d.Tasks.ByStatus)
	mux.HandleFunc("GET /tasks/by-priority/{priority}", d.Tasks.ByPriority)

	// comments
	mux.HandleFunc("POST /comments/create", d.Comments.Create)
	mux.HandleFunc("PUT /comments/{id}/update", d.Comments.Update)
	mux.HandleFunc("DELETE /comments/{id}/delete", d.Comments.Delete)

	var handler http.Handler = mux
	handler = d.Resolver.Middleware(handler)
	handler = SecurityHeadersMiddleware()(handler)
	handler = LoggingMiddleware(logger)(handler)
	return RequestIDMiddleware()(handler)
}
