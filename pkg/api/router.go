package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/users"
)

// NewRouter mounts both user operations for the local server:
// GET /users looks a user up, POST /users creates one. Any other method on
// /users reaches the handlers, which answer 405 themselves.
func NewRouter(h *users.Handler, logger *zap.Logger) *chi.Mux {
	r := newBase(logger)
	r.HandleFunc("/users", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost {
			h.SaveUser(w, req)
			return
		}
		h.GetUser(w, req)
	})
	return r
}

// MountJob exposes fn at POST path.
func MountJob(r chi.Router, path string, fn JobFunc) {
	r.Post(path, JobHandler(fn))
}

// NewSingleRouter routes every path to fn. Each user Lambda sits behind its
// own API Gateway resource, so the path carries no information.
func NewSingleRouter(fn http.HandlerFunc, logger *zap.Logger) *chi.Mux {
	r := newBase(logger)
	r.HandleFunc("/*", fn)
	return r
}

func newBase(logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	// Preflight requests still reach the handlers, which answer 405.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"*"},
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
