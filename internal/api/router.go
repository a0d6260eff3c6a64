package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/rsboard/internal/api/handlers"
	"github.com/wonny/rsboard/pkg/logger"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Dashboard *handlers.DashboardHandler
	Health    *handlers.HealthHandler
	Stream    *handlers.StreamHub
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health.Get).Methods(http.MethodGet)

	// Live stream
	if h.Stream != nil {
		r.Handle("/ws", h.Stream).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// View and navigation
	api.HandleFunc("/view", h.Dashboard.GetView).Methods(http.MethodGet)
	api.HandleFunc("/nav/market/{market}", h.Dashboard.SelectMarket).Methods(http.MethodPost)
	api.HandleFunc("/nav/subview/{subview}", h.Dashboard.SelectSubview).Methods(http.MethodPost)
	api.HandleFunc("/news/{market}/tab/{key}", h.Dashboard.SelectTab).Methods(http.MethodPost)

	// Projections
	api.HandleFunc("/finance", h.Dashboard.GetFinance).Methods(http.MethodGet)
	api.HandleFunc("/markets/{market}/series", h.Dashboard.GetSeries).Methods(http.MethodGet)
	api.HandleFunc("/markets/{market}/heatmap", h.Dashboard.GetHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/markets/{market}/table", h.Dashboard.GetTable).Methods(http.MethodGet)
	api.HandleFunc("/markets/{market}/news", h.Dashboard.GetNews).Methods(http.MethodGet)
	api.HandleFunc("/topics", h.Dashboard.GetTopics).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for /ws
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			if r.URL.Path == "/ws" {
				// hijacked connections bypass the recorder
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
