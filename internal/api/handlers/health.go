package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/wonny/rsboard/internal/subscription"
)

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

// HealthHandler reports liveness plus dependency and topic status
type HealthHandler struct {
	checks  map[string]CheckFunc
	stats   func() []subscription.TopicStats
	info    map[string]string
	timeout time.Duration
}

// NewHealthHandler creates a health handler; stats may be nil
func NewHealthHandler(stats func() []subscription.TopicStats) *HealthHandler {
	return &HealthHandler{
		checks:  make(map[string]CheckFunc),
		stats:   stats,
		info:    make(map[string]string),
		timeout: 2 * time.Second,
	}
}

// AddCheck registers a dependency check (redis, database, ...)
func (h *HealthHandler) AddCheck(name string, fn CheckFunc) {
	h.checks[name] = fn
}

// SetInfo attaches a static value such as the view config hash
func (h *HealthHandler) SetInfo(key, value string) {
	h.info[key] = value
}

// HealthResponse is the /health payload
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Topics map[string]string `json:"topics,omitempty"`
	Info   map[string]string `json:"info,omitempty"`
}

// Get handles GET /health
// 의존성 점검 실패 시 503, 토픽이 pending 인 것은 정상으로 취급
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := h.checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	if h.stats != nil {
		stats := h.stats()
		resp.Topics = make(map[string]string, len(stats))
		for _, st := range stats {
			resp.Topics[string(st.Topic)] = st.State.String()
		}
	}

	if len(h.info) > 0 {
		resp.Info = h.info
	}

	respondJSON(w, status, resp)
}
