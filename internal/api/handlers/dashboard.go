package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/rsboard/internal/dashboard"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/pkg/logger"
)

// Heatmap box limits accepted from query parameters
const (
	maxHeatmapSide = 4000
)

// DashboardHandler exposes the shared dashboard session over REST
// ⭐ SSOT: 대시보드 API 핸들러는 이 구조체에서만
type DashboardHandler struct {
	session *dashboard.Session
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(session *dashboard.Session, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		session: session,
		logger:  log.WithComponent("dashboard-api"),
	}
}

// NavigationResponse reports the state after a navigation request
type NavigationResponse struct {
	Navigation navigation.State `json:"navigation"`
	Changed    bool             `json:"changed"`
}

// TabResponse reports the news tab state after a tab selection
type TabResponse struct {
	Changed bool               `json:"changed"`
	News    dashboard.NewsView `json:"news"`
}

// GetView handles GET /api/view
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.View())
}

// SelectMarket handles POST /api/nav/market/{market}
func (h *DashboardHandler) SelectMarket(w http.ResponseWriter, r *http.Request) {
	market, err := navigation.ParseMarket(mux.Vars(r)["market"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, changed := h.session.SelectMarket(market)
	respondJSON(w, http.StatusOK, NavigationResponse{Navigation: state, Changed: changed})
}

// SelectSubview handles POST /api/nav/subview/{subview}
// 금융 화면에서는 무시되고 changed=false 로 응답
func (h *DashboardHandler) SelectSubview(w http.ResponseWriter, r *http.Request) {
	view, err := navigation.ParseSubView(mux.Vars(r)["subview"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, changed := h.session.SelectSubview(view)
	respondJSON(w, http.StatusOK, NavigationResponse{Navigation: state, Changed: changed})
}

// SelectTab handles POST /api/news/{market}/tab/{key}
func (h *DashboardHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	market, ok := h.market(w, r)
	if !ok {
		return
	}

	changed := h.session.SelectTab(market, mux.Vars(r)["key"])
	respondJSON(w, http.StatusOK, TabResponse{
		Changed: changed,
		News:    h.session.News(market),
	})
}

// GetFinance handles GET /api/finance
func (h *DashboardHandler) GetFinance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Finance())
}

// GetSeries handles GET /api/markets/{market}/series
func (h *DashboardHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	market, ok := h.market(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.session.Series(market))
}

// GetHeatmap handles GET /api/markets/{market}/heatmap?width=&height=
// 크기 미지정 시 설정 기본값 사용
func (h *DashboardHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	market, ok := h.market(w, r)
	if !ok {
		return
	}

	width, err := parseSide(r.URL.Query().Get("width"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := parseSide(r.URL.Query().Get("height"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid height")
		return
	}

	respondJSON(w, http.StatusOK, h.session.Heatmap(market, width, height))
}

// GetTable handles GET /api/markets/{market}/table
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	market, ok := h.market(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.session.Table(market))
}

// GetNews handles GET /api/markets/{market}/news
func (h *DashboardHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	market, ok := h.market(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.session.News(market))
}

// GetTopics handles GET /api/topics
func (h *DashboardHandler) GetTopics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"topics": h.session.Stats(),
	})
}

// market parses the {market} path variable; only stock markets are valid
func (h *DashboardHandler) market(w http.ResponseWriter, r *http.Request) (model.Market, bool) {
	market, err := model.ParseMarket(mux.Vars(r)["market"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return market, true
}

// parseSide returns 0 for an empty value so the configured default applies
func parseSide(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(v > 0 && v <= maxHeatmapSide) {
		return 0, strconv.ErrRange
	}
	return v, nil
}
