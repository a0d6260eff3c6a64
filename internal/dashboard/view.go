package dashboard

import (
	"github.com/wonny/rsboard/internal/finance"
	"github.com/wonny/rsboard/internal/heatmap"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/momentum"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/internal/newsgroup"
	"github.com/wonny/rsboard/internal/subscription"
)

// FinanceView is the finance board with its topic state
type FinanceView struct {
	State subscription.State `json:"state"`
	Board finance.Board      `json:"board"`
}

// NewsView is the tab list of a market with the selected tab's articles
type NewsView struct {
	Market      model.Market       `json:"market"`
	State       subscription.State `json:"state"`
	Grouping    newsgroup.Grouping `json:"grouping"`
	Selected    string             `json:"selected,omitempty"`
	HasSelected bool               `json:"has_selected"`
	Articles    []model.Article    `json:"articles"`
	UpdateTime  string             `json:"update_time,omitempty"`
}

// SeriesView is the momentum chart of a market
type SeriesView struct {
	Market     model.Market       `json:"market"`
	State      subscription.State `json:"state"`
	Series     momentum.Series    `json:"series"`
	UpdateTime string             `json:"update_time,omitempty"`
}

// HeatmapView is the treemap of a market
type HeatmapView struct {
	Market     model.Market       `json:"market"`
	State      subscription.State `json:"state"`
	Heatmap    heatmap.Heatmap    `json:"heatmap"`
	UpdateTime string             `json:"update_time,omitempty"`
}

// TableView is the rank table of a market
type TableView struct {
	Market model.Market       `json:"market"`
	State  subscription.State `json:"state"`
	Table  heatmap.Table      `json:"table"`
}

// View is everything the active navigation state shows.
// Only the projections of the active state are set.
type View struct {
	Navigation navigation.State  `json:"navigation"`
	Active     navigation.Active `json:"active"`
	Finance    *FinanceView      `json:"finance,omitempty"`
	News       *NewsView         `json:"news,omitempty"`
	Heatmap    *HeatmapView      `json:"heatmap,omitempty"`
	Table      *TableView        `json:"table,omitempty"`
	Series     *SeriesView       `json:"series,omitempty"`
}
