// Package navigation tracks which top-level market and sub-view are shown.
package navigation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

// Market is a top-level navigation target
type Market string

const (
	MarketFinance Market = "FINANCE"
	MarketKR      Market = Market(model.MarketKR)
	MarketUS      Market = Market(model.MarketUS)
)

// SubView is the view inside a stock market
type SubView string

const (
	SubViewNone      SubView = ""
	SubViewNews      SubView = "NEWS"
	SubViewRankTable SubView = "RANK_TABLE"
	SubViewRankGraph SubView = "RANK_GRAPH"
)

var (
	ErrInvalidMarket  = errors.New("invalid navigation market")
	ErrInvalidSubView = errors.New("invalid sub-view")
)

// ParseMarket accepts FINANCE, KR, US (case-insensitive)
func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToUpper(strings.TrimSpace(s))); m {
	case MarketFinance, MarketKR, MarketUS:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMarket, s)
	}
}

// ParseSubView accepts NEWS, RANK_TABLE, RANK_GRAPH (case-insensitive)
func ParseSubView(s string) (SubView, error) {
	switch v := SubView(strings.ToUpper(strings.TrimSpace(s))); v {
	case SubViewNews, SubViewRankTable, SubViewRankGraph:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSubView, s)
	}
}

// Stock reports whether m is KR or US
func (m Market) Stock() (model.Market, bool) {
	switch m {
	case MarketKR:
		return model.MarketKR, true
	case MarketUS:
		return model.MarketUS, true
	default:
		return "", false
	}
}

// State is the navigation position. SubView is empty under FINANCE.
type State struct {
	Market  Market  `json:"market"`
	SubView SubView `json:"subview,omitempty"`
}

func (s State) String() string {
	if s.SubView == SubViewNone {
		return string(s.Market)
	}
	return fmt.Sprintf("%s/%s", s.Market, s.SubView)
}

// Initial is the state at session start
var Initial = State{Market: MarketFinance}

// Machine applies navigation transitions. It is not safe for concurrent use.
type Machine struct {
	state  State
	logger *logger.Logger
}

// NewMachine starts at FINANCE
func NewMachine(log *logger.Logger) *Machine {
	return &Machine{
		state:  Initial,
		logger: log.WithComponent("navigation"),
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// SelectMarket moves to FINANCE, or to {market, NEWS} for KR/US.
// Returns whether the state changed.
func (m *Machine) SelectMarket(market Market) bool {
	var next State
	switch market {
	case MarketFinance:
		next = State{Market: MarketFinance}
	case MarketKR, MarketUS:
		next = State{Market: market, SubView: SubViewNews}
	default:
		m.logger.WithField("market", string(market)).Debug("Ignored invalid market")
		return false
	}
	return m.transition(next, "select_market")
}

// SelectSubview changes the sub-view of a stock market; under FINANCE or for
// an unknown view it is a no-op. Returns whether the state changed.
func (m *Machine) SelectSubview(v SubView) bool {
	if _, ok := m.state.Market.Stock(); !ok {
		m.logger.WithField("subview", string(v)).Debug("Ignored sub-view outside a stock market")
		return false
	}
	switch v {
	case SubViewNews, SubViewRankTable, SubViewRankGraph:
	default:
		m.logger.WithField("subview", string(v)).Debug("Ignored invalid sub-view")
		return false
	}
	return m.transition(State{Market: m.state.Market, SubView: v}, "select_subview")
}

func (m *Machine) transition(next State, action string) bool {
	prev := m.state
	if prev == next {
		return false
	}
	m.state = next

	m.logger.WithFields(map[string]interface{}{
		"action": action,
		"from":   prev.String(),
		"to":     next.String(),
	}).Info("Navigation changed")
	return true
}
