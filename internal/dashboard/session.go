// Package dashboard runs one dashboard session: live topics, navigation,
// news tab selection and on-demand projections.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/rsboard/internal/finance"
	"github.com/wonny/rsboard/internal/heatmap"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/momentum"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/internal/newsgroup"
	"github.com/wonny/rsboard/internal/subscription"
	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/logger"
)

// Reason tells listeners why the view changed
type Reason string

const (
	ReasonTopic      Reason = "topic"
	ReasonNavigation Reason = "navigation"
	ReasonTab        Reason = "tab"
)

// Change is sent to listeners
type Change struct {
	Reason     Reason           `json:"reason"`
	Topic      model.Topic      `json:"topic,omitempty"`
	Navigation navigation.State `json:"navigation"`
}

// Listener is called after a change that affects the active view.
// It may be called from the dispatcher or from a request goroutine and must
// not block.
type Listener func(Change)

// Session owns navigation state over a shared subscription manager.
// HTTP handlers call it concurrently, so state is mutex-guarded; projections
// are computed from immutable snapshots outside the lock.
type Session struct {
	manager *subscription.Manager
	view    *viewconfig.Config
	logger  *logger.Logger

	mu   sync.Mutex
	nav  *navigation.Machine
	tabs map[model.Market]*newsgroup.Selection

	// lifecycle; never held while the dispatcher may need mu
	startMu   sync.Mutex
	handles   []*subscription.Handle
	unobserve func()
	started   bool

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewSession creates a session at the initial navigation state
func NewSession(manager *subscription.Manager, view *viewconfig.Config, log *logger.Logger) *Session {
	if view == nil {
		view = viewconfig.Default()
	}

	log = log.WithComponent("dashboard")
	tabs := make(map[model.Market]*newsgroup.Selection, len(model.Markets))
	for _, m := range model.Markets {
		tabs[m] = &newsgroup.Selection{}
	}

	return &Session{
		manager:   manager,
		view:      view,
		logger:    log,
		nav:       navigation.NewMachine(log),
		tabs:      tabs,
		listeners: make(map[uint64]Listener),
	}
}

// Start subscribes every topic. Topics run regardless of navigation.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.started {
		return nil
	}

	s.unobserve = s.manager.ObserveAll(s.onSnapshot)

	handles, err := s.manager.SubscribeAll(ctx)
	if err != nil {
		s.unobserve()
		return fmt.Errorf("start dashboard: %w", err)
	}

	s.handles = handles
	s.started = true
	s.logger.WithField("topics", len(handles)).Info("Dashboard session started")
	return nil
}

// Close unsubscribes every topic opened by Start
func (s *Session) Close() {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	handles := s.handles
	unobserve := s.unobserve
	s.handles = nil
	s.unobserve = nil
	s.started = false

	if unobserve != nil {
		unobserve()
	}
	for _, h := range handles {
		h.Close()
	}
}

// Listen registers fn and returns a function removing it
func (s *Session) Listen(fn Listener) (remove func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// Navigation returns the current navigation state
func (s *Session) Navigation() navigation.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.State()
}

// SelectMarket applies selectMarket; returns the new state and whether it changed
func (s *Session) SelectMarket(m navigation.Market) (navigation.State, bool) {
	s.mu.Lock()
	changed := s.nav.SelectMarket(m)
	state := s.nav.State()
	s.mu.Unlock()

	if changed {
		s.notify(Change{Reason: ReasonNavigation, Navigation: state})
	}
	return state, changed
}

// SelectSubview applies selectSubview; a no-op under FINANCE
func (s *Session) SelectSubview(v navigation.SubView) (navigation.State, bool) {
	s.mu.Lock()
	changed := s.nav.SelectSubview(v)
	state := s.nav.State()
	s.mu.Unlock()

	if changed {
		s.notify(Change{Reason: ReasonNavigation, Navigation: state})
	}
	return state, changed
}

// SelectTab picks a news tab of a market. Unknown keys are a no-op.
func (s *Session) SelectTab(market model.Market, key string) bool {
	feed, _ := s.manager.News(market)
	g := newsgroup.Group(feed, s.view.News)

	s.mu.Lock()
	sel, ok := s.tabs[market]
	changed := ok && sel.SelectTab(g, key)
	state := s.nav.State()
	s.mu.Unlock()

	if changed {
		s.logger.WithFields(map[string]interface{}{
			"market": string(market),
			"tab":    key,
		}).Debug("News tab selected")

		if navigation.ActiveFor(state).Reads(model.NewsTopic(market)) {
			s.notify(Change{Reason: ReasonTab, Topic: model.NewsTopic(market), Navigation: state})
		}
	}
	return changed
}

// View computes the projections of the active navigation state
func (s *Session) View() View {
	state := s.Navigation()
	active := navigation.ActiveFor(state)

	v := View{Navigation: state, Active: active}
	if active.Market == "" {
		fv := s.Finance()
		v.Finance = &fv
		return v
	}

	for _, p := range active.Projections {
		switch p {
		case navigation.ProjectionNews:
			nv := s.News(active.Market)
			v.News = &nv
		case navigation.ProjectionHeatmap:
			hv := s.Heatmap(active.Market, 0, 0)
			v.Heatmap = &hv
		case navigation.ProjectionTable:
			tv := s.Table(active.Market)
			v.Table = &tv
		case navigation.ProjectionMomentum:
			sv := s.Series(active.Market)
			v.Series = &sv
		}
	}

	return v
}

// Finance builds the finance board
func (s *Session) Finance() FinanceView {
	summary, state := s.manager.Summary()
	return FinanceView{State: state, Board: finance.Build(summary, s.view.FinanceOptions())}
}

// News builds the news grouping of a market with the effective selection
func (s *Session) News(market model.Market) NewsView {
	feed, state := s.manager.News(market)
	g := newsgroup.Group(feed, s.view.News)

	s.mu.Lock()
	selected, ok := s.tabs[market].Resolve(g)
	s.mu.Unlock()

	nv := NewsView{
		Market:      market,
		State:       state,
		Grouping:    g,
		HasSelected: ok,
		Articles:    []model.Article{},
		UpdateTime:  feed.UpdateTime,
	}
	if ok {
		nv.Selected = selected
		if articles := newsgroup.Articles(feed, selected); articles != nil {
			nv.Articles = articles
		}
	}
	return nv
}

// Series builds the momentum series of a market
func (s *Session) Series(market model.Market) SeriesView {
	snap, state := s.manager.Rankings(market)
	series := momentum.Build(snap, s.view.LabelFor(market))
	return SeriesView{Market: market, State: state, Series: series, UpdateTime: snap.UpdateTime}
}

// Heatmap lays out a market; zero width/height use the configured size
func (s *Session) Heatmap(market model.Market, width, height float64) HeatmapView {
	snap, state := s.manager.Rankings(market)
	hm := heatmap.Build(snap, s.view.HeatmapOptions(market, width, height))
	return HeatmapView{Market: market, State: state, Heatmap: hm, UpdateTime: snap.UpdateTime}
}

// Table builds the rank table of a market
func (s *Session) Table(market model.Market) TableView {
	snap, state := s.manager.Rankings(market)
	return TableView{Market: market, State: state, Table: heatmap.BuildTable(snap)}
}

// Stats returns the subscription counters
func (s *Session) Stats() []subscription.TopicStats {
	return s.manager.Stats()
}

// onSnapshot runs on the manager's dispatcher
func (s *Session) onSnapshot(snap subscription.Snapshot) {
	state := s.Navigation()
	if !navigation.ActiveFor(state).Reads(snap.Topic) {
		return
	}
	s.notify(Change{Reason: ReasonTopic, Topic: snap.Topic, Navigation: state})
}

func (s *Session) notify(c Change) {
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.lmu.RUnlock()

	for _, fn := range listeners {
		fn(c)
	}
}
