// Package subscription keeps one live subscription per topic and delivers
// every pushed document, decoded, to registered observers.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

// ErrClosed is returned by Subscribe after Close
var ErrClosed = errors.New("subscription manager closed")

const (
	eventBuffer       = 64
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Manager owns the per-topic snapshot slots.
//
// Each subscribed topic has a pump goroutine forwarding store pushes into a
// single dispatcher goroutine. The dispatcher decodes, replaces the snapshot
// and calls observers synchronously, so observers of one manager never run
// concurrently. Observers must not call Unsubscribe or Close synchronously.
// ⭐ SSOT: 토픽 스냅샷의 유일한 writer
type Manager struct {
	source  docstore.Source
	decoder *model.Decoder
	logger  *logger.Logger

	mu        sync.RWMutex
	slots     map[model.Topic]*slot
	observers []observerEntry
	nextID    uint64
	gen       uint64
	closed    bool

	// held by the dispatcher while a callback runs
	deliver sync.Mutex

	subscribeMu sync.Mutex

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type slot struct {
	topic    model.Topic
	gen      uint64
	handle   *Handle
	cancel   context.CancelFunc
	done     chan struct{}
	active   bool
	snapshot Snapshot
	stats    TopicStats
}

type observerEntry struct {
	id    uint64
	topic model.Topic // empty = every topic
	fn    Observer
}

type event struct {
	topic model.Topic
	gen   uint64
	doc   docstore.Document
}

// Handle identifies one active subscription
type Handle struct {
	m     *Manager
	topic model.Topic
	gen   uint64
	once  sync.Once
}

// Topic returns the subscribed topic
func (h *Handle) Topic() model.Topic {
	return h.topic
}

// Close is Unsubscribe(h)
func (h *Handle) Close() {
	h.m.Unsubscribe(h)
}

// NewManager creates a manager and starts its dispatcher
func NewManager(source docstore.Source, decoder *model.Decoder, log *logger.Logger) *Manager {
	if decoder == nil {
		decoder = model.NewDecoder(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		source:  source,
		decoder: decoder,
		logger:  log.WithComponent("subscription"),
		slots:   make(map[model.Topic]*slot),
		events:  make(chan event, eventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	m.wg.Add(1)
	go m.dispatch()

	return m
}

// Subscribe opens the external subscription of topic.
// A second call for an active topic returns the existing handle.
func (m *Manager) Subscribe(ctx context.Context, topic model.Topic) (*Handle, error) {
	if _, ok := model.LookupTopic(topic); !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTopic, topic)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.subscribeMu.Lock()
	defer m.subscribeMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.slots[topic]; ok && s.active {
		m.mu.Unlock()
		return s.handle, nil
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	subCtx, cancel := context.WithCancel(m.ctx)
	ch, err := m.source.Watch(subCtx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	def, _ := m.decoder.Default(topic)
	s := &slot{
		topic:  topic,
		gen:    gen,
		cancel: cancel,
		done:   make(chan struct{}),
		active: true,
		snapshot: Snapshot{
			Topic: topic,
			State: StatePending,
			Value: def,
		},
		stats: TopicStats{Topic: topic, Active: true, State: StatePending},
	}
	s.handle = &Handle{m: m, topic: topic, gen: gen}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	m.slots[topic] = s
	m.wg.Add(1)
	m.mu.Unlock()

	go m.pump(subCtx, s, ch)

	m.logger.WithField("topic", string(topic)).Info("Subscribed")
	return s.handle, nil
}

// SubscribeAll subscribes every known topic
func (m *Manager) SubscribeAll(ctx context.Context) ([]*Handle, error) {
	specs := model.Topics()
	handles := make([]*Handle, 0, len(specs))

	for _, spec := range specs {
		h, err := m.Subscribe(ctx, spec.Topic)
		if err != nil {
			for _, opened := range handles {
				m.Unsubscribe(opened)
			}
			return nil, err
		}
		handles = append(handles, h)
	}

	return handles, nil
}

// Unsubscribe stops notifications for the handle's topic and releases the
// external subscription. No callback for the topic starts after it returns.
func (m *Manager) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}

	h.once.Do(func() {
		m.mu.Lock()
		s, ok := m.slots[h.topic]
		if !ok || s.gen != h.gen {
			m.mu.Unlock()
			return
		}
		s.active = false
		delete(m.slots, h.topic)
		m.mu.Unlock()

		s.cancel()

		// wait for an in-flight callback, then for the pump to release the store
		m.deliver.Lock()
		m.deliver.Unlock()
		<-s.done

		m.logger.WithField("topic", string(h.topic)).Info("Unsubscribed")
	})
}

// Observe registers fn for topic and returns a function that removes it
func (m *Manager) Observe(topic model.Topic, fn Observer) (remove func()) {
	return m.addObserver(topic, fn)
}

// ObserveAll registers fn for every topic
func (m *Manager) ObserveAll(fn Observer) (remove func()) {
	return m.addObserver("", fn)
}

func (m *Manager) addObserver(topic model.Topic, fn Observer) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, observerEntry{id: id, topic: topic, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Current returns the snapshot of topic; unsubscribed topics read as pending defaults
func (m *Manager) Current(topic model.Topic) Snapshot {
	m.mu.RLock()
	s, ok := m.slots[topic]
	if ok {
		snap := s.snapshot
		m.mu.RUnlock()
		return snap
	}
	m.mu.RUnlock()

	def, _ := m.decoder.Default(topic)
	return Snapshot{Topic: topic, State: StatePending, Value: def}
}

// Rankings returns the current rankings of a market
func (m *Manager) Rankings(market model.Market) (model.RankingSnapshot, State) {
	snap := m.Current(model.RankingsTopic(market))
	v, _ := snap.Value.(model.RankingSnapshot)
	return v, snap.State
}

// News returns the current news feed of a market
func (m *Manager) News(market model.Market) (model.NewsFeed, State) {
	snap := m.Current(model.NewsTopic(market))
	v, _ := snap.Value.(model.NewsFeed)
	return v, snap.State
}

// Summary returns the current global market summary
func (m *Manager) Summary() (model.MarketSummary, State) {
	snap := m.Current(model.TopicFinance)
	v, _ := snap.Value.(model.MarketSummary)
	return v, snap.State
}

// Stats returns counters of every active topic ordered by topic
func (m *Manager) Stats() []TopicStats {
	m.mu.RLock()
	out := make([]TopicStats, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s.stats)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Close tears down every subscription. No callback starts after it returns.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, s := range m.slots {
		s.active = false
	}
	m.slots = make(map[model.Topic]*slot)
	m.mu.Unlock()

	m.cancel()
	m.deliver.Lock()
	m.deliver.Unlock()
	m.wg.Wait()

	m.logger.Info("Subscription manager closed")
}

// pump forwards store pushes to the dispatcher and re-watches after a
// dropped store connection
func (m *Manager) pump(ctx context.Context, s *slot, ch <-chan docstore.Document) {
	defer m.wg.Done()
	defer close(s.done)

	delay := minReconnectDelay
	for {
		for doc := range ch {
			delay = minReconnectDelay
			select {
			case m.events <- event{topic: s.topic, gen: s.gen, doc: doc}:
			case <-ctx.Done():
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		// store closed the channel on its own: reconnect with backoff
		for {
			m.logger.WithFields(map[string]interface{}{
				"topic": string(s.topic),
				"delay": delay.String(),
			}).Warn("Topic stream ended, reconnecting")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay = min(delay*2, maxReconnectDelay)

			next, err := m.source.Watch(ctx, s.topic)
			if err == nil {
				ch = next
				m.mu.Lock()
				s.stats.Reconnects++
				m.mu.Unlock()
				break
			}
			if ctx.Err() != nil {
				return
			}
			m.logger.WithError(err).WithField("topic", string(s.topic)).Error("Re-watch failed")
		}
	}
}

// dispatch is the manager's single event loop
func (m *Manager) dispatch() {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.events:
			m.handle(ev)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) handle(ev event) {
	var (
		doc model.Document
		err error
	)
	if ev.doc.Exists {
		doc, err = m.decoder.Decode(ev.topic, ev.doc.Data)
	} else {
		doc, err = m.decoder.Default(ev.topic)
	}
	if doc == nil {
		// unknown topic: unreachable through Subscribe
		return
	}

	state := StateValue
	if doc.Empty() {
		state = StateEmpty
	}

	m.mu.Lock()
	s, ok := m.slots[ev.topic]
	if !ok || !s.active || s.gen != ev.gen {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	s.snapshot = Snapshot{
		Topic:     ev.topic,
		State:     state,
		Value:     doc,
		Version:   s.snapshot.Version + 1,
		UpdatedAt: now,
	}
	s.stats.State = state
	s.stats.Version = s.snapshot.Version
	s.stats.Updates++
	s.stats.LastUpdate = now
	s.stats.Dropped = dropped(doc)
	if err != nil {
		s.stats.DecodeErrors++
		s.stats.LastError = err.Error()
	}
	snap := s.snapshot

	observers := make([]observerEntry, 0, len(m.observers))
	for _, o := range m.observers {
		if o.topic == "" || o.topic == ev.topic {
			observers = append(observers, o)
		}
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.WithError(err).WithField("topic", string(ev.topic)).Warn("Malformed document replaced with default")
	}
	if n := dropped(doc); n > 0 {
		m.logger.WithFields(map[string]interface{}{
			"topic":   string(ev.topic),
			"dropped": n,
		}).Debug("Dropped invalid entities")
	}

	for _, o := range observers {
		m.deliver.Lock()
		if m.isActive(ev.topic, ev.gen) && m.hasObserver(o.id) {
			o.fn(snap)
		}
		m.deliver.Unlock()
	}
}

func (m *Manager) isActive(topic model.Topic, gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[topic]
	return ok && s.active && s.gen == gen
}

func (m *Manager) hasObserver(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.observers {
		if o.id == id {
			return true
		}
	}
	return false
}
