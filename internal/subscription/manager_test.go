package subscription

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/docstore/memstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

func newTestManager(t *testing.T) (*Manager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	m := NewManager(store, model.NewDecoder(nil), logger.NewNop())
	t.Cleanup(func() {
		m.Close()
		store.Close()
	})
	return m, store
}

// collect forwards snapshots of topic into a buffered channel
func collect(m *Manager, topic model.Topic) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 128)
	remove := m.Observe(topic, func(s Snapshot) { ch <- s })
	return ch, remove
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestPendingThenEmptyThenValue(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	snaps, _ := collect(m, model.TopicRankingsKR)

	rankings, state := m.Rankings(model.MarketKR)
	assert.Equal(t, StatePending, state)
	assert.True(t, rankings.Empty())

	_, err := m.Subscribe(ctx, model.TopicRankingsKR)
	require.NoError(t, err)

	first := waitSnapshot(t, snaps)
	assert.Equal(t, StateEmpty, first.State, "absent document is confirmed empty")
	assert.Equal(t, uint64(1), first.Version)

	require.NoError(t, store.Put(ctx, model.TopicRankingsKR, []byte(`{"rankings":[{"code":"A","name":"Alpha","rs_avg":80}]}`)))

	second := waitSnapshot(t, snaps)
	assert.Equal(t, StateValue, second.State)
	assert.Equal(t, uint64(2), second.Version)

	rankings, state = m.Rankings(model.MarketKR)
	assert.Equal(t, StateValue, state)
	require.Len(t, rankings.Rankings, 1)
	assert.Equal(t, "A", rankings.Rankings[0].Code)
}

func TestMalformedDocumentFallsBackToDefault(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, model.TopicNewsUS, []byte(`{"news_AAPL":`)))

	snaps, _ := collect(m, model.TopicNewsUS)
	_, err := m.Subscribe(ctx, model.TopicNewsUS)
	require.NoError(t, err)

	snap := waitSnapshot(t, snaps)
	assert.Equal(t, StateEmpty, snap.State)
	feed, ok := snap.Value.(model.NewsFeed)
	require.True(t, ok)
	assert.True(t, feed.Empty())

	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].DecodeErrors)
	assert.NotEmpty(t, stats[0].LastError)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	h1, err := m.Subscribe(ctx, model.TopicFinance)
	require.NoError(t, err)
	h2, err := m.Subscribe(ctx, model.TopicFinance)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, store.Watchers(model.TopicFinance))
}

func TestSubscribeUnknownTopic(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Subscribe(context.Background(), model.Topic("x/y"))
	assert.ErrorIs(t, err, model.ErrUnknownTopic)
}

func TestDeliveryOrderWithinTopic(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	snaps, _ := collect(m, model.TopicRankingsUS)
	_, err := m.Subscribe(ctx, model.TopicRankingsUS)
	require.NoError(t, err)
	waitSnapshot(t, snaps) // initial

	const n = 30
	for i := 0; i < n; i++ {
		doc := fmt.Sprintf(`{"update_time":"%d","rankings":[{"code":"C%d","name":"N"}]}`, i, i)
		require.NoError(t, store.Put(ctx, model.TopicRankingsUS, []byte(doc)))
	}

	for i := 0; i < n; i++ {
		snap := waitSnapshot(t, snaps)
		r := snap.Value.(model.RankingSnapshot)
		assert.Equal(t, fmt.Sprintf("%d", i), r.UpdateTime, "full value delivered in push order")
	}
}

// stallSource never delivers for one topic
type stallSource struct {
	*memstore.Store
	stalled model.Topic
}

func (s stallSource) Watch(ctx context.Context, topic model.Topic) (<-chan docstore.Document, error) {
	if topic != s.stalled {
		return s.Store.Watch(ctx, topic)
	}
	ch := make(chan docstore.Document)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestTopicsAreIndependent(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	m := NewManager(stallSource{Store: store, stalled: model.TopicNewsKR}, nil, logger.NewNop())
	defer m.Close()
	ctx := context.Background()

	finance, _ := collect(m, model.TopicFinance)

	_, err := m.SubscribeAll(ctx)
	require.NoError(t, err)
	waitSnapshot(t, finance)

	require.NoError(t, store.Put(ctx, model.TopicFinance, []byte(`{"items":[{"name":"S&P 500"}]}`)))
	snap := waitSnapshot(t, finance)
	assert.Equal(t, StateValue, snap.State)

	assert.Equal(t, StatePending, m.Current(model.TopicNewsKR).State, "stalled topic stays pending")
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	var calls atomic.Int64
	m.Observe(model.TopicNewsKR, func(Snapshot) { calls.Add(1) })

	h, err := m.Subscribe(ctx, model.TopicNewsKR)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.Close()
	after := calls.Load()

	assert.Equal(t, 0, store.Watchers(model.TopicNewsKR), "external subscription released")
	_ = store.Put(ctx, model.TopicNewsKR, []byte(`{"k":{"articles":[]}}`))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	assert.Equal(t, StatePending, m.Current(model.TopicNewsKR).State, "snapshot discarded at teardown")

	// handle may be closed twice
	m.Unsubscribe(h)

	// resubscribe works and yields a fresh handle
	h2, err := m.Subscribe(ctx, model.TopicNewsKR)
	require.NoError(t, err)
	assert.NotSame(t, h, h2)
}

func TestRemoveObserver(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	snaps, remove := collect(m, model.TopicFinance)
	all := make(chan Snapshot, 16)
	m.ObserveAll(func(s Snapshot) { all <- s })

	_, err := m.Subscribe(ctx, model.TopicFinance)
	require.NoError(t, err)
	waitSnapshot(t, snaps)
	waitSnapshot(t, all)

	remove()
	require.NoError(t, store.Put(ctx, model.TopicFinance, []byte(`{"items":[]}`)))
	waitSnapshot(t, all)

	select {
	case <-snaps:
		t.Fatal("removed observer was called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseRejectsSubscribe(t *testing.T) {
	m, _ := newTestManager(t)

	m.Close()
	_, err := m.Subscribe(context.Background(), model.TopicFinance)
	assert.ErrorIs(t, err, ErrClosed)

	// double close is safe
	m.Close()
}

// flakySource closes its first stream right after the initial value
type flakySource struct {
	mu      sync.Mutex
	watches int
}

func (f *flakySource) Watch(ctx context.Context, topic model.Topic) (<-chan docstore.Document, error) {
	f.mu.Lock()
	f.watches++
	n := f.watches
	f.mu.Unlock()

	ch := make(chan docstore.Document, 1)
	data := []byte(fmt.Sprintf(`{"items":[{"name":"watch-%d"}]}`, n))
	ch <- docstore.Document{Topic: topic, Data: data, Exists: true}

	if n == 1 {
		close(ch)
		return ch, nil
	}

	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestReconnectAfterStreamEnds(t *testing.T) {
	src := &flakySource{}
	m := NewManager(src, nil, logger.NewNop())
	defer m.Close()

	snaps, _ := collect(m, model.TopicFinance)
	_, err := m.Subscribe(context.Background(), model.TopicFinance)
	require.NoError(t, err)

	first := waitSnapshot(t, snaps)
	assert.Equal(t, "watch-1", first.Value.(model.MarketSummary).Items[0].Name)

	second := waitSnapshot(t, snaps)
	assert.Equal(t, "watch-2", second.Value.(model.MarketSummary).Items[0].Name)

	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Reconnects)
}
