package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/docstore/memstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/internal/subscription"
	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/logger"
)

const (
	krRankings = `{"update_time":"2024-05-01","rankings":[
		{"code":"A","name":"Alpha","rs_avg":80,"rs_10":85},
		{"code":"B","name":"Beta","rs_avg":60}
	]}`
	usNews  = `{"news_MSFT":{"articles":[{"title":"m1"}]},"news_AAPL":{"articles":[{"title":"a1"},{"title":"a2"}]},"update_time":"t"}`
	summary = `{"bonds":{"10Y_val":4.2,"10Y_chg":0.1},"items":[{"name":"S&P 500","price":5000,"change":2.5}]}`
)

type fixture struct {
	store   *memstore.Store
	manager *subscription.Manager
	session *Session
	changes chan Change
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	view := viewconfig.Default()
	manager := subscription.NewManager(store, view.Decoder(), logger.NewNop())
	session := NewSession(manager, view, logger.NewNop())

	changes := make(chan Change, 64)
	session.Listen(func(c Change) { changes <- c })

	require.NoError(t, session.Start(context.Background()))
	t.Cleanup(func() {
		session.Close()
		manager.Close()
		store.Close()
	})

	return &fixture{store: store, manager: manager, session: session, changes: changes}
}

func (f *fixture) put(t *testing.T, topic model.Topic, doc string) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), topic, []byte(doc)))
}

// waitState blocks until topic reaches state
func (f *fixture) waitState(t *testing.T, topic model.Topic, state subscription.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.manager.Current(topic).State == state
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartSubscribesEveryTopic(t *testing.T) {
	f := newFixture(t)

	for _, spec := range model.Topics() {
		assert.Equal(t, 1, f.store.Watchers(spec.Topic), spec.Topic)
	}
	for _, spec := range model.Topics() {
		f.waitState(t, spec.Topic, subscription.StateEmpty)
	}
}

func TestInitialViewIsFinance(t *testing.T) {
	f := newFixture(t)
	f.put(t, model.TopicFinance, summary)
	f.waitState(t, model.TopicFinance, subscription.StateValue)

	v := f.session.View()
	assert.Equal(t, navigation.Initial, v.Navigation)
	require.NotNil(t, v.Finance)
	assert.Nil(t, v.News)
	assert.Nil(t, v.Series)

	require.Len(t, v.Finance.Board.GroupI, 1)
	assert.True(t, v.Finance.Board.GroupI[0].Volatile)
	assert.Equal(t, "10Y", v.Finance.Board.Bonds[1].Maturity)
}

func TestViewFollowsNavigation(t *testing.T) {
	f := newFixture(t)
	f.put(t, model.TopicRankingsKR, krRankings)
	f.waitState(t, model.TopicRankingsKR, subscription.StateValue)

	_, changed := f.session.SelectMarket(navigation.MarketKR)
	assert.True(t, changed)

	v := f.session.View()
	require.NotNil(t, v.News)
	assert.Equal(t, model.MarketKR, v.News.Market)

	state, _ := f.session.SelectSubview(navigation.SubViewRankGraph)
	assert.Equal(t, navigation.State{Market: navigation.MarketKR, SubView: navigation.SubViewRankGraph}, state)

	v = f.session.View()
	require.NotNil(t, v.Series)
	require.Len(t, v.Series.Series.Entities, 1)
	assert.Equal(t, "Alpha", v.Series.Series.Entities[0].Key, "KR charts by name")
	assert.Len(t, v.Series.Series.Rows, 5)

	f.session.SelectSubview(navigation.SubViewRankTable)
	v = f.session.View()
	require.NotNil(t, v.Heatmap)
	require.NotNil(t, v.Table)
	assert.Len(t, v.Heatmap.Heatmap.Tiles, 2)
	assert.Len(t, v.Table.Table.Rows, 2)

	state, _ = f.session.SelectMarket(navigation.MarketUS)
	assert.Equal(t, navigation.SubViewNews, state.SubView)
}

func TestSubviewUnderFinanceIsNoOp(t *testing.T) {
	f := newFixture(t)

	state, changed := f.session.SelectSubview(navigation.SubViewRankTable)
	assert.False(t, changed)
	assert.Equal(t, navigation.Initial, state)
}

func TestNewsTabSelection(t *testing.T) {
	f := newFixture(t)
	f.put(t, model.TopicNewsUS, usNews)
	f.waitState(t, model.TopicNewsUS, subscription.StateValue)

	nv := f.session.News(model.MarketUS)
	assert.Equal(t, "news_AAPL", nv.Selected, "first label after sorting")
	assert.Len(t, nv.Articles, 2)

	assert.False(t, f.session.SelectTab(model.MarketUS, "news_NOPE"))
	assert.True(t, f.session.SelectTab(model.MarketUS, "news_MSFT"))

	nv = f.session.News(model.MarketUS)
	assert.Equal(t, "news_MSFT", nv.Selected)
	assert.Equal(t, "m1", nv.Articles[0].Title)

	// the selected entity disappears: fall back to the default
	f.put(t, model.TopicNewsUS, `{"news_TSLA":{"articles":[]},"news_AAPL":{"articles":[]}}`)
	require.Eventually(t, func() bool {
		return f.session.News(model.MarketUS).Selected == "news_AAPL"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEmptyNewsHasNoSelection(t *testing.T) {
	f := newFixture(t)
	f.waitState(t, model.TopicNewsKR, subscription.StateEmpty)

	nv := f.session.News(model.MarketKR)
	assert.Equal(t, subscription.StateEmpty, nv.State)
	assert.False(t, nv.HasSelected)
	assert.NotNil(t, nv.Articles)
}

func TestListenersSeeOnlyActiveTopics(t *testing.T) {
	f := newFixture(t)
	for _, spec := range model.Topics() {
		f.waitState(t, spec.Topic, subscription.StateEmpty)
	}
	drain(f.changes)

	// FINANCE is active: a KR rankings update is not relevant
	f.put(t, model.TopicRankingsKR, krRankings)
	f.waitState(t, model.TopicRankingsKR, subscription.StateValue)
	f.put(t, model.TopicFinance, summary)

	c := next(t, f.changes)
	assert.Equal(t, ReasonTopic, c.Reason)
	assert.Equal(t, model.TopicFinance, c.Topic)

	f.session.SelectMarket(navigation.MarketKR)
	c = next(t, f.changes)
	assert.Equal(t, ReasonNavigation, c.Reason)
	assert.Equal(t, navigation.MarketKR, c.Navigation.Market)
}

func drain(ch chan Change) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func next(t *testing.T, ch chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.session.Close()

	for _, spec := range model.Topics() {
		assert.Eventually(t, func() bool { return f.store.Watchers(spec.Topic) == 0 }, time.Second, 5*time.Millisecond)
	}
	assert.Empty(t, f.session.Stats())
}
