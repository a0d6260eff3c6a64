package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/api/handlers"
	"github.com/wonny/rsboard/internal/dashboard"
	"github.com/wonny/rsboard/internal/docstore/memstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/internal/subscription"
	"github.com/wonny/rsboard/internal/viewconfig"
	"github.com/wonny/rsboard/pkg/logger"
)

const krRankings = `{"update_time":"2024-05-01","rankings":[
	{"code":"005930","name":"Samsung","rs_avg":91,"rs_10":95,"rs_20":90},
	{"code":"000660","name":"Hynix","rs_avg":64}
]}`

type testServer struct {
	store   *memstore.Store
	manager *subscription.Manager
	session *dashboard.Session
	hub     *handlers.StreamHub
	health  *handlers.HealthHandler
	server  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	store := memstore.New()
	view := viewconfig.Default()
	manager := subscription.NewManager(store, view.Decoder(), log)
	session := dashboard.NewSession(manager, view, log)
	require.NoError(t, session.Start(context.Background()))

	hub := handlers.NewStreamHub(session, log)
	hub.Start()

	health := handlers.NewHealthHandler(session.Stats)
	router := NewRouter(Handlers{
		Dashboard: handlers.NewDashboardHandler(session, log),
		Health:    health,
		Stream:    hub,
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
		session.Close()
		manager.Close()
		store.Close()
	})

	return &testServer{store: store, manager: manager, session: session, hub: hub, health: health, server: srv}
}

func (ts *testServer) put(t *testing.T, topic model.Topic, doc string) {
	t.Helper()
	require.NoError(t, ts.store.Put(context.Background(), topic, []byte(doc)))
	require.Eventually(t, func() bool {
		return ts.manager.Current(topic).State == subscription.StateValue
	}, 2*time.Second, 5*time.Millisecond)
}

func (ts *testServer) do(t *testing.T, method, path string, out interface{}) int {
	t.Helper()

	req, err := http.NewRequest(method, ts.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body handlers.HealthResponse
	status := ts.do(t, http.MethodGet, "/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Topics, len(model.Topics()))
}

func TestHealthDegradedOnFailedCheck(t *testing.T) {
	ts := newTestServer(t)
	ts.health.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	var body handlers.HealthResponse
	status := ts.do(t, http.MethodGet, "/health", &body)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestNavigationEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var nav handlers.NavigationResponse
	status := ts.do(t, http.MethodPost, "/api/nav/subview/RANK_TABLE", &nav)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, nav.Changed, "sub-view under FINANCE is a no-op")
	assert.Equal(t, navigation.Initial, nav.Navigation)

	status = ts.do(t, http.MethodPost, "/api/nav/market/kr", &nav)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, nav.Changed)
	assert.Equal(t, navigation.State{Market: navigation.MarketKR, SubView: navigation.SubViewNews}, nav.Navigation)

	status = ts.do(t, http.MethodPost, "/api/nav/subview/RANK_GRAPH", &nav)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, nav.Changed)

	var errBody map[string]string
	status = ts.do(t, http.MethodPost, "/api/nav/market/JP", &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, errBody["error"])
}

func TestViewFollowsNavigation(t *testing.T) {
	ts := newTestServer(t)
	ts.put(t, model.TopicRankingsKR, krRankings)
	ts.session.SelectMarket(navigation.MarketKR)
	ts.session.SelectSubview(navigation.SubViewRankTable)

	var view dashboard.View
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/view", &view))

	assert.Nil(t, view.Finance)
	require.NotNil(t, view.Heatmap)
	require.NotNil(t, view.Table)
	assert.Len(t, view.Table.Table.Rows, 2)
	assert.Equal(t, subscription.StateValue, view.Heatmap.State)
}

func TestHeatmapEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.put(t, model.TopicRankingsKR, krRankings)

	var hv dashboard.HeatmapView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/markets/KR/heatmap?width=400&height=300", &hv))

	assert.Equal(t, 400.0, hv.Heatmap.Width)
	assert.Equal(t, 300.0, hv.Heatmap.Height)
	require.Len(t, hv.Heatmap.Tiles, 2)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/markets/KR/heatmap?width=-1", &errBody))
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/markets/XX/heatmap", &errBody))

	for _, q := range []string{"width=NaN&height=300", "width=400&height=Inf", "width=-Inf", "height=nan"} {
		errBody = nil
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/markets/KR/heatmap?"+q, &errBody), q)
		assert.NotEmpty(t, errBody["error"], q)
	}
}

func TestMarketEndpointsWhilePending(t *testing.T) {
	ts := newTestServer(t)

	var sv dashboard.SeriesView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/markets/US/series", &sv))
	assert.Equal(t, model.MarketUS, sv.Market)
	assert.Empty(t, sv.Series.Entities)

	var tv dashboard.TableView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/markets/US/table", &tv))
	assert.Empty(t, tv.Table.Rows)
}

func TestNewsTabEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.put(t, model.TopicNewsKR, `{"005930_Samsung":{"articles":[{"title":"s"}]},"000660_Hynix":{"articles":[{"title":"h"}]}}`)

	var tab handlers.TabResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/news/KR/tab/005930_Samsung", &tab))
	assert.True(t, tab.Changed)
	assert.Equal(t, "005930_Samsung", tab.News.Selected)
	require.Len(t, tab.News.Articles, 1)
	assert.Equal(t, "s", tab.News.Articles[0].Title)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/news/KR/tab/missing", &tab))
	assert.False(t, tab.Changed)
	assert.Equal(t, "005930_Samsung", tab.News.Selected)
}

func TestTopicsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Topics []subscription.TopicStats `json:"topics"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/topics", &body))
	assert.Len(t, body.Topics, len(model.Topics()))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/nope", &body))
	assert.Equal(t, "not found", body["error"])
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func readMessage(t *testing.T, conn *websocket.Conn) handlers.StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg handlers.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips coalesced intermediate views
func readUntil(t *testing.T, conn *websocket.Conn, match func(handlers.StreamMessage) bool) handlers.StreamMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMessage(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatal("no matching stream message")
	return handlers.StreamMessage{}
}

func TestStreamPushesViewOnChange(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, handlers.MessageView, first.Type)
	require.NotNil(t, first.View)
	assert.Equal(t, navigation.MarketFinance, first.View.Navigation.Market)

	// navigation command over the socket
	require.NoError(t, conn.WriteJSON(handlers.StreamCommand{Action: handlers.CommandSelectMarket, Market: "US"}))
	msg := readUntil(t, conn, func(m handlers.StreamMessage) bool {
		return m.View != nil && m.View.Navigation.Market == navigation.MarketUS
	})
	require.NotNil(t, msg.View.News)
	assert.Equal(t, model.MarketUS, msg.View.News.Market)

	// topic update on the active view
	require.NoError(t, ts.store.Put(context.Background(), model.TopicNewsUS, []byte(`{"news_AAPL":{"articles":[{"title":"a"}]}}`)))
	msg = readUntil(t, conn, func(m handlers.StreamMessage) bool {
		return m.View != nil && m.View.News != nil && len(m.View.News.Articles) == 1
	})
	assert.Equal(t, "news_AAPL", msg.View.News.Selected)

	// bad command is answered, not fatal
	require.NoError(t, conn.WriteJSON(handlers.StreamCommand{Action: "launch"}))
	msg = readUntil(t, conn, func(m handlers.StreamMessage) bool { return m.Type == handlers.MessageError })
	assert.Contains(t, msg.Error, "launch")
}

func TestStreamErrorReplyKeepsInitialView(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 첫 뷰를 읽기 전에 잘못된 명령 전송
	require.NoError(t, conn.WriteJSON(handlers.StreamCommand{Action: "launch"}))

	var gotView, gotError bool
	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		switch msg.Type {
		case handlers.MessageView:
			gotView = true
		case handlers.MessageError:
			gotError = true
		}
	}
	assert.True(t, gotView, "initial view delivered")
	assert.True(t, gotError, "error reply delivered")
}

func TestStreamStopClosesClients(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readMessage(t, conn)
	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ts.hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
