package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/rsboard/internal/dashboard"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/navigation"
	"github.com/wonny/rsboard/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxCommandSize = 4096
)

// Stream message types
const (
	MessageView  = "view"
	MessageError = "error"
)

// Stream commands accepted from clients
const (
	CommandSelectMarket  = "select_market"
	CommandSelectSubview = "select_subview"
	CommandSelectTab     = "select_tab"
)

// StreamMessage is pushed to every connected client
type StreamMessage struct {
	Type   string           `json:"type"`
	Reason dashboard.Reason `json:"reason,omitempty"`
	View   *dashboard.View  `json:"view,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// StreamCommand is a navigation request sent by a client
type StreamCommand struct {
	Action  string `json:"action"`
	Market  string `json:"market,omitempty"`
	SubView string `json:"subview,omitempty"`
	Key     string `json:"key,omitempty"`
}

// StreamHub pushes the full active view to WebSocket clients after every change.
// Changes are coalesced: a slow client only ever receives the latest view.
// ⭐ SSOT: 실시간 뷰 푸시는 이 허브에서만
type StreamHub struct {
	session  *dashboard.Session
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	reason  dashboard.Reason
	stopped bool

	dirty    chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	unlisten func()
}

// send 는 최신 뷰만, errs 는 최신 에러만 보관
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	errs chan []byte
	done chan struct{}
	once sync.Once
}

// NewStreamHub creates a hub; call Start before serving
func NewStreamHub(session *dashboard.Session, log *logger.Logger) *StreamHub {
	return &StreamHub{
		session: session,
		logger:  log.WithComponent("stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
		dirty:   make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start registers the session listener and the broadcast loop
func (h *StreamHub) Start() {
	h.unlisten = h.session.Listen(func(c dashboard.Change) {
		h.mu.Lock()
		h.reason = c.Reason
		h.mu.Unlock()
		h.markDirty()
	})

	h.wg.Add(1)
	go h.run()
}

// Stop closes every client and waits for the broadcast loop
func (h *StreamHub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	if h.unlisten != nil {
		h.unlisten()
	}
	close(h.stopCh)
	h.wg.Wait()

	for _, c := range clients {
		c.close()
	}
}

// Clients returns the number of connected clients
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades /ws and serves one client until it disconnects
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan []byte, 1),
		errs: make(chan []byte, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.wg.Add(1)
	h.mu.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"remote":  r.RemoteAddr,
		"clients": count,
	}).Info("Stream client connected")

	// 새 클라이언트도 다음 브로드캐스트에서 현재 뷰를 받음
	h.markDirty()

	go func() {
		defer h.wg.Done()
		h.writeLoop(c)
	}()

	h.readLoop(c)
	h.remove(c)
}

func (h *StreamHub) markDirty() {
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

func (h *StreamHub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			return
		case <-h.dirty:
			h.broadcast()
		}
	}
}

func (h *StreamHub) broadcast() {
	h.mu.Lock()
	reason := h.reason
	h.reason = ""
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}

	view := h.session.View()
	payload, err := json.Marshal(StreamMessage{Type: MessageView, Reason: reason, View: &view})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode view")
		return
	}

	for _, c := range clients {
		c.offer(payload)
	}
}

// readLoop applies client commands; resulting changes reach every client via the listener
func (h *StreamHub) readLoop(c *streamClient) {
	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("Stream client read failed")
			}
			return
		}

		var cmd StreamCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(c, "invalid command")
			continue
		}
		if err := h.apply(cmd); err != nil {
			h.reply(c, err.Error())
		}
	}
}

func (h *StreamHub) apply(cmd StreamCommand) error {
	switch cmd.Action {
	case CommandSelectMarket:
		m, err := navigation.ParseMarket(cmd.Market)
		if err != nil {
			return err
		}
		h.session.SelectMarket(m)
	case CommandSelectSubview:
		v, err := navigation.ParseSubView(cmd.SubView)
		if err != nil {
			return err
		}
		h.session.SelectSubview(v)
	case CommandSelectTab:
		m, err := model.ParseMarket(cmd.Market)
		if err != nil {
			return err
		}
		h.session.SelectTab(m, cmd.Key)
	default:
		return errUnknownCommand(cmd.Action)
	}
	return nil
}

func (h *StreamHub) reply(c *streamClient, message string) {
	payload, err := json.Marshal(StreamMessage{Type: MessageError, Error: message})
	if err != nil {
		return
	}
	latest(c.errs, payload)
}

func (h *StreamHub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case <-h.stopCh:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		case payload := <-c.send:
			if !h.write(c, payload) {
				return
			}
		case payload := <-c.errs:
			if !h.write(c, payload) {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				h.logger.WithError(err).Debug("Failed to send ping")
				return
			}
		}
	}
}

func (h *StreamHub) write(c *streamClient, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.logger.WithError(err).Debug("Stream client write failed")
		return false
	}
	return true
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	c.close()

	h.logger.WithField("clients", count).Info("Stream client disconnected")
}

// offer replaces any unsent view with the newer one
func (c *streamClient) offer(payload []byte) {
	latest(c.send, payload)
}

// latest replaces any unsent payload in a single-slot channel
func latest(ch chan []byte, payload []byte) {
	for {
		select {
		case ch <- payload:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string {
	return "unknown command: " + string(e)
}
