package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomslee/ridehail-sim/internal/simulation"
)

// ObservationFeed fans out each block's Observation to every connected
// websocket subscriber. Publish is called once per Step from the driver
// loop; subscribers that fall behind drop observations rather than block
// the driver.
type ObservationFeed struct {
	mu   sync.RWMutex
	subs map[chan simulation.Observation]struct{}
}

// NewObservationFeed constructs an empty feed.
func NewObservationFeed() *ObservationFeed {
	return &ObservationFeed{subs: make(map[chan simulation.Observation]struct{})}
}

// Publish broadcasts obs to every current subscriber.
func (f *ObservationFeed) Publish(obs simulation.Observation) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- obs:
		default:
		}
	}
}

// Subscribe registers a new channel and returns it plus an unsubscribe func.
func (f *ObservationFeed) Subscribe() (chan simulation.Observation, func()) {
	ch := make(chan simulation.Observation, 8)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
		close(ch)
	}
}

// WebSocketServer serves the per-block observation feed over a dedicated
// mux, separate from the control/REST API.
type WebSocketServer struct {
	feed        *ObservationFeed
	server      *http.Server
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	connections map[*websocket.Conn]context.CancelFunc
	connMutex   sync.RWMutex
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
}

// NewWebSocketServer builds a websocket-only server broadcasting feed.
func NewWebSocketServer(port int, feed *ObservationFeed, logger *slog.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()

	ws := &WebSocketServer{
		feed:        feed,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[*websocket.Conn]context.CancelFunc),
	}

	mux.HandleFunc("/ws/observations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		ws.observationHandler(w, r)
	})

	ws.server = &http.Server{Handler: mux, Addr: fmt.Sprintf(":%d", port)}

	return ws
}

func (ws *WebSocketServer) addConnection(conn *websocket.Conn, cancel context.CancelFunc) {
	ws.connMutex.Lock()
	defer ws.connMutex.Unlock()
	ws.connections[conn] = cancel
}

func (ws *WebSocketServer) removeConnection(conn *websocket.Conn) {
	ws.connMutex.Lock()
	defer ws.connMutex.Unlock()
	if cancel, ok := ws.connections[conn]; ok {
		cancel()
		delete(ws.connections, conn)
	}
}

func (ws *WebSocketServer) closeAllConnections() {
	ws.connMutex.Lock()
	defer ws.connMutex.Unlock()
	for conn, cancel := range ws.connections {
		if err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"),
			time.Now().Add(time.Second)); err != nil {
			ws.logger.Error("failed to send close message", slog.String("error", err.Error()))
		}
		cancel()
		if err := conn.Close(); err != nil {
			ws.logger.Error("failed to close websocket connection", slog.String("error", err.Error()))
		}
	}
	ws.connections = make(map[*websocket.Conn]context.CancelFunc)
}

// observationHandler upgrades the connection and streams every Observation
// published to the feed until the client disconnects or the server stops.
func (ws *WebSocketServer) observationHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			ws.logger.Error("failed to close websocket connection", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(ws.ctx)
	ws.addConnection(conn, cancel)
	defer ws.removeConnection(conn)

	ws.logger.Info("websocket connection established")

	const (
		writeWait  = 10 * time.Second
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10
	)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		ws.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sub, unsubscribe := ws.feed.Subscribe()
	defer unsubscribe()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					ws.logger.Warn("websocket connection closed unexpectedly", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"), time.Now().Add(writeWait)); err != nil {
				ws.logger.Error("failed to send close message", slog.String("error", err.Error()))
			}
			return

		case <-pingTicker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case obs, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				ws.logger.Error("failed to set write deadline", slog.String("error", err.Error()))
				return
			}
			if err := conn.WriteJSON(obs); err != nil {
				ws.logger.Error("failed to send observation", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Start runs the websocket server until it is shut down.
func (ws *WebSocketServer) Start() error {
	ws.logger.Info("starting websocket server", slog.String("addr", ws.server.Addr))
	return ws.server.ListenAndServe()
}

// Shutdown gracefully closes every connection and stops the server.
func (ws *WebSocketServer) Shutdown(ctx context.Context) error {
	ws.cancel()
	ws.closeAllConnections()
	return ws.server.Shutdown(ctx)
}
