package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/protocol"
)

const writeWait = 10 * time.Second

// WSConn adapts a websocket to protocol.Conn. Each envelope is one text frame.
type WSConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewWSConn wraps ws.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// ReadMessage reads one envelope. A normal close is reported as io.EOF and a
// frame that does not decode as *protocol.MalformedError.
func (c *WSConn) ReadMessage() (protocol.Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Message{}, io.EOF
		}
		return protocol.Message{}, err
	}
	var m protocol.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return protocol.Message{}, &protocol.MalformedError{Err: err}
	}
	return m, nil
}

// WriteMessage writes one envelope.
func (c *WSConn) WriteMessage(m protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(m)
}

// Close sends a close frame and closes the socket.
func (c *WSConn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// Dial opens a websocket connection to a pathrace server, e.g. ws://host:8080/ws.
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return NewWSConn(ws), nil
}

// HTTPServerConfig holds configuration for the HTTP server.
type HTTPServerConfig struct {
	// Address is the host:port to listen on (e.g., ":8080").
	Address string
}

// HTTPServer serves the websocket endpoint and a small JSON API.
type HTTPServer struct {
	config     HTTPServerConfig
	coord      *multiplayer.Coordinator
	dispatcher *Dispatcher
	router     *mux.Router
	upgrader   websocket.Upgrader
	server     *http.Server
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHTTPServer creates the HTTP server for coord.
func NewHTTPServer(cfg HTTPServerConfig, coord *multiplayer.Coordinator, dispatcher *Dispatcher, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &HTTPServer{
		config:     cfg,
		coord:      coord,
		dispatcher: dispatcher,
		router:     mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/lobby", s.handleLobby).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWS)

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *HTTPServer) handleLobby(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.coord.Lobby()); err != nil {
		s.logger.Warn("lobby encode failed", "error", err)
	}
}

func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.logger.Info("websocket connected", "remote", r.RemoteAddr)
	s.dispatcher.Serve(s.ctx, NewWSConn(ws), r.RemoteAddr)
	s.logger.Info("websocket disconnected", "remote", r.RemoteAddr)
}

// Serve accepts connections on l until Shutdown.
func (s *HTTPServer) Serve(l net.Listener) error {
	s.logger.Info("starting HTTP server", "address", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("transport: http server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *HTTPServer) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.config.Address, err)
	}
	return s.Serve(l)
}

// Shutdown closes open websockets and stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.config.Address
}
