package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject chat lines are published on.
const DefaultSubject = "pathrace.chat"

// NatsConfig configures a NATS relay.
type NatsConfig struct {
	// URL of an external NATS server. Empty starts an embedded server.
	URL string

	// Host and Port for the embedded server. Port 0 picks a free port.
	Host string
	Port int

	Subject        string
	StartupTimeout time.Duration
}

// Nats is a Relay backed by a NATS connection, optionally to a server
// embedded in this process.
type Nats struct {
	ns      *server.Server // nil when connected to an external server
	conn    *nats.Conn
	subject string
	logger  *log.Logger
}

// NewNats connects to (or embeds) a NATS server.
func NewNats(cfg NatsConfig, logger *log.Logger) (*Nats, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 10 * time.Second
	}

	n := &Nats{subject: cfg.Subject, logger: logger}

	url := cfg.URL
	if url == "" {
		host := cfg.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := cfg.Port
		if port == 0 {
			port = server.RANDOM_PORT
		}

		ns, err := server.NewServer(&server.Options{
			Host:   host,
			Port:   port,
			NoSigs: true,
			NoLog:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("chat: create nats server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(cfg.StartupTimeout) {
			ns.Shutdown()
			return nil, fmt.Errorf("chat: nats server not ready after %s", cfg.StartupTimeout)
		}
		n.ns = ns
		url = ns.ClientURL()
		logger.Info("embedded nats listening", "addr", ns.Addr())
	}

	conn, err := nats.Connect(url, nats.Name("pathrace"))
	if err != nil {
		n.shutdownServer()
		return nil, fmt.Errorf("chat: connect %s: %w", url, err)
	}
	n.conn = conn
	return n, nil
}

// Publish sends msg to every subscriber on the bus.
func (n *Nats) Publish(msg Message) error {
	if n.conn == nil || n.conn.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: encode message: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("chat: publish: %w", err)
	}
	return nil
}

// Subscribe registers h for every message on the bus. Handlers run on the
// NATS delivery goroutine.
func (n *Nats) Subscribe(h Handler) (func(), error) {
	if n.conn == nil || n.conn.IsClosed() {
		return nil, ErrClosed
	}
	sub, err := n.conn.Subscribe(n.subject, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			n.logger.Warn("dropping malformed chat message", "error", err)
			return
		}
		h(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("chat: subscribe: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Flush waits until the server has processed everything published so far.
func (n *Nats) Flush() error {
	if n.conn == nil {
		return ErrClosed
	}
	return n.conn.Flush()
}

// Close disconnects and stops the embedded server, if any.
func (n *Nats) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	n.shutdownServer()
	return nil
}

func (n *Nats) shutdownServer() {
	if n.ns == nil {
		return
	}
	n.ns.Shutdown()
	n.ns.WaitForShutdown()
}
