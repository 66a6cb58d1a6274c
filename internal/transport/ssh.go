package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/pathrace/internal/protocol"
)

// InteractiveHandler builds a terminal client for an SSH session with a PTY.
// conn is an in-process connection to the server, already being served.
type InteractiveHandler func(sess ssh.Session, conn protocol.Conn) (tea.Model, []tea.ProgramOption)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":23234").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.pathrace/host_key.
	HostKeyPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// Interactive serves sessions that request a PTY. When nil, every
	// session speaks newline-delimited protocol envelopes.
	Interactive InteractiveHandler
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     ":23234",
		IdleTimeout: 30 * time.Minute,
	}
}

// SSHServer wraps a Wish SSH server for pathrace.
type SSHServer struct {
	config     SSHServerConfig
	server     *ssh.Server
	dispatcher *Dispatcher
	logger     *log.Logger

	// interactive holds the in-process connection of each running
	// terminal client, keyed by session.
	interactive sync.Map
}

// NewSSHServer creates a new SSH server with the given configuration.
func NewSSHServer(cfg SSHServerConfig, dispatcher *Dispatcher, logger *log.Logger) (*SSHServer, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	srv := &SSHServer{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     logger,
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".pathrace", "host_key")
	} else if strings.HasPrefix(hostKeyPath, "~/") {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, hostKeyPath[2:])
	}

	// Ensure host key directory exists
	hostKeyDir := filepath.Dir(hostKeyPath)
	if mkdirErr := os.MkdirAll(hostKeyDir, 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	// Middleware listed first runs innermost.
	middleware := []wish.Middleware{srv.protocolMiddleware}
	if cfg.Interactive != nil {
		middleware = append(middleware, bubbletea.Middleware(srv.teaHandler))
	}
	middleware = append(middleware, srv.loggingMiddleware)

	server, err := wish.NewServer(
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(middleware...),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler runs the terminal client for PTY sessions. Sessions without a
// PTY fall through to the protocol handler.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	if _, _, ok := sshSession.Pty(); !ok {
		return nil, nil
	}

	conn := s.attach(sshSession.Context(), sshSession, sshSession.RemoteAddr().String())
	model, opts := s.config.Interactive(sshSession, conn)
	if model == nil {
		s.detach(sshSession)
		return nil, nil
	}
	return model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
}

// attach serves an in-process connection for sess and returns the client end.
// It stays open until detach or until ctx is done.
func (s *SSHServer) attach(ctx context.Context, sess ssh.Session, remote string) protocol.Conn {
	serverEnd, clientEnd := net.Pipe()
	go s.dispatcher.Serve(ctx, protocol.NewStreamConn(serverEnd), remote)

	conn := protocol.NewStreamConn(clientEnd)
	s.interactive.Store(sess, conn)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return conn
}

// detach closes the in-process connection of sess, which leaves the game.
func (s *SSHServer) detach(sess ssh.Session) {
	if v, ok := s.interactive.LoadAndDelete(sess); ok {
		_ = v.(protocol.Conn).Close()
	}
}

// protocolMiddleware serves newline-delimited envelopes on the session channel.
// A PTY session that ran the terminal client only gets here once the client
// has exited; the channel carries keystrokes, so it is not served.
func (s *SSHServer) protocolMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		if s.config.Interactive != nil {
			if _, _, ok := sshSession.Pty(); ok {
				s.detach(sshSession)
				next(sshSession)
				return
			}
		}
		s.dispatcher.Serve(sshSession.Context(), sshConn{sshSession, protocol.NewLineCodec(sshSession, sshSession)},
			sshSession.RemoteAddr().String())
		next(sshSession)
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until Shutdown.
func (s *SSHServer) ListenAndServe() error {
	s.logger.Info("starting SSH server", "address", s.config.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("transport: ssh server: %w", err)
	}
	return nil
}

// Serve accepts connections on l until Shutdown.
func (s *SSHServer) Serve(l net.Listener) error {
	s.logger.Info("starting SSH server", "address", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("transport: ssh server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}

// sshConn is a protocol.Conn over an SSH session channel.
type sshConn struct {
	sess  ssh.Session
	codec *protocol.LineCodec
}

func (c sshConn) ReadMessage() (protocol.Message, error) { return c.codec.Read() }
func (c sshConn) WriteMessage(m protocol.Message) error  { return c.codec.Write(m) }
func (c sshConn) Close() error                           { return c.sess.Close() }
