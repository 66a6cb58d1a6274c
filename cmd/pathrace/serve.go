package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pathrace/internal/chat"
	"github.com/vovakirdan/pathrace/internal/client"
	"github.com/vovakirdan/pathrace/internal/config"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/platform/tui"
	"github.com/vovakirdan/pathrace/internal/protocol"
	"github.com/vovakirdan/pathrace/internal/storage"
	"github.com/vovakirdan/pathrace/internal/transport"
)

var (
	flagConfig      string
	flagHTTPAddr    string
	flagSSHAddr     string
	flagHostKey     string
	flagDBPath      string
	flagNATS        string
	flagCapacity    int
	flagTimeout     int
	flagStartAfter  time.Duration
	flagIdleTimeout int
	flagLinger      time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a pathrace game",
	Long: `Host one pathrace game. Clients connect over websockets (pathrace play,
pathrace bot) or SSH. An SSH session with a terminal gets the interactive
client; one without a terminal speaks the line protocol.

The game starts when the player capacity is reached, or after --start-after
once at least one player has joined. Later arrivals can only chat.

Configuration search order:
  --config path -> ~/.pathrace/server.yaml -> ./configs/server.yaml -> built-in
PATHRACE_* variables (also read from .env) override the file; flags override both.

Chat relay (--nats):
  ""          in-process
  embedded    start a NATS server inside this process
  nats://...  use an external NATS server

Examples:
  pathrace serve
  pathrace serve --capacity 2 --timeout 2000
  pathrace serve --http :9000 --ssh ""
  pathrace serve --config ./server.yaml --nats embedded

Users can connect with:
  pathrace play --server ws://localhost:8080/ws
  ssh localhost -p 23234`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "Path to server config YAML")
	serveCmd.Flags().StringVar(&flagHTTPAddr, "http", "", "Websocket/HTTP address (host:port, empty disables)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (host:port, empty disables)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().StringVar(&flagDBPath, "db", "", "Path to results database (empty disables)")
	serveCmd.Flags().StringVar(&flagNATS, "nats", "", "Chat relay: empty, embedded or a nats:// URL")
	serveCmd.Flags().IntVar(&flagCapacity, "capacity", 0, "Number of player seats (0 is unlimited and needs --start-after)")
	serveCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Per-round move timeout in milliseconds")
	serveCmd.Flags().DurationVar(&flagStartAfter, "start-after", 0, "Start after this long in the lobby (0 waits for capacity)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "SSH idle timeout in minutes before disconnecting")
	serveCmd.Flags().DurationVar(&flagLinger, "linger", 10*time.Second, "Keep serving this long after the game ends")
}

// loadServerConfig merges the config file, the environment and flags.
func loadServerConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("http") {
		cfg.Listen.HTTP = flagHTTPAddr
	}
	if flags.Changed("ssh") {
		cfg.Listen.SSH = flagSSHAddr
	}
	if flags.Changed("host-key") {
		cfg.Listen.HostKey = flagHostKey
	}
	if flags.Changed("db") {
		cfg.Storage.DB = flagDBPath
	}
	if flags.Changed("nats") {
		cfg.Chat.NATS = flagNATS
	}
	if flags.Changed("capacity") {
		cfg.Game.Capacity = flagCapacity
	}
	if flags.Changed("timeout") {
		cfg.Game.TimeoutMS = flagTimeout
	}
	if flags.Changed("start-after") {
		cfg.Game.StartAfter = flagStartAfter
	}
	return cfg, cfg.Validate()
}

// openRelay picks the chat relay for the configured mode.
func openRelay(mode string, logger *log.Logger) (chat.Relay, error) {
	switch mode {
	case "":
		return chat.NewLocal(), nil
	case "embedded":
		return chat.NewNats(chat.NatsConfig{}, logger)
	default:
		return chat.NewNats(chat.NatsConfig{URL: mode}, logger)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger("pathrace")
	if err != nil {
		return err
	}
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}
	coordCfg, err := cfg.Coordinator()
	if err != nil {
		return err
	}

	relay, err := openRelay(cfg.Chat.NATS, logger.WithPrefix("chat"))
	if err != nil {
		return fmt.Errorf("cannot start chat relay: %w", err)
	}
	defer relay.Close()

	coord, err := multiplayer.NewCoordinator(coordCfg, relay, logger.WithPrefix("game"))
	if err != nil {
		return err
	}
	defer coord.Close()

	// Open storage
	if cfg.Storage.DB != "" {
		store, err := storage.Open(cfg.Storage.DB)
		if err != nil {
			logger.Warn("could not open results database", "error", err)
			// Continue without storage
		} else {
			defer store.Close()
			coord.SetResultSaver(store)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := transport.NewDispatcher(coord, logger.WithPrefix("conn"))
	errc := make(chan error, 2)

	var httpSrv *transport.HTTPServer
	if cfg.Listen.HTTP != "" {
		httpSrv = transport.NewHTTPServer(transport.HTTPServerConfig{Address: cfg.Listen.HTTP},
			coord, dispatcher, logger.WithPrefix("http"))
		go func() { errc <- httpSrv.ListenAndServe() }()
	}

	var sshSrv *transport.SSHServer
	if cfg.Listen.SSH != "" {
		sshSrv, err = transport.NewSSHServer(transport.SSHServerConfig{
			Address:     cfg.Listen.SSH,
			HostKeyPath: config.ExpandHome(cfg.Listen.HostKey),
			IdleTimeout: time.Duration(flagIdleTimeout) * time.Minute,
			Interactive: func(sess ssh.Session, conn protocol.Conn) (tea.Model, []tea.ProgramOption) {
				return tui.NewPlayModel(client.New(conn, logger.WithPrefix("ssh-client")), sess.User()), nil
			},
		}, dispatcher, logger.WithPrefix("ssh"))
		if err != nil {
			return err
		}
		go func() { errc <- sshSrv.ListenAndServe() }()
	}

	logger.Info("hosting game",
		"mode", coordCfg.Game.Mode,
		"size", fmt.Sprintf("%dx%d", coordCfg.Terrain.W, coordCfg.Terrain.H),
		"capacity", coordCfg.Capacity,
		"timeout_ms", coordCfg.Game.TimeoutMillis,
	)

	runDone := make(chan error, 1)
	go func() { runDone <- coord.Run(ctx) }()

	var runErr error
	select {
	case runErr = <-runDone:
		if res, ok := coord.Result(); ok {
			logger.Info("game over", "game", res.GameID, "turns", res.Turns, "winner", res.Winner)
		}
		if runErr == nil {
			// Let clients read the final standings.
			select {
			case <-time.After(flagLinger):
			case <-ctx.Done():
			}
		}
	case err := <-errc:
		if err != nil {
			runErr = err
		}
		stop()
		<-runDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	if sshSrv != nil {
		if err := sshSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ssh shutdown", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("stopped")
		return nil
	}
	return runErr
}
