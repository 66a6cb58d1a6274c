package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/pathrace/internal/client"
	"github.com/vovakirdan/pathrace/internal/platform/tui"
	"github.com/vovakirdan/pathrace/internal/transport"
)

const defaultServerURL = "ws://localhost:8080/ws"

var (
	flagServerURL string
	flagName      string
	flagLogFile   string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Join a game in the terminal",
	Long: `Connect to a pathrace server and play interactively.

Move the cursor with the arrow keys or hjkl, press enter to discover the
highlighted cell and space to pass. Press c to chat and ? for help.

If the name is taken, an underscore is appended until it is free.

Examples:
  pathrace play
  pathrace play --server ws://game.example.com:8080/ws --name alice`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagServerURL, "server", defaultServerURL, "Server websocket URL")
	playCmd.Flags().StringVar(&flagName, "name", os.Getenv("USER"), "Player name")
	playCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write client logs to this file")
}

func runPlay(_ *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("play needs a terminal; use 'pathrace bot' for unattended play")
	}
	if flagName == "" {
		flagName = "player"
	}

	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", flagLogLevel, err)
	}
	// The TUI owns the terminal, so logs go to a file or nowhere.
	var logger *log.Logger
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		defer f.Close()
		logger = log.NewWithOptions(f, log.Options{ReportTimestamp: true, Prefix: "client", Level: level})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, flagServerURL)
	if err != nil {
		return err
	}

	c := client.New(conn, logger)
	defer c.Close()

	return tui.RunPlay(c, flagName)
}
