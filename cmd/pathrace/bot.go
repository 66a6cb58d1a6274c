package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pathrace/internal/client"
	"github.com/vovakirdan/pathrace/internal/transport"
)

var (
	flagBotServer string
	flagBotName   string
	flagBotCount  int
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Join a game with automated players",
	Long: `Connect one or more automated players to a pathrace server.

Each bot joins as an automated client and, every round, discovers the
frontier cell nearest its goal, preferring the cheaper cell on a tie.

Examples:
  pathrace bot
  pathrace bot --count 3 --name walker
  pathrace bot --server ws://game.example.com:8080/ws`,
	RunE: runBots,
}

func init() {
	botCmd.Flags().StringVar(&flagBotServer, "server", defaultServerURL, "Server websocket URL")
	botCmd.Flags().StringVar(&flagBotName, "name", "bot", "Bot name (numbered when --count > 1)")
	botCmd.Flags().IntVar(&flagBotCount, "count", 1, "Number of bots to connect")
}

func runBots(_ *cobra.Command, _ []string) error {
	if flagBotCount < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", flagBotCount)
	}
	logger, err := newLogger("pathrace-bot")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < flagBotCount; i++ {
		name := flagBotName
		if flagBotCount > 1 {
			name = fmt.Sprintf("%s%d", flagBotName, i+1)
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := runBot(ctx, name); err != nil {
				logger.Error("bot failed", "name", name, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()
	return firstErr
}

func runBot(ctx context.Context, name string) error {
	logger, err := newLogger("bot")
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := transport.Dial(dialCtx, flagBotServer)
	cancel()
	if err != nil {
		return err
	}
	c := client.New(conn, logger)
	defer c.Close()

	board, joined, err := client.Setup(ctx, c, name, true)
	if err != nil {
		return err
	}
	logger = logger.With("name", joined.Name)
	logger.Info("joined", "role", joined.Role)

	won, err := client.NewBot(c, board, logger).Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("game over", "won", won, "turn", board.Turn)
	for i, s := range board.Standings {
		logger.Info("standing", "rank", i+1, "player", s.Name, "score", formatScore(s.Score))
	}
	return nil
}

func formatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *score)
}
