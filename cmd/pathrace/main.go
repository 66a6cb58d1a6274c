// pathrace hosts and plays a round-based multiplayer path-discovery race.
//
// Usage:
//
//	pathrace serve           - Host a game over websockets and SSH
//	pathrace play            - Join a game in the terminal
//	pathrace bot             - Join a game with automated players
//	pathrace results         - Browse finished games
//	pathrace version         - Print the version
//
// Global flags:
//
//	--log-level <level>  - debug, info, warn or error (default: info)
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pathrace/internal/protocol"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const protocolVersion = protocol.Version

var (
	// Global flags
	flagLogLevel string
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pathrace",
	Short: "Pathrace - race to your goal across a shared, shifting terrain",
	Long: `Pathrace is a round-based multiplayer game. Every round each player
discovers one cell next to the cells they already hold; every discovered cell
is tinted with the player's colour, changing its cost for everyone. The
cheapest, fastest path to the goal wins.

Available commands:
  serve    - Host a game
  play     - Join a game in the terminal
  bot      - Join a game with automated players
  results  - Browse finished games
  version  - Print the version

Examples:
  pathrace serve
  pathrace serve --capacity 2 --start-after 1m
  pathrace play --server ws://localhost:8080/ws --name alice
  ssh localhost -p 23234
  pathrace bot --count 3
  pathrace results`,
	SilenceUsage: true,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger returns a stderr logger at the --log-level level.
func newLogger(prefix string) (*log.Logger, error) {
	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", flagLogLevel, err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	}), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pathrace %s (protocol %d)\n", version, protocolVersion)
	},
}
