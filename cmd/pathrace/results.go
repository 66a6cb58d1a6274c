package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/pathrace/internal/config"
	"github.com/vovakirdan/pathrace/internal/platform/tui"
	"github.com/vovakirdan/pathrace/internal/storage"
)

var (
	flagResultsDB     string
	flagResultsLimit  int
	flagResultsPlayer string
	flagResultsPlain  bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse finished games",
	Long: `Show games recorded by 'pathrace serve'.

In a terminal the games open in an interactive table; elsewhere, or with
--plain, they are printed. With --player only that player's games are shown,
preceded by their totals.

Examples:
  pathrace results
  pathrace results --player alice --plain
  pathrace results --db ./results.db --limit 50`,
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().StringVar(&flagResultsDB, "db", config.DefaultServerConfig().Storage.DB, "Path to results database")
	resultsCmd.Flags().IntVar(&flagResultsLimit, "limit", 20, "Maximum number of games to show")
	resultsCmd.Flags().StringVar(&flagResultsPlayer, "player", "", "Only show games of this player")
	resultsCmd.Flags().BoolVar(&flagResultsPlain, "plain", false, "Print instead of opening the table")
}

func runResults(cmd *cobra.Command, _ []string) error {
	store, err := storage.Open(flagResultsDB)
	if err != nil {
		return fmt.Errorf("cannot open results database: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	var games []storage.GameRecord
	if flagResultsPlayer != "" {
		stats, err := store.PlayerStats(flagResultsPlayer)
		if err != nil {
			return err
		}
		games, err = store.PlayerGames(flagResultsPlayer, flagResultsLimit)
		if err != nil {
			return err
		}
		if flagResultsPlain || !isTerminal() {
			printStats(out, stats)
		}
	} else {
		games, err = store.RecentGames(flagResultsLimit)
		if err != nil {
			return err
		}
	}

	if !flagResultsPlain && isTerminal() {
		width, height, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			width, height = 80, 24
		}
		return tui.RunResults(games, width, height)
	}
	printGames(out, games)
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printStats(w io.Writer, s *storage.PlayerStats) {
	fmt.Fprintf(w, "Player %s\n", s.Name)
	fmt.Fprintf(w, "  Games: %d  Wins: %d  Best score: %s\n", s.Games, s.Wins, formatScore(s.BestScore))
	if !s.LastPlayed.IsZero() {
		fmt.Fprintf(w, "  Last played: %s\n", s.LastPlayed.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
}

func printGames(w io.Writer, games []storage.GameRecord) {
	if len(games) == 0 {
		fmt.Fprintln(w, "No games recorded yet.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run 'pathrace serve' to host one!")
		return
	}

	fmt.Fprintf(w, "  %-16s  %-6s  %-7s  %-5s  %-12s  %-9s  %s\n", "Date", "Mode", "Size", "Turns", "Winner", "End", "Standings")
	fmt.Fprintf(w, "  %-16s  %-6s  %-7s  %-5s  %-12s  %-9s  %s\n", "----", "----", "----", "-----", "------", "---", "---------")
	for _, g := range games {
		winner := g.Winner
		if winner == "" {
			winner = "-"
		}
		standings := make([]string, 0, len(g.Standings))
		for _, s := range g.Standings {
			entry := fmt.Sprintf("%d.%s(%s)", s.Rank, s.Name, formatScore(s.Score))
			if s.Forfeited {
				entry += "!"
			}
			standings = append(standings, entry)
		}
		fmt.Fprintf(w, "  %-16s  %-6s  %-7s  %-5d  %-12s  %-9s  %s\n",
			g.CreatedAt.Format("2006-01-02 15:04"),
			g.Mode,
			fmt.Sprintf("%dx%d", g.Width, g.Height),
			g.Turns,
			winner,
			g.EndReason,
			strings.Join(standings, " "),
		)
	}
}
