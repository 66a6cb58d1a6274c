package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/pathrace/internal/client"
	"github.com/vovakirdan/pathrace/internal/core"
)

// Cell glyphs. Every cell is two columns wide so the grid looks square.
const (
	glyphEmpty      = "  "
	glyphDiscovered = "··"
	glyphStart      = "<>"
	glyphGoal       = "()"
	glyphPending    = "??"
	glyphCursor     = "[]"
)

// costStyle paints a cell's cost as its background and picks a readable
// foreground.
func costStyle(c core.Cost) lipgloss.Style {
	fg := lipgloss.Color("#ffffff")
	// Perceived brightness, ITU-R BT.601 weights.
	if int(c[0])*299+int(c[1])*587+int(c[2])*114 > 128*1000 {
		fg = lipgloss.Color("#000000")
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(c.Hex())).
		Foreground(fg)
}

// RenderBoard draws the terrain with this player's discovery overlaid.
func RenderBoard(b *client.Board, cursor core.Coord, showCursor bool) string {
	var sb strings.Builder
	pending, hasPending := b.Pending()
	for y := 0; y < b.Terrain.H; y++ {
		if y > 0 {
			sb.WriteRune('\n')
		}
		for x := 0; x < b.Terrain.W; x++ {
			c := core.C(x, y)
			glyph := glyphEmpty
			switch {
			case showCursor && c == cursor:
				glyph = glyphCursor
			case b.Started && c == b.Me.Start:
				glyph = glyphStart
			case b.Started && c == b.Me.End:
				glyph = glyphGoal
			case hasPending && c == pending:
				glyph = glyphPending
			case b.Discovered(c):
				glyph = glyphDiscovered
			}
			sb.WriteString(costStyle(b.Terrain.At(c)).Render(glyph))
		}
	}
	return sb.String()
}

// swatch renders a marker as a small coloured block.
func swatch(m core.Marker) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(m.Hex())).Render("  ")
}

// formatScore renders a standing score, or a dash for forfeits.
func formatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *score)
}

// centerText centers text within a given width.
func centerText(text string, width int) string {
	textWidth := lipgloss.Width(text)
	if textWidth >= width {
		return text
	}
	padding := (width - textWidth) / 2
	return strings.Repeat(" ", padding) + text
}
