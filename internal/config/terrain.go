package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/pathrace/internal/core"
)

// TerrainFile is the on-disk terrain seed: rows of "#rrggbb" cells.
// The same document is sent to clients as the game's seed payload.
type TerrainFile struct {
	Width  int        `yaml:"width"`
	Height int        `yaml:"height"`
	Cells  [][]string `yaml:"cells"`
}

// Load builds the terrain from the seed file, or a uniform fill.
func (c TerrainConfig) Load() (*core.Terrain, error) {
	if c.File == "" {
		fill, err := core.ParseHex(c.Fill)
		if err != nil {
			return nil, fmt.Errorf("config: terrain.fill: %w", err)
		}
		if c.Width <= 0 || c.Height <= 0 {
			return nil, fmt.Errorf("config: terrain %dx%d is empty", c.Width, c.Height)
		}
		return core.NewTerrain(c.Width, c.Height, fill), nil
	}
	data, err := os.ReadFile(ExpandHome(c.File))
	if err != nil {
		return nil, fmt.Errorf("config: read terrain %s: %w", c.File, err)
	}
	t, err := ParseTerrain(data)
	if err != nil {
		return nil, fmt.Errorf("config: terrain %s: %w", c.File, err)
	}
	return t, nil
}

// ParseTerrain decodes a terrain seed document.
func ParseTerrain(data []byte) (*core.Terrain, error) {
	var f TerrainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Height != 0 && len(f.Cells) != f.Height {
		return nil, fmt.Errorf("height is %d but %d rows given", f.Height, len(f.Cells))
	}
	rows := make([][]core.Cost, len(f.Cells))
	for y, row := range f.Cells {
		if f.Width != 0 && len(row) != f.Width {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", y, len(row), f.Width)
		}
		rows[y] = make([]core.Cost, len(row))
		for x, hex := range row {
			cost, err := core.ParseHex(hex)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", x, y, err)
			}
			rows[y][x] = cost
		}
	}
	return core.TerrainFromRows(rows)
}

// EncodeTerrain renders t as a seed document.
func EncodeTerrain(t *core.Terrain) ([]byte, error) {
	f := TerrainFile{Width: t.W, Height: t.H, Cells: make([][]string, 0, t.H)}
	for _, row := range t.Rows() {
		hexes := make([]string, len(row))
		for x, cost := range row {
			hexes[x] = cost.Hex()
		}
		f.Cells = append(f.Cells, hexes)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("config: encode terrain: %w", err)
	}
	return data, nil
}
