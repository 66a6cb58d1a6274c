package core

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Cost is the per-cell terrain value: an RGB triple.
// A player's marker uses the same representation so it can be blended in.
type Cost [3]uint8

// Marker is a player's colour, used for display and as the blend input.
type Marker = Cost

// ChatMarker is the colour used for sessions that are not playing.
var ChatMarker = Marker{0, 0, 0}

// Weight returns the scalar traversal cost of the cell (sum of channels).
func (c Cost) Weight() int {
	return int(c[0]) + int(c[1]) + int(c[2])
}

// Blend averages two costs channel by channel, rounding down.
// Blend is not commutative over repeated application.
func (c Cost) Blend(m Marker) Cost {
	var out Cost
	for i := range c {
		out[i] = uint8((int(c[i]) + int(m[i])) / 2)
	}
	return out
}

// Hex renders the cost as "#rrggbb".
func (c Cost) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (Cost, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Cost{}, fmt.Errorf("core: invalid colour %q", s)
	}
	var out Cost
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return Cost{}, fmt.Errorf("core: invalid colour %q: %w", s, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

// Palette hands out player markers in a deterministic order: first the six
// saturated corners of the RGB cube, then random colours from a seeded RNG.
// Not safe for concurrent use.
type Palette struct {
	next int
	rng  *rand.Rand
}

// NewPalette creates a palette whose random tail is driven by seed.
func NewPalette(seed int64) *Palette {
	return &Palette{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next marker.
func (p *Palette) Next() Marker {
	// Corners of the cube in lexicographic order, greys skipped.
	for p.next < 8 {
		i := p.next
		p.next++
		m := Marker{cornerChannel(i >> 2), cornerChannel(i >> 1), cornerChannel(i)}
		if m[0] == m[1] && m[1] == m[2] {
			continue
		}
		return m
	}
	return Marker{uint8(p.rng.Intn(256)), uint8(p.rng.Intn(256)), uint8(p.rng.Intn(256))}
}

func cornerChannel(bit int) uint8 {
	if bit&1 == 1 {
		return 255
	}
	return 0
}
