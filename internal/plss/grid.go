// Package plss normalizes Public Land Survey System coordinates and computes
// section-level spatial neighborhoods, including neighborhoods that cross
// township and range boundaries.
package plss

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wellwatchhq/wellwatch/internal/models"
)

// ErrInvalidCoordinate indicates a raw location that cannot be normalized:
// section outside [1,36], unparsable township/range, or a zero ordinal.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Raw is a location as it arrives from an upstream feed. Different feeds
// zero-pad sections and drop direction suffixes inconsistently; Normalize
// resolves all of them to the one canonical models.Coordinate form.
type Raw struct {
	Section  string // "14" or "06"
	Township string // "7N", "T7N", or bare "07" (defaults north)
	Range    string // "4W", "R4W", or bare "4" (defaults west)
	Meridian string // "IM"/"CM"; defaulted from County when empty
	County   string // used only to default the meridian
}

// Counties surveyed against the Cimarron meridian instead of the Indian
// meridian. Everything outside the panhandle uses the Indian meridian.
var cimarronCounties = map[string]bool{
	"CIMARRON": true,
	"TEXAS":    true,
	"BEAVER":   true,
}

// Normalize parses a raw feed location into canonical form.
// Returns ErrInvalidCoordinate (wrapped with detail) on malformed input.
func Normalize(raw Raw) (models.Coordinate, error) {
	section, err := strconv.Atoi(strings.TrimSpace(raw.Section))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: section %q is not a number", ErrInvalidCoordinate, raw.Section)
	}
	if section < 1 || section > 36 {
		return models.Coordinate{}, fmt.Errorf("%w: section %d outside [1,36]", ErrInvalidCoordinate, section)
	}

	township, err := parseOrdinal(raw.Township, "T", 'N', 'S', 'N')
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: township %q: %v", ErrInvalidCoordinate, raw.Township, err)
	}

	rng, err := parseOrdinal(raw.Range, "R", 'E', 'W', 'W')
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: range %q: %v", ErrInvalidCoordinate, raw.Range, err)
	}

	meridian, err := resolveMeridian(raw.Meridian, raw.County)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
	}

	return models.Coordinate{
		Section:  section,
		Township: township,
		Range:    rng,
		Meridian: meridian,
	}, nil
}

// parseOrdinal parses a township or range string such as "7N", "T07N" or "4".
// positive/negative are the suffix letters mapping to positive and negative
// signed ordinals; fallback is assumed when no suffix is present.
func parseOrdinal(s, prefix string, positive, negative, fallback byte) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, prefix)
	if s == "" {
		return 0, errors.New("empty value")
	}

	dir := fallback
	last := s[len(s)-1]
	if last == positive || last == negative {
		dir = last
		s = s[:len(s)-1]
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("ordinal is not a number")
	}
	if n <= 0 {
		return 0, errors.New("ordinal must be positive")
	}

	if dir == negative {
		return -n, nil
	}
	return n, nil
}

// resolveMeridian maps an explicit meridian string, or the event's county when
// none is given, to the canonical meridian enum.
func resolveMeridian(meridian, county string) (models.Meridian, error) {
	switch strings.ToUpper(strings.TrimSpace(meridian)) {
	case "":
		if cimarronCounties[strings.ToUpper(strings.TrimSpace(county))] {
			return models.MeridianCimarron, nil
		}
		return models.MeridianIndian, nil
	case "IM", "INDIAN":
		return models.MeridianIndian, nil
	case "CM", "CIMARRON":
		return models.MeridianCimarron, nil
	default:
		return "", fmt.Errorf("unknown meridian %q", meridian)
	}
}

// Sections within a township are numbered in a boustrophedon pattern: six rows
// of six, with row 1 (sections 1-6) running east to west from the northeast
// corner, row 2 (7-12) west to east, and so on. rowCol converts a section
// number to a zero-based (row, col) position where row 0 is the north edge and
// col 0 the west edge.
func rowCol(section int) (row, col int) {
	row = (section - 1) / 6
	pos := (section - 1) % 6
	if row%2 == 0 {
		return row, 5 - pos
	}
	return row, pos
}

// sectionAt is the inverse of rowCol.
func sectionAt(row, col int) int {
	if row%2 == 0 {
		return row*6 + (6 - col)
	}
	return row*6 + col + 1
}

// stepOrdinal moves a signed township or range ordinal by delta, skipping the
// nonexistent zero (T1N borders T1S, R1E borders R1W).
func stepOrdinal(v, delta int) int {
	v += delta
	if v == 0 {
		v += delta
	}
	return v
}

// Neighbors returns the sections adjacent to c within the given radius: the 8
// surrounding sections at radius 1, the 24 of a 5x5 grid at radius 2. When a
// neighbor's row or column falls outside the township the coordinate wraps
// into the adjoining township or range, stepping the ordinal and entering on
// the far row or column. Radius 2 is used for horizontal-well bottom-hole
// neighborhoods, radius 1 otherwise.
func Neighbors(c models.Coordinate, radius int) []models.Coordinate {
	if radius < 1 {
		radius = 1
	}
	row, col := rowCol(c.Section)

	out := make([]models.Coordinate, 0, (2*radius+1)*(2*radius+1)-1)
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}

			township := c.Township
			rng := c.Range

			nr := row + dr
			switch {
			case nr < 0:
				// Crossing the north edge into the township above.
				township = stepOrdinal(township, 1)
				nr += 6
			case nr > 5:
				township = stepOrdinal(township, -1)
				nr -= 6
			}

			nc := col + dc
			switch {
			case nc < 0:
				// Crossing the west edge into the range to the west.
				rng = stepOrdinal(rng, -1)
				nc += 6
			case nc > 5:
				rng = stepOrdinal(rng, 1)
				nc -= 6
			}

			out = append(out, models.Coordinate{
				Section:  sectionAt(nr, nc),
				Township: township,
				Range:    rng,
				Meridian: c.Meridian,
			})
		}
	}
	return out
}

// NeighborKeys returns the canonical keys of Neighbors(c, radius). Match
// queries operate on keys, so this is the form the engine actually consumes.
func NeighborKeys(c models.Coordinate, radius int) []string {
	neighbors := Neighbors(c, radius)
	keys := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		keys = append(keys, n.Key())
	}
	return keys
}
