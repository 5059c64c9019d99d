package models

import "fmt"

// Meridian is the PLSS reference system a township/range pair is measured
// against. Oklahoma surveys use the Indian meridian everywhere except the
// panhandle, which uses the Cimarron meridian.
type Meridian string

const (
	MeridianIndian   Meridian = "IM"
	MeridianCimarron Meridian = "CM"
)

// Coordinate is the canonical form of a PLSS section/township/range/meridian
// location. Township is signed: positive ordinals are north of the baseline,
// negative south; there is no township zero. Range is signed the same way with
// positive east of the principal meridian. All upstream representations are
// normalized into this form before any comparison.
type Coordinate struct {
	Section  int
	Township int
	Range    int
	Meridian Meridian
}

// Key returns the canonical string form, e.g. "S14-T7N-R4W-IM". Keys are what
// get persisted and compared; two coordinates describe the same section iff
// their keys are equal.
func (c Coordinate) Key() string {
	return fmt.Sprintf("S%02d-T%d%s-R%d%s-%s",
		c.Section,
		abs(c.Township), northSouth(c.Township),
		abs(c.Range), eastWest(c.Range),
		c.Meridian)
}

// String returns the canonical key form.
func (c Coordinate) String() string { return c.Key() }

// Valid reports whether the coordinate satisfies the PLSS invariants:
// section within [1,36] and non-zero township/range ordinals.
func (c Coordinate) Valid() bool {
	return c.Section >= 1 && c.Section <= 36 && c.Township != 0 && c.Range != 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func northSouth(township int) string {
	if township < 0 {
		return "S"
	}
	return "N"
}

func eastWest(rng int) string {
	if rng < 0 {
		return "W"
	}
	return "E"
}
