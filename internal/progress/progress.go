// Package progress derives task completion percentages.
//
// Percentages are integers in [0,100] computed with integer division, so
// 1 of 6 units is 16%.
package progress

import "strings"

// Estimator turns output lines into a completion percentage.
type Estimator interface {
	// Observe returns the current percent and true when the line advanced progress.
	Observe(line string) (percent int, advanced bool)
}

// Percent returns done/total as a percentage clamped to [0,100].
// A non-positive total is 0%.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return Clamp(done * 100 / total)
}

// Clamp bounds p to [0,100].
func Clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// MarkerCounter is an Estimator that counts the lines containing a literal
// marker, each one being a completed unit out of the expected ones.
type MarkerCounter struct {
	marker   string
	expected int
	count    int
}

// NewMarkerCounter returns a new MarkerCounter. With expected units being 0
// (or less) progress is unknown and the counter never advances.
func NewMarkerCounter(marker string, expected int) *MarkerCounter {
	return &MarkerCounter{marker: marker, expected: expected}
}

func (m *MarkerCounter) Observe(line string) (int, bool) {
	if m.marker == "" || !strings.Contains(line, m.marker) {
		return 0, false
	}
	m.count++

	if m.expected <= 0 {
		return 0, false
	}

	return Percent(m.count, m.expected), true
}

// Count returns the number of units seen.
func (m *MarkerCounter) Count() int { return m.count }

// Tracker keeps a progress sequence non-decreasing.
type Tracker struct {
	last    int
	emitted bool
}

// Next clamps p and returns it with true when it must be emitted. Values
// lower than the last emitted one are dropped.
func (t *Tracker) Next(p int) (int, bool) {
	p = Clamp(p)
	if t.emitted && p < t.last {
		return t.last, false
	}

	t.last = p
	t.emitted = true
	return p, true
}

// Last returns the last emitted percent.
func (t *Tracker) Last() int { return t.last }
