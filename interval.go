package remotedoc

import "fmt"

// Interval is a half-open byte range [Start, End) in document coordinates.
type Interval struct {
	Start int
	End   int
}

// NewInterval returns the interval [start, end). Reversed bounds are
// normalized.
func NewInterval(start, end int) Interval {
	if end < start {
		start, end = end, start
	}
	return Interval{Start: start, End: end}
}

// Len returns the number of bytes covered by the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// IsEmpty reports whether the interval covers no bytes.
func (iv Interval) IsEmpty() bool {
	return iv.End <= iv.Start
}

// Clamp restricts the interval to [0, limit).
func (iv Interval) Clamp(limit int) Interval {
	start := min(limit, max(0, iv.Start))
	end := min(limit, max(start, iv.End))
	return Interval{Start: start, End: end}
}

// String implements fmt.Stringer.
func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d)", iv.Start, iv.End)
}
