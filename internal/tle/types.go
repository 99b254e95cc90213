package tle

import (
	"fmt"
	"time"
)

// Entry is a fully parsed two-line element set. Numeric fields are in the
// units used by the TLE format: degrees, revolutions/day, fractional day of
// year epochs. The raw lines are retained because they identify the element
// set: any change to the text is a different element set.
type Entry struct {
	CatalogNumber int
	Name          string
	IntlDesig     string
	Epoch         time.Time
	EpochYear     int
	EpochDays     float64

	MeanMotionDot  float64 // rev/day^2 (TLE convention: already divided by 2)
	MeanMotionDDot float64 // rev/day^3 (TLE convention: already divided by 6)
	BStar          float64 // 1/Earth radii

	InclinationDeg float64
	RAANDeg        float64
	Eccentricity   float64
	ArgPerigeeDeg  float64
	MeanAnomalyDeg float64
	MeanMotion     float64 // rev/day

	Line1 string
	Line2 string
}

// ParseError reports a malformed element set. It is always recoverable: the
// caller drops the entry and moves on.
type ParseError struct {
	Line  int // 1 or 2; 0 when the failure is not line-specific
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("tle: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("tle: line %d field %q: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
