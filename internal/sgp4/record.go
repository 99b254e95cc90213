// Package sgp4 implements the SGP4/SDP4 analytic orbit propagation theory
// from first principles, following the equations and variable naming of
// Vallado's reference formulation. Near-Earth element sets (orbital period
// below 225 minutes) use the SGP4 branch; longer periods use the deep-space
// SDP4 branch with lunar-solar perturbations and resonance handling.
//
// A Record is immutable after initialization: Propagate is a pure function of
// (record, time) and is safe to call concurrently from multiple goroutines.
package sgp4

import (
	"fmt"
	"math"
	"time"
)

// Elements holds the mean orbital elements of one object in the units used
// by the two-line element format: degrees, revolutions/day, fractional day
// of year epochs.
type Elements struct {
	SatNum    int     // catalog number
	EpochYear int     // two-digit epoch year
	EpochDays float64 // fractional day of year

	NDot  float64 // first derivative of mean motion, rev/day^2 (already halved in TLE)
	NDDot float64 // second derivative of mean motion, rev/day^3 (already sixthed in TLE)
	BStar float64 // drag term, 1/Earth radii

	InclinationDeg float64 // inclination, degrees
	RAANDeg        float64 // right ascension of ascending node, degrees
	Eccentricity   float64 // eccentricity, dimensionless
	ArgPerigeeDeg  float64 // argument of perigee, degrees
	MeanAnomalyDeg float64 // mean anomaly, degrees
	MeanMotion     float64 // mean motion, rev/day
}

// State is an inertial-frame (TEME) position/velocity pair in km and km/s.
type State struct {
	Position [3]float64 // km
	Velocity [3]float64 // km/s
}

// Error codes reported by the theory, matching the reference implementation.
const (
	errNone            = 0
	errMeanElements    = 1 // eccentricity out of range after drag update
	errMeanMotion      = 2 // mean motion non-positive
	errPertElements    = 3 // perturbed eccentricity out of range
	errSemiLatusRectum = 4
	errDecayed         = 6 // computed radius below Earth's surface
	errNonFinite       = 7 // NaN or Inf in the output state
)

// PropagationError reports a failed propagation, including the theory's
// numeric error code.
type PropagationError struct {
	SatNum int
	Code   int
}

func (e *PropagationError) Error() string {
	msg := "unknown failure"
	switch e.Code {
	case errMeanElements:
		msg = "mean eccentricity out of range"
	case errMeanMotion:
		msg = "mean motion is non-positive"
	case errPertElements:
		msg = "perturbed eccentricity out of range"
	case errSemiLatusRectum:
		msg = "semi-latus rectum is negative"
	case errDecayed:
		msg = "orbit decayed (radius below Earth surface)"
	case errNonFinite:
		msg = "non-finite position or velocity"
	}
	return fmt.Sprintf("sgp4: satellite %d: %s (code %d)", e.SatNum, msg, e.Code)
}

// Decayed reports whether the error indicates a decayed orbit.
func (e *PropagationError) Decayed() bool { return e.Code == errDecayed }

// Record holds the initialized propagation constants for one element set.
// Fields follow the reference formulation's naming so the equations can be
// checked against the published theory line by line.
type Record struct {
	satnum int
	grav   GravityModel

	// epoch
	jdsatepoch float64

	// mean elements at epoch, radians and radians/minute
	bstar, ecco, argpo, inclo, mo, no, nodeo float64

	// near-earth constants
	isimp  int
	method byte // 'n' near earth, 'd' deep space
	aycof, con41, cc1, cc4, cc5, d2, d3, d4          float64
	delmo, eta, argpdot, omgcof, sinmao, t2cof       float64
	t3cof, t4cof, t5cof, x1mth2, x7thm1, mdot        float64
	nodedot, xlcof, xmcof, nodecf                    float64

	// deep-space constants
	irez                                     int
	d2201, d2211, d3210, d3222, d4410, d4422 float64
	d5220, d5232, d5421, d5433               float64
	dedt, del1, del2, del3, didt, dmdt       float64
	dnodt, domdt, e3, ee2                    float64
	peo, pgho, pho, pinco, plo               float64
	se2, se3, sgh2, sgh3, sgh4, sh2, sh3     float64
	si2, si3, sl2, sl3, sl4, gsto, xfact     float64
	xgh2, xgh3, xgh4, xh2, xh3, xi2, xi3     float64
	xl2, xl3, xl4, xlamo, zmol, zmos         float64
}

// SatNum returns the catalog number the record was initialized from.
func (r *Record) SatNum() int { return r.satnum }

// EpochJD returns the element set epoch as a Julian Date.
func (r *Record) EpochJD() float64 { return r.jdsatepoch }

// Epoch returns the element set epoch as a time.Time (UTC).
func (r *Record) Epoch() time.Time {
	// Julian Date of the Unix epoch is 2440587.5.
	sec := (r.jdsatepoch - 2440587.5) * 86400.0
	return time.Unix(0, int64(sec*1e9)).UTC()
}

// DeepSpace reports whether the record uses the deep-space branch.
func (r *Record) DeepSpace() bool { return r.method == 'd' }

// PropagateTime advances the record to the given wall-clock instant.
func (r *Record) PropagateTime(t time.Time) (State, error) {
	tsince := (JulianDate(t) - r.jdsatepoch) * minutesPerDay
	return r.Propagate(tsince)
}

// Propagate advances the record by tsince minutes from the element epoch and
// returns the inertial (TEME) state. Non-finite outputs and decayed orbits
// are reported as a *PropagationError.
func (r *Record) Propagate(tsince float64) (State, error) {
	st, code := r.run(tsince)
	if code != errNone {
		return State{}, &PropagationError{SatNum: r.satnum, Code: code}
	}
	for i := 0; i < 3; i++ {
		if !isFinite(st.Position[i]) || !isFinite(st.Velocity[i]) {
			return State{}, &PropagationError{SatNum: r.satnum, Code: errNonFinite}
		}
	}
	return st, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
