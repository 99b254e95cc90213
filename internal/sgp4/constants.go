package sgp4

import "math"

const (
	twoPi   = 2.0 * math.Pi
	deg2rad = math.Pi / 180.0
	x2o3    = 2.0 / 3.0

	// xpdotp converts mean motion from revolutions/day to radians/minute.
	xpdotp = 1440.0 / twoPi

	// Earth rotation rate in radians per minute of solar time.
	rptim = 4.37526908801129966e-3

	minutesPerDay = 1440.0
)

// GravityModel holds the gravitational constants the propagation theory is
// tuned against. The analytic theory was fitted with WGS-72 values; using a
// different model changes the results, so WGS72 is the default everywhere.
type GravityModel struct {
	MuKm3      float64 // gravitational parameter, km^3/s^2
	RadiusKm   float64 // equatorial radius, km
	XKE        float64 // sqrt(mu) in Earth radii^1.5 / min
	Tumin      float64 // 1/XKE
	J2, J3, J4 float64 // zonal harmonics
	J3OJ2      float64
}

// WGS72 returns the WGS-72 derived constants used by the standard theory.
func WGS72() GravityModel {
	const mu = 398600.8
	const radius = 6378.135
	xke := 60.0 / math.Sqrt(radius*radius*radius/mu)
	g := GravityModel{
		MuKm3:    mu,
		RadiusKm: radius,
		XKE:      xke,
		Tumin:    1.0 / xke,
		J2:       0.001082616,
		J3:       -0.00000253881,
		J4:       -0.00000165597,
	}
	g.J3OJ2 = g.J3 / g.J2
	return g
}

// WGS84 returns WGS-84 constants. Provided for comparison runs only; the
// element sets distributed as TLEs assume WGS-72.
func WGS84() GravityModel {
	const mu = 398600.5
	const radius = 6378.137
	xke := 60.0 / math.Sqrt(radius*radius*radius/mu)
	g := GravityModel{
		MuKm3:    mu,
		RadiusKm: radius,
		XKE:      xke,
		Tumin:    1.0 / xke,
		J2:       0.00108262998905,
		J3:       -0.00000253215306,
		J4:       -0.00000161098761,
	}
	g.J3OJ2 = g.J3 / g.J2
	return g
}
