package transform

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters (km).
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// geodeticIterations is the fixed number of refinement passes in the
// ellipsoidal inversion. This is a reproducibility contract: it is a fixed
// count, not a convergence tolerance, so every run produces bit-identical
// latitudes for the same input.
const geodeticIterations = 5

// Geodetic is a position referenced to the WGS-84 ellipsoid.
// Longitude is always normalized into [-180, 180).
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// ToGeodetic runs the full pipeline for one state: sidereal rotation into the
// Earth-fixed frame followed by ellipsoidal inversion.
func ToGeodetic(teme StateTEME, t time.Time) (StateECF, Geodetic, error) {
	ecf := TEMEToECF(teme, t)
	g, err := ECFToGeodetic(ecf.X, ecf.Y, ecf.Z)
	return ecf, g, err
}

// ECFToGeodetic converts Earth-fixed Cartesian coordinates (km) to geodetic
// coordinates using the iterative Bowring method with a fixed iteration
// count. A non-finite latitude, longitude, or altitude is a *TransformError.
func ECFToGeodetic(x, y, z float64) (Geodetic, error) {
	lon := math.Atan2(y, x)

	p := math.Sqrt(x*x + y*y)

	// Bowring's initial estimate, then the fixed refinement passes.
	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < geodeticIterations; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	// Near the poles p/cos(lat) degenerates; recover altitude from z.
	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	g := Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: NormalizeLonDeg(lon * 180.0 / math.Pi),
		AltKm:  alt,
	}
	if math.IsNaN(g.LatDeg) || math.IsInf(g.LatDeg, 0) ||
		math.IsNaN(g.LonDeg) || math.IsInf(g.LonDeg, 0) ||
		math.IsNaN(g.AltKm) || math.IsInf(g.AltKm, 0) {
		return Geodetic{}, &TransformError{Stage: "geodetic inversion"}
	}
	return g, nil
}

// NormalizeLonDeg wraps a longitude in degrees into [-180, 180).
func NormalizeLonDeg(lon float64) float64 {
	lon = math.Mod(lon+180.0, 360.0)
	if lon < 0 {
		lon += 360.0
	}
	return lon - 180.0
}

// GeodeticToECF converts geodetic coordinates to Earth-fixed Cartesian (km).
// Used for observer positions.
func GeodeticToECF(latDeg, lonDeg, altKm float64) (x, y, z float64) {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + altKm) * cosLat * math.Cos(lon)
	y = (n + altKm) * cosLat * math.Sin(lon)
	z = (n*(1-wgs84E2) + altKm) * sinLat
	return x, y, z
}
