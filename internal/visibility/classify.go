// Package visibility tags each propagated position as observable or not from
// a ground observer. The rule is a coarse geometric proxy, not a true
// horizon/elevation-angle test: objects below a minimum altitude are never
// visible, and otherwise visibility is a great-circle distance cutoff between
// the observer and the sub-satellite point on a spherical Earth.
package visibility

import "math"

const (
	// MinAltitudeKm is the floor below which an object is never reported
	// visible, regardless of observer position. The boundary is inclusive.
	MinAltitudeKm = 200.0

	// MaxRangeKm is the great-circle surface distance cutoff.
	MaxRangeKm = 2000.0

	// earthRadiusKm is the spherical-Earth radius used by the haversine
	// distance, deliberately distinct from the WGS-84 ellipsoid constants.
	earthRadiusKm = 6371.0
)

// Observer is a ground position supplied per batch request; it is never
// persisted by the engine.
type Observer struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// Policy selects how results are classified.
type Policy int

const (
	// PolicyClassify applies the altitude and range rule.
	PolicyClassify Policy = iota
	// PolicyAlwaysVisible tags every result visible, skipping the rule.
	PolicyAlwaysVisible
)

// Classify reports whether an object at the given sub-satellite point and
// altitude is observable from obs under the policy.
func Classify(policy Policy, latDeg, lonDeg, altKm float64, obs Observer) bool {
	if policy == PolicyAlwaysVisible {
		return true
	}
	if altKm < MinAltitudeKm {
		return false
	}
	return HaversineKm(latDeg, lonDeg, obs.LatDeg, obs.LonDeg) < MaxRangeKm
}

// HaversineKm returns the great-circle surface distance in km between two
// points given in degrees, on a spherical Earth.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const deg2rad = math.Pi / 180.0
	phi1 := lat1 * deg2rad
	phi2 := lat2 * deg2rad
	dphi := (lat2 - lat1) * deg2rad
	dlam := (lon2 - lon1) * deg2rad

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlam/2)*math.Sin(dlam/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
