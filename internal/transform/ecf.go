// Package transform rotates inertial satellite states into the Earth-fixed
// frame and inverts Earth-fixed Cartesian coordinates into geodetic
// latitude/longitude/altitude.
//
// The inertial→Earth-fixed step is the simplified Vallado-style rotation
// using GMST only (TEME → PEF ≈ ECEF). This ignores polar motion and the
// equation of equinoxes, which introduces ~50m error at most — acceptable for
// visualization use.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"fmt"
	"math"
	"time"
)

// StateTEME is a satellite position and velocity in the TEME inertial frame.
type StateTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// StateECF is a satellite position and velocity in the Earth-fixed frame.
type StateECF struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// TransformError reports a non-finite result out of the frame pipeline.
type TransformError struct {
	Stage string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform: non-finite result in %s", e.Stage)
}

// TEMEToECF rotates a TEME state into the Earth-fixed frame at the given UTC
// instant.
func TEMEToECF(teme StateTEME, t time.Time) StateECF {
	return TEMEToECFWithGMST(teme, GMST(t))
}

// TEMEToECFWithGMST rotates TEME to ECF using a precomputed GMST angle
// (radians). Useful when transforming a whole batch at the same instant:
// compute GMST once.
//
// Position transform: r_ECF = R3(θ) * r_TEME
// Velocity transform: v_ECF = R3(θ) * v_TEME - ω × r_ECF
//
// where R3(θ) is a rotation about the Z-axis by angle θ (GMST),
// and ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func TEMEToECFWithGMST(teme StateTEME, gmst float64) StateECF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vxRot := teme.VX*cosG + teme.VY*sinG
	vyRot := -teme.VX*sinG + teme.VY*cosG

	// ω × r_ECF = [-ω*y, ω*x, 0]
	return StateECF{
		X: x, Y: y, Z: z,
		VX: vxRot + OmegaEarth*y,
		VY: vyRot - OmegaEarth*x,
		VZ: teme.VZ,
	}
}
