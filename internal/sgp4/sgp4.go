package sgp4

import "math"

// run is the propagation kernel. tsince is in minutes from the element epoch.
// It returns the TEME state in km and km/s plus the theory's error code. All
// working values are locals; the record itself is never written, which keeps
// concurrent propagation of the same record safe.
func (r *Record) run(tsince float64) (State, int) {
	const temp4 = 1.5e-12
	t := tsince
	vkmpersec := r.grav.RadiusKm * r.grav.XKE / 60.0

	// Secular gravity and atmospheric drag.
	xmdf := r.mo + r.mdot*t
	argpdf := r.argpo + r.argpdot*t
	nodedf := r.nodeo + r.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + r.nodecf*t2
	tempa := 1.0 - r.cc1*t
	tempe := r.bstar * r.cc4 * t
	templ := r.t2cof * t2

	if r.isimp != 1 {
		delomg := r.omgcof * t
		delmtemp := 1.0 + r.eta*math.Cos(xmdf)
		delm := r.xmcof * (delmtemp*delmtemp*delmtemp - r.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - r.d2*t2 - r.d3*t3 - r.d4*t4
		tempe = tempe + r.bstar*r.cc5*(math.Sin(mm)-r.sinmao)
		templ = templ + r.t3cof*t3 + t4*(r.t4cof+t*r.t5cof)
	}

	nm := r.no
	em := r.ecco
	inclm := r.inclo
	if r.method == 'd' {
		tc := t
		r.dspace(t, tc, &em, &argpm, &inclm, &mm, &nodem, &nm)
	}

	if nm <= 0.0 {
		return State{}, errMeanMotion
	}
	am := math.Pow(r.grav.XKE/nm, x2o3) * tempa * tempa
	nm = r.grav.XKE / math.Pow(am, 1.5)
	em -= tempe

	if em >= 1.0 || em < -0.001 {
		return State{}, errMeanElements
	}
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm += r.no * templ
	xlm := mm + argpm + nodem

	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	// Lunar-solar periodics.
	ep := em
	xincp := inclm
	argpp := argpm
	nodep := nodem
	mp := mm
	sinip := math.Sin(xincp)
	cosip := math.Cos(xincp)

	// Periodic coefficients that the deep-space branch recomputes from the
	// perturbed inclination; locals so the record stays read-only.
	aycof := r.aycof
	xlcof := r.xlcof
	con41 := r.con41
	x1mth2 := r.x1mth2
	x7thm1 := r.x7thm1

	if r.method == 'd' {
		r.dpper(t, false, &ep, &xincp, &nodep, &argpp, &mp)
		if xincp < 0.0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0.0 || ep > 1.0 {
			return State{}, errPertElements
		}

		sinip = math.Sin(xincp)
		cosip = math.Cos(xincp)
		aycof = -0.5 * r.grav.J3OJ2 * sinip
		if math.Abs(cosip+1.0) > 1.5e-12 {
			xlcof = -0.25 * r.grav.J3OJ2 * sinip * (3.0 + 5.0*cosip) / (1.0 + cosip)
		} else {
			xlcof = -0.25 * r.grav.J3OJ2 * sinip * (3.0 + 5.0*cosip) / temp4
		}
	}

	axnl := ep * math.Cos(argpp)
	temp := 1.0 / (am * (1.0 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	// Kepler's equation.
	u := math.Mod(xl-nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1.0e-12 && ktr <= 10; ktr++ {
		sineo1 = math.Sin(eo1)
		coseo1 = math.Cos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			if tem5 > 0.0 {
				tem5 = 0.95
			} else {
				tem5 = -0.95
			}
		}
		eo1 += tem5
	}

	// Short-period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0.0 {
		return State{}, errSemiLatusRectum
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * r.grav.J2 * temp
	temp2 := temp1 * temp

	if r.method == 'd' {
		cosisq := cosip * cosip
		con41 = 3.0*cosisq - 1.0
		x1mth2 = 1.0 - cosisq
		x7thm1 = 7.0*cosisq - 1.0
	}

	mrt := rl*(1.0-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/r.grav.XKE
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/r.grav.XKE

	// Orientation vectors.
	sinsu := math.Sin(su)
	cossu := math.Cos(su)
	snod := math.Sin(xnode)
	cnod := math.Cos(xnode)
	sini := math.Sin(xinc)
	cosi := math.Cos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	st := State{
		Position: [3]float64{
			mrt * ux * r.grav.RadiusKm,
			mrt * uy * r.grav.RadiusKm,
			mrt * uz * r.grav.RadiusKm,
		},
		Velocity: [3]float64{
			(mvt*ux + rvdot*vx) * vkmpersec,
			(mvt*uy + rvdot*vy) * vkmpersec,
			(mvt*uz + rvdot*vz) * vkmpersec,
		},
	}

	// A radius below one Earth radius means the orbit has decayed.
	if mrt < 1.0 {
		return st, errDecayed
	}
	return st, errNone
}
