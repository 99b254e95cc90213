package sgp4

import "math"

// NewRecord initializes a propagation record from mean elements using the
// WGS-72 constants. The returned record is immutable; initialization errors
// (e.g. an already-decayed element set) are surfaced here so callers can skip
// the object once instead of on every propagation.
func NewRecord(el Elements) (*Record, error) {
	return NewRecordWithModel(el, WGS72())
}

// NewRecordWithModel initializes a record against an explicit gravity model.
func NewRecordWithModel(el Elements, grav GravityModel) (*Record, error) {
	if el.MeanMotion <= 0 {
		return nil, &PropagationError{SatNum: el.SatNum, Code: errMeanMotion}
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, &PropagationError{SatNum: el.SatNum, Code: errMeanElements}
	}

	r := &Record{
		satnum: el.SatNum,
		grav:   grav,
	}

	// Convert to the theory's working units: radians and radians/minute.
	r.no = el.MeanMotion / xpdotp
	r.bstar = el.BStar
	r.ecco = el.Eccentricity
	r.inclo = el.InclinationDeg * deg2rad
	r.nodeo = el.RAANDeg * deg2rad
	r.argpo = el.ArgPerigeeDeg * deg2rad
	r.mo = el.MeanAnomalyDeg * deg2rad
	r.jdsatepoch = epochJulianDate(el.EpochYear, el.EpochDays)

	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

// initlResult carries the intermediate values initl produces for sgp4init.
type initlResult struct {
	ao, con42, cosio, cosio2        float64
	eccsq, omeosq, posq, rp, rteosq float64
	sinio                           float64
}

// initl recovers the original mean motion and semimajor axis from the
// Kozai mean motion in the element set.
func (r *Record) initl() initlResult {
	var v initlResult

	v.eccsq = r.ecco * r.ecco
	v.omeosq = 1.0 - v.eccsq
	v.rteosq = math.Sqrt(v.omeosq)
	v.cosio = math.Cos(r.inclo)
	v.cosio2 = v.cosio * v.cosio

	ak := math.Pow(r.grav.XKE/r.no, x2o3)
	d1 := 0.75 * r.grav.J2 * (3.0*v.cosio2 - 1.0) / (v.rteosq * v.omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1.0 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	del = d1 / (adel * adel)
	r.no = r.no / (1.0 + del)

	v.ao = math.Pow(r.grav.XKE/r.no, x2o3)
	v.sinio = math.Sin(r.inclo)
	po := v.ao * v.omeosq
	v.con42 = 1.0 - 5.0*v.cosio2
	r.con41 = -v.con42 - v.cosio2 - v.cosio2
	v.posq = po * po
	v.rp = v.ao * (1.0 - r.ecco)
	r.method = 'n'

	// Greenwich sidereal time at the element epoch.
	r.gsto = gstime(r.jdsatepoch)

	return v
}

// init performs the full near-Earth and deep-space initialization.
func (r *Record) init() error {
	const temp4 = 1.5e-12

	ss := 78.0/r.grav.RadiusKm + 1.0
	qzms2ttemp := (120.0 - 78.0) / r.grav.RadiusKm
	qzms2t := qzms2ttemp * qzms2ttemp * qzms2ttemp * qzms2ttemp

	v := r.initl()
	epoch := r.jdsatepoch - 2433281.5

	if v.omeosq >= 0.0 || r.no >= 0.0 {
		r.isimp = 0
		if v.rp < 220.0/r.grav.RadiusKm+1.0 {
			r.isimp = 1
		}
		sfour := ss
		qzms24 := qzms2t
		perige := (v.rp - 1.0) * r.grav.RadiusKm

		// For perigees below 156 km the s constant is adjusted.
		if perige < 156.0 {
			sfour = perige - 78.0
			if perige < 98.0 {
				sfour = 20.0
			}
			qzms24temp := (120.0 - sfour) / r.grav.RadiusKm
			qzms24 = qzms24temp * qzms24temp * qzms24temp * qzms24temp
			sfour = sfour/r.grav.RadiusKm + 1.0
		}
		pinvsq := 1.0 / v.posq

		tsi := 1.0 / (v.ao - sfour)
		r.eta = v.ao * r.ecco * tsi
		etasq := r.eta * r.eta
		eeta := r.ecco * r.eta
		psisq := math.Abs(1.0 - etasq)
		coef := qzms24 * tsi * tsi * tsi * tsi
		coef1 := coef / math.Pow(psisq, 3.5)
		cc2 := coef1 * r.no * (v.ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
			0.375*r.grav.J2*tsi/psisq*r.con41*(8.0+3.0*etasq*(8.0+etasq)))
		r.cc1 = r.bstar * cc2
		cc3 := 0.0
		if r.ecco > 1.0e-4 {
			cc3 = -2.0 * coef * tsi * r.grav.J3OJ2 * r.no * v.sinio / r.ecco
		}
		r.x1mth2 = 1.0 - v.cosio2
		r.cc4 = 2.0 * r.no * coef1 * v.ao * v.omeosq *
			(r.eta*(2.0+0.5*etasq) + r.ecco*(0.5+2.0*etasq) -
				r.grav.J2*tsi/(v.ao*psisq)*
					(-3.0*r.con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
						0.75*r.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*r.argpo)))
		r.cc5 = 2.0 * coef1 * v.ao * v.omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

		cosio4 := v.cosio2 * v.cosio2
		temp1 := 1.5 * r.grav.J2 * pinvsq * r.no
		temp2 := 0.5 * temp1 * r.grav.J2 * pinvsq
		temp3 := -0.46875 * r.grav.J4 * pinvsq * pinvsq * r.no
		r.mdot = r.no + 0.5*temp1*v.rteosq*r.con41 +
			0.0625*temp2*v.rteosq*(13.0-78.0*v.cosio2+137.0*cosio4)
		r.argpdot = -0.5*temp1*v.con42 +
			0.0625*temp2*(7.0-114.0*v.cosio2+395.0*cosio4) +
			temp3*(3.0-36.0*v.cosio2+49.0*cosio4)
		xhdot1 := -temp1 * v.cosio
		r.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*v.cosio2)+
			2.0*temp3*(3.0-7.0*v.cosio2))*v.cosio
		xpidot := r.argpdot + r.nodedot
		r.omgcof = r.bstar * cc3 * math.Cos(r.argpo)
		r.xmcof = 0.0
		if r.ecco > 1.0e-4 {
			r.xmcof = -x2o3 * coef * r.bstar / eeta
		}
		r.nodecf = 3.5 * v.omeosq * xhdot1 * r.cc1
		r.t2cof = 1.5 * r.cc1
		// Guard the 180 degree inclination case.
		if math.Abs(v.cosio+1.0) > 1.5e-12 {
			r.xlcof = -0.25 * r.grav.J3OJ2 * v.sinio * (3.0 + 5.0*v.cosio) / (1.0 + v.cosio)
		} else {
			r.xlcof = -0.25 * r.grav.J3OJ2 * v.sinio * (3.0 + 5.0*v.cosio) / temp4
		}
		r.aycof = -0.5 * r.grav.J3OJ2 * v.sinio
		delmotemp := 1.0 + r.eta*math.Cos(r.mo)
		r.delmo = delmotemp * delmotemp * delmotemp
		r.sinmao = math.Sin(r.mo)
		r.x7thm1 = 7.0*v.cosio2 - 1.0

		// Deep-space branch for periods at or above 225 minutes.
		if twoPi/r.no >= 225.0 {
			r.method = 'd'
			r.isimp = 1
			tc := 0.0
			inclm := r.inclo

			ds := r.dscom(epoch, r.ecco, r.argpo, tc, r.inclo, r.nodeo, r.no)

			ep, xincp, nodep, argpp, mp := r.ecco, r.inclo, r.nodeo, r.argpo, r.mo
			r.dpper(0.0, true, &ep, &xincp, &nodep, &argpp, &mp)
			r.ecco, r.inclo, r.nodeo, r.argpo, r.mo = ep, xincp, nodep, argpp, mp

			argpm, nodem, mm := 0.0, 0.0, 0.0
			r.dsinit(ds, v, tc, xpidot, &argpm, &inclm, &nodem, &mm)
		}

		if r.isimp != 1 {
			cc1sq := r.cc1 * r.cc1
			r.d2 = 4.0 * v.ao * tsi * cc1sq
			temp := r.d2 * tsi * r.cc1 / 3.0
			r.d3 = (17.0*v.ao + sfour) * temp
			r.d4 = 0.5 * temp * v.ao * tsi * (221.0*v.ao + 31.0*sfour) * r.cc1
			r.t3cof = r.d2 + 2.0*cc1sq
			r.t4cof = 0.25 * (3.0*r.d3 + r.cc1*(12.0*r.d2+10.0*cc1sq))
			r.t5cof = 0.2 * (3.0*r.d4 + 12.0*r.cc1*r.d3 + 6.0*r.d2*r.d2 +
				15.0*cc1sq*(2.0*r.d2+cc1sq))
		}
	}

	// Propagate once at epoch so element sets that fail immediately (already
	// decayed, degenerate elements) are rejected at initialization.
	if _, code := r.run(0.0); code != errNone && code != errDecayed {
		return &PropagationError{SatNum: r.satnum, Code: code}
	}
	return nil
}
