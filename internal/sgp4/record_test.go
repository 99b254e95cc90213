package sgp4

import (
	"errors"
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/sprett/sat-tracker/internal/tle"
)

// Reference element sets. The ISS set exercises the near-Earth branch; the
// Molniya set the 12-hour eccentric resonance; the geostationary set the
// synchronous resonance together with the low-inclination, low-eccentricity
// periodics branch.
const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	molniyaLine1 = "1 08195U 75081A   06176.33215444  .00000099  00000-0  11873-3 0   813"
	molniyaLine2 = "2 08195  64.1586 279.0717 6877146 264.7651  20.2257  2.00491383225656"

	geoLine1 = "1 19883U 89021B   08264.50000000  .00000100  00000-0  00000-0 0  9995"
	geoLine2 = "2 19883   0.0500  90.0000 0002000  50.0000 310.0000  1.00270000 12346"

	// Perigee below the surface; initializes but reports decay at epoch.
	decayedLine1 = "1 90001U 08001A   08264.51782528  .00000000  00000-0  10000-3 0  9991"
	decayedLine2 = "2 90001  51.0000   0.0000 0010000   0.0000   0.0000 17.50000000    13"
)

func newTestRecord(t *testing.T, line1, line2 string) *Record {
	t.Helper()
	e, err := tle.ParseLines(line1, line2)
	if err != nil {
		t.Fatalf("ParseLines failed: %v", err)
	}
	rec, err := NewRecord(Elements{
		SatNum:         e.CatalogNumber,
		EpochYear:      e.EpochYear,
		EpochDays:      e.EpochDays,
		NDot:           e.MeanMotionDot,
		NDDot:          e.MeanMotionDDot,
		BStar:          e.BStar,
		InclinationDeg: e.InclinationDeg,
		RAANDeg:        e.RAANDeg,
		Eccentricity:   e.Eccentricity,
		ArgPerigeeDeg:  e.ArgPerigeeDeg,
		MeanAnomalyDeg: e.MeanAnomalyDeg,
		MeanMotion:     e.MeanMotion,
	})
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	return rec
}

// TestPropagateCrossValidation checks position and velocity against the
// go-satellite library (same reference formulation, WGS-72 constants) at
// instants with integer seconds so both sides compute identical offsets from
// the element epoch.
func TestPropagateCrossValidation(t *testing.T) {
	tests := []struct {
		name     string
		line1    string
		line2    string
		deep     bool
		instants []time.Time
	}{
		{
			name:  "ISS near-earth",
			line1: issLine1,
			line2: issLine2,
			instants: []time.Time{
				time.Date(2008, 9, 20, 13, 0, 0, 0, time.UTC),
				time.Date(2008, 9, 21, 0, 0, 0, 0, time.UTC),
				time.Date(2008, 9, 23, 6, 30, 0, 0, time.UTC),
			},
		},
		{
			name:  "Molniya 12h resonance",
			line1: molniyaLine1,
			line2: molniyaLine2,
			deep:  true,
			instants: []time.Time{
				time.Date(2006, 6, 25, 12, 0, 0, 0, time.UTC),
				time.Date(2006, 6, 26, 18, 0, 0, 0, time.UTC),
				time.Date(2006, 7, 5, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "geostationary synchronous resonance",
			line1: geoLine1,
			line2: geoLine2,
			deep:  true,
			instants: []time.Time{
				time.Date(2008, 9, 20, 18, 0, 0, 0, time.UTC),
				time.Date(2008, 9, 22, 12, 0, 0, 0, time.UTC),
				time.Date(2008, 10, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestRecord(t, tt.line1, tt.line2)
			if rec.DeepSpace() != tt.deep {
				t.Fatalf("DeepSpace() = %v, want %v", rec.DeepSpace(), tt.deep)
			}

			ref := satellite.TLEToSat(tt.line1, tt.line2, satellite.GravityWGS72)

			for _, instant := range tt.instants {
				st, err := rec.PropagateTime(instant)
				if err != nil {
					t.Fatalf("PropagateTime(%v) failed: %v", instant, err)
				}

				refPos, refVel := satellite.Propagate(ref,
					instant.Year(), int(instant.Month()), instant.Day(),
					instant.Hour(), instant.Minute(), instant.Second())

				dp := math.Max(math.Max(
					math.Abs(st.Position[0]-refPos.X),
					math.Abs(st.Position[1]-refPos.Y)),
					math.Abs(st.Position[2]-refPos.Z))
				dv := math.Max(math.Max(
					math.Abs(st.Velocity[0]-refVel.X),
					math.Abs(st.Velocity[1]-refVel.Y)),
					math.Abs(st.Velocity[2]-refVel.Z))

				if dp > 1e-3 {
					t.Errorf("at %v position differs by %.3e km (got %v, ref [%v %v %v])",
						instant, dp, st.Position, refPos.X, refPos.Y, refPos.Z)
				}
				if dv > 1e-6 {
					t.Errorf("at %v velocity differs by %.3e km/s", instant, dv)
				}
			}
		})
	}
}

// TestPropagatePure verifies that Propagate is a pure function of the record
// and the offset: repeated and out-of-order calls return bit-identical
// states. The deep-space sets matter here because the reference formulation
// carries integrator state between calls; this implementation must not.
func TestPropagatePure(t *testing.T) {
	sets := []struct {
		name  string
		line1 string
		line2 string
	}{
		{"ISS", issLine1, issLine2},
		{"Molniya", molniyaLine1, molniyaLine2},
		{"geostationary", geoLine1, geoLine2},
	}

	for _, set := range sets {
		t.Run(set.name, func(t *testing.T) {
			rec := newTestRecord(t, set.line1, set.line2)

			offsets := []float64{0, 47.5, 1440, 720, 47.5, 2880, 0}
			first := make(map[float64]State)
			for _, ts := range offsets {
				st, err := rec.Propagate(ts)
				if err != nil {
					t.Fatalf("Propagate(%v) failed: %v", ts, err)
				}
				if prev, ok := first[ts]; ok {
					if prev != st {
						t.Errorf("Propagate(%v) not reproducible: %v then %v", ts, prev, st)
					}
				} else {
					first[ts] = st
				}
			}
		})
	}
}

func TestPropagateDecayed(t *testing.T) {
	rec := newTestRecord(t, decayedLine1, decayedLine2)

	_, err := rec.Propagate(0)
	if err == nil {
		t.Fatal("expected decay error, got nil")
	}
	var perr *PropagationError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %T, want *PropagationError", err)
	}
	if !perr.Decayed() {
		t.Errorf("Decayed() = false, code = %d, want decay", perr.Code)
	}
	if perr.SatNum != 90001 {
		t.Errorf("SatNum = %d, want 90001", perr.SatNum)
	}
}

func TestNewRecordRejectsBadElements(t *testing.T) {
	base := Elements{
		SatNum:         1,
		EpochYear:      8,
		EpochDays:      264.5,
		InclinationDeg: 51.6,
		Eccentricity:   0.0007,
		MeanMotion:     15.7,
	}

	bad := base
	bad.MeanMotion = 0
	if _, err := NewRecord(bad); err == nil {
		t.Error("expected error for zero mean motion")
	}

	bad = base
	bad.Eccentricity = 1.5
	if _, err := NewRecord(bad); err == nil {
		t.Error("expected error for hyperbolic eccentricity")
	}
}

func TestEpoch(t *testing.T) {
	rec := newTestRecord(t, issLine1, issLine2)

	// 2008 day 264.51782528 is September 20, 12:25:40.1 UTC.
	epoch := rec.Epoch()
	want := time.Date(2008, 9, 20, 12, 25, 40, 0, time.UTC)
	if d := epoch.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Epoch() = %v, want %v ± 1s", epoch, want)
	}
}

func TestGstimeMatchesReference(t *testing.T) {
	instants := []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2008, 9, 20, 12, 25, 40, 0, time.UTC),
		time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
	}
	for _, instant := range instants {
		got := gstime(JulianDate(instant))
		ref := satellite.GSTimeFromDate(
			instant.Year(), int(instant.Month()), instant.Day(),
			instant.Hour(), instant.Minute(), instant.Second())
		if math.Abs(got-ref) > 1e-9 {
			t.Errorf("gstime(%v) = %.12f, go-satellite = %.12f", instant, got, ref)
		}
	}
}
