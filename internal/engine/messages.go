package engine

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/sprett/sat-tracker/internal/transform"
)

// PositionSample is one propagated object in a batch: geodetic position,
// Earth-fixed velocity, and the visibility tag.
type PositionSample struct {
	Identity string             `json:"identity"`
	Category string             `json:"category"`
	Position transform.Geodetic `json:"position"`
	Velocity [3]float64         `json:"velocity_km_s"`
	Visible  bool               `json:"visible"`
}

// Counts tallies per-entry failures for one batch, split by pipeline stage.
type Counts struct {
	Parse       int `json:"parse"`
	Propagation int `json:"propagation"`
	Transform   int `json:"transform"`
}

// Total returns the number of entries dropped from the batch.
func (c Counts) Total() int { return c.Parse + c.Propagation + c.Transform }

// Batch is the result of one full pass over the catalog. Samples are in
// catalog insertion order. The slice is owned by the receiver; the engine
// never mutates a batch after emitting it.
type Batch struct {
	Samples   []PositionSample `json:"samples"`
	Instant   time.Time        `json:"instant"`
	Counts    Counts           `json:"counts"`
	Duration  time.Duration    `json:"duration_ns"`
	Saturated bool             `json:"saturated"`
}

// Message is one engine-to-consumer notification. Exactly one of the three
// concrete types is sent: Ready once after initialization, Positions per
// completed batch, Error on structural failure.
type Message interface {
	message()
}

// Ready signals that the engine loop is running and accepting triggers.
type Ready struct{}

// Positions carries one completed batch.
type Positions struct {
	Batch *Batch
}

// Error reports a structural failure of a whole batch. Per-entry failures are
// never surfaced this way; they only appear in Counts.
type Error struct {
	Message string
}

func (Ready) message()     {}
func (Positions) message() {}
func (Error) message()     {}

// EncodePacked serializes a batch's positions into the flat binary form:
// a little-endian uint32 sample count followed by one (lat, lon, alt)
// float64 triple per sample, in batch order.
func EncodePacked(samples []PositionSample) []byte {
	buf := make([]byte, 4+24*len(samples))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(samples)))
	off := 4
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(s.Position.LatDeg))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(s.Position.LonDeg))
		binary.LittleEndian.PutUint64(buf[off+16:], math.Float64bits(s.Position.AltKm))
		off += 24
	}
	return buf
}

// DecodePacked inverts EncodePacked, returning the (lat, lon, alt) triples.
// It is used by diagnostic tooling and tests; the hot path only encodes.
func DecodePacked(buf []byte) ([][3]float64, bool) {
	if len(buf) < 4 {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	if len(buf) != 4+24*n {
		return nil, false
	}
	out := make([][3]float64, n)
	off := 4
	for i := 0; i < n; i++ {
		out[i][0] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		out[i][1] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:]))
		out[i][2] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+16:]))
		off += 24
	}
	return out, true
}
