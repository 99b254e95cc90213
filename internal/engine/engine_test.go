package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/visibility"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	molniyaLine1 = "1 08195U 75081A   06176.33215444  .00000099  00000-0  11873-3 0   813"
	molniyaLine2 = "2 08195  64.1586 279.0717 6877146 264.7651  20.2257  2.00491383225656"

	geoLine1 = "1 19883U 89021B   08264.50000000  .00000100  00000-0  00000-0 0  9995"
	geoLine2 = "2 19883   0.0500  90.0000 0002000  50.0000 310.0000  1.00270000 12346"

	// Initializes fine, decays at epoch: a propagation failure per batch.
	decayedLine1 = "1 90001U 08001A   08264.51782528  .00000000  00000-0  10000-3 0  9991"
	decayedLine2 = "2 90001  51.0000   0.0000 0010000   0.0000   0.0000 17.50000000    13"
)

var testInstant = time.Date(2008, 9, 21, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngine(tick time.Duration) *Engine {
	return New(Config{
		TickInterval: tick,
		Workers:      4,
		Policy:       visibility.PolicyClassify,
	}, testLogger())
}

func testCatalog(entries ...catalog.Entry) *catalog.Catalog {
	return &catalog.Catalog{
		Source:    "test",
		FetchedAt: time.Now().UTC(),
		Entries:   entries,
	}
}

func entry(id, line1, line2 string) catalog.Entry {
	return catalog.Entry{Identity: id, Category: "test", Line1: line1, Line2: line2}
}

// TestBatchConservation: for N entries with p parse, g propagation, and t
// transform failures, output length is N - p - g - t and the counters match.
func TestBatchConservation(t *testing.T) {
	malformed := entry("broken", issLine1, issLine2[:68]+"8") // checksum corrupt

	cat := testCatalog(
		entry("iss", issLine1, issLine2),
		malformed,
		entry("molniya", molniyaLine1, molniyaLine2),
		entry("decayed", decayedLine1, decayedLine2),
		entry("geo", geoLine1, geoLine2),
	)

	eng := testEngine(time.Second)
	batch, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Counts.Parse, "parse failures")
	assert.Equal(t, 1, batch.Counts.Propagation, "propagation failures")
	assert.Equal(t, 0, batch.Counts.Transform, "transform failures")
	assert.Len(t, batch.Samples, len(cat.Entries)-batch.Counts.Total(),
		"output length must be N minus the tallied failures")
}

// TestBatchOrdering: samples appear in catalog insertion order, with failed
// entries dropped, not reordered.
func TestBatchOrdering(t *testing.T) {
	cat := testCatalog(
		entry("geo", geoLine1, geoLine2),
		entry("decayed", decayedLine1, decayedLine2),
		entry("iss", issLine1, issLine2),
		entry("molniya", molniyaLine1, molniyaLine2),
	)

	eng := testEngine(time.Second)
	batch, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)

	var ids []string
	for _, s := range batch.Samples {
		ids = append(ids, s.Identity)
	}
	assert.Equal(t, []string{"geo", "iss", "molniya"}, ids)
}

// TestBatchIdempotence: the same catalog at the same instant yields
// bit-identical samples on repeated runs, cached or freshly parsed.
func TestBatchIdempotence(t *testing.T) {
	cat := testCatalog(
		entry("iss", issLine1, issLine2),
		entry("geo", geoLine1, geoLine2),
	)

	eng := testEngine(time.Second)
	first, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)
	second, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)

	require.Len(t, second.Samples, len(first.Samples))
	for i := range first.Samples {
		assert.Equal(t, first.Samples[i], second.Samples[i], "sample %d", i)
	}
}

func TestEmptyCatalogIsNotAnError(t *testing.T) {
	eng := testEngine(time.Second)
	batch, err := eng.RunOnce(context.Background(), testCatalog(), testInstant, visibility.Observer{})
	require.NoError(t, err, "an empty catalog yields zero samples, not an error")
	assert.Empty(t, batch.Samples)
	assert.Equal(t, Counts{}, batch.Counts)
}

// TestCanceledBatchIsDiscarded: a batch interrupted by context cancellation
// must be dropped whole. Publishing the reached subset would hand consumers
// zero-valued samples for the entries the workers never got to.
func TestCanceledBatchIsDiscarded(t *testing.T) {
	entries := make([]catalog.Entry, 64)
	for i := range entries {
		entries[i] = entry("iss", issLine1, issLine2)
	}
	cat := testCatalog(entries...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := testEngine(time.Second)
	batch, err := eng.RunOnce(ctx, cat, testInstant, visibility.Observer{})
	var serr *StructuralError
	require.ErrorAs(t, err, &serr)
	assert.Nil(t, batch)
	assert.Nil(t, eng.Latest(), "a discarded batch must not become Latest")

	stats := eng.Stats()
	assert.Equal(t, int64(0), stats.BatchesCompleted)
	assert.Equal(t, int64(0), stats.SamplesEmitted)

	// The same engine completes cleanly once the context allows it, and no
	// sample carries the zero-valued position a dropped slot would produce.
	batch, err = eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)
	require.Len(t, batch.Samples, len(entries))
	for i, s := range batch.Samples {
		if s.Position.LatDeg == 0 && s.Position.LonDeg == 0 && s.Position.AltKm == 0 {
			t.Errorf("sample %d is zero-valued", i)
		}
	}
}

func TestNilCatalogIsStructural(t *testing.T) {
	eng := testEngine(time.Second)
	_, err := eng.RunOnce(context.Background(), nil, testInstant, visibility.Observer{})
	var serr *StructuralError
	require.ErrorAs(t, err, &serr)
}

// TestSaturationSignal: a batch that takes longer than the tick interval is
// flagged. A 1ns interval makes any real batch saturated.
func TestSaturationSignal(t *testing.T) {
	cat := testCatalog(entry("iss", issLine1, issLine2))

	eng := testEngine(time.Nanosecond)
	batch, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)
	assert.True(t, batch.Saturated, "batch wall-clock exceeded the tick interval")

	eng = testEngine(time.Minute)
	batch, err = eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)
	assert.False(t, batch.Saturated)
}

// TestActorLoop drives the engine through its channel interface: Ready is
// emitted once, a catalog replacement triggers a batch, and Latest reflects
// the emitted batch.
func TestActorLoop(t *testing.T) {
	eng := testEngine(time.Hour) // tick never fires during the test
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	select {
	case msg := <-eng.Out():
		_, ok := msg.(Ready)
		require.True(t, ok, "first message must be Ready, got %T", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no Ready message")
	}

	eng.ReplaceCatalog(testCatalog(entry("iss", issLine1, issLine2)))

	select {
	case msg := <-eng.Out():
		pos, ok := msg.(Positions)
		require.True(t, ok, "expected Positions, got %T", msg)
		assert.Len(t, pos.Batch.Samples, 1)
		assert.Equal(t, pos.Batch, eng.Latest())
	case <-time.After(5 * time.Second):
		t.Fatal("no Positions message after catalog replacement")
	}

	stats := eng.Stats()
	assert.Equal(t, int64(1), stats.BatchesCompleted)
	assert.Equal(t, int64(1), stats.SamplesEmitted)
}

func TestPackedRoundTrip(t *testing.T) {
	cat := testCatalog(
		entry("iss", issLine1, issLine2),
		entry("geo", geoLine1, geoLine2),
	)
	eng := testEngine(time.Second)
	batch, err := eng.RunOnce(context.Background(), cat, testInstant, visibility.Observer{})
	require.NoError(t, err)
	require.Len(t, batch.Samples, 2)

	buf := EncodePacked(batch.Samples)
	assert.Len(t, buf, 4+24*len(batch.Samples))

	triples, ok := DecodePacked(buf)
	require.True(t, ok)
	require.Len(t, triples, len(batch.Samples))
	for i, s := range batch.Samples {
		assert.Equal(t, s.Position.LatDeg, triples[i][0], "lat %d", i)
		assert.Equal(t, s.Position.LonDeg, triples[i][1], "lon %d", i)
		assert.Equal(t, s.Position.AltKm, triples[i][2], "alt %d", i)
	}

	_, ok = DecodePacked(buf[:7])
	assert.False(t, ok, "truncated buffer must not decode")
	_, ok = DecodePacked(nil)
	assert.False(t, ok)
}

func TestPackedEmptyBatch(t *testing.T) {
	buf := EncodePacked(nil)
	triples, ok := DecodePacked(buf)
	require.True(t, ok)
	assert.Empty(t, triples)
}
