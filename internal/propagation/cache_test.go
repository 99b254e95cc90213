package propagation

import (
	"testing"

	"github.com/sprett/sat-tracker/internal/catalog"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	molniyaLine1 = "1 08195U 75081A   06176.33215444  .00000099  00000-0  11873-3 0   813"
	molniyaLine2 = "2 08195  64.1586 279.0717 6877146 264.7651  20.2257  2.00491383225656"

	geoLine1 = "1 19883U 89021B   08264.50000000  .00000100  00000-0  00000-0 0  9995"
	geoLine2 = "2 19883   0.0500  90.0000 0002000  50.0000 310.0000  1.00270000 12346"
)

func issEntry() catalog.Entry {
	return catalog.Entry{Identity: "ISS (ZARYA)", Category: "stations", Line1: issLine1, Line2: issLine2}
}

func TestCacheHitReturnsSameRecord(t *testing.T) {
	c := NewElementCache(10)

	rec1, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}
	rec2, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse (hit) failed: %v", err)
	}
	if rec1 != rec2 {
		t.Error("identical (identity, line1, line2) must return the cached record, not a re-parse")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheSupersedesOnLineChange(t *testing.T) {
	c := NewElementCache(10)

	old, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}

	// Same identity, different element text: a new record supersedes.
	updated := issEntry()
	updated.Line1 = molniyaLine1
	updated.Line2 = molniyaLine2
	fresh, err := c.GetOrParse(updated)
	if err != nil {
		t.Fatalf("GetOrParse (superseding) failed: %v", err)
	}
	if fresh == old {
		t.Error("changed line text must produce a distinct record")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (superseded, not added)", c.Len())
	}

	// The old key is gone: asking for the original text re-parses.
	back, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse (re-parse) failed: %v", err)
	}
	if back == old {
		t.Error("superseded record must not be resurrected")
	}
}

func TestCacheParseFailureLeavesCacheIntact(t *testing.T) {
	c := NewElementCache(10)

	rec, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}

	bad := issEntry()
	bad.Line2 = bad.Line2[:68] + "8" // corrupt the checksum
	if _, err := c.GetOrParse(bad); err == nil {
		t.Fatal("expected parse error, got nil")
	}

	// The failed update must not have evicted or replaced the good record.
	again, err := c.GetOrParse(issEntry())
	if err != nil {
		t.Fatalf("GetOrParse after failure: %v", err)
	}
	if again != rec {
		t.Error("parse failure must leave the cached record untouched")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewElementCache(2)

	a := catalog.Entry{Identity: "A", Line1: issLine1, Line2: issLine2}
	b := catalog.Entry{Identity: "B", Line1: molniyaLine1, Line2: molniyaLine2}
	d := catalog.Entry{Identity: "C", Line1: geoLine1, Line2: geoLine2}

	recA, _ := c.GetOrParse(a)
	if _, err := c.GetOrParse(b); err != nil {
		t.Fatalf("GetOrParse B failed: %v", err)
	}

	// Touch A so B becomes the least recently used.
	if _, err := c.GetOrParse(a); err != nil {
		t.Fatalf("GetOrParse A failed: %v", err)
	}
	if _, err := c.GetOrParse(d); err != nil {
		t.Fatalf("GetOrParse C failed: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	// A must still be cached; B was evicted.
	recA2, err := c.GetOrParse(a)
	if err != nil {
		t.Fatalf("GetOrParse A after eviction: %v", err)
	}
	if recA2 != recA {
		t.Error("most recently used identity was evicted")
	}
}
