// Command diag runs one propagation batch over a TLE file and prints the
// samples. Useful for eyeballing engine output without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/engine"
	"github.com/sprett/sat-tracker/internal/visibility"
)

func main() {
	var (
		path    = flag.String("tle", "", "path to a TLE file (2- or 3-line sets)")
		at      = flag.String("at", "", "propagation instant, RFC 3339 (default: now)")
		obsLat  = flag.Float64("lat", 0, "observer latitude, degrees")
		obsLon  = flag.Float64("lon", 0, "observer longitude, degrees")
		obsAlt  = flag.Float64("alt", 0, "observer altitude, km")
		bypass  = flag.Bool("always-visible", false, "skip the visibility rule")
		maxShow = flag.Int("n", 20, "max samples to print")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: diag -tle <file> [-at <rfc3339>] [-lat/-lon/-alt observer]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR reading TLE file:", err)
		os.Exit(1)
	}

	instant := time.Now().UTC()
	if *at != "" {
		instant, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR parsing -at:", err)
			os.Exit(1)
		}
	}

	entries := catalog.EntriesFromRaw(data, "file", logger)
	cat := &catalog.Catalog{Source: *path, FetchedAt: time.Now().UTC(), Entries: entries}
	fmt.Printf("Loaded %d catalog entries\n", len(entries))

	policy := visibility.PolicyClassify
	if *bypass {
		policy = visibility.PolicyAlwaysVisible
	}
	eng := engine.New(engine.Config{
		TickInterval: time.Second,
		Policy:       policy,
	}, logger)

	obs := visibility.Observer{LatDeg: *obsLat, LonDeg: *obsLon, AltKm: *obsAlt}
	batch, err := eng.RunOnce(context.Background(), cat, instant, obs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	fmt.Printf("Batch at %s: %d samples (parse=%d prop=%d transform=%d) in %s\n",
		batch.Instant.Format(time.RFC3339),
		len(batch.Samples),
		batch.Counts.Parse, batch.Counts.Propagation, batch.Counts.Transform,
		batch.Duration,
	)

	for i, s := range batch.Samples {
		if i >= *maxShow {
			fmt.Printf("  ... %d more\n", len(batch.Samples)-i)
			break
		}
		fmt.Printf("  %-24s lat=%8.3f lon=%9.3f alt=%9.2f km visible=%v\n",
			s.Identity, s.Position.LatDeg, s.Position.LonDeg, s.Position.AltKm, s.Visible)
	}
}
