package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sprett/sat-tracker/internal/tle"
)

const defaultBaseURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=%s&FORMAT=tle"

// Fetcher retrieves raw element text for category groups from a remote
// provider and assembles Catalog snapshots.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. baseURL must contain one %s verb for the
// category group name; empty selects the default provider.
func NewFetcher(baseURL string, logger *slog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FetchRaw performs an HTTP GET for one category group and returns the raw
// catalog text.
func (f *Fetcher) FetchRaw(ctx context.Context, category string) ([]byte, error) {
	url := fmt.Sprintf(f.baseURL, category)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// EntriesFromRaw splits raw TLE catalog text into catalog entries tagged with
// the given category. The text is only split here, not validated; the engine's
// parser is the validation authority.
func EntriesFromRaw(raw []byte, category string, logger *slog.Logger) []Entry {
	parsed, err := tle.Parse(bytes.NewReader(raw), logger)
	if err != nil {
		logger.Warn("catalog text unreadable", "category", category, "error", err)
		return nil
	}
	entries := make([]Entry, 0, len(parsed))
	for _, p := range parsed {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("OBJECT %d", p.CatalogNumber)
		}
		entries = append(entries, Entry{
			Identity: name,
			Category: category,
			Line1:    p.Line1,
			Line2:    p.Line2,
		})
	}
	return entries
}
