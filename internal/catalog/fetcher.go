package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes bounds a fetched catalog.
const maxBodyBytes = 16 << 20

// Fetcher retrieves a CSV star catalog from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET to retrieve raw catalog data.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("catalog exceeds %d byte limit", maxBodyBytes)
	}

	return body, nil
}

// Load fetches and parses the remote catalog into a Dataset.
func (f *Fetcher) Load(ctx context.Context) (*Dataset, error) {
	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	stars, err := Parse(bytes.NewReader(data), f.logger)
	if err != nil {
		return nil, err
	}
	if len(stars) == 0 {
		return nil, fmt.Errorf("catalog from %s contains no usable stars", f.sourceURL)
	}
	f.logger.Info("star catalog fetched", "source_url", f.sourceURL, "stars", len(stars))
	return &Dataset{
		Source:   f.sourceURL,
		LoadedAt: time.Now(),
		Stars:    stars,
	}, nil
}
