package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/resilience"
	"github.com/siyabendoezdemir/m323/pkg/tracing"
)

// maxDocumentSize bounds remote downloads.
const maxDocumentSize = 256 << 20

// Loader reads the JSON-stat document from a local path or an http(s) URL.
type Loader struct {
	client   *http.Client
	timeout  time.Duration
	attempts int
	logger   *slog.Logger
}

// NewLoader creates a Loader. timeout bounds each remote attempt; attempts
// bounds retries of remote fetches.
func NewLoader(timeout time.Duration, attempts int) *Loader {
	return &Loader{
		client:   &http.Client{},
		timeout:  timeout,
		attempts: attempts,
		logger:   slog.Default().With("component", "dataset-loader"),
	}
}

// Load returns the document bytes as delivered together with the decoded
// dataset.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, *RawDataset, error) {
	start := time.Now()
	var data []byte
	err := tracing.Run(ctx, "dataset.read", func(ctx context.Context) error {
		var err error
		if isRemote(source) {
			data, err = l.fetch(ctx, source)
			return err
		}
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("reading dataset file %s: %w", source, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var raw *RawDataset
	err = tracing.Run(ctx, "dataset.decode", func(context.Context) error {
		var decodeErr error
		raw, decodeErr = Decode(data)
		return decodeErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("decoding dataset from %s: %w", source, err)
	}
	l.logger.Info("dataset loaded",
		"source", source,
		"bytes", len(data),
		"dimensions", len(raw.Dimensions),
		"values", len(raw.Values),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, raw, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := resilience.Retry(ctx, "dataset-fetch", resilience.RetryConfig{MaxAttempts: l.attempts}, func() error {
		return resilience.WithTimeout(ctx, l.timeout, "dataset-fetch", func(ctx context.Context) error {
			body, err := l.get(ctx, url)
			if err != nil {
				return err
			}
			data = body
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetching dataset %s: %w", url, err)
	}
	return data, nil
}

func (l *Loader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
