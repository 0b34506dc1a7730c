package ontology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrSourceLoadFailed is returned when a source cannot be fetched or
// parsed after the configured number of retries. The ingestion pipeline
// treats it as recoverable: the source is skipped and reported, the run
// continues.
var ErrSourceLoadFailed = errors.New("ontology source load failed")

// Loader fetches and parses ontology sources. Network fetches are bounded
// by the client timeout and retried a bounded number of times with
// doubling backoff.
type Loader struct {
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewLoader builds a Loader. timeout bounds each fetch attempt, retries
// is the number of additional attempts after the first failure.
func NewLoader(timeout time.Duration, retries int, logger *slog.Logger) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: 500 * time.Millisecond,
		logger:  logger,
	}
}

// Load fetches the source document and parses it into statements. URLs
// without an http(s) scheme are read from the local filesystem.
func (l *Loader) Load(ctx context.Context, src Source) ([]Statement, error) {
	data, err := l.fetch(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceLoadFailed, src.URL, err)
	}

	statements, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceLoadFailed, src.URL, err)
	}
	return statements, nil
}

// fetch retrieves the raw document, retrying transient failures.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(url)
	}

	var lastErr error
	backoff := l.backoff
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			l.logger.Warn("retrying ontology fetch",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		data, err := l.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Loader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
