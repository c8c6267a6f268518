// Package source fetches the raw CSV sources into frames.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Loader retrieves sources over HTTP or from the local filesystem.
type Loader struct {
	urls        map[domain.SourceID]string
	httpClient  *http.Client
	maxRetries  int
	concurrency int
	newBackOff  func() backoff.BackOff
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// Option customizes a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithBackOff sets the retry schedule. The factory is called once per fetch.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(l *Loader) { l.newBackOff = fn }
}

// WithConcurrency bounds how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a Loader for the given source locations. A location is an
// http(s) URL, a file:// URL or a local path.
func NewLoader(urls map[domain.SourceID]string, timeout time.Duration, maxRetries int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Loader {
	l := &Loader{
		urls:        urls,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		concurrency: len(domain.AllSources),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll fetches every source concurrently. The first failure cancels the
// remaining fetches.
func (l *Loader) LoadAll(ctx context.Context) (domain.Sources, error) {
	frames := make([]*frame.Frame, len(domain.AllSources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range domain.AllSources {
		g.Go(func() error {
			f, err := l.Load(ctx, id)
			if err != nil {
				return err
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Sources{}, err
	}

	var src domain.Sources
	for i, id := range domain.AllSources {
		if err := src.Set(id, frames[i]); err != nil {
			return domain.Sources{}, err
		}
	}
	return src, nil
}

// Load fetches, parses and contract-checks one source.
func (l *Loader) Load(ctx context.Context, id domain.SourceID) (*frame.Frame, error) {
	loc, ok := l.urls[id]
	if !ok || loc == "" {
		return nil, &domain.SourceFetchError{Source: id, Err: errors.New("no location configured")}
	}

	start := time.Now()
	data, err := l.fetch(ctx, id, loc)
	if err != nil {
		return nil, &domain.SourceFetchError{Source: id, Err: err}
	}

	f, err := frame.ReadCSV(string(id), bytes.NewReader(data))
	if err != nil {
		return nil, &domain.SourceFetchError{Source: id, Err: err}
	}
	if err := domain.CheckContract(id, f); err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}

	l.metrics.SourceRows.WithLabelValues(string(id)).Set(float64(f.Len()))
	l.logger.Info("source loaded",
		"source", id,
		"rows", f.Len(),
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return f, nil
}

func (l *Loader) fetch(ctx context.Context, id domain.SourceID, loc string) ([]byte, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return l.fetchHTTP(ctx, id, loc)
	case "file":
		return os.ReadFile(u.Path)
	case "":
		return os.ReadFile(loc)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, id domain.SourceID, loc string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", loc, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("get %s: status %d: %s", loc, resp.StatusCode, bytes.TrimSpace(body))
			if retryable(resp.StatusCode) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", loc, err)
		}
		return data, nil
	}

	notify := func(err error, wait time.Duration) {
		l.metrics.FetchRetries.WithLabelValues(string(id)).Inc()
		l.logger.Warn("source fetch failed, retrying", "source", id, "error", err, "wait", wait)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxTries(uint(l.maxRetries)+1),
		backoff.WithNotify(notify),
	)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
