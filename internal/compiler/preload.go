package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Preloader warms media referenced by a compiled sequence.
// Implementations must tolerate individual failures and report them joined.
type Preloader interface {
	Preload(ctx context.Context, urls []string) error
}

// PreloaderFunc adapts a function to the Preloader interface.
type PreloaderFunc func(ctx context.Context, urls []string) error

// Preload calls f.
func (f PreloaderFunc) Preload(ctx context.Context, urls []string) error {
	return f(ctx, urls)
}

// HTTPPreloader fetches image URLs concurrently so they sit in the HTTP
// cache before the run starts. Requests are throttled by a token bucket.
type HTTPPreloader struct {
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewHTTPPreloader creates a preloader. rps <= 0 disables throttling.
func NewHTTPPreloader(client *http.Client, rps int, timeout time.Duration, logger *slog.Logger) *HTTPPreloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = rps
	}
	return &HTTPPreloader{
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: 8,
		timeout:     timeout,
		logger:      logger,
	}
}

// Preload fetches every URL and discards the body. It waits for the whole
// batch and returns the failures joined; one failure never cancels the rest.
func (p *HTTPPreloader) Preload(ctx context.Context, urls []string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	errs := make([]error, len(urls))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if err := p.fetch(ctx, u); err != nil {
				p.logger.Warn("image preload failed", "url", u, "error", err)
				errs[i] = fmt.Errorf("%s: %w", u, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (p *HTTPPreloader) fetch(ctx context.Context, url string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
