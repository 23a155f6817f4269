package extract

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/he1237596/feed-service/internal/regerr"
)

// Extractor runs extractions off the request path with a bounded number
// of workers and a per-call timeout. Unpacking a tarball is CPU and disk
// bound, so an unbounded fan-out under upload load would starve the
// request handlers.
type Extractor struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewExtractor(workers int64, timeout time.Duration) *Extractor {
	return &Extractor{sem: semaphore.NewWeighted(workers), timeout: timeout}
}

// Extract blocks until a worker slot is free, then runs Extract in a
// goroutine. On timeout or client abort the scratch directory is still
// cleaned up by the worker; the caller only gets the error sooner.
func (e *Extractor) Extract(ctx context.Context, archivePath string, mode Mode) (Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Manifest{}, regerr.Wrap(regerr.KindExtraction, err, "waiting for extraction worker")
	}

	type result struct {
		m   Manifest
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer e.sem.Release(1)
		m, err := Extract(archivePath, mode)
		ch <- result{m, err}
	}()

	select {
	case r := <-ch:
		return r.m, r.err
	case <-ctx.Done():
		return Manifest{}, regerr.Wrap(regerr.KindExtraction, ctx.Err(), "extraction cancelled")
	}
}
