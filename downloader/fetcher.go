package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"rangefetch/internal"
	"rangefetch/utils"
)

// statusError is a non-2xx response to a segment range request. Carrying
// the code lets the retry gate tell a transient 503 from a permanent 404.
type statusError struct {
	code  int
	index int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d for segment %d", e.code, e.index)
}

// Fetcher fetches a single segment with retry and fixed backoff.
type Fetcher struct {
	client     *utils.HTTPClient
	url        string
	bufferSize int
	maxRetries int
	backoff    time.Duration
	chaos      bool
	table      *StatusTable
}

// NewFetcher builds a Fetcher for one download run. bufferSize is clamped
// into the configurable 64 KiB-8 MiB copy-buffer window.
func NewFetcher(client *utils.HTTPClient, url string, bufferSize, maxRetries int, backoff time.Duration, chaos bool, table *StatusTable) *Fetcher {
	if bufferSize < internal.DefaultConfig().MinBufferSize {
		bufferSize = internal.DefaultConfig().MinBufferSize
	}
	if bufferSize > internal.DefaultConfig().MaxBufferSize {
		bufferSize = internal.DefaultConfig().MaxBufferSize
	}
	return &Fetcher{
		client:     client,
		url:        url,
		bufferSize: bufferSize,
		maxRetries: maxRetries,
		backoff:    backoff,
		chaos:      chaos,
		table:      table,
	}
}

// Fetch downloads segment seg to its LocalPath, making at most maxRetries
// attempts with a fixed backoff between them, and returns its final status.
//
// On cooperative cancellation the slot is left at its last recorded state
// (Pending or Retrying) rather than marked Failed: the caller distinguishes
// a cancelled run from a genuinely exhausted one and must not report a
// cancelled segment as a fetch failure.
func (f *Fetcher) Fetch(ctx context.Context, seg internal.Segment) internal.SegmentStatus {
	var lastErr error
	failedAttempts := 0

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return f.table.Get(seg.Index)
		}

		err := f.chaosFault(ctx, seg, attempt)
		if err == nil {
			err = f.attempt(ctx, seg)
		}

		if err == nil {
			status := internal.SegmentStatus{Index: seg.Index, State: internal.StateSucceeded, Retries: failedAttempts}
			f.table.Set(status)
			return status
		}

		failedAttempts++
		lastErr = err
		f.table.Set(internal.SegmentStatus{
			Index:     seg.Index,
			State:     internal.StateRetrying,
			Retries:   failedAttempts,
			LastError: errString(err),
		})
		internal.LogWarn("segment %d attempt %d/%d failed: %v", seg.Index, attempt, f.maxRetries, err)

		if ctx.Err() != nil {
			return f.table.Get(seg.Index)
		}
		if !retryableFault(err) {
			internal.LogWarn("segment %d fault is not retryable, abandoning remaining budget", seg.Index)
			break
		}
		if attempt < f.maxRetries {
			select {
			case <-ctx.Done():
				return f.table.Get(seg.Index)
			case <-time.After(f.backoff):
			}
		}
	}

	status := internal.SegmentStatus{
		Index:     seg.Index,
		State:     internal.StateFailed,
		Retries:   failedAttempts,
		LastError: errString(lastErr),
	}
	f.table.Set(status)
	internal.LogError("segment %d failed after %d attempts: %v", seg.Index, failedAttempts, lastErr)
	return status
}

// chaosFault injects the test-only fault behavior when chaos mode is
// enabled: segment 0 fails its first attempt with a synthetic error,
// segment 1 hangs every attempt until its 5s timeout fires.
func (f *Fetcher) chaosFault(ctx context.Context, seg internal.Segment, attempt int) error {
	if !f.chaos {
		return nil
	}
	switch seg.Index {
	case 0:
		if attempt == 1 {
			return fmt.Errorf("chaos: %w", &statusError{code: http.StatusInternalServerError, index: seg.Index})
		}
	case 1:
		hangCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		<-hangCtx.Done()
		return fmt.Errorf("chaos: segment 1 hang: %w", hangCtx.Err())
	}
	return nil
}

// attempt performs one GET+Range attempt and streams the response body into
// seg.LocalPath, validating the resulting length against the segment size.
func (f *Fetcher) attempt(ctx context.Context, seg internal.Segment) error {
	// A stale partial file from a prior attempt must not be appended to.
	os.Remove(seg.LocalPath)

	resp, err := f.client.GetRange(ctx, f.url, seg.Start, seg.End)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, index: seg.Index}
	}

	out, err := os.OpenFile(seg.LocalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}
	defer out.Close()

	buf := make([]byte, f.bufferSize)
	written, err := io.CopyBuffer(out, resp.Body, buf)
	if err != nil {
		return fmt.Errorf("failed to stream segment body: %w", err)
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to flush segment file: %w", err)
	}

	if written != seg.Size() {
		return internal.NewSegmentSizeMismatchError(seg.Index, seg.Size(), written)
	}

	return nil
}

// retryableFault reports whether another attempt could plausibly succeed.
// Permanent HTTP statuses (404, 403) must not burn the remaining retry
// budget; a per-attempt timeout, a transient transport fault, or a short
// body are all worth another try.
func retryableFault(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return utils.IsRetryableStatus(se.code)
	}
	var engErr *internal.EngineError
	if errors.As(err, &engErr) {
		return engErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return utils.IsRetryableError(err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
