package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"rangefetch/internal"
	"rangefetch/utils"
)

// Engine implements internal.DownloadEngine: probe, plan, fetch segments in
// parallel with a live aggregator, merge, and optionally verify.
type Engine struct {
	config  *internal.Config
	fileOps *utils.FileOperations

	// Collaborator seams. Nil fields fall back to the real prober,
	// aggregator, and per-segment fetchers, built per run against the
	// run's shared HTTP client; tests inject stubs here.
	prober     internal.OriginProber
	reporter   internal.ProgressReporter
	newFetcher func(client *utils.HTTPClient, req *internal.DownloadRequest, table *StatusTable) internal.SegmentFetcher
}

// NewEngine creates an Engine using the given config, or internal
// defaults if config is nil.
func NewEngine(config *internal.Config) *Engine {
	if config == nil {
		config = internal.DefaultConfig()
	}
	return &Engine{
		config:  config,
		fileOps: utils.NewFileOperations(),
	}
}

// Run executes one complete segmented download.
func (e *Engine) Run(ctx context.Context, req *internal.DownloadRequest) (*internal.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("download request cannot be nil")
	}
	if req.Parallelism <= 0 {
		req.Parallelism = e.config.DefaultParallelism
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = e.config.DefaultMaxRetries
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &internal.Result{
		URL:            req.URL,
		OutputPath:     req.OutputPath,
		Parallelism:    req.Parallelism,
		ExpectedDigest: req.ExpectedDigest,
	}

	// No whole-request timeout: a multi-gigabyte segment legitimately takes
	// longer than any fixed deadline. Individual attempts rely on the
	// transport's connect/header timeouts and the caller's ctx.
	client := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Parallelism: req.Parallelism,
	})

	stagingDir, err := e.fileOps.NewStagingDir(stagingParent(req.OutputPath))
	if err != nil {
		return result, err
	}
	staging := internal.StagingArea{Dir: stagingDir}

	prober := e.prober
	if prober == nil {
		prober = NewProber(client)
	}

	probeStart := time.Now()
	meta, err := prober.Probe(ctx, req.URL)
	result.Timings = append(result.Timings, internal.StageTiming{Stage: "probe", Start: probeStart, End: time.Now()})
	if err != nil {
		return result, err
	}

	internal.LogInfo("origin length=%d range_support=%v", meta.Length, meta.RangeSupport)

	segments := Plan(meta.Length, req.Parallelism, staging)
	if segments == nil {
		return result, internal.NewProbeFailedError(req.URL, "origin reported zero length")
	}
	internal.LogDebug("planned %d segments, segment size ~%d bytes", len(segments), segments[0].Size())

	table := NewStatusTable(len(segments))
	reporter := e.reporter
	if reporter == nil {
		reporter = NewAggregator(table, segments, meta.Length, e.config.AggregatorTick, e.config.HeatmapColumns, e.config.QuietMode)
	}
	newFetcher := e.newFetcher
	if newFetcher == nil {
		newFetcher = func(client *utils.HTTPClient, req *internal.DownloadRequest, table *StatusTable) internal.SegmentFetcher {
			return NewFetcher(client, req.URL, e.config.DefaultBufferSize, req.MaxRetries, e.config.BackoffDelay, req.Chaos, table)
		}
	}

	fetchStart := time.Now()
	group, gctx := errgroup.WithContext(ctx)

	// The reporter lives outside the errgroup: it runs until explicitly
	// stopped, so putting it in the group would leave Wait blocked on it
	// after every fetcher succeeded.
	aggCtx, aggCancel := context.WithCancel(ctx)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		reporter.Run(aggCtx, table.Snapshot, meta.Length)
	}()

	for _, seg := range segments {
		seg := seg
		fetcher := newFetcher(client, req, table)
		group.Go(func() error {
			status := fetcher.Fetch(gctx, seg)
			if status.State != internal.StateSucceeded {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return internal.NewSegmentFetchExhaustedError(seg.Index, req.MaxRetries, fmt.Errorf("%s", status.LastError))
			}
			return nil
		})
	}

	fetchErr := group.Wait()
	aggCancel()
	<-aggDone
	result.Timings = append(result.Timings, internal.StageTiming{Stage: "fetch", Start: fetchStart, End: time.Now()})
	result.Segments = table.Snapshot()

	// The caller's own ctx (not gctx, which errgroup also cancels whenever a
	// sibling fetcher returns a non-cancellation error) tells us whether this
	// was an external cancellation rather than a genuine fetch exhaustion.
	if ctx.Err() != nil {
		return result, internal.NewCancelledError()
	}
	if fetchErr != nil {
		// The errgroup surfaces only the first exhausted segment; the
		// status table knows every one that failed.
		if engErr, ok := fetchErr.(*internal.EngineError); ok && engErr.Type == internal.ErrSegmentFetchExhausted {
			var failed []int
			for _, row := range result.Segments {
				if row.State == internal.StateFailed {
					failed = append(failed, row.Index)
				}
			}
			if len(failed) > 0 {
				engErr.Segments = failed
			}
		}
		return result, fetchErr
	}

	internal.LogInfo("all %d segments fetched, merging", len(segments))

	mergeStart := time.Now()
	if err := NewMerger().Merge(segments, staging, req.OutputPath, req.KeepSegments); err != nil {
		result.Timings = append(result.Timings, internal.StageTiming{Stage: "merge", Start: mergeStart, End: time.Now()})
		return result, err
	}
	result.Timings = append(result.Timings, internal.StageTiming{Stage: "merge", Start: mergeStart, End: time.Now()})

	if req.Verify && req.ExpectedDigest != "" {
		verifyStart := time.Now()
		actual, matched, err := NewVerifier().Verify(req.OutputPath, req.ExpectedDigest)
		result.Timings = append(result.Timings, internal.StageTiming{Stage: "verify", Start: verifyStart, End: time.Now()})
		if err != nil {
			return result, err
		}
		result.LocalDigest = actual
		result.Verified = &matched
		if !matched {
			return result, internal.NewVerificationFailedError(req.ExpectedDigest, actual)
		}
	}

	return result, nil
}

// stagingParent returns the directory under which the run's staging
// directory is created: the output file's own directory, so staging and
// output live on the same filesystem (required for the atomic rename in
// Merge).
func stagingParent(outputPath string) string {
	dir := filepath.Dir(outputPath)
	if dir == "" {
		dir = "."
	}
	return dir
}
