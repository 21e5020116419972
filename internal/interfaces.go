package internal

import "context"

// OriginProber learns a remote resource's length and range support.
type OriginProber interface {
	Probe(ctx context.Context, url string) (*OriginMetadata, error)
}

// SegmentFetcher fetches one byte-range segment to local disk, retrying on
// transient faults up to the request's retry budget.
type SegmentFetcher interface {
	Fetch(ctx context.Context, seg Segment) SegmentStatus
}

// ProgressReporter renders the live state of an in-flight run. Implementations
// must be read-only with respect to segment state: they observe, never mutate.
type ProgressReporter interface {
	Run(ctx context.Context, statuses func() []SegmentStatus, total int64)
}

// DownloadEngine orchestrates the probe, plan, fetch, merge and verify
// stages for a single request.
type DownloadEngine interface {
	Run(ctx context.Context, req *DownloadRequest) (*Result, error)
}
