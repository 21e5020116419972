package downloader

import (
	"context"
	"fmt"

	"rangefetch/internal"
	"rangefetch/utils"
)

// Prober issues a HEAD request against the origin to learn its length and
// whether it advertises range support.
type Prober struct {
	client *utils.HTTPClient
}

// NewProber creates a Prober backed by the given HTTP client.
func NewProber(client *utils.HTTPClient) *Prober {
	return &Prober{client: client}
}

// Probe fetches origin metadata. A missing or non-positive Content-Length is
// fatal: this engine has no unsegmented fallback, so the length is required
// to plan segments at all.
func (p *Prober) Probe(ctx context.Context, url string) (*internal.OriginMetadata, error) {
	resp, err := p.client.Head(ctx, url)
	if err != nil {
		return nil, internal.NewProbeFailedError(url, err.Error())
	}
	defer resp.Body.Close()
	internal.GetLogger().LogHTTPResponse(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, internal.NewProbeFailedError(url, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if resp.ContentLength <= 0 {
		return nil, internal.NewProbeFailedError(url, "origin did not report a usable Content-Length")
	}

	return &internal.OriginMetadata{
		Length:       resp.ContentLength,
		RangeSupport: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}
