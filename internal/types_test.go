package internal

import (
	"strings"
	"testing"
	"time"
)

func validRequest() *DownloadRequest {
	return &DownloadRequest{
		URL:         "https://example.com/disk.img",
		OutputPath:  "/tmp/disk.img",
		Parallelism: 8,
		MaxRetries:  3,
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DownloadRequest)
		wantErr string
	}{
		{"valid", func(r *DownloadRequest) {}, ""},
		{"missing_url", func(r *DownloadRequest) { r.URL = "" }, "url"},
		{"missing_output", func(r *DownloadRequest) { r.OutputPath = "" }, "output_path"},
		{"zero_parallelism", func(r *DownloadRequest) { r.Parallelism = 0 }, "parallelism"},
		{"excess_parallelism", func(r *DownloadRequest) { r.Parallelism = MaxParallelism + 1 }, "parallelism"},
		{"max_parallelism_ok", func(r *DownloadRequest) { r.Parallelism = MaxParallelism }, ""},
		{"zero_retries", func(r *DownloadRequest) { r.MaxRetries = 0 }, "max_retries"},
		{"short_digest", func(r *DownloadRequest) { r.ExpectedDigest = "abc123" }, "expected_digest"},
		{"non_hex_digest", func(r *DownloadRequest) { r.ExpectedDigest = strings.Repeat("z", 64) }, "expected_digest"},
		{"valid_digest", func(r *DownloadRequest) { r.ExpectedDigest = strings.Repeat("aB0", 21) + "f" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSegment_Size(t *testing.T) {
	seg := Segment{Start: 10, End: 19}
	if seg.Size() != 10 {
		t.Errorf("Size() = %d, want 10", seg.Size())
	}
}

func TestStagingArea_SegmentPath(t *testing.T) {
	staging := StagingArea{Dir: "/data/.segments"}
	if got := staging.SegmentPath(3); got != "/data/.segments/segment_3" {
		t.Errorf("SegmentPath(3) = %q", got)
	}
}

func TestStageTiming_Duration(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timing := StageTiming{Stage: "fetch", Start: start, End: start.Add(3 * time.Second)}
	if timing.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", timing.Duration())
	}
}

func TestSegmentState_String(t *testing.T) {
	tests := []struct {
		state SegmentState
		want  string
	}{
		{StatePending, "Pending"},
		{StateRetrying, "Retrying"},
		{StateSucceeded, "Succeeded"},
		{StateFailed, "Failed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
