package downloader

import (
	"fmt"
	"io"
	"os"

	"rangefetch/internal"
	"rangefetch/utils"
)

const mergeBufferSize = 1 << 20 // 1 MiB

// Merger concatenates completed segment files into the final output in
// strict ascending index order, then atomically publishes the result.
type Merger struct {
	fileOps *utils.FileOperations
}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{fileOps: utils.NewFileOperations()}
}

// Merge concatenates segments (which must be in ascending index order) into
// outputPath. It writes to a temporary file first and renames it into place,
// so a failure while copying segments leaves a pre-existing output untouched;
// that output is removed just before the rename. Segment files and
// the staging directory are removed afterward unless keepSegments is set.
func (m *Merger) Merge(segments []internal.Segment, staging internal.StagingArea, outputPath string, keepSegments bool) error {
	for _, seg := range segments {
		if !m.fileOps.FileExists(seg.LocalPath) {
			return internal.NewMergeIOError(fmt.Sprintf("segment %d is missing", seg.Index), outputPath)
		}
	}

	tmpPath := outputPath + ".tmp"
	if err := m.fileOps.EnsureDir(outputPath); err != nil {
		return internal.NewMergeIOError(err.Error(), outputPath)
	}

	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return internal.NewMergeIOError(err.Error(), outputPath)
	}

	buf := make([]byte, mergeBufferSize)
	for _, seg := range segments {
		if err := copySegment(out, seg.LocalPath, buf); err != nil {
			out.Close()
			os.Remove(tmpPath)
			return internal.NewMergeIOError(err.Error(), outputPath)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return internal.NewMergeIOError(err.Error(), outputPath)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return internal.NewMergeIOError(err.Error(), outputPath)
	}

	os.Remove(outputPath)
	if err := m.fileOps.AtomicRename(tmpPath, outputPath); err != nil {
		return internal.NewMergeIOError(err.Error(), outputPath)
	}

	if !keepSegments {
		for _, seg := range segments {
			os.Remove(seg.LocalPath)
		}
		os.RemoveAll(staging.Dir)
	}

	return nil
}

func copySegment(dst io.Writer, path string, buf []byte) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment file %s: %w", path, err)
	}
	defer in.Close()

	if _, err := io.CopyBuffer(dst, in, buf); err != nil {
		return fmt.Errorf("failed to copy segment file %s: %w", path, err)
	}
	return nil
}

// Verifier computes the SHA-256 digest of the merged output and compares it
// case-insensitively against an expected digest.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify computes outputPath's digest and reports whether it matches
// expected. The digest is always returned even on mismatch, since the
// merged file is retained regardless of verification outcome.
func (v *Verifier) Verify(outputPath, expected string) (actual string, matched bool, err error) {
	actual, err = utils.FileDigest(outputPath)
	if err != nil {
		return "", false, internal.NewVerificationFailedError(expected, "")
	}
	return actual, utils.DigestsMatch(actual, expected), nil
}
