package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	err := NewProbeFailedError("https://example.com/file.bin", "missing Content-Length")

	result := err.Error()

	if !strings.Contains(result, "ProbeFailed") {
		t.Error("Error message should contain error type")
	}
	if !strings.Contains(result, "missing Content-Length") {
		t.Error("Error message should contain the message")
	}
	if !strings.Contains(result, "suggestion:") {
		t.Error("Error message should contain suggestion")
	}
}

func TestEngineError_DetailedError(t *testing.T) {
	err := NewSegmentFetchExhaustedError(2, 3, errors.New("connection reset")).
		WithContext("attempts", 3)

	result := err.DetailedError()

	if !strings.Contains(result, "CRITICAL") {
		t.Error("Detailed error should contain severity")
	}
	if !strings.Contains(result, "SegmentFetchExhausted") {
		t.Error("Detailed error should contain error type")
	}
	if !strings.Contains(result, "Segments: [2]") {
		t.Error("Detailed error should contain offending segment")
	}
	if !strings.Contains(result, "attempts=3") {
		t.Error("Detailed error should contain context")
	}
	if !strings.Contains(result, "retry with --retries=6") {
		t.Error("Detailed error should contain the doubled-retries suggestion")
	}
}

func TestEngineError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *EngineError
		retryable bool
	}{
		{"size_mismatch", NewSegmentSizeMismatchError(0, 100, 50), true},
		{"probe_failed", NewProbeFailedError("u", "r"), false},
		{"fetch_exhausted", NewSegmentFetchExhaustedError(0, 3, nil), false},
		{"merge_io", NewMergeIOError("disk full", "/tmp/out.tmp"), false},
		{"verification_failed", NewVerificationFailedError("aa", "bb"), false},
		{"cancelled", NewCancelledError(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestEngineError_IsCritical(t *testing.T) {
	if !NewProbeFailedError("u", "r").IsCritical() {
		t.Error("ProbeFailed should be critical")
	}
	if NewSegmentSizeMismatchError(0, 1, 2).IsCritical() {
		t.Error("SegmentSizeMismatch should not be critical")
	}
}

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrProbeFailed, "ProbeFailed"},
		{ErrSegmentFetchExhausted, "SegmentFetchExhausted"},
		{ErrSegmentSizeMismatch, "SegmentSizeMismatch"},
		{ErrMergeIO, "MergeIoError"},
		{ErrVerificationFailed, "VerificationFailed"},
		{ErrCancelled, "Cancelled"},
		{ErrInvalidRequest, "InvalidRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.errorType.String(); result != tt.expected {
				t.Errorf("ErrorType.String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestErrorSeverity_String(t *testing.T) {
	tests := []struct {
		severity ErrorSeverity
		expected string
	}{
		{SeverityWarning, "WARNING"},
		{SeverityError, "ERROR"},
		{SeverityCritical, "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.severity.String(); result != tt.expected {
				t.Errorf("ErrorSeverity.String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNewSegmentFetchExhaustedError_NilLastError(t *testing.T) {
	err := NewSegmentFetchExhaustedError(4, 3, nil)
	if strings.Contains(err.Message, "last error") {
		t.Error("message should omit 'last error' when none was given")
	}
	if len(err.Segments) != 1 || err.Segments[0] != 4 {
		t.Errorf("expected segment 4 recorded, got %v", err.Segments)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("parallelism", "must be between 1 and 32").
		WithSuggestion("use a value between 1 and 32").
		WithValue(50)

	result := err.Error()

	if !strings.Contains(result, "validation error for parallelism") {
		t.Error("Error should contain field name")
	}
	if !strings.Contains(result, "must be between 1 and 32") {
		t.Error("Error should contain message")
	}
	if !strings.Contains(result, "Suggestion:") {
		t.Error("Error should contain suggestion")
	}
	if err.Value != 50 {
		t.Error("Error should retain the offending value")
	}
}
