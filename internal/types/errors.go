package types

import (
	"fmt"
	"strings"
)

// FormatError is returned when a container cannot be decoded by any supported reader
type FormatError struct {
	Cause error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported or corrupt container: %v", e.Cause)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// ChannelNotFoundError lists the required channels that could not be recovered
type ChannelNotFoundError struct {
	Missing []ChannelName
}

func (e *ChannelNotFoundError) Error() string {
	names := make([]string, len(e.Missing))
	for i, n := range e.Missing {
		names[i] = string(n)
	}
	return fmt.Sprintf("missing required signals: [%s]", strings.Join(names, ", "))
}

// ShapeError is returned when a channel does not have the expected sample count
type ShapeError struct {
	Channel  ChannelName
	Length   int
	Expected int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("signal %s has length %d, expected %d", e.Channel, e.Length, e.Expected)
}

// ScoringError wraps a failure of the external classifier
type ScoringError struct {
	Cause error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("classifier failed: %v", e.Cause)
}

func (e *ScoringError) Unwrap() error {
	return e.Cause
}

// SpectralAnalysisError is raised inside the spectral validator. It is always
// recovered and logged; it never fails a request.
type SpectralAnalysisError struct {
	Cause error
}

func (e *SpectralAnalysisError) Error() string {
	return fmt.Sprintf("spectral analysis failed: %v", e.Cause)
}

func (e *SpectralAnalysisError) Unwrap() error {
	return e.Cause
}
