// Package docerr defines the failure kinds shared by the conversion
// pipelines. Pipelines wrap these with context; callers match with errors.Is.
package docerr

import "errors"

// Sentinel errors for conversion failures.
var (
	// ErrUnsupportedContainer means the legacy text-stream marker was not found.
	ErrUnsupportedContainer = errors.New("unsupported container")
	// ErrMalformedStructure means a required part of a package is missing or unreadable.
	ErrMalformedStructure = errors.New("malformed structure")
	// ErrNativeAutomationUnavailable means no native office converter exists on this host.
	ErrNativeAutomationUnavailable = errors.New("native automation unavailable")
	// ErrIOFailure covers temp-file and image-write failures.
	ErrIOFailure = errors.New("io failure")
)
