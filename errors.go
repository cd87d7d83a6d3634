package tabula

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("%w: ...", ErrX, ...) and check
// with errors.Is.
var (
	// ErrNotFound is returned when an identifier is absent for an operation
	// that requires it to exist.
	ErrNotFound = errors.New("tabula: not found")

	// ErrDuplicateIdentifier is returned by Insert when a positive
	// identifier is already in use.
	ErrDuplicateIdentifier = errors.New("tabula: duplicate identifier")

	// ErrInvalidArgument covers negative limits/offsets, malformed
	// searches, non-positive identifiers where a positive one is required,
	// and disallowed nulls.
	ErrInvalidArgument = errors.New("tabula: invalid argument")

	// ErrLayoutMismatch is returned when an on-disk header is incompatible
	// with the caller-supplied layout, or a search/ResultOption names a
	// field absent from the layout.
	ErrLayoutMismatch = errors.New("tabula: layout mismatch")

	// ErrCodec covers value encoding/decoding failures.
	ErrCodec = errors.New("tabula: codec error")

	// ErrCorruption signals an on-disk invariant violation that requires
	// external intervention.
	ErrCorruption = errors.New("tabula: corruption")

	// ErrDeadlockImminent is raised when the concurrent gate detects a
	// reader-count underflow.
	ErrDeadlockImminent = errors.New("tabula: deadlock imminent")

	// ErrTimeout is returned when the Options.Timeout bound expires before
	// the data file's advisory lock is granted. Options.MaxWriterWait never
	// produces it: a writer past that bound keeps waiting.
	ErrTimeout = errors.New("tabula: timeout")
)
