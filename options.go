package tabula

import (
	"log/slog"
	"time"
)

// Options configures how a DatTable is opened. The zero value is valid and
// uses sensible defaults.
type Options struct {
	// MustExist requires the data file to already exist; by default a
	// missing file is created.
	MustExist bool

	// Perm is the file mode used when creating new files. Defaults to 0600.
	Perm uint32

	// Timeout bounds how long Open waits to acquire the data file's
	// advisory lock. Zero means wait forever.
	Timeout time.Duration

	// Logger receives structured diagnostics, notably the recovery summary
	// described in the Dat Table's recovery contract. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// MaxWriterWait bounds how long a writer in a ConcurrentTable waits for
	// readers that arrived before it to finish. Negative means wait
	// forever; zero selects the 100ms default.
	MaxWriterWait time.Duration
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Options) perm() uint32 {
	if o == nil || o.Perm == 0 {
		return 0600
	}
	return o.Perm
}

func (o *Options) mustExist() bool {
	return o != nil && o.MustExist
}

func (o *Options) timeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.Timeout
}

const defaultMaxWriterWait = 100 * time.Millisecond

func (o *Options) maxWriterWait() time.Duration {
	if o == nil || o.MaxWriterWait == 0 {
		return defaultMaxWriterWait
	}
	return o.MaxWriterWait
}

// sanityChecks enables expensive self-consistency verification after
// mutations, toggled as a package-level switch rather than threading a flag
// through every call. Tests turn this on; it stays off in normal operation
// because it rescans an entire Dat Table.
var sanityChecks = false
