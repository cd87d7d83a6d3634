package tabula

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// logKind identifies the mutation an entry records, mirroring the four
// write operations an external transaction-log collaborator needs to
// replicate.
type logKind uint8

const (
	logInserted logKind = iota
	logUpdated
	logReplaced
	logDeleted
)

func (k logKind) String() string {
	switch k {
	case logInserted:
		return "inserted"
	case logUpdated:
		return "updated"
	case logReplaced:
		return "replaced"
	case logDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// logEntry is one mutation event. row is the zero Row for Deleted entries.
type logEntry struct {
	kind logKind
	id   int64
	row  Row
}

// TransactionLog is the external collaborator a Table reports committed
// mutations to, when a caller opts in with writeTransaction=true. Tabula
// ships MemoryTransactionLog as a reference implementation; real queueing,
// durability and replication are left to that external collaborator.
type TransactionLog interface {
	Append(entry logEntry)
}

// exported event shape handed to LogDrainer sinks, keeping logEntry (and
// its Row coupling) package-private.
type LogEvent struct {
	Kind       string
	Identifier int64
	Row        Row
}

// MemoryTransactionLog is an in-process, unbounded queue of committed
// mutations, the reference TransactionLog implementation used by tests and
// by callers that don't need real persistence or replication.
type MemoryTransactionLog struct {
	mu      sync.Mutex
	entries []logEntry
}

func NewMemoryTransactionLog() *MemoryTransactionLog { return &MemoryTransactionLog{} }

func (l *MemoryTransactionLog) Append(entry logEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Drain removes and returns every queued entry as exported LogEvents, the
// way a real log's consumer would pull a batch for shipping.
func (l *MemoryTransactionLog) Drain() []LogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEvent, len(l.entries))
	for i, e := range l.entries {
		out[i] = LogEvent{Kind: e.kind.String(), Identifier: e.id, Row: e.row}
	}
	l.entries = l.entries[:0]
	return out
}

func (l *MemoryTransactionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LogDrainer periodically drains a MemoryTransactionLog and fans each
// batch's events out to sink concurrently, using an errgroup so the first
// sink failure cancels the rest of that batch rather than leaving
// goroutines to finish silently.
type LogDrainer struct {
	log  *MemoryTransactionLog
	sink func(context.Context, LogEvent) error
}

func NewLogDrainer(log *MemoryTransactionLog, sink func(context.Context, LogEvent) error) *LogDrainer {
	return &LogDrainer{log: log, sink: sink}
}

// DrainOnce ships one batch of currently queued events and returns once
// every sink call for that batch has completed or one has failed.
func (d *LogDrainer) DrainOnce(ctx context.Context) error {
	events := d.log.Drain()
	if len(events) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, ev := range events {
		ev := ev
		g.Go(func() error { return d.sink(gctx, ev) })
	}
	return g.Wait()
}

// Run drains on every tick from ticks until ctx is done or a drain fails.
func (d *LogDrainer) Run(ctx context.Context, ticks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := d.DrainOnce(ctx); err != nil {
				return err
			}
		}
	}
}
