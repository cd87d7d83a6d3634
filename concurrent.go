package tabula

import (
	"sync"
	"time"
)

// ConcurrentTable wraps any Table with a reader-preferring gate: any number
// of readers run concurrently, but a writer has exclusive access. A writer
// that arrives while readers are active waits for them to drain, bounded
// by Options.MaxWriterWait; a reader that arrives while a writer is still
// within that bound is admitted ahead of the writer. Once the bound
// elapses, the writer raises a barrier that blocks any new reader's
// admission and then keeps waiting, unbounded, for the readers already
// admitted to finish. A writer therefore never starves for longer than
// one long-running reader.
type ConcurrentTable struct {
	inner Table
	opts  *Options

	mu            sync.Mutex
	cond          *sync.Cond
	readers       int
	writing       bool
	writerWaiting bool // a writer is past MaxWriterWait and barring new readers
}

// NewConcurrentTable wraps inner with the reader-preferring gate described
// in package docs. opts supplies MaxWriterWait; nil means the default.
func NewConcurrentTable(inner Table, opts *Options) *ConcurrentTable {
	c := &ConcurrentTable{inner: inner, opts: opts}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *ConcurrentTable) acquireRead() {
	c.mu.Lock()
	for c.writing || c.writerWaiting {
		c.cond.Wait()
	}
	c.readers++
	c.mu.Unlock()
}

func (c *ConcurrentTable) releaseRead() {
	c.mu.Lock()
	c.readers--
	if c.readers < 0 {
		c.mu.Unlock()
		panic(ErrDeadlockImminent)
	}
	if c.readers == 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// writerPollInterval is how often a bounded writer rechecks the reader
// count against its deadline. sync.Cond has no native timeout, so the
// bounded portion of the wait polls; once the deadline passes, the writer
// switches to an unbounded c.cond.Wait() since no new readers can join.
const writerPollInterval = time.Millisecond

// acquireWrite waits for any other writer to finish, then waits for
// in-flight readers to drain, bounded by MaxWriterWait. A non-positive
// wait means no bound. Past the bound, acquireWrite does not give up: it
// sets writerWaiting so acquireRead stops admitting new readers, then
// keeps waiting for the readers already admitted to release.
func (c *ConcurrentTable) acquireWrite() error {
	wait := c.opts.maxWriterWait()
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.writing {
		c.cond.Wait()
	}

	if wait <= 0 {
		for c.readers > 0 || c.writing {
			c.cond.Wait()
		}
		c.writing = true
		return nil
	}

	deadline := time.Now().Add(wait)
	for c.readers > 0 || c.writing {
		if time.Now().After(deadline) {
			c.writerWaiting = true
			break
		}
		c.mu.Unlock()
		time.Sleep(writerPollInterval)
		c.mu.Lock()
	}
	for c.readers > 0 || c.writing {
		c.cond.Wait()
	}
	c.writerWaiting = false
	c.writing = true
	return nil
}

func (c *ConcurrentTable) releaseWrite() {
	c.mu.Lock()
	c.writing = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *ConcurrentTable) Layout() *Layout        { return c.inner.Layout() }
func (c *ConcurrentTable) IsReadonly() bool       { return c.inner.IsReadonly() }
func (c *ConcurrentTable) SequenceNumber() uint32 { return c.inner.SequenceNumber() }
func (c *ConcurrentTable) RowCount() int          { return c.inner.RowCount() }

func (c *ConcurrentTable) Count(s *Search, opts ResultOptions) (int64, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Count(s, opts)
}

func (c *ConcurrentTable) Exists(id int64) (bool, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Exists(id)
}

func (c *ConcurrentTable) ExistsSearch(s *Search) (bool, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.ExistsSearch(s)
}

func (c *ConcurrentTable) GetRow(id int64) (Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRow(id)
}

func (c *ConcurrentTable) GetRowSearch(s *Search, opts ResultOptions) (Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRowSearch(s, opts)
}

func (c *ConcurrentTable) GetRows() ([]Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRows()
}

func (c *ConcurrentTable) GetRowsByIDs(ids []int64) ([]Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRowsByIDs(ids)
}

func (c *ConcurrentTable) GetRowsSearch(s *Search, opts ResultOptions) ([]Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRowsSearch(s, opts)
}

func (c *ConcurrentTable) GetRowAt(index int) (Row, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetRowAt(index)
}

func (c *ConcurrentTable) GetNextUsedID(id int64) (int64, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetNextUsedID(id)
}

func (c *ConcurrentTable) GetNextFreeID() (int64, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.GetNextFreeID()
}

func (c *ConcurrentTable) Insert(row Row, writeTransaction bool) (int64, error) {
	if err := c.acquireWrite(); err != nil {
		return 0, err
	}
	defer c.releaseWrite()
	return c.inner.Insert(row, writeTransaction)
}

func (c *ConcurrentTable) InsertMany(rows []Row, writeTransaction bool) ([]int64, error) {
	if err := c.acquireWrite(); err != nil {
		return nil, err
	}
	defer c.releaseWrite()
	return c.inner.InsertMany(rows, writeTransaction)
}

func (c *ConcurrentTable) Update(row Row, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.Update(row, writeTransaction)
}

func (c *ConcurrentTable) UpdateMany(rows []Row, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.UpdateMany(rows, writeTransaction)
}

func (c *ConcurrentTable) Replace(row Row, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.Replace(row, writeTransaction)
}

func (c *ConcurrentTable) ReplaceMany(rows []Row, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.ReplaceMany(rows, writeTransaction)
}

func (c *ConcurrentTable) Delete(id int64, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.Delete(id, writeTransaction)
}

func (c *ConcurrentTable) DeleteMany(ids []int64, writeTransaction bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.DeleteMany(ids, writeTransaction)
}

func (c *ConcurrentTable) TryDelete(s *Search, writeTransaction bool) (int, error) {
	if err := c.acquireWrite(); err != nil {
		return 0, err
	}
	defer c.releaseWrite()
	return c.inner.TryDelete(s, writeTransaction)
}

func (c *ConcurrentTable) SetValue(field string, value Value) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.SetValue(field, value)
}

func (c *ConcurrentTable) Sum(field string, s *Search) (float64, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Sum(field, s)
}

func (c *ConcurrentTable) Min(field string, s *Search) (Value, bool, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Min(field, s)
}

func (c *ConcurrentTable) Max(field string, s *Search) (Value, bool, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Max(field, s)
}

func (c *ConcurrentTable) Distinct(field string, s *Search) ([]Value, error) {
	c.acquireRead()
	defer c.releaseRead()
	return c.inner.Distinct(field, s)
}

func (c *ConcurrentTable) Clear(resetIDs bool) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.Clear(resetIDs)
}

func (c *ConcurrentTable) SetRows(rows []Row) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()
	return c.inner.SetRows(rows)
}

var _ Table = (*ConcurrentTable)(nil)
