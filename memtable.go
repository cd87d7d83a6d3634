package tabula

import (
	"fmt"
	"sort"
)

// MemoryTable is the in-memory Table backend: an identifier-keyed map of
// rows plus an insertion-ordered index and a lazily (re)built sorted
// identifier list.
type MemoryTable struct {
	layout *Layout

	rows      map[int64]Row
	order     []int64 // insertion order, for GetRowAt
	sorted    []int64 // lazily built, invalidated on mutation
	sortedOK  bool
	seq       uint32
	translog  TransactionLog
}

// NewMemoryTable creates an empty table for layout, which must have an ID
// field for identifier-based operations to work.
func NewMemoryTable(layout *Layout) *MemoryTable {
	return &MemoryTable{
		layout: layout,
		rows:   map[int64]Row{},
	}
}

// SetTransactionLog installs the log mutations append to when
// writeTransaction is true. A nil log disables logging.
func (m *MemoryTable) SetTransactionLog(log TransactionLog) { m.translog = log }

func (m *MemoryTable) Layout() *Layout { return m.layout }

func (m *MemoryTable) RowCount() int { return len(m.rows) }

func (m *MemoryTable) IsReadonly() bool { return false }

func (m *MemoryTable) SequenceNumber() uint32 { return m.seq }

func (m *MemoryTable) bump() { m.seq++; m.sortedOK = false }

func (m *MemoryTable) idIndex() (int, error) { return m.layout.requireID() }

func (m *MemoryTable) appendLog(entry logEntry) {
	if m.translog != nil {
		m.translog.Append(entry)
	}
}

// Get returns the row for id and whether it was present.
func (m *MemoryTable) Get(id int64) (Row, bool) {
	r, ok := m.rows[id]
	return r, ok
}

func (m *MemoryTable) Exists(id int64) (bool, error) {
	_, ok := m.rows[id]
	return ok, nil
}

func (m *MemoryTable) ExistsSearch(s *Search) (bool, error) {
	for _, id := range m.order {
		ok, err := s.Check(m.layout, m.rows[id])
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryTable) GetRow(id int64) (Row, error) {
	r, ok := m.rows[id]
	if !ok {
		return Row{}, fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	return r, nil
}

func (m *MemoryTable) GetRows() ([]Row, error) {
	out := make([]Row, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id])
	}
	return out, nil
}

func (m *MemoryTable) GetRowsByIDs(ids []int64) ([]Row, error) {
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		r, ok := m.rows[id]
		if !ok {
			return nil, fmt.Errorf("%w: identifier %d", ErrNotFound, id)
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRowAt returns the row at position index in insertion order; not
// stable across mutations.
func (m *MemoryTable) GetRowAt(index int) (Row, error) {
	if index < 0 || index >= len(m.order) {
		return Row{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(m.order))
	}
	return m.rows[m.order[index]], nil
}

func (m *MemoryTable) ensureSorted() {
	if m.sortedOK {
		return
	}
	m.sorted = m.sorted[:0]
	for id := range m.rows {
		m.sorted = append(m.sorted, id)
	}
	sort.Slice(m.sorted, func(i, j int) bool { return m.sorted[i] < m.sorted[j] })
	m.sortedOK = true
}

func (m *MemoryTable) GetNextUsedID(id int64) (int64, error) {
	m.ensureSorted()
	i := sort.Search(len(m.sorted), func(i int) bool { return m.sorted[i] > id })
	if i == len(m.sorted) {
		return -1, nil
	}
	return m.sorted[i], nil
}

func (m *MemoryTable) GetNextFreeID() (int64, error) {
	m.ensureSorted()
	if len(m.sorted) == 0 {
		return 1, nil
	}
	return m.sorted[len(m.sorted)-1] + 1, nil
}

// Find returns the identifiers of rows matching s, shaped by opts.
func (m *MemoryTable) Find(s *Search, opts ResultOptions) ([]int64, error) {
	rows, err := m.GetRowsSearch(s, opts)
	if err != nil {
		return nil, err
	}
	idIdx, err := m.idIndex()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(rows))
	for i, r := range rows {
		id, err := identifierValue(r.Get(idIdx))
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func (m *MemoryTable) matchingRows(s *Search) ([]Row, error) {
	if s == nil {
		s = NoneSearch()
	}
	out := make([]Row, 0, len(m.order))
	for _, id := range m.order {
		row := m.rows[id]
		ok, err := s.Check(m.layout, row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *MemoryTable) GetRowsSearch(s *Search, opts ResultOptions) ([]Row, error) {
	rows, err := m.matchingRows(s)
	if err != nil {
		return nil, err
	}
	return opts.apply(m.layout, rows)
}

func (m *MemoryTable) GetRowSearch(s *Search, opts ResultOptions) (Row, error) {
	rows, err := m.GetRowsSearch(s, opts.Combine(Limit(1)))
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("%w: no row matches search", ErrNotFound)
	}
	return rows[0], nil
}

func (m *MemoryTable) Count(s *Search, opts ResultOptions) (int64, error) {
	rows, err := m.GetRowsSearch(s, opts)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Insert implements identifier allocation: a non-positive identifier is
// replaced with the next free one.
func (m *MemoryTable) Insert(row Row, writeTransaction bool) (int64, error) {
	return m.insertLocked(row, boolLog(m, writeTransaction), true)
}

func boolLog(m *MemoryTable, writeTransaction bool) TransactionLog {
	if writeTransaction {
		return m.translog
	}
	return nil
}

// insertLocked is the uncontended insert path shared by Insert and the
// dat-table result-option staging helper (toMemoryForOptions), which never
// wants transaction-log side effects. reportSeq controls whether the
// sequence number is bumped (staging tables don't participate in the
// caller's sequence).
func (m *MemoryTable) insertLocked(row Row, log TransactionLog, reportSeq bool) (int64, error) {
	idIdx, err := m.idIndex()
	if err != nil {
		return 0, err
	}
	id, err := identifierValue(row.Get(idIdx))
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: negative identifier %d", ErrInvalidArgument, id)
	}
	if id == 0 {
		id, err = m.GetNextFreeID()
		if err != nil {
			return 0, err
		}
		row, err = row.WithIdentifier(m.layout, id)
		if err != nil {
			return 0, err
		}
	} else if _, exists := m.rows[id]; exists {
		return 0, fmt.Errorf("%w: identifier %d", ErrDuplicateIdentifier, id)
	}
	m.rows[id] = row
	m.order = append(m.order, id)
	if reportSeq {
		m.bump()
	} else {
		m.sortedOK = false
	}
	if log != nil {
		log.Append(logEntry{kind: logInserted, id: id, row: row})
	}
	if reportSeq && sanityChecks {
		if err := checkMemorySane(m); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (m *MemoryTable) InsertMany(rows []Row, writeTransaction bool) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, err := m.Insert(row, writeTransaction)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryTable) Update(row Row, writeTransaction bool) error {
	idIdx, err := m.idIndex()
	if err != nil {
		return err
	}
	id, err := identifierValue(row.Get(idIdx))
	if err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("%w: Update requires a positive identifier, got %d", ErrInvalidArgument, id)
	}
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	m.rows[id] = row
	m.bump()
	if writeTransaction {
		m.appendLog(logEntry{kind: logUpdated, id: id, row: row})
	}
	return nil
}

func (m *MemoryTable) UpdateMany(rows []Row, writeTransaction bool) error {
	for _, row := range rows {
		if err := m.Update(row, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryTable) Replace(row Row, writeTransaction bool) error {
	idIdx, err := m.idIndex()
	if err != nil {
		return err
	}
	id, err := identifierValue(row.Get(idIdx))
	if err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("%w: Replace requires a positive identifier, got %d", ErrInvalidArgument, id)
	}
	_, existed := m.rows[id]
	m.rows[id] = row
	if !existed {
		m.order = append(m.order, id)
	}
	m.bump()
	if writeTransaction {
		m.appendLog(logEntry{kind: logReplaced, id: id, row: row})
	}
	return nil
}

func (m *MemoryTable) ReplaceMany(rows []Row, writeTransaction bool) error {
	for _, row := range rows {
		if err := m.Replace(row, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryTable) Delete(id int64, writeTransaction bool) error {
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	delete(m.rows, id)
	m.removeFromOrder(id)
	m.bump()
	if writeTransaction {
		m.appendLog(logEntry{kind: logDeleted, id: id})
	}
	if sanityChecks {
		return checkMemorySane(m)
	}
	return nil
}

func (m *MemoryTable) DeleteMany(ids []int64, writeTransaction bool) error {
	for _, id := range ids {
		if err := m.Delete(id, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

// TryDelete removes every row matching s, silently, and returns the count
// removed.
func (m *MemoryTable) TryDelete(s *Search, writeTransaction bool) (int, error) {
	ids, err := m.Find(s, nil)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		delete(m.rows, id)
		m.removeFromOrder(id)
		if writeTransaction {
			m.appendLog(logEntry{kind: logDeleted, id: id})
		}
	}
	if len(ids) > 0 {
		m.bump()
	}
	return len(ids), nil
}

func (m *MemoryTable) removeFromOrder(id int64) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *MemoryTable) SetValue(field string, value Value) error {
	idx, err := m.layout.requireField(field)
	if err != nil {
		return err
	}
	for id, row := range m.rows {
		nr, err := row.WithValue(idx, value)
		if err != nil {
			return err
		}
		m.rows[id] = nr
	}
	m.bump()
	return nil
}

func (m *MemoryTable) Sum(field string, s *Search) (float64, error) {
	idx, err := m.layout.requireField(field)
	if err != nil {
		return 0, err
	}
	rows, err := m.matchingRows(s)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, row := range rows {
		total += numericOf(row.Get(idx))
	}
	return total, nil
}

func numericOf(v Value) float64 {
	switch v.typ {
	case Int8, Int16, Int32, Int64, Char, Enum:
		return float64(v.i)
	case UInt8, UInt16, UInt32, UInt64:
		return float64(v.u)
	case Single:
		return float64(v.f32)
	case Double:
		return v.f64
	case Decimal:
		return v.dec.Float64()
	default:
		return 0
	}
}

func (m *MemoryTable) Min(field string, s *Search) (Value, bool, error) {
	return m.extreme(field, s, -1)
}

func (m *MemoryTable) Max(field string, s *Search) (Value, bool, error) {
	return m.extreme(field, s, 1)
}

func (m *MemoryTable) extreme(field string, s *Search, want int) (Value, bool, error) {
	idx, err := m.layout.requireField(field)
	if err != nil {
		return Value{}, false, err
	}
	rows, err := m.matchingRows(s)
	if err != nil {
		return Value{}, false, err
	}
	if len(rows) == 0 {
		return Value{}, false, nil
	}
	best := rows[0].Get(idx)
	for _, row := range rows[1:] {
		v := row.Get(idx)
		if c := compareValue(v, best); (want < 0 && c < 0) || (want > 0 && c > 0) {
			best = v
		}
	}
	return best, true, nil
}

func (m *MemoryTable) Distinct(field string, s *Search) ([]Value, error) {
	idx, err := m.layout.requireField(field)
	if err != nil {
		return nil, err
	}
	rows, err := m.matchingRows(s)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, row := range rows {
		v := row.Get(idx)
		dup := false
		for _, o := range out {
			if o.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out, nil
}

// Clear empties the table. If resetIDs, the next allocated identifier
// starts again from 1.
func (m *MemoryTable) Clear(resetIDs bool) error {
	m.rows = map[int64]Row{}
	m.order = nil
	m.sorted = nil
	m.sortedOK = !resetIDs && m.sortedOK
	if resetIDs {
		m.sortedOK = true // empty sorted list is already correct
	}
	m.bump()
	return nil
}

// SetRows bulk-replaces the table contents without consulting the
// transaction log, for the (out-of-scope) bulk loader collaborator.
func (m *MemoryTable) SetRows(rows []Row) error {
	idIdx, err := m.idIndex()
	if err != nil {
		return err
	}
	m.rows = make(map[int64]Row, len(rows))
	m.order = m.order[:0]
	for _, row := range rows {
		id, err := identifierValue(row.Get(idIdx))
		if err != nil {
			return err
		}
		m.rows[id] = row
		m.order = append(m.order, id)
	}
	m.bump()
	return nil
}

var _ Table = (*MemoryTable)(nil)
