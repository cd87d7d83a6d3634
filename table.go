package tabula

// Table is the capability set every backend (MemoryTable, DatTable,
// ConcurrentTable) implements: an interface plus per-backend structs
// rather than a single polymorphic base type.
type Table interface {
	Layout() *Layout

	Count(s *Search, opts ResultOptions) (int64, error)
	Exists(id int64) (bool, error)
	ExistsSearch(s *Search) (bool, error)
	GetRow(id int64) (Row, error)
	GetRowSearch(s *Search, opts ResultOptions) (Row, error)
	GetRows() ([]Row, error)
	GetRowsByIDs(ids []int64) ([]Row, error)
	GetRowsSearch(s *Search, opts ResultOptions) ([]Row, error)
	GetRowAt(index int) (Row, error)
	GetNextUsedID(id int64) (int64, error)
	GetNextFreeID() (int64, error)

	Insert(row Row, writeTransaction bool) (int64, error)
	InsertMany(rows []Row, writeTransaction bool) ([]int64, error)
	Update(row Row, writeTransaction bool) error
	UpdateMany(rows []Row, writeTransaction bool) error
	Replace(row Row, writeTransaction bool) error
	ReplaceMany(rows []Row, writeTransaction bool) error
	Delete(id int64, writeTransaction bool) error
	DeleteMany(ids []int64, writeTransaction bool) error
	TryDelete(s *Search, writeTransaction bool) (int, error)

	SetValue(field string, value Value) error
	Sum(field string, s *Search) (float64, error)
	Min(field string, s *Search) (Value, bool, error)
	Max(field string, s *Search) (Value, bool, error)
	Distinct(field string, s *Search) ([]Value, error)

	Clear(resetIDs bool) error
	SetRows(rows []Row) error

	SequenceNumber() uint32
	IsReadonly() bool

	RowCount() int
}

// toMemoryForOptions stages rows into a throwaway MemoryTable so the
// shared ResultOption pipeline (sort/group/limit/offset) can run over them
// without each backend reimplementing it; DatTable's search paths use this
// helper to apply result options after scanning matching rows.
func toMemoryForOptions(layout *Layout, rows []Row) (*MemoryTable, error) {
	m := NewMemoryTable(layout)
	for _, row := range rows {
		if _, err := m.insertLocked(row, nil, false); err != nil {
			return nil, err
		}
	}
	return m, nil
}
