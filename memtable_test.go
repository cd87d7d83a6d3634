package tabula

import "testing"

func TestMemoryTableInsertAllocatesID(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	row := mustRow(t, l, 0, "Ann", 30)
	id, err := m.Insert(row, false)
	tcompare(t, err, id, int64(1), "first Insert allocates id 1")
	id2, err := m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	tcompare(t, err, id2, int64(2), "second Insert allocates id 2")
}

func TestMemoryTableInsertExplicitDuplicate(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	_, err := m.Insert(mustRow(t, l, 5, "Ann", 30), false)
	tcheck(t, err, "Insert id 5")
	_, err = m.Insert(mustRow(t, l, 5, "Bob", 20), false)
	tneed(t, err, ErrDuplicateIdentifier, "duplicate explicit id")
}

func TestMemoryTableInsertNegativeID(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	_, err := m.Insert(mustRow(t, l, -1, "Ann", 30), false)
	tneed(t, err, ErrInvalidArgument, "negative identifier")
}

func TestMemoryTableGetRowNotFound(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	_, err := m.GetRow(1)
	tneed(t, err, ErrNotFound, "GetRow missing id")
}

func TestMemoryTableUpdate(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	id, err := m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	tcheck(t, err, "Insert")
	updated := mustRow(t, l, id, "Ann", 31)
	tcheck(t, m.Update(updated, false), "Update")
	got, err := m.GetRow(id)
	tcheck(t, err, "GetRow")
	if got.Get(2).Int() != 31 {
		t.Fatalf("Age after Update = %d, want 31", got.Get(2).Int())
	}
}

func TestMemoryTableUpdateMissing(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	err := m.Update(mustRow(t, l, 99, "Ann", 30), false)
	tneed(t, err, ErrNotFound, "Update missing id")
}

func TestMemoryTableReplaceUpserts(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	tcheck(t, m.Replace(mustRow(t, l, 1, "Ann", 30), false), "Replace insert")
	if m.RowCount() != 1 {
		t.Fatalf("RowCount after Replace-insert = %d, want 1", m.RowCount())
	}
	tcheck(t, m.Replace(mustRow(t, l, 1, "Ann", 31), false), "Replace update")
	if m.RowCount() != 1 {
		t.Fatalf("RowCount after Replace-update = %d, want 1", m.RowCount())
	}
	got, err := m.GetRow(1)
	tcheck(t, err, "GetRow")
	if got.Get(2).Int() != 31 {
		t.Fatalf("Age after Replace = %d, want 31", got.Get(2).Int())
	}
}

func TestMemoryTableDelete(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	id, err := m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	tcheck(t, err, "Insert")
	tcheck(t, m.Delete(id, false), "Delete")
	_, err = m.GetRow(id)
	tneed(t, err, ErrNotFound, "GetRow after Delete")
	err = m.Delete(id, false)
	tneed(t, err, ErrNotFound, "double Delete")
}

func TestMemoryTableTryDelete(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	m.Insert(mustRow(t, l, 0, "Cid", 25), false)
	n, err := m.TryDelete(FieldGreater("Age", NewInt32(21)), false)
	tcompare(t, err, n, 2, "TryDelete count")
	if m.RowCount() != 1 {
		t.Fatalf("RowCount after TryDelete = %d, want 1", m.RowCount())
	}
}

func TestMemoryTableFindAndSearch(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	ids, err := m.Find(FieldEquals("Name", NewString("Ann")), nil)
	tcompare(t, err, ids, []int64{1}, "Find")

	rows, err := m.GetRowsSearch(NoneSearch(), Options(SortAsc("Age")))
	tcheck(t, err, "GetRowsSearch")
	if len(rows) != 2 || rows[0].Get(1).String() != "Bob" {
		t.Fatalf("GetRowsSearch sorted result = %+v", rows)
	}
}

func TestMemoryTableGetRowSearchNotFound(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	_, err := m.GetRowSearch(FieldEquals("Name", NewString("Missing")), nil)
	tneed(t, err, ErrNotFound, "GetRowSearch with no match")
}

func TestMemoryTableSumMinMaxDistinct(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	m.Insert(mustRow(t, l, 0, "Cid", 30), false)

	sum, err := m.Sum("Age", nil)
	tcompare(t, err, sum, float64(80), "Sum")

	min, ok, err := m.Min("Age", nil)
	tcheck(t, err, "Min")
	if !ok || min.Int() != 20 {
		t.Fatalf("Min = %v, ok=%v", min.Interface(), ok)
	}

	max, ok, err := m.Max("Age", nil)
	tcheck(t, err, "Max")
	if !ok || max.Int() != 30 {
		t.Fatalf("Max = %v, ok=%v", max.Interface(), ok)
	}

	distinct, err := m.Distinct("Age", nil)
	tcheck(t, err, "Distinct")
	if len(distinct) != 2 {
		t.Fatalf("Distinct len = %d, want 2", len(distinct))
	}
}

func TestMemoryTableMinMaxEmpty(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	_, ok, err := m.Min("Age", nil)
	tcheck(t, err, "Min on empty table")
	if ok {
		t.Fatalf("expected ok=false for Min on empty table")
	}
}

func TestMemoryTableSetValue(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	id, _ := m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	tcheck(t, m.SetValue("Age", NewInt32(99)), "SetValue")
	got, err := m.GetRow(id)
	tcheck(t, err, "GetRow")
	if got.Get(2).Int() != 99 {
		t.Fatalf("Age after SetValue = %d, want 99", got.Get(2).Int())
	}
}

func TestMemoryTableClearResetsIdentifiers(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	tcheck(t, m.Clear(true), "Clear")
	if m.RowCount() != 0 {
		t.Fatalf("RowCount after Clear = %d, want 0", m.RowCount())
	}
	id, err := m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	tcompare(t, err, id, int64(1), "id allocation restarts after Clear")
}

func TestMemoryTableSequenceNumberBumpsOnMutation(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	seq0 := m.SequenceNumber()
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	if m.SequenceNumber() == seq0 {
		t.Fatalf("expected SequenceNumber to change after Insert")
	}
}

func TestMemoryTableGetRowAtOrder(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	m.Insert(mustRow(t, l, 0, "Bob", 20), false)
	row, err := m.GetRowAt(1)
	tcheck(t, err, "GetRowAt")
	if row.Get(1).String() != "Bob" {
		t.Fatalf("GetRowAt(1) = %q, want Bob", row.Get(1).String())
	}
	_, err = m.GetRowAt(5)
	tneed(t, err, ErrInvalidArgument, "GetRowAt out of range")
}

func TestMemoryTableTransactionLog(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	log := NewMemoryTransactionLog()
	m.SetTransactionLog(log)
	id, err := m.Insert(mustRow(t, l, 0, "Ann", 30), true)
	tcheck(t, err, "Insert")
	tcheck(t, m.Update(mustRow(t, l, id, "Ann", 31), true), "Update")
	tcheck(t, m.Delete(id, true), "Delete")
	events := log.Drain()
	if len(events) != 3 {
		t.Fatalf("Drain len = %d, want 3", len(events))
	}
	if events[0].Kind != "inserted" || events[1].Kind != "updated" || events[2].Kind != "deleted" {
		t.Fatalf("event kinds = %v, %v, %v", events[0].Kind, events[1].Kind, events[2].Kind)
	}
}

func TestMemoryTableInsertSkipsLogWhenWriteTransactionFalse(t *testing.T) {
	l := peopleLayout(t)
	m := NewMemoryTable(l)
	log := NewMemoryTransactionLog()
	m.SetTransactionLog(log)
	_, err := m.Insert(mustRow(t, l, 0, "Ann", 30), false)
	tcheck(t, err, "Insert")
	if log.Len() != 0 {
		t.Fatalf("expected no log entries when writeTransaction=false, got %d", log.Len())
	}
}

func TestToMemoryForOptionsStaging(t *testing.T) {
	l := peopleLayout(t)
	rows := []Row{mustRow(t, l, 1, "Ann", 30), mustRow(t, l, 2, "Bob", 20)}
	staged, err := toMemoryForOptions(l, rows)
	tcheck(t, err, "toMemoryForOptions")
	if staged.RowCount() != 2 {
		t.Fatalf("staged RowCount = %d, want 2", staged.RowCount())
	}
	if staged.SequenceNumber() != 0 {
		t.Fatalf("staging must not bump sequence number, got %d", staged.SequenceNumber())
	}
}
