package tabula

import (
	"path/filepath"
	"testing"
)

func openTestDatIndex(t *testing.T, size int64) (*DatIndex, string, bool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.idx")
	idx, fresh, err := OpenDatIndex(path, size, nil)
	tcheck(t, err, "OpenDatIndex")
	t.Cleanup(func() { idx.Close() })
	return idx, path, fresh
}

func TestDatIndexFreshOnFirstOpen(t *testing.T) {
	_, _, fresh := openTestDatIndex(t, 0)
	if !fresh {
		t.Fatalf("expected a brand new index at size 0 to report fresh")
	}
}

func TestDatIndexStaleAfterSizeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.idx")
	idx, _, err := OpenDatIndex(path, 100, nil)
	tcheck(t, err, "OpenDatIndex")
	tcheck(t, idx.Close(), "Close")

	idx2, fresh, err := OpenDatIndex(path, 200, nil)
	tcheck(t, err, "reopen OpenDatIndex")
	defer idx2.Close()
	if fresh {
		t.Fatalf("expected stale index after file size change")
	}
}

func TestDatIndexMarkFileSizePersists(t *testing.T) {
	idx, path, _ := openTestDatIndex(t, 0)
	tcheck(t, idx.MarkFileSize(500), "MarkFileSize")
	tcheck(t, idx.Close(), "Close")

	idx2, fresh, err := OpenDatIndex(path, 500, nil)
	tcheck(t, err, "reopen")
	defer idx2.Close()
	if !fresh {
		t.Fatalf("expected fresh after reopening with matching size")
	}
}

func TestDatIndexSaveTryGetDeleteEntry(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	e := Entry{Offset: 64, Length: 10, Capacity: 64}
	tcheck(t, idx.Save(1, e), "Save")

	got, ok, err := idx.TryGet(1)
	tcheck(t, err, "TryGet")
	tcompare(t, nil, got, e, "TryGet roundtrip")
	if !ok {
		t.Fatalf("expected TryGet to find saved entry")
	}

	_, ok, err = idx.TryGet(2)
	tcheck(t, err, "TryGet missing")
	if ok {
		t.Fatalf("expected TryGet of unknown id to return ok=false")
	}

	deleted, ok, err := idx.DeleteEntry(1)
	tcheck(t, err, "DeleteEntry")
	tcompare(t, nil, deleted, e, "DeleteEntry returns prior entry")
	if !ok {
		t.Fatalf("expected DeleteEntry to report ok=true")
	}
	_, ok, err = idx.TryGet(1)
	tcheck(t, err, "TryGet after delete")
	if ok {
		t.Fatalf("expected entry gone after DeleteEntry")
	}
}

func TestDatIndexFreeListFirstFit(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	tcheck(t, idx.Free(Entry{Offset: 0, Length: 32, Capacity: 32}), "Free 32")
	tcheck(t, idx.Free(Entry{Offset: 64, Length: 128, Capacity: 128}), "Free 128")

	found, ok, err := idx.GetFree(100)
	tcheck(t, err, "GetFree")
	if !ok || found.Offset != 64 || found.Capacity != 128 {
		t.Fatalf("GetFree(100) = %+v, ok=%v, want offset 64 cap 128", found, ok)
	}

	// That bucket is now consumed; a second GetFree(100) must not return it
	// again since GetFree removes what it finds from the free list.
	_, ok, err = idx.GetFree(100)
	tcheck(t, err, "second GetFree")
	if ok {
		t.Fatalf("expected free list to not re-offer a consumed bucket")
	}

	found, ok, err = idx.GetFree(16)
	tcheck(t, err, "GetFree 16")
	if !ok || found.Offset != 0 {
		t.Fatalf("GetFree(16) = %+v, want offset 0", found)
	}
}

func TestDatIndexCountAndFreeItemCount(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	idx.Save(1, Entry{Offset: 0, Length: 10, Capacity: 64})
	idx.Save(2, Entry{Offset: 64, Length: 10, Capacity: 64})
	idx.Free(Entry{Offset: 128, Length: 64, Capacity: 64})

	n, err := idx.Count()
	tcompare(t, err, n, 2, "Count")

	f, err := idx.FreeItemCount()
	tcompare(t, err, f, 1, "FreeItemCount")
}

func TestDatIndexIDsAscendingOrder(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	idx.Save(5, Entry{Offset: 0, Length: 1, Capacity: 64})
	idx.Save(1, Entry{Offset: 64, Length: 1, Capacity: 64})
	idx.Save(3, Entry{Offset: 128, Length: 1, Capacity: 64})

	ids, err := idx.SortedIDs()
	tcompare(t, err, ids, []int64{1, 3, 5}, "SortedIDs ascending")
}

func TestDatIndexGetNextUsedAndFreeID(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	idx.Save(1, Entry{Offset: 0, Length: 1, Capacity: 64})
	idx.Save(3, Entry{Offset: 64, Length: 1, Capacity: 64})

	next, err := idx.GetNextUsedID(1)
	tcompare(t, err, next, int64(3), "GetNextUsedID")

	next, err = idx.GetNextUsedID(3)
	tcompare(t, err, next, int64(-1), "GetNextUsedID none left")

	free, err := idx.GetNextFreeID()
	tcompare(t, err, free, int64(4), "GetNextFreeID")
}

func TestDatIndexGetNextFreeIDEmpty(t *testing.T) {
	idx, _, _ := openTestDatIndex(t, 0)
	free, err := idx.GetNextFreeID()
	tcompare(t, err, free, int64(1), "GetNextFreeID on empty index")
}

func TestDatIndexRebuildReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.idx")
	idx, _, err := OpenDatIndex(path, 0, nil)
	tcheck(t, err, "OpenDatIndex")
	idx.Save(1, Entry{Offset: 0, Length: 1, Capacity: 64})
	idx.Free(Entry{Offset: 64, Length: 64, Capacity: 64})

	entries := map[int64]Entry{
		7: {Offset: 128, Length: 5, Capacity: 64},
	}
	tcheck(t, idx.Rebuild(entries, 192), "Rebuild")

	n, err := idx.Count()
	tcompare(t, err, n, 1, "Count after Rebuild")

	f, err := idx.FreeItemCount()
	tcompare(t, err, f, 0, "FreeItemCount cleared by Rebuild")

	got, ok, err := idx.TryGet(7)
	tcheck(t, err, "TryGet after Rebuild")
	tcompare(t, nil, got, entries[7], "rebuilt entry matches")
	if !ok {
		t.Fatalf("expected rebuilt entry to be present")
	}
	tcheck(t, idx.Close(), "Close")

	idx2, fresh, err := OpenDatIndex(path, 192, nil)
	tcheck(t, err, "reopen after Rebuild")
	defer idx2.Close()
	if !fresh {
		t.Fatalf("expected Rebuild's recorded file size to make reopen see fresh")
	}
}
