package tabula

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.etcd.io/bbolt"
)

// DatIndex is the on-disk {identifier -> (offset, length)} map and free
// list for a DatTable. Its format is not mandated by the storage model, so
// it is backed by a bbolt database: a sidecar file next to the data file,
// narrowed to just the index rather than the whole store.
//
// DatIndex stores the indexed file's size as a freshness stamp; if the
// data file's size at open time doesn't match the stamp, the index is
// declared stale and the caller must rebuild it from a sequential scan
// (the crash-recovery path), per the Dat Table's recovery contract.
type DatIndex struct {
	db *bbolt.DB
}

var (
	bucketEntries = []byte("entries")
	bucketFree    = []byte("free")
	bucketMeta    = []byte("meta")
	metaKeyFileSize = []byte("file_size")
)

// Entry locates one row's payload within the data file: Offset is the
// start of its record, Length is the encoded row's payload length,
// Capacity is the total record size reserved on disk (>= Length), the
// slack the free list can reuse for a later, smaller row without an
// append.
type Entry struct {
	Offset   int64
	Length   int64
	Capacity int64
}

// OpenDatIndex opens (creating if absent) the sidecar index at path. fresh
// reports whether the index's recorded file size matches dataFileSize; a
// caller seeing fresh=false must rebuild the index from a full scan before
// trusting it.
func OpenDatIndex(path string, dataFileSize int64, opts *Options) (idx *DatIndex, fresh bool, err error) {
	db, err := bbolt.Open(path, os.FileMode(opts.perm()), &bbolt.Options{Timeout: opts.timeout()})
	if err != nil {
		return nil, false, fmt.Errorf("%w: opening dat index %s: %v", ErrCorruption, path, err)
	}
	idx = &DatIndex{db: db}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketFree, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, false, fmt.Errorf("%w: initializing dat index buckets: %v", ErrCorruption, err)
	}

	var storedSize int64 = -1
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta).Get(metaKeyFileSize)
		if b != nil {
			storedSize = int64(binary.BigEndian.Uint64(b))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, false, err
	}
	fresh = storedSize == dataFileSize
	return idx, fresh, nil
}

func (idx *DatIndex) Close() error { return idx.db.Close() }

// MarkFileSize records the data file's current size as the index's
// freshness stamp, called after a successful append or compaction.
func (idx *DatIndex) MarkFileSize(size int64) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(size))
		return tx.Bucket(bucketMeta).Put(metaKeyFileSize, tmp[:])
	})
}

func idKey(id int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(id))
	return tmp[:]
}

func offsetKey(offset int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(offset))
	return tmp[:]
}

func encodeEntry(e Entry) []byte {
	var tmp [24]byte
	binary.BigEndian.PutUint64(tmp[0:8], uint64(e.Offset))
	binary.BigEndian.PutUint64(tmp[8:16], uint64(e.Length))
	binary.BigEndian.PutUint64(tmp[16:24], uint64(e.Capacity))
	return tmp[:]
}

func decodeEntry(b []byte) Entry {
	return Entry{
		Offset:   int64(binary.BigEndian.Uint64(b[0:8])),
		Length:   int64(binary.BigEndian.Uint64(b[8:16])),
		Capacity: int64(binary.BigEndian.Uint64(b[16:24])),
	}
}

// TryGet returns the entry for id, if present.
func (idx *DatIndex) TryGet(id int64) (Entry, bool, error) {
	var e Entry
	var ok bool
	err := idx.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get(idKey(id))
		if v == nil {
			return nil
		}
		ok = true
		e = decodeEntry(v)
		return nil
	})
	return e, ok, err
}

// Save records (or overwrites) the entry for id.
func (idx *DatIndex) Save(id int64, e Entry) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(idKey(id), encodeEntry(e))
	})
}

// DeleteEntry removes id from the used index and returns its prior entry,
// if any, without touching the free list: callers decide whether the
// vacated bucket is reusable.
func (idx *DatIndex) DeleteEntry(id int64) (Entry, bool, error) {
	var e Entry
	var ok bool
	err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		v := b.Get(idKey(id))
		if v == nil {
			return nil
		}
		ok = true
		e = decodeEntry(v)
		return b.Delete(idKey(id))
	})
	return e, ok, err
}

// Free marks the bucket described by e as reusable.
func (idx *DatIndex) Free(e Entry) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(e.Capacity))
		return tx.Bucket(bucketFree).Put(offsetKey(e.Offset), tmp[:])
	})
}

// GetFree pops the first free bucket at least minLength bytes long
// (first-fit), removing it from the free list.
func (idx *DatIndex) GetFree(minLength int64) (Entry, bool, error) {
	var found Entry
	var ok bool
	err := idx.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFree)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			capacity := int64(binary.BigEndian.Uint64(v))
			if capacity >= minLength {
				found = Entry{Offset: int64(binary.BigEndian.Uint64(k)), Capacity: capacity}
				ok = true
				return b.Delete(k)
			}
		}
		return nil
	})
	return found, ok, err
}

// Count is the number of live (used) entries.
func (idx *DatIndex) Count() (int, error) {
	n := 0
	err := idx.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n, err
}

// FreeItemCount is the number of reusable buckets in the free list.
func (idx *DatIndex) FreeItemCount() (int, error) {
	n := 0
	err := idx.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketFree).Stats().KeyN
		return nil
	})
	return n, err
}

// IDs returns every used identifier in ascending order.
func (idx *DatIndex) IDs() ([]int64, error) {
	var ids []int64
	err := idx.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, _ []byte) error {
			ids = append(ids, int64(binary.BigEndian.Uint64(k)))
			return nil
		})
	})
	return ids, err
}

// SortedIDs is IDs; bbolt's cursor already yields ascending byte order for
// fixed-width big-endian keys, so no separate sort step is needed.
func (idx *DatIndex) SortedIDs() ([]int64, error) { return idx.IDs() }

// GetNextUsedID returns the smallest used identifier strictly greater than
// id, or -1 if none.
func (idx *DatIndex) GetNextUsedID(id int64) (int64, error) {
	next := int64(-1)
	err := idx.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		k, _ := c.Seek(idKey(id + 1))
		if k != nil {
			next = int64(binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return next, err
}

// GetNextFreeID returns the next unused positive identifier, the highest
// used identifier plus one (or 1 if the index is empty).
func (idx *DatIndex) GetNextFreeID() (int64, error) {
	max := int64(0)
	err := idx.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		k, _ := c.Last()
		if k != nil {
			max = int64(binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return max + 1, err
}

// Rebuild replaces the index's contents wholesale, used after a
// crash-recovery scan of the data file determines the true set of live
// entries. The free list is cleared; callers that want to keep freed space
// reusable should re-Free it themselves.
func (idx *DatIndex) Rebuild(entries map[int64]Entry, fileSize int64) error {
	return idx.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketFree} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		b := tx.Bucket(bucketEntries)
		for id, e := range entries {
			if err := b.Put(idKey(id), encodeEntry(e)); err != nil {
				return err
			}
		}
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(fileSize))
		return tx.Bucket(bucketMeta).Put(metaKeyFileSize, tmp[:])
	})
}
