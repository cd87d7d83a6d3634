package tabula

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
)

// datMagic identifies a tabula data file. currentDatVersion is the only
// version DatTable writes; versions 1-3 are still readable, each missing
// progressively more of the varint/length-prefix/compression
// machinery codec.go's version-gated EncodeValue/DecodeValue implement.
var datMagic = [8]byte{'D', 'a', 't', 'T', 'a', 'b', 'l', 'e'}

const currentDatVersion = 4

// indexSuffix names the sidecar DatIndex file relative to its data file.
const indexSuffix = ".idx"

// DatTable is the binary file Table backend: a header describing the
// layout followed by a sequence of fixed-capacity record buckets, plus a
// DatIndex sidecar mapping identifiers to bucket locations.
type DatTable struct {
	layout    *Layout
	file      *os.File
	index     *DatIndex
	opts      *Options
	version   int
	headerEnd int64
	fileSize  int64
	seq       uint32
	translog  TransactionLog
	readonly  bool
}

// OpenDatTable opens or creates a data file at path for layout. A sidecar
// index at path+".idx" is opened alongside it; if the sidecar's freshness
// stamp doesn't match the data file's size, the index is rebuilt from a
// sequential scan of the data file (crash recovery).
func OpenDatTable(path string, layout *Layout, opts *Options) (*DatTable, error) {
	if opts == nil {
		opts = &Options{}
	}
	flags := os.O_RDWR
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: stat %s: %v", ErrCorruption, path, err)
		}
		if opts.mustExist() {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNotFound, path)
		}
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, os.FileMode(opts.perm()))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrCorruption, path, err)
	}
	if err := lockDataFile(f, opts.timeout()); err != nil {
		f.Close()
		return nil, err
	}

	dt := &DatTable{layout: layout, file: f, opts: opts, version: currentDatVersion}

	fi, err := f.Stat()
	if err != nil {
		dt.closeOnError()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrCorruption, path, err)
	}
	if fi.Size() == 0 {
		if err := dt.writeHeader(); err != nil {
			dt.closeOnError()
			return nil, err
		}
	} else {
		if err := dt.readHeader(); err != nil {
			dt.closeOnError()
			return nil, err
		}
	}
	fi, err = f.Stat()
	if err != nil {
		dt.closeOnError()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrCorruption, path, err)
	}
	dt.fileSize = fi.Size()

	idxPath := path + indexSuffix
	index, fresh, err := OpenDatIndex(idxPath, dt.fileSize, opts)
	if err != nil {
		dt.closeOnError()
		return nil, err
	}
	dt.index = index
	if !fresh {
		opts.logger().Warn("tabula: rebuilding stale index from sequential scan", "path", path)
		if err := dt.recover(); err != nil {
			dt.closeOnError()
			return nil, err
		}
	}
	return dt, nil
}

func (dt *DatTable) closeOnError() {
	unlockDataFile(dt.file)
	dt.file.Close()
	if dt.index != nil {
		dt.index.Close()
	}
}

// Close releases the advisory lock and the index's handle.
func (dt *DatTable) Close() error {
	var err error
	if dt.index != nil {
		err = dt.index.Close()
	}
	unlockDataFile(dt.file)
	if cerr := dt.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (dt *DatTable) Layout() *Layout         { return dt.layout }
func (dt *DatTable) IsReadonly() bool        { return dt.readonly }
func (dt *DatTable) SequenceNumber() uint32  { return dt.seq }

func (dt *DatTable) bump() { dt.seq++ }

// --- header ---

func (dt *DatTable) writeHeader() error {
	var buf bytes.Buffer
	buf.Write(datMagic[:])
	writeUvarint(&buf, uint64(currentDatVersion))
	writeHeaderString(&buf, dt.layout.Name)
	writeUvarint(&buf, uint64(len(dt.layout.Fields)))
	for _, f := range dt.layout.Fields {
		writeFieldHeader(&buf, f, currentDatVersion)
	}
	if _, err := dt.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrCorruption, err)
	}
	dt.headerEnd = int64(buf.Len())
	return nil
}

func writeHeaderString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// writeFieldHeader writes one field's on-disk header: name, data_type,
// flags, then a handful of fields conditioned on data_type and the file's
// format version. NameAtDatabase, MaximumLength, Description,
// DisplayFormat and AlternativeNames are construction-time-only
// properties; they aren't part of the on-disk shape and are lost across a
// close/reopen, same as TypeAtDatabase, which readFieldHeader rederives
// via FieldProperties.normalize.
func writeFieldHeader(buf *bytes.Buffer, f FieldProperties, version int) {
	writeHeaderString(buf, f.Name)
	writeUvarint(buf, uint64(f.DataType))
	flags := f.Flags
	if f.IsNullable {
		flags |= FlagNullable
	}
	writeUvarint(buf, uint64(flags))
	if (f.DataType == User || f.DataType == String) && version > 2 {
		writeUvarint(buf, uint64(f.StringEncoding))
	}
	if f.DataType == DateTime && version > 1 {
		writeUvarint(buf, uint64(f.DateTimeKind))
		writeUvarint(buf, uint64(f.DateTimeType))
	}
	if f.DataType == TimeSpan && version > 3 {
		writeUvarint(buf, uint64(f.DateTimeType))
	}
	if f.DataType == Enum || f.DataType == User {
		writeHeaderString(buf, f.ValueType)
	}
}

func (dt *DatTable) readHeader() error {
	onDisk, version, headerEnd, err := parseDatHeader(dt.file)
	if err != nil {
		return err
	}
	dt.version = version
	if err := dt.layout.CheckCompatible(onDisk); err != nil {
		return err
	}
	dt.headerEnd = headerEnd
	return nil
}

// parseDatHeader reads and decodes a data file's header without reference
// to any caller-supplied Layout, for ProbeLayout and for DatTable.readHeader
// (which additionally checks the result against its own layout).
func parseDatHeader(f *os.File) (layout *Layout, version int, headerEnd int64, err error) {
	r := &readerAt{f: f}
	var magic [8]byte
	if err := r.read(magic[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: reading magic: %v", ErrCorruption, err)
	}
	if magic != datMagic {
		return nil, 0, 0, fmt.Errorf("%w: bad magic in %s", ErrCorruption, f.Name())
	}
	versionNum, err := r.readUvarint()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: reading version: %v", ErrCorruption, err)
	}
	version = int(versionNum)
	if version < 1 || version > currentDatVersion {
		return nil, 0, 0, fmt.Errorf("%w: unsupported dat version %d", ErrCorruption, version)
	}
	name, err := r.readHeaderString()
	if err != nil {
		return nil, 0, 0, err
	}
	fieldCount, err := r.readUvarint()
	if err != nil {
		return nil, 0, 0, err
	}
	fields := make([]FieldProperties, 0, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		f, err := readFieldHeader(r, version)
		if err != nil {
			return nil, 0, 0, err
		}
		fields = append(fields, f)
	}
	layout, err = NewLayout(name, fields)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: reconstructing on-disk layout: %v", ErrCorruption, err)
	}
	return layout, version, r.offset, nil
}

// ProbeLayout reads a data file's header and returns the Layout it
// describes, without opening the file for row access. Inspection tools
// that don't know a caller's struct type use this to bootstrap
// OpenDatTable's required layout argument from the file itself.
func ProbeLayout(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrCorruption, path, err)
	}
	defer f.Close()
	layout, _, _, err := parseDatHeader(f)
	return layout, err
}

// readFieldHeader reads one field's on-disk header in the format
// writeFieldHeader writes, conditioning the optional fields on data_type
// and version exactly as the file structure dictates. TypeAtDatabase,
// NameAtDatabase and the remaining defaults are filled in later by
// FieldProperties.normalize, which NewLayout calls on every field.
func readFieldHeader(r *readerAt, version int) (FieldProperties, error) {
	var f FieldProperties
	var err error
	if f.Name, err = r.readHeaderString(); err != nil {
		return f, err
	}
	dataType, err := r.readUvarint()
	if err != nil {
		return f, err
	}
	f.DataType = DataType(dataType)
	flags, err := r.readUvarint()
	if err != nil {
		return f, err
	}
	f.Flags = FieldFlags(flags)
	f.IsNullable = f.Flags.has(FlagNullable)
	if (f.DataType == User || f.DataType == String) && version > 2 {
		enc, err := r.readUvarint()
		if err != nil {
			return f, err
		}
		f.StringEncoding = StringEncoding(enc)
	}
	if f.DataType == DateTime {
		if version > 1 {
			kind, err := r.readUvarint()
			if err != nil {
				return f, err
			}
			f.DateTimeKind = DateTimeKind(kind)
			typ, err := r.readUvarint()
			if err != nil {
				return f, err
			}
			f.DateTimeType = DateTimeType(typ)
		} else {
			f.DateTimeKind = Utc
			f.DateTimeType = BigIntHumanReadable
		}
	}
	if f.DataType == TimeSpan && version > 3 {
		typ, err := r.readUvarint()
		if err != nil {
			return f, err
		}
		f.DateTimeType = DateTimeType(typ)
	}
	if f.DataType == Enum || f.DataType == User {
		if f.ValueType, err = r.readHeaderString(); err != nil {
			return f, err
		}
	}
	return f, nil
}

// readerAt is a small sequential-read helper over os.File.ReadAt, used for
// header parsing (which never needs to seek backwards).
type readerAt struct {
	f      *os.File
	offset int64
}

func (r *readerAt) read(buf []byte) error {
	n, err := r.f.ReadAt(buf, r.offset)
	r.offset += int64(n)
	if err != nil {
		return err
	}
	return nil
}

func (r *readerAt) readByte() (byte, error) {
	var b [1]byte
	if err := r.read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *readerAt) readUvarint() (uint64, error) {
	var x uint64
	var shift uint
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			return x | uint64(b)<<shift, nil
		}
		x |= uint64(b&0x7f) << shift
		shift += 7
	}
}

func (r *readerAt) readHeaderString() (string, error) {
	n, err := r.readUvarint()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := r.read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// --- record encode/decode ---

// uvarintLen returns the number of bytes binary.PutUvarint would write for
// x, without actually encoding it.
func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// minBucketSize is the smallest bucket_length (including its own varint
// prefix) write_entry will accept for a payload of payloadLen bytes: the
// payload plus a prefix sized against payloadLen+10, slack that guarantees
// the prefix can encode the bucket's total length. It leaves no room for
// the payload itself to grow.
func minBucketSize(payloadLen int) int64 {
	return int64(payloadLen) + int64(uvarintLen(uint64(payloadLen+10)))
}

func (dt *DatTable) encodeRowPayload(row Row) ([]byte, error) {
	var buf bytes.Buffer
	for i, f := range dt.layout.Fields {
		if err := EncodeValue(&buf, f, row.Get(i), dt.version); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (dt *DatTable) decodeRowPayload(r *bytes.Reader) (Row, error) {
	values := make([]Value, len(dt.layout.Fields))
	for i, f := range dt.layout.Fields {
		v, err := DecodeValue(r, f, dt.version)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return NewRow(dt.layout, values)
}

// writeRecord writes a bucket of the given total length at offset: the
// varint bucket_length prefix, the payload, and zero padding out to
// capacity.
func (dt *DatTable) writeRecord(offset, capacity int64, payload []byte) error {
	buf := make([]byte, capacity)
	n := binary.PutUvarint(buf, uint64(capacity))
	copy(buf[n:], payload)
	// remaining bytes stay zero, the padding.
	if _, err := dt.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: writing record at %d: %v", ErrCorruption, offset, err)
	}
	total := offset + capacity
	if total > dt.fileSize {
		dt.fileSize = total
	}
	return nil
}

// markFree zero-fills a bucket's full length: the all-zero span both
// satisfies "length prefix == 0" at its first byte and leaves no other
// structure behind.
func (dt *DatTable) markFree(offset, capacity int64) error {
	buf := make([]byte, capacity)
	if _, err := dt.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: marking record free at %d: %v", ErrCorruption, offset, err)
	}
	return dt.index.Free(Entry{Offset: offset, Capacity: capacity})
}

// readBucketLength reads the varint bucket_length prefix at offset,
// returning the decoded value and the prefix's own byte width.
func (dt *DatTable) readBucketLength(offset int64) (length uint64, prefixLen int, err error) {
	var head [binary.MaxVarintLen64]byte
	n, rerr := dt.file.ReadAt(head[:], offset)
	if rerr != nil && rerr != io.EOF {
		return 0, 0, fmt.Errorf("%w: reading bucket length at %d: %v", ErrCorruption, offset, rerr)
	}
	length, prefixLen = binary.Uvarint(head[:n])
	if prefixLen <= 0 {
		return 0, 0, fmt.Errorf("%w: malformed bucket length prefix at %d", ErrCorruption, offset)
	}
	return length, prefixLen, nil
}

// readRecord reads the bucket at offset and returns its decoded row and
// the declared bucket length. ok is false (with no error) for a
// free/tombstoned bucket, signaled by a zero length prefix.
func (dt *DatTable) readRecord(offset int64) (row Row, capacity, payloadLen int64, ok bool, err error) {
	bucketLength, prefixLen, err := dt.readBucketLength(offset)
	if err != nil {
		return Row{}, 0, 0, false, err
	}
	if bucketLength == 0 {
		return Row{}, 1, 0, false, nil
	}
	capacity = int64(bucketLength)
	body := make([]byte, capacity-int64(prefixLen))
	if _, err := dt.file.ReadAt(body, offset+int64(prefixLen)); err != nil {
		return Row{}, capacity, 0, false, fmt.Errorf("%w: reading record payload at %d: %v", ErrCorruption, offset, err)
	}
	r := bytes.NewReader(body)
	row, err = dt.decodeRowPayload(r)
	if err != nil {
		return Row{}, capacity, 0, false, fmt.Errorf("%w: decoding record at %d: %v", ErrCorruption, offset, err)
	}
	payloadLen = int64(len(body)) - int64(r.Len())
	return row, capacity, payloadLen, true, nil
}

// scanZeroRun counts consecutive zero bytes starting at offset, stopping
// at the first non-zero byte or at fileSize.
func (dt *DatTable) scanZeroRun(offset int64) (int64, error) {
	const chunkSize = 4096
	buf := make([]byte, chunkSize)
	span := int64(0)
	pos := offset
	for pos < dt.fileSize {
		want := buf
		if remaining := dt.fileSize - pos; remaining < int64(len(want)) {
			want = want[:remaining]
		}
		n, rerr := dt.file.ReadAt(want, pos)
		if rerr != nil && rerr != io.EOF {
			return 0, fmt.Errorf("%w: scanning free span at %d: %v", ErrCorruption, pos, rerr)
		}
		for i := 0; i < n; i++ {
			if want[i] != 0 {
				return span, nil
			}
			span++
		}
		pos += int64(n)
		if n == 0 {
			break
		}
	}
	return span, nil
}

// recover rebuilds the index by sequentially scanning the data file: a
// zero bucket_length marks a free span (its extent found by counting
// zero bytes forward), anything else decodes as a live row. A legitimate
// payload can itself contain zero bytes; only a zero bucket_length at a
// bucket's own start denotes free space, since live buckets are never
// zero-padded at their start, just their tail.
func (dt *DatTable) recover() error {
	entries := map[int64]Entry{}
	var freeSlots []Entry
	offset := dt.headerEnd
	idIdx, hasID := dt.layout.IDFieldIndex(), dt.layout.HasID()
	for offset < dt.fileSize {
		bucketLength, _, err := dt.readBucketLength(offset)
		if err != nil {
			return err
		}
		if bucketLength == 0 {
			span, err := dt.scanZeroRun(offset)
			if err != nil {
				return err
			}
			if span == 0 {
				return fmt.Errorf("%w: zero-length free span at %d during recovery", ErrCorruption, offset)
			}
			freeSlots = append(freeSlots, Entry{Offset: offset, Capacity: span})
			offset += span
			continue
		}
		row, capacity, _, ok, err := dt.readRecord(offset)
		if err != nil || !ok {
			return fmt.Errorf("%w: unreadable record during recovery at %d: %v", ErrCorruption, offset, err)
		}
		if hasID {
			id, err := identifierValue(row.Get(idIdx))
			if err != nil {
				return fmt.Errorf("%w: recovering identifier at %d: %v", ErrCorruption, offset, err)
			}
			entries[id] = Entry{Offset: offset, Length: 0, Capacity: capacity}
		}
		offset += capacity
	}
	if offset != dt.fileSize {
		if err := dt.file.Truncate(offset); err != nil {
			return fmt.Errorf("%w: truncating %s during recovery: %v", ErrCorruption, dt.file.Name(), err)
		}
		dt.fileSize = offset
	}
	if err := dt.index.Rebuild(entries, dt.fileSize); err != nil {
		return err
	}
	for _, fs := range freeSlots {
		if err := dt.index.Free(fs); err != nil {
			return err
		}
	}
	dt.opts.logger().Info("tabula: recovered dat table from sequential scan",
		"path", dt.file.Name(), "entries", len(entries), "free_spans", len(freeSlots))
	return nil
}

// --- allocation ---

func (dt *DatTable) allocate(minSize int64) (offset, capacity int64, err error) {
	if e, ok, err := dt.index.GetFree(minSize); err != nil {
		return 0, 0, err
	} else if ok {
		return e.Offset, e.Capacity, nil
	}
	return dt.fileSize, minSize, nil
}

func (dt *DatTable) writeRow(row Row) (Entry, error) {
	payload, err := dt.encodeRowPayload(row)
	if err != nil {
		return Entry{}, err
	}
	offset, capacity, err := dt.allocate(minBucketSize(len(payload)))
	if err != nil {
		return Entry{}, err
	}
	if err := dt.writeRecord(offset, capacity, payload); err != nil {
		return Entry{}, err
	}
	return Entry{Offset: offset, Length: int64(len(payload)), Capacity: capacity}, nil
}

// --- Table implementation ---

func (dt *DatTable) idIndex() (int, error) { return dt.layout.requireID() }

func (dt *DatTable) Get(id int64) (Row, bool, error) {
	e, ok, err := dt.index.TryGet(id)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, _, _, ok, err := dt.readRecord(e.Offset)
	return row, ok, err
}

func (dt *DatTable) Exists(id int64) (bool, error) {
	_, ok, err := dt.index.TryGet(id)
	return ok, err
}

func (dt *DatTable) GetRow(id int64) (Row, error) {
	row, ok, err := dt.Get(id)
	if err != nil {
		return Row{}, err
	}
	if !ok {
		return Row{}, fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	return row, nil
}

func (dt *DatTable) GetRows() ([]Row, error) {
	ids, err := dt.index.SortedIDs()
	if err != nil {
		return nil, err
	}
	return dt.rowsForIDs(ids)
}

func (dt *DatTable) rowsForIDs(ids []int64) ([]Row, error) {
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		row, err := dt.GetRow(id)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (dt *DatTable) GetRowsByIDs(ids []int64) ([]Row, error) { return dt.rowsForIDs(ids) }

func (dt *DatTable) GetRowAt(index int) (Row, error) {
	ids, err := dt.index.SortedIDs()
	if err != nil {
		return Row{}, err
	}
	if index < 0 || index >= len(ids) {
		return Row{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidArgument, index, len(ids))
	}
	return dt.GetRow(ids[index])
}

func (dt *DatTable) ExistsSearch(s *Search) (bool, error) {
	ids, err := dt.index.SortedIDs()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		row, err := dt.GetRow(id)
		if err != nil {
			return false, err
		}
		ok, err := s.Check(dt.layout, row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (dt *DatTable) matchingRows(s *Search) ([]Row, error) {
	if s == nil {
		s = NoneSearch()
	}
	rows, err := dt.GetRows()
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		ok, err := s.Check(dt.layout, row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (dt *DatTable) GetRowsSearch(s *Search, opts ResultOptions) ([]Row, error) {
	rows, err := dt.matchingRows(s)
	if err != nil {
		return nil, err
	}
	return opts.apply(dt.layout, rows)
}

func (dt *DatTable) GetRowSearch(s *Search, opts ResultOptions) (Row, error) {
	rows, err := dt.GetRowsSearch(s, opts.Combine(Limit(1)))
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("%w: no row matches search", ErrNotFound)
	}
	return rows[0], nil
}

func (dt *DatTable) Count(s *Search, opts ResultOptions) (int64, error) {
	rows, err := dt.GetRowsSearch(s, opts)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Find stages matching rows into a throwaway MemoryTable (toMemoryForOptions)
// so the identifier-extracting Find logic isn't duplicated per backend.
func (dt *DatTable) Find(s *Search, opts ResultOptions) ([]int64, error) {
	rows, err := dt.matchingRows(s)
	if err != nil {
		return nil, err
	}
	staged, err := toMemoryForOptions(dt.layout, rows)
	if err != nil {
		return nil, err
	}
	return staged.Find(NoneSearch(), opts)
}

func (dt *DatTable) GetNextUsedID(id int64) (int64, error) { return dt.index.GetNextUsedID(id) }
func (dt *DatTable) GetNextFreeID() (int64, error)         { return dt.index.GetNextFreeID() }

func (dt *DatTable) RowCount() int {
	n, _ := dt.index.Count()
	return n
}

func (dt *DatTable) Insert(row Row, writeTransaction bool) (int64, error) {
	idIdx, err := dt.idIndex()
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
		id, err = dt.index.GetNextFreeID()
		if err != nil {
			return 0, err
		}
		row, err = row.WithIdentifier(dt.layout, id)
		if err != nil {
			return 0, err
		}
	} else if _, ok, err := dt.index.TryGet(id); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: identifier %d", ErrDuplicateIdentifier, id)
	}
	e, err := dt.writeRow(row)
	if err != nil {
		return 0, err
	}
	if err := dt.index.Save(id, e); err != nil {
		return 0, err
	}
	if err := dt.index.MarkFileSize(dt.fileSize); err != nil {
		return 0, err
	}
	dt.bump()
	if writeTransaction && dt.translog != nil {
		dt.translog.Append(logEntry{kind: logInserted, id: id, row: row})
	}
	if sanityChecks {
		if err := dt.checkSane(); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (dt *DatTable) InsertMany(rows []Row, writeTransaction bool) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, err := dt.Insert(row, writeTransaction)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// writeInPlaceOrRelocate rewrites id's record, reusing its existing
// capacity when the new payload still fits and relocating (freeing the old
// slot, allocating a new one) otherwise.
func (dt *DatTable) writeInPlaceOrRelocate(id int64, row Row) error {
	old, ok, err := dt.index.TryGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	payload, err := dt.encodeRowPayload(row)
	if err != nil {
		return err
	}
	if minBucketSize(len(payload)) <= old.Capacity {
		if err := dt.writeRecord(old.Offset, old.Capacity, payload); err != nil {
			return err
		}
		return dt.index.Save(id, Entry{Offset: old.Offset, Length: int64(len(payload)), Capacity: old.Capacity})
	}
	if err := dt.markFree(old.Offset, old.Capacity); err != nil {
		return err
	}
	e, err := dt.writeRow(row)
	if err != nil {
		return err
	}
	return dt.index.Save(id, e)
}

func (dt *DatTable) Update(row Row, writeTransaction bool) error {
	idIdx, err := dt.idIndex()
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
	if err := dt.writeInPlaceOrRelocate(id, row); err != nil {
		return err
	}
	if err := dt.index.MarkFileSize(dt.fileSize); err != nil {
		return err
	}
	dt.bump()
	if writeTransaction && dt.translog != nil {
		dt.translog.Append(logEntry{kind: logUpdated, id: id, row: row})
	}
	return nil
}

func (dt *DatTable) UpdateMany(rows []Row, writeTransaction bool) error {
	for _, row := range rows {
		if err := dt.Update(row, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (dt *DatTable) Replace(row Row, writeTransaction bool) error {
	idIdx, err := dt.idIndex()
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
	if _, ok, err := dt.index.TryGet(id); err != nil {
		return err
	} else if ok {
		if err := dt.writeInPlaceOrRelocate(id, row); err != nil {
			return err
		}
	} else {
		e, err := dt.writeRow(row)
		if err != nil {
			return err
		}
		if err := dt.index.Save(id, e); err != nil {
			return err
		}
	}
	if err := dt.index.MarkFileSize(dt.fileSize); err != nil {
		return err
	}
	dt.bump()
	if writeTransaction && dt.translog != nil {
		dt.translog.Append(logEntry{kind: logReplaced, id: id, row: row})
	}
	return nil
}

func (dt *DatTable) ReplaceMany(rows []Row, writeTransaction bool) error {
	for _, row := range rows {
		if err := dt.Replace(row, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (dt *DatTable) Delete(id int64, writeTransaction bool) error {
	e, ok, err := dt.index.DeleteEntry(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: identifier %d", ErrNotFound, id)
	}
	if err := dt.markFree(e.Offset, e.Capacity); err != nil {
		return err
	}
	dt.bump()
	if writeTransaction && dt.translog != nil {
		dt.translog.Append(logEntry{kind: logDeleted, id: id})
	}
	return nil
}

func (dt *DatTable) DeleteMany(ids []int64, writeTransaction bool) error {
	for _, id := range ids {
		if err := dt.Delete(id, writeTransaction); err != nil {
			return err
		}
	}
	return nil
}

func (dt *DatTable) TryDelete(s *Search, writeTransaction bool) (int, error) {
	ids, err := dt.Find(s, nil)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		e, ok, err := dt.index.DeleteEntry(id)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if err := dt.markFree(e.Offset, e.Capacity); err != nil {
			return n, err
		}
		n++
		if writeTransaction && dt.translog != nil {
			dt.translog.Append(logEntry{kind: logDeleted, id: id})
		}
	}
	if n > 0 {
		dt.bump()
	}
	return n, nil
}

func (dt *DatTable) SetValue(field string, value Value) error {
	idx, err := dt.layout.requireField(field)
	if err != nil {
		return err
	}
	ids, err := dt.index.SortedIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		row, err := dt.GetRow(id)
		if err != nil {
			return err
		}
		nr, err := row.WithValue(idx, value)
		if err != nil {
			return err
		}
		if err := dt.writeInPlaceOrRelocate(id, nr); err != nil {
			return err
		}
	}
	dt.bump()
	return dt.index.MarkFileSize(dt.fileSize)
}

func (dt *DatTable) Sum(field string, s *Search) (float64, error) {
	idx, err := dt.layout.requireField(field)
	if err != nil {
		return 0, err
	}
	rows, err := dt.matchingRows(s)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, row := range rows {
		total += numericOf(row.Get(idx))
	}
	return total, nil
}

func (dt *DatTable) Min(field string, s *Search) (Value, bool, error) { return dt.extreme(field, s, -1) }
func (dt *DatTable) Max(field string, s *Search) (Value, bool, error) { return dt.extreme(field, s, 1) }

func (dt *DatTable) extreme(field string, s *Search, want int) (Value, bool, error) {
	idx, err := dt.layout.requireField(field)
	if err != nil {
		return Value{}, false, err
	}
	rows, err := dt.matchingRows(s)
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

func (dt *DatTable) Distinct(field string, s *Search) ([]Value, error) {
	idx, err := dt.layout.requireField(field)
	if err != nil {
		return nil, err
	}
	rows, err := dt.matchingRows(s)
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

// Clear truncates the data file back to its header and discards the
// index, optionally restarting identifier allocation from 1 (resetIDs is
// always honored here since the index is rebuilt empty either way).
func (dt *DatTable) Clear(resetIDs bool) error {
	_ = resetIDs
	if err := dt.file.Truncate(dt.headerEnd); err != nil {
		return fmt.Errorf("%w: truncating %s: %v", ErrCorruption, dt.file.Name(), err)
	}
	dt.fileSize = dt.headerEnd
	if err := dt.index.Rebuild(nil, dt.fileSize); err != nil {
		return err
	}
	dt.bump()
	return nil
}

// SetRows bulk-replaces the table's contents: clears, then writes every
// row fresh, without consulting the transaction log.
func (dt *DatTable) SetRows(rows []Row) error {
	if err := dt.Clear(false); err != nil {
		return err
	}
	idIdx, err := dt.idIndex()
	if err != nil {
		return err
	}
	for _, row := range rows {
		id, err := identifierValue(row.Get(idIdx))
		if err != nil {
			return err
		}
		e, err := dt.writeRow(row)
		if err != nil {
			return err
		}
		if err := dt.index.Save(id, e); err != nil {
			return err
		}
	}
	dt.bump()
	return dt.index.MarkFileSize(dt.fileSize)
}

// SetTransactionLog installs the log mutations append to when
// writeTransaction is true.
func (dt *DatTable) SetTransactionLog(log TransactionLog) { dt.translog = log }

// checkSane rescans the whole file under the index and panics-free reports
// a corruption error if the index and data file disagree, the expensive
// self-check the sanityChecks switch enables for tests.
func (dt *DatTable) checkSane() error {
	ids, err := dt.index.SortedIDs()
	if err != nil {
		return err
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return fmt.Errorf("%w: duplicate identifier %d in index", ErrCorruption, sorted[i])
		}
	}
	for _, id := range ids {
		if _, err := dt.GetRow(id); err != nil {
			return fmt.Errorf("%w: sanity check: identifier %d: %v", ErrCorruption, id, err)
		}
	}
	return nil
}

// Path returns the data file's path, for diagnostics and the inspection
// CLI.
func (dt *DatTable) Path() string { return dt.file.Name() }

// IndexPath returns the sidecar index's path.
func (dt *DatTable) IndexPath() string { return dt.Path() + indexSuffix }

var _ Table = (*DatTable)(nil)
