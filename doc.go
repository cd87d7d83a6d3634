/*
Package tabula is an embedded, typed-row storage engine: an in-memory
Table, a single-file binary Table (DatTable) with crash recovery, and a
reader-preferring concurrency wrapper (ConcurrentTable) layered over either.

# Data model

A Layout is an ordered list of FieldProperties describing a row's columns:
a logical DataType (Bool, Int32, String, DateTime, ...), an optional
physical storage override (TypeAtDatabase), and structural flags (ID,
AutoIncrement, Unique, Indexed). A Row is a fixed-length tuple of Values
interpreted against a Layout; Values are a closed tagged union rather than
a bare interface{}, so sort/compare/hash dispatch never needs reflection
once a Layout is built.

	layout, _ := tabula.NewLayout("widget", []tabula.FieldProperties{
		{Name: "ID", DataType: tabula.Int64, Flags: tabula.FlagID | tabula.FlagAutoIncrement},
		{Name: "Name", DataType: tabula.String},
	})

LayoutFromStruct builds a Layout from a Go struct's `tabula:"..."` tags
instead, for callers that would rather describe their schema as a type.

# Tables

MemoryTable and DatTable both implement the Table interface: insert,
update, replace, delete, and a Search/ResultOptions query pipeline
(FieldEquals, FieldLike, And/Or/Not, SortAsc/SortDesc, Group, Limit,
Offset). DatTable persists rows to a single data file plus a sidecar
DatIndex (an embedded go.etcd.io/bbolt database) mapping identifiers to
byte offsets; ConcurrentTable wraps either one to let many readers proceed
together while serializing writers; a writer waits up to
Options.MaxWriterWait for in-flight readers to drain, and past that bound
bars new readers from joining so it never starves for longer than one
long-running reader.

# Persistence format

A data file opens with a header naming its Layout and fields, followed by
a sequence of row buckets: a single varint bucket_length prefix (the
bucket's total size, prefix included) followed by the encoded payload and
zero padding out to that length. A bucket_length of zero marks a free
bucket spanning the run of consecutive zero bytes starting there. DatTable runs a sequential-scan
recovery over this structure whenever its index's freshness stamp doesn't
match the data file's size, walking bucket by bucket and treating a
zero-length prefix as the start of a free span.

# Transaction log

Insert/Update/Replace/Delete take a writeTransaction bool; when true and a
TransactionLog is installed, the mutation is appended to it.
MemoryTransactionLog and LogDrainer are a reference implementation and
background drain worker; real durability, queuing and replication are
left to that external collaborator.
*/
package tabula
