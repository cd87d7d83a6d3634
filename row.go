package tabula

import (
	"fmt"
)

// Row is a fixed-length, positionally-ordered, logically immutable tuple of
// Values. A Row is always interpreted against a Layout, but does not own
// one: operations that need the schema take it as a read-only parameter
// instead of the Row holding a back-reference to its Layout.
type Row struct {
	values []Value
}

// NewRow builds a Row for layout from values, which must match the
// layout's field count and, position-for-position, its DataTypes.
func NewRow(layout *Layout, values []Value) (Row, error) {
	if len(values) != len(layout.Fields) {
		return Row{}, fmt.Errorf("%w: row has %d values, layout %q has %d fields", ErrInvalidArgument, len(values), layout.Name, len(layout.Fields))
	}
	for i, v := range values {
		if v.typ != layout.Fields[i].DataType {
			return Row{}, fmt.Errorf("%w: field %q expects %s, got %s", ErrInvalidArgument, layout.Fields[i].Name, layout.Fields[i].DataType, v.typ)
		}
	}
	cp := make([]Value, len(values))
	copy(cp, values)
	return Row{values: cp}, nil
}

// Get returns the value at position i.
func (r Row) Get(i int) Value { return r.values[i] }

// Len is the number of values in the row.
func (r Row) Len() int { return len(r.values) }

// GetIdentifier returns the row's identifier under layout, or an error if
// layout has no ID field or the field is not an integer type.
func (r Row) GetIdentifier(layout *Layout) (int64, error) {
	idx, err := layout.requireID()
	if err != nil {
		return 0, err
	}
	return identifierValue(r.values[idx])
}

func identifierValue(v Value) (int64, error) {
	switch v.typ {
	case Int8, Int16, Int32, Int64, Enum:
		return v.i, nil
	case UInt8, UInt16, UInt32, UInt64:
		if v.u > (1<<63 - 1) {
			return 0, fmt.Errorf("%w: identifier %d overflows int64", ErrInvalidArgument, v.u)
		}
		return int64(v.u), nil
	default:
		return 0, fmt.Errorf("%w: identifier field has non-integer type %s", ErrInvalidArgument, v.typ)
	}
}

// WithIdentifier returns a new Row with the identifier field under layout
// set to newID, leaving all other fields unchanged.
func (r Row) WithIdentifier(layout *Layout, newID int64) (Row, error) {
	idx, err := layout.requireID()
	if err != nil {
		return Row{}, err
	}
	return r.WithValue(idx, identifierAs(layout.Fields[idx].DataType, newID))
}

func identifierAs(dt DataType, id int64) Value {
	switch dt {
	case Int8:
		return NewInt8(int8(id))
	case Int16:
		return NewInt16(int16(id))
	case Int32:
		return NewInt32(int32(id))
	case UInt8:
		return NewUInt8(uint8(id))
	case UInt16:
		return NewUInt16(uint16(id))
	case UInt32:
		return NewUInt32(uint32(id))
	case UInt64:
		return NewUInt64(uint64(id))
	default:
		return NewInt64(id)
	}
}

// WithValue returns a new Row with the value at position i replaced by v.
func (r Row) WithValue(i int, v Value) (Row, error) {
	if i < 0 || i >= len(r.values) {
		return Row{}, fmt.Errorf("%w: field index %d out of range [0,%d)", ErrInvalidArgument, i, len(r.values))
	}
	cp := make([]Value, len(r.values))
	copy(cp, r.values)
	cp[i] = v
	return Row{values: cp}, nil
}

// EqualsRowwise reports whether r and o have identical values at every
// position. Rows of different lengths are never equal.
func (r Row) EqualsRowwise(o Row) bool {
	if len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if !r.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// Project returns a new, layout-less Row-like slice containing only the
// named fields, in the order requested, for callers (CSV/SQL collaborators)
// that want a subset of columns.
func (r Row) Project(layout *Layout, names []string) ([]Value, error) {
	out := make([]Value, len(names))
	for i, name := range names {
		idx, err := layout.requireField(name)
		if err != nil {
			return nil, err
		}
		out[i] = r.values[idx]
	}
	return out, nil
}

// hashBytes returns a byte-wise encoding of the row's values under layout,
// used to make rows hashable (e.g., for Group dedup of values other than a
// plain field, or test fixtures).
func (r Row) hashBytes(layout *Layout) []byte {
	var buf []byte
	for i, f := range layout.Fields {
		buf = appendValueBytesForHash(buf, f, r.values[i])
	}
	return buf
}
