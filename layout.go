package tabula

import (
	"fmt"
	"strings"
)

// Layout is an ordered schema: a named list of field descriptors plus the
// position of the single identifier field, if any.
type Layout struct {
	Name         string
	Fields       []FieldProperties
	idFieldIndex int // -1 if no ID field
}

// NewLayout builds a Layout from a name and an ordered field list,
// validating the invariants from the data model: unique names
// (case-insensitive), at most one ID field, AutoIncrement only on the ID
// field, and per-field DateTime/Enum/User consistency.
func NewLayout(name string, fields []FieldProperties) (*Layout, error) {
	l := &Layout{Name: name, idFieldIndex: -1}
	seen := map[string]int{}
	for i, f := range fields {
		f = f.normalize()
		if err := f.validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(f.Name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: duplicate field name %q (position %d and %d)", ErrInvalidArgument, f.Name, prev, i)
		}
		seen[key] = i
		if f.Flags.has(FlagID) {
			if l.idFieldIndex >= 0 {
				return nil, fmt.Errorf("%w: more than one ID field: %q and %q", ErrInvalidArgument, fields[l.idFieldIndex].Name, f.Name)
			}
			l.idFieldIndex = i
		}
		l.Fields = append(l.Fields, f)
	}
	for i, f := range l.Fields {
		if f.Flags.has(FlagAutoIncrement) && i != l.idFieldIndex {
			return nil, fmt.Errorf("%w: AutoIncrement field %q must be the ID field", ErrInvalidArgument, f.Name)
		}
	}
	return l, nil
}

// FieldCount is the number of fields in the layout.
func (l *Layout) FieldCount() int { return len(l.Fields) }

// IDFieldIndex returns the position of the identifier field, or -1 if the
// layout has none.
func (l *Layout) IDFieldIndex() int { return l.idFieldIndex }

// HasID reports whether the layout has an identifier field.
func (l *Layout) HasID() bool { return l.idFieldIndex >= 0 }

// requireID returns the identifier field index or an error, used by
// operations that need one.
func (l *Layout) requireID() (int, error) {
	if l.idFieldIndex < 0 {
		return 0, fmt.Errorf("%w: layout %q has no identifier field", ErrInvalidArgument, l.Name)
	}
	return l.idFieldIndex, nil
}

// FieldIndex returns the position of the field named name (consulting
// alternative names, case-insensitively), or -1 if absent.
func (l *Layout) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f.hasAlternativeName(name) {
			return i
		}
	}
	return -1
}

// Field returns the field descriptor named name, or ok=false if absent.
func (l *Layout) Field(name string) (FieldProperties, bool) {
	i := l.FieldIndex(name)
	if i < 0 {
		return FieldProperties{}, false
	}
	return l.Fields[i], true
}

// requireField resolves name to a field index or ErrLayoutMismatch.
func (l *Layout) requireField(name string) (int, error) {
	i := l.FieldIndex(name)
	if i < 0 {
		return 0, fmt.Errorf("%w: field %q not present in layout %q", ErrLayoutMismatch, name, l.Name)
	}
	return i, nil
}

// typeAtDatabaseEqual compares two fields' physical representation under
// the date-time-variant mapping rules in the data model.
func typeAtDatabaseEqual(a, b FieldProperties) bool {
	if a.TypeAtDatabase != b.TypeAtDatabase {
		return false
	}
	if (a.DataType == DateTime || a.DataType == TimeSpan) && (b.DataType == DateTime || b.DataType == TimeSpan) {
		return a.DateTimeType == b.DateTimeType
	}
	return true
}

// Compatible reports whether l and other describe the same fields in the
// same order: name match is case-insensitive and consults alternative
// names on either side, data types must match, and physical
// representations must map identically under the date-time-variant rules.
func (l *Layout) Compatible(other *Layout) bool {
	if len(l.Fields) != len(other.Fields) {
		return false
	}
	for i := range l.Fields {
		a, b := l.Fields[i], other.Fields[i]
		if !a.hasAlternativeName(b.Name) && !b.hasAlternativeName(a.Name) && !strings.EqualFold(a.Name, b.Name) {
			return false
		}
		if a.DataType != b.DataType {
			return false
		}
		if !typeAtDatabaseEqual(a, b) {
			return false
		}
	}
	return true
}

// CheckCompatible is Compatible but returns a descriptive
// ErrLayoutMismatch naming the first mismatching field instead of a bool.
func (l *Layout) CheckCompatible(other *Layout) error {
	if len(l.Fields) != len(other.Fields) {
		return fmt.Errorf("%w: field count %d (expected) != %d (actual)", ErrLayoutMismatch, len(l.Fields), len(other.Fields))
	}
	for i := range l.Fields {
		a, b := l.Fields[i], other.Fields[i]
		if !a.hasAlternativeName(b.Name) && !b.hasAlternativeName(a.Name) && !strings.EqualFold(a.Name, b.Name) {
			return fmt.Errorf("%w: field %d name %q (expected) != %q (actual)", ErrLayoutMismatch, i, a.Name, b.Name)
		}
		if a.DataType != b.DataType {
			return fmt.Errorf("%w: field %q data type %s (expected) != %s (actual)", ErrLayoutMismatch, a.Name, a.DataType, b.DataType)
		}
		if !typeAtDatabaseEqual(a, b) {
			return fmt.Errorf("%w: field %q storage type %s (expected) != %s (actual)", ErrLayoutMismatch, a.Name, a.TypeAtDatabase, b.TypeAtDatabase)
		}
	}
	return nil
}
