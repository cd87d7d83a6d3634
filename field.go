package tabula

import (
	"fmt"
	"strings"
)

// FieldProperties describes one column of a Layout.
type FieldProperties struct {
	Name            string
	NameAtDatabase  string
	DataType        DataType
	TypeAtDatabase  DataType
	Flags           FieldFlags
	ValueType       string // for Enum/User
	StringEncoding  StringEncoding
	DateTimeKind    DateTimeKind
	DateTimeType    DateTimeType
	MaximumLength   int // String/Binary; 0 means unlimited
	IsNullable      bool
	DefaultValue    any
	Description     string
	DisplayFormat   string
	AlternativeNames []string
}

// normalize fills in a field's defaults: NameAtDatabase defaults to Name,
// TypeAtDatabase defaults to the logical DataType's storage mapping,
// String/User/Char fields default to UTF8, DateTime/TimeSpan fields default
// to BigIntHumanReadable, and DateTime fields without an explicit
// DateTimeKind default to Utc.
func (f FieldProperties) normalize() FieldProperties {
	if f.NameAtDatabase == "" {
		f.NameAtDatabase = f.Name
	}
	if f.TypeAtDatabase == 0 {
		f.TypeAtDatabase = f.DataType.storageDataType()
	}
	if f.StringEncoding == 0 && (f.DataType == String || f.DataType == User || f.DataType == Char) {
		f.StringEncoding = UTF8
	}
	if (f.DataType == DateTime || f.DataType == TimeSpan) && f.DateTimeType == 0 {
		f.DateTimeType = BigIntHumanReadable
	}
	if f.DataType == DateTime && f.DateTimeKind == 0 {
		f.DateTimeKind = Utc
	}
	return f
}

// validate checks the per-field invariants from the data model: Enum/User
// carry a ValueType, User stores as String, and TypeAtDatabase agrees with
// DateTimeType's mapping rules.
func (f FieldProperties) validate() error {
	if (f.DataType == Enum || f.DataType == User) && f.ValueType == "" {
		return fmt.Errorf("%w: field %q of type %s requires a value type", ErrInvalidArgument, f.Name, f.DataType)
	}
	if f.DataType == User && f.TypeAtDatabase != String {
		return fmt.Errorf("%w: field %q of type User must store as String, got %s", ErrInvalidArgument, f.Name, f.TypeAtDatabase)
	}
	if f.DataType == Enum && f.TypeAtDatabase != Int64 {
		return fmt.Errorf("%w: field %q of type Enum must store as Int64, got %s", ErrInvalidArgument, f.Name, f.TypeAtDatabase)
	}
	if f.DataType == DateTime || f.DataType == TimeSpan {
		want := f.DateTimeType.storageDataType(f.DataType)
		if f.DateTimeType != Native && f.TypeAtDatabase != want {
			return fmt.Errorf("%w: field %q with date_time_type %s must store as %s, got %s", ErrInvalidArgument, f.Name, f.DateTimeType, want, f.TypeAtDatabase)
		}
	}
	if f.Flags.has(FlagAutoIncrement) && !f.Flags.has(FlagID) {
		return fmt.Errorf("%w: field %q has AutoIncrement without ID", ErrInvalidArgument, f.Name)
	}
	return nil
}

// hasAlternativeName reports whether name case-insensitively matches the
// field's own name or one of its alternative names.
func (f FieldProperties) hasAlternativeName(name string) bool {
	if strings.EqualFold(f.Name, name) {
		return true
	}
	for _, alt := range f.AlternativeNames {
		if strings.EqualFold(alt, name) {
			return true
		}
	}
	return false
}
