package tabula

import "testing"

func idField() FieldProperties {
	return FieldProperties{Name: "ID", DataType: Int64, Flags: FlagID | FlagAutoIncrement}
}

func TestNewLayoutBasic(t *testing.T) {
	l, err := NewLayout("Person", []FieldProperties{
		idField(),
		{Name: "Name", DataType: String},
		{Name: "Age", DataType: Int32},
	})
	tcheck(t, err, "NewLayout")
	if l.FieldCount() != 3 {
		t.Fatalf("FieldCount = %d, want 3", l.FieldCount())
	}
	if !l.HasID() || l.IDFieldIndex() != 0 {
		t.Fatalf("expected ID field at index 0, got %d (has=%v)", l.IDFieldIndex(), l.HasID())
	}
	f, ok := l.Field("name")
	if !ok || f.Name != "Name" {
		t.Fatalf("case-insensitive Field lookup failed: %+v, %v", f, ok)
	}
}

func TestNewLayoutDuplicateName(t *testing.T) {
	_, err := NewLayout("X", []FieldProperties{
		{Name: "A", DataType: Int32},
		{Name: "a", DataType: Int32},
	})
	tneed(t, err, ErrInvalidArgument, "duplicate field name")
}

func TestNewLayoutMultipleID(t *testing.T) {
	_, err := NewLayout("X", []FieldProperties{
		{Name: "A", DataType: Int64, Flags: FlagID},
		{Name: "B", DataType: Int64, Flags: FlagID},
	})
	tneed(t, err, ErrInvalidArgument, "multiple ID fields")
}

func TestNewLayoutAutoIncrementNotID(t *testing.T) {
	_, err := NewLayout("X", []FieldProperties{
		{Name: "A", DataType: Int64, Flags: FlagAutoIncrement},
	})
	tneed(t, err, ErrInvalidArgument, "AutoIncrement without ID")
}

func TestFieldNormalizeDefaults(t *testing.T) {
	l, err := NewLayout("X", []FieldProperties{
		idField(),
		{Name: "Label", DataType: String},
		{Name: "When", DataType: DateTime},
	})
	tcheck(t, err, "NewLayout")
	label, _ := l.Field("Label")
	if label.NameAtDatabase != "Label" {
		t.Fatalf("NameAtDatabase default = %q, want Label", label.NameAtDatabase)
	}
	if label.StringEncoding != UTF8 {
		t.Fatalf("StringEncoding default = %v, want UTF8", label.StringEncoding)
	}
	when, _ := l.Field("When")
	if when.DateTimeType != BigIntHumanReadable {
		t.Fatalf("DateTimeType default = %v, want BigIntHumanReadable", when.DateTimeType)
	}
	if when.DateTimeKind != Utc {
		t.Fatalf("DateTimeKind default = %v, want Utc", when.DateTimeKind)
	}
}

func TestFieldValidateEnumUserRequireValueType(t *testing.T) {
	_, err := NewLayout("X", []FieldProperties{
		{Name: "E", DataType: Enum},
	})
	tneed(t, err, ErrInvalidArgument, "Enum without ValueType")

	_, err = NewLayout("X", []FieldProperties{
		{Name: "U", DataType: User},
	})
	tneed(t, err, ErrInvalidArgument, "User without ValueType")
}

func TestCompatibleAcceptsAlternativeNames(t *testing.T) {
	a, err := NewLayout("X", []FieldProperties{
		{Name: "Email", DataType: String},
	})
	tcheck(t, err, "NewLayout a")
	b, err := NewLayout("X", []FieldProperties{
		{Name: "EmailAddress", DataType: String, AlternativeNames: []string{"Email"}},
	})
	tcheck(t, err, "NewLayout b")
	if !a.Compatible(b) {
		t.Fatalf("expected a and b compatible via alternative name")
	}
	tcheck(t, a.CheckCompatible(b), "CheckCompatible")
}

func TestCheckCompatibleFieldCountMismatch(t *testing.T) {
	a, err := NewLayout("X", []FieldProperties{{Name: "A", DataType: Int32}})
	tcheck(t, err, "NewLayout a")
	b, err := NewLayout("X", []FieldProperties{{Name: "A", DataType: Int32}, {Name: "B", DataType: Int32}})
	tcheck(t, err, "NewLayout b")
	tneed(t, a.CheckCompatible(b), ErrLayoutMismatch, "field count mismatch")
}

func TestCheckCompatibleDataTypeMismatch(t *testing.T) {
	a, err := NewLayout("X", []FieldProperties{{Name: "A", DataType: Int32}})
	tcheck(t, err, "NewLayout a")
	b, err := NewLayout("X", []FieldProperties{{Name: "A", DataType: Int64}})
	tcheck(t, err, "NewLayout b")
	tneed(t, a.CheckCompatible(b), ErrLayoutMismatch, "data type mismatch")
}

func TestRequireFieldMissing(t *testing.T) {
	l, err := NewLayout("X", []FieldProperties{{Name: "A", DataType: Int32}})
	tcheck(t, err, "NewLayout")
	_, err = l.requireField("B")
	tneed(t, err, ErrLayoutMismatch, "missing field")
}
