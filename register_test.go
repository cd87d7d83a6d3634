package tabula

import (
	"testing"
	"time"
)

type registerPerson struct {
	ID      int64 `tabula:"id,autoincrement"`
	Name    string
	Age     int32
	Email   *string
	Created time.Time
	Tags    []byte
}

func TestLayoutFromStructBasic(t *testing.T) {
	l, err := LayoutFromStruct(registerPerson{})
	tcheck(t, err, "LayoutFromStruct")
	if l.Name != "registerPerson" {
		t.Fatalf("Layout.Name = %q, want registerPerson", l.Name)
	}
	if l.FieldCount() != 6 {
		t.Fatalf("FieldCount = %d, want 6", l.FieldCount())
	}
	idx, err := l.requireID()
	tcheck(t, err, "requireID")
	if l.Fields[idx].Name != "ID" {
		t.Fatalf("id field = %q, want ID", l.Fields[idx].Name)
	}
	emailField, ok := l.Field("Email")
	if !ok || !emailField.IsNullable {
		t.Fatalf("Email field should be nullable via pointer type, got %+v ok=%v", emailField, ok)
	}
	createdField, _ := l.Field("Created")
	if createdField.DataType != DateTime {
		t.Fatalf("Created DataType = %v, want DateTime", createdField.DataType)
	}
	tagsField, _ := l.Field("Tags")
	if tagsField.DataType != Binary {
		t.Fatalf("Tags DataType = %v, want Binary", tagsField.DataType)
	}
}

func TestLayoutFromStructSkipsDashTag(t *testing.T) {
	type withSkip struct {
		ID      int64 `tabula:"id,autoincrement"`
		Name    string
		private string `tabula:"-"` //nolint:unused
	}
	_ = withSkip{}.private
	l, err := LayoutFromStruct(withSkip{})
	tcheck(t, err, "LayoutFromStruct")
	if l.FieldCount() != 2 {
		t.Fatalf("FieldCount = %d, want 2 (dash-tagged field skipped)", l.FieldCount())
	}
}

func TestLayoutFromStructNameOverrideAndOptions(t *testing.T) {
	type tagged struct {
		ID   int64  `tabula:"id,autoincrement"`
		Name string `tabula:"full_name,unique,index,max=40"`
	}
	l, err := LayoutFromStruct(tagged{})
	tcheck(t, err, "LayoutFromStruct")
	f, ok := l.Field("Name")
	if !ok {
		t.Fatalf("expected field Name to exist")
	}
	if f.NameAtDatabase != "full_name" {
		t.Fatalf("NameAtDatabase = %q, want full_name", f.NameAtDatabase)
	}
	if f.Flags&FlagUnique == 0 || f.Flags&FlagIndexed == 0 {
		t.Fatalf("expected Unique and Indexed flags, got %v", f.Flags)
	}
	if f.MaximumLength != 40 {
		t.Fatalf("MaximumLength = %d, want 40", f.MaximumLength)
	}
}

func TestLayoutFromStructEnumAndUserTags(t *testing.T) {
	type status int64
	type withEnum struct {
		ID     int64  `tabula:"id,autoincrement"`
		Status status `tabula:"enum"`
		Color  string `tabula:"user"`
	}
	l, err := LayoutFromStruct(withEnum{})
	tcheck(t, err, "LayoutFromStruct")
	f, _ := l.Field("Status")
	if f.DataType != Enum {
		t.Fatalf("Status DataType = %v, want Enum", f.DataType)
	}
	f2, _ := l.Field("Color")
	if f2.DataType != User {
		t.Fatalf("Color DataType = %v, want User", f2.DataType)
	}
}

func TestLayoutFromStructUnsupportedType(t *testing.T) {
	type bad struct {
		ID int64     `tabula:"id,autoincrement"`
		M  chan bool // unsupported
	}
	_, err := LayoutFromStruct(bad{})
	tneed(t, err, ErrInvalidArgument, "unsupported Go type")
}

func TestParseTagUnknownOption(t *testing.T) {
	_, err := parseTag("full_name,bogus")
	tneed(t, err, ErrInvalidArgument, "unknown tag option")
}

func TestParseTagInvalidMax(t *testing.T) {
	_, err := parseTag("max=notanumber")
	tneed(t, err, ErrInvalidArgument, "invalid max length")
}

func TestRowFromStructAndScanRowRoundTrip(t *testing.T) {
	l, err := LayoutFromStruct(registerPerson{})
	tcheck(t, err, "LayoutFromStruct")
	email := "ann@example.com"
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	src := registerPerson{ID: 1, Name: "Ann", Age: 30, Email: &email, Created: when, Tags: []byte{1, 2, 3}}

	row, err := RowFromStruct(l, &src)
	tcheck(t, err, "RowFromStruct")

	var dst registerPerson
	tcheck(t, ScanRow(l, row, &dst), "ScanRow")

	if dst.ID != 1 || dst.Name != "Ann" || dst.Age != 30 {
		t.Fatalf("ScanRow basic fields = %+v", dst)
	}
	if dst.Email == nil || *dst.Email != email {
		t.Fatalf("ScanRow Email = %v, want %q", dst.Email, email)
	}
	if !dst.Created.Equal(when) {
		t.Fatalf("ScanRow Created = %v, want %v", dst.Created, when)
	}
	if string(dst.Tags) != string([]byte{1, 2, 3}) {
		t.Fatalf("ScanRow Tags = %v", dst.Tags)
	}
}

func TestRowFromStructNilPointerField(t *testing.T) {
	l, err := LayoutFromStruct(registerPerson{})
	tcheck(t, err, "LayoutFromStruct")
	src := registerPerson{ID: 1, Name: "Ann", Age: 30, Email: nil, Created: time.Now()}
	row, err := RowFromStruct(l, &src)
	tcheck(t, err, "RowFromStruct")
	idx := l.FieldIndex("Email")
	if !row.Get(idx).IsNull() {
		t.Fatalf("expected nil Email pointer to become a null Value")
	}

	var dst registerPerson
	tcheck(t, ScanRow(l, row, &dst), "ScanRow")
	if dst.Email != nil {
		t.Fatalf("expected null Value to scan back to a nil pointer, got %v", dst.Email)
	}
}

func TestRowFromStructMissingFieldErrors(t *testing.T) {
	l, err := LayoutFromStruct(registerPerson{})
	tcheck(t, err, "LayoutFromStruct")
	type mismatched struct {
		ID int64
	}
	_, err = RowFromStruct(l, &mismatched{ID: 1})
	tneed(t, err, ErrInvalidArgument, "RowFromStruct with missing struct field")
}

func TestScanRowRequiresNonNilPointer(t *testing.T) {
	l, err := LayoutFromStruct(registerPerson{})
	tcheck(t, err, "LayoutFromStruct")
	row := Row{}
	err = ScanRow(l, row, registerPerson{})
	tneed(t, err, ErrInvalidArgument, "ScanRow requires a pointer")
}
