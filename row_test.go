package tabula

import "testing"

func personLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := NewLayout("Person", []FieldProperties{
		idField(),
		{Name: "Name", DataType: String},
		{Name: "Age", DataType: Int32},
	})
	tcheck(t, err, "NewLayout")
	return l
}

func TestNewRowFieldCountMismatch(t *testing.T) {
	l := personLayout(t)
	_, err := NewRow(l, []Value{NewInt64(0), NewString("a")})
	tneed(t, err, ErrInvalidArgument, "row with too few values")
}

func TestNewRowTypeMismatch(t *testing.T) {
	l := personLayout(t)
	_, err := NewRow(l, []Value{NewInt64(0), NewInt32(1), NewInt32(2)})
	tneed(t, err, ErrInvalidArgument, "row field type mismatch")
}

func TestRowGetIdentifier(t *testing.T) {
	l := personLayout(t)
	row, err := NewRow(l, []Value{NewInt64(7), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow")
	id, err := row.GetIdentifier(l)
	tcompare(t, err, id, int64(7), "GetIdentifier")
}

func TestRowWithIdentifier(t *testing.T) {
	l := personLayout(t)
	row, err := NewRow(l, []Value{NewInt64(0), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow")
	row, err = row.WithIdentifier(l, 9)
	tcheck(t, err, "WithIdentifier")
	id, err := row.GetIdentifier(l)
	tcompare(t, err, id, int64(9), "GetIdentifier after WithIdentifier")
}

func TestRowWithValue(t *testing.T) {
	l := personLayout(t)
	row, err := NewRow(l, []Value{NewInt64(1), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow")
	row, err = row.WithValue(2, NewInt32(31))
	tcheck(t, err, "WithValue")
	if row.Get(2).Int() != 31 {
		t.Fatalf("Age = %d, want 31", row.Get(2).Int())
	}

	_, err = row.WithValue(99, NewInt32(0))
	tneed(t, err, ErrInvalidArgument, "out-of-range field index")
}

func TestRowEqualsRowwise(t *testing.T) {
	l := personLayout(t)
	a, err := NewRow(l, []Value{NewInt64(1), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow a")
	b, err := NewRow(l, []Value{NewInt64(1), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow b")
	if !a.EqualsRowwise(b) {
		t.Fatalf("expected equal rows")
	}
	c, err := NewRow(l, []Value{NewInt64(1), NewString("Bob"), NewInt32(30)})
	tcheck(t, err, "NewRow c")
	if a.EqualsRowwise(c) {
		t.Fatalf("expected different rows")
	}
}

func TestRowProject(t *testing.T) {
	l := personLayout(t)
	row, err := NewRow(l, []Value{NewInt64(1), NewString("Ann"), NewInt32(30)})
	tcheck(t, err, "NewRow")
	vals, err := row.Project(l, []string{"Age", "Name"})
	tcheck(t, err, "Project")
	if len(vals) != 2 || vals[0].Int() != 30 || vals[1].String() != "Ann" {
		t.Fatalf("Project result = %+v", vals)
	}
	_, err = row.Project(l, []string{"Missing"})
	tneed(t, err, ErrLayoutMismatch, "Project with missing field")
}
