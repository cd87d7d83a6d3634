package tabula


// Search is a predicate tree over row values. The zero value, constructed
// via NoneSearch, matches every row.
type Search struct {
	kind searchKind

	field  string
	value  Value
	values []Value
	a, b   *Search

	// cached layout reference + resolved field index, filled on first Check
	// so repeated evaluation against the same Layout skips re-resolving
	// the field name.
	layout *Layout
	idx    int
}

type searchKind uint8

const (
	searchNone searchKind = iota
	searchEquals
	searchLike
	searchIn
	searchGreater
	searchLess
	searchGreaterOrEqual
	searchLessOrEqual
	searchAnd
	searchOr
	searchNot
)

// NoneSearch returns a Search that matches every row.
func NoneSearch() *Search { return &Search{kind: searchNone} }

func FieldEquals(field string, value Value) *Search {
	return &Search{kind: searchEquals, field: field, value: value}
}

func FieldLike(field string, pattern string) *Search {
	return &Search{kind: searchLike, field: field, value: NewString(pattern)}
}

func FieldIn(field string, values []Value) *Search {
	return &Search{kind: searchIn, field: field, values: values}
}

func FieldGreater(field string, value Value) *Search {
	return &Search{kind: searchGreater, field: field, value: value}
}

func FieldLess(field string, value Value) *Search {
	return &Search{kind: searchLess, field: field, value: value}
}

func FieldGreaterOrEqual(field string, value Value) *Search {
	return &Search{kind: searchGreaterOrEqual, field: field, value: value}
}

func FieldLessOrEqual(field string, value Value) *Search {
	return &Search{kind: searchLessOrEqual, field: field, value: value}
}

func And(a, b *Search) *Search { return &Search{kind: searchAnd, a: a, b: b} }
func Or(a, b *Search) *Search  { return &Search{kind: searchOr, a: a, b: b} }
func Not(a *Search) *Search    { return &Search{kind: searchNot, a: a} }

// bind resolves field to an index against layout, caching the result. It
// returns ErrLayoutMismatch if the field is absent.
func (s *Search) bind(layout *Layout) error {
	if s.layout == layout {
		return nil
	}
	switch s.kind {
	case searchNone:
	case searchEquals, searchLike, searchIn, searchGreater, searchLess, searchGreaterOrEqual, searchLessOrEqual:
		idx, err := layout.requireField(s.field)
		if err != nil {
			return err
		}
		s.idx = idx
	case searchAnd, searchOr:
		if err := s.a.bind(layout); err != nil {
			return err
		}
		if err := s.b.bind(layout); err != nil {
			return err
		}
	case searchNot:
		if err := s.a.bind(layout); err != nil {
			return err
		}
	}
	s.layout = layout
	return nil
}

// Check reports whether row (interpreted under layout) matches the search,
// binding the search's field names to layout positions on first use.
func (s *Search) Check(layout *Layout, row Row) (bool, error) {
	if err := s.bind(layout); err != nil {
		return false, err
	}
	return s.check(row), nil
}

func (s *Search) check(row Row) bool {
	switch s.kind {
	case searchNone:
		return true
	case searchEquals:
		return row.Get(s.idx).Equal(s.value)
	case searchLike:
		return likeMatch(textOf(row.Get(s.idx)), s.value.s)
	case searchIn:
		v := row.Get(s.idx)
		for _, c := range s.values {
			if v.Equal(c) {
				return true
			}
		}
		return false
	case searchGreater:
		return compareValue(row.Get(s.idx), s.value) > 0
	case searchLess:
		return compareValue(row.Get(s.idx), s.value) < 0
	case searchGreaterOrEqual:
		return compareValue(row.Get(s.idx), s.value) >= 0
	case searchLessOrEqual:
		return compareValue(row.Get(s.idx), s.value) <= 0
	case searchAnd:
		return s.a.check(row) && s.b.check(row)
	case searchOr:
		return s.a.check(row) || s.b.check(row)
	case searchNot:
		return !s.a.check(row)
	default:
		return false
	}
}

func textOf(v Value) string {
	switch v.typ {
	case String, User:
		return v.s
	default:
		return v.goString()
	}
}

// likeMatch implements SQL-style % (any run of characters) and _ (any
// single character) wildcards.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}
