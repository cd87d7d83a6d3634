package tabula

import (
	"fmt"
	"sort"
)

// ResultOption is one modifier in an ordered pipeline of sort/group/limit/
// offset operations, composed with Combine (the Go analogue of the
// original "+" operator, which Go cannot overload).
type ResultOption struct {
	kind  optionKind
	field string
	n     int
}

type optionKind uint8

const (
	optSortAsc optionKind = iota
	optSortDesc
	optGroup
	optLimit
	optOffset
)

func SortAsc(field string) ResultOption  { return ResultOption{kind: optSortAsc, field: field} }
func SortDesc(field string) ResultOption { return ResultOption{kind: optSortDesc, field: field} }
func Group(field string) ResultOption    { return ResultOption{kind: optGroup, field: field} }
func Limit(n int) ResultOption           { return ResultOption{kind: optLimit, n: n} }
func Offset(n int) ResultOption          { return ResultOption{kind: optOffset, n: n} }

// ResultOptions is an ordered sequence of ResultOption, built with Combine.
type ResultOptions []ResultOption

// Combine appends more options to the pipeline.
func (r ResultOptions) Combine(more ...ResultOption) ResultOptions {
	out := make(ResultOptions, 0, len(r)+len(more))
	out = append(out, r...)
	out = append(out, more...)
	return out
}

// Options is a convenience constructor: Options(SortAsc("x"), Limit(2)).
func Options(opts ...ResultOption) ResultOptions { return ResultOptions(opts) }

// validate checks the option-level invariants from the data model:
// non-negative Limit/Offset, no duplicate Limit or Offset, and Limit
// mutually exclusive with Group.
func (r ResultOptions) validate() error {
	var sawLimit, sawOffset, sawGroup bool
	for _, o := range r {
		switch o.kind {
		case optLimit:
			if o.n < 0 {
				return fmt.Errorf("%w: Limit must be non-negative, got %d", ErrInvalidArgument, o.n)
			}
			if sawLimit {
				return fmt.Errorf("%w: duplicate Limit", ErrInvalidArgument)
			}
			sawLimit = true
		case optOffset:
			if o.n < 0 {
				return fmt.Errorf("%w: Offset must be non-negative, got %d", ErrInvalidArgument, o.n)
			}
			if sawOffset {
				return fmt.Errorf("%w: duplicate Offset", ErrInvalidArgument)
			}
			sawOffset = true
		case optGroup:
			sawGroup = true
		}
	}
	if sawGroup && sawLimit {
		return fmt.Errorf("%w: Group and Limit are mutually exclusive", ErrInvalidArgument)
	}
	return nil
}

// apply runs the pipeline over rows (interpreted under layout), returning a
// new slice. Sorts are stable and applied in the order given (primary sort
// first means later SortAsc/SortDesc calls break ties left by earlier
// ones); Group deduplicates on a field's value keeping the first-seen row;
// Limit/Offset slice the final result.
func (r ResultOptions) apply(layout *Layout, rows []Row) ([]Row, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	out := make([]Row, len(rows))
	copy(out, rows)

	// Gather sort keys in order, then run one stable sort per key from the
	// last option to the first, so the first-listed Sort is the primary key
	// and later ones only break its ties.
	var sorts []ResultOption
	for _, o := range r {
		if o.kind == optSortAsc || o.kind == optSortDesc {
			sorts = append(sorts, o)
		}
	}
	for i := len(sorts) - 1; i >= 0; i-- {
		o := sorts[i]
		idx, err := layout.requireField(o.field)
		if err != nil {
			return nil, err
		}
		asc := o.kind == optSortAsc
		sort.SliceStable(out, func(a, b int) bool {
			c := compareValue(out[a].Get(idx), out[b].Get(idx))
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	for _, o := range r {
		switch o.kind {
		case optGroup:
			idx, err := layout.requireField(o.field)
			if err != nil {
				return nil, err
			}
			out = groupBy(out, idx)
		}
	}

	var limit = -1
	var offset = 0
	for _, o := range r {
		switch o.kind {
		case optLimit:
			limit = o.n
		case optOffset:
			offset = o.n
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func groupBy(rows []Row, idx int) []Row {
	seen := make([]Value, 0, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		v := row.Get(idx)
		dup := false
		for _, s := range seen {
			if s.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, v)
			out = append(out, row)
		}
	}
	return out
}
