// Package paging implements keyset pagination: opaque cursors carrying the
// last row's (sort value, id) pair and the query plan that resumes after it.
//
// Every sort key goes through the same two-column template
//
//	(F op :v) OR (F = :v AND I op :id)   ORDER BY F dir, I dir
//
// with op ">" for ascending and "<" for descending order, so rows that tie on
// F are split by the unique id I and never repeat or vanish across pages.
package paging

import (
	"fmt"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) keyword() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

func (d Direction) op() string {
	if d == Desc {
		return "<"
	}
	return ">"
}

// Field is a sortable column. Column is the SQL expression used in both the
// predicate and ORDER BY.
type Field struct {
	Name   string
	Column string
	Kind   Kind
}

type Sort struct {
	Field Field
	Dir   Direction
}

// Spec is the per-resource sort table and page size bounds.
type Spec struct {
	Sorts        map[string]Sort
	Default      string
	IDColumn     string
	MinLimit     int
	MaxLimit     int
	DefaultLimit int
}

// Plan is the resolved query shape for one page request.
type Plan struct {
	Key      string
	Sort     Sort
	IDColumn string
	Cursor   *Cursor
	Limit    int
}

// Plan resolves sortKey (empty means the default), decodes token against the
// sort field's kind and clamps limit into s's bounds.
func (s Spec) Plan(sortKey, token string, limit int) (Plan, error) {
	if sortKey == "" {
		sortKey = s.Default
	}
	sort, ok := s.Sorts[sortKey]
	if !ok {
		return Plan{}, apperr.InvalidRequest("unsupported sort %q", sortKey)
	}
	p := Plan{Key: sortKey, Sort: sort, IDColumn: s.IDColumn, Limit: s.clamp(limit)}
	if token != "" {
		c, err := Decode(token, sort.Field.Kind)
		if err != nil {
			return Plan{}, err
		}
		p.Cursor = &c
	}
	return p, nil
}

func (s Spec) clamp(limit int) int {
	if limit == 0 {
		limit = s.DefaultLimit
	}
	if limit < s.MinLimit {
		return s.MinLimit
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		return s.MaxLimit
	}
	return limit
}

// Predicate renders the continuation condition. arg registers a bind
// parameter and returns its placeholder. Empty when there is no cursor.
func (p Plan) Predicate(arg func(any) string) string {
	if p.Cursor == nil {
		return ""
	}
	col, op := p.Sort.Field.Column, p.Sort.Dir.op()
	v := arg(p.Cursor.Value.Arg())
	id := arg(p.Cursor.ID)
	return fmt.Sprintf("(%s %s %s OR (%s = %s AND %s %s %s))", col, op, v, col, v, p.IDColumn, op, id)
}

func (p Plan) OrderBy() string {
	dir := p.Sort.Dir.keyword()
	return fmt.Sprintf("%s %s, %s %s", p.Sort.Field.Column, dir, p.IDColumn, dir)
}

// Less reports whether row a sorts before row b under this plan.
func (p Plan) Less(av Value, aid string, bv Value, bid string) bool {
	c := Compare(av, bv)
	if c == 0 {
		c = compareID(aid, bid)
	}
	if p.Sort.Dir == Desc {
		return c > 0
	}
	return c < 0
}

// After reports whether a row satisfies Predicate. Always true without a cursor.
func (p Plan) After(v Value, id string) bool {
	if p.Cursor == nil {
		return true
	}
	return p.Less(p.Cursor.Value, p.Cursor.ID, v, id)
}

func compareID(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Page is the listing response shape; Cursor is omitted at the end of results.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor,omitempty"`
}

// NewPage wraps the rows of one window. The next cursor comes from the last
// row returned; an empty window carries no cursor.
func NewPage[T any](items []T, key func(T) (Value, string)) Page[T] {
	if len(items) == 0 {
		return Page[T]{Items: []T{}}
	}
	v, id := key(items[len(items)-1])
	return Page[T]{Items: items, Cursor: Encode(Cursor{ID: id, Value: v})}
}
