package postgres

import (
	"strconv"
	"strings"
)

// Query accumulates WHERE conditions and their positional arguments.
type Query struct {
	conds []string
	args  []any
}

// Arg registers v and returns its placeholder.
func (q *Query) Arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// Where adds a condition; empty conditions are skipped.
func (q *Query) Where(cond string) {
	if cond != "" {
		q.conds = append(q.conds, cond)
	}
}

// Clause renders " WHERE a AND b", or "" without conditions.
func (q *Query) Clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (q *Query) Args() []any { return q.args }
