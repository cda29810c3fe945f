package paging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the type of a sort column, checked again when a cursor is decoded.
type Kind uint8

const (
	KindTime Kind = iota + 1
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// tag is the single-letter wire name stored in encoded cursors.
func (k Kind) tag() string {
	switch k {
	case KindTime:
		return "t"
	case KindInt:
		return "i"
	case KindString:
		return "s"
	}
	return ""
}

func kindFromTag(tag string) (Kind, bool) {
	switch tag {
	case "t":
		return KindTime, true
	case "i":
		return KindInt, true
	case "s":
		return KindString, true
	}
	return 0, false
}

// MaxTime stands in for NULL timestamps so that NULL sorts as the greatest
// value. SQL columns that may be NULL are wrapped with MaxTimeSQL.
var MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

const MaxTimeSQL = `'9999-12-31 23:59:59+00'::timestamptz`

// Value is one sort-column value.
type Value struct {
	Kind Kind
	t    time.Time
	i    int64
	s    string
}

func Time(t time.Time) Value { return Value{Kind: KindTime, t: t.UTC()} }

// NullableTime maps nil to MaxTime.
func NullableTime(t *time.Time) Value {
	if t == nil {
		return Time(MaxTime)
	}
	return Time(*t)
}

func Int(i int64) Value { return Value{Kind: KindInt, i: i} }

func String(s string) Value { return Value{Kind: KindString, s: s} }

// Arg is the value handed to the database driver.
func (v Value) Arg() any {
	switch v.Kind {
	case KindTime:
		return v.t
	case KindInt:
		return v.i
	default:
		return v.s
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return v.s
	}
}

func parseValue(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Value{}, fmt.Errorf("value is not an RFC3339 timestamp: %w", err)
		}
		return Time(t), nil
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value is not an integer: %w", err)
		}
		return Int(i), nil
	case KindString:
		return String(raw), nil
	}
	return Value{}, fmt.Errorf("unsupported kind %s", kind)
}

// Compare orders two values of the same kind the way the database does for
// the columns declared in the sort tables (text columns use the "C" collation).
func Compare(a, b Value) int {
	switch a.Kind {
	case KindTime:
		return a.t.Compare(b.t)
	case KindInt:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.s, b.s)
	}
}
