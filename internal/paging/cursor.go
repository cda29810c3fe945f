package paging

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
)

const cursorVersion = 1

// Cursor marks the last row of a page: its sort value and its unique id.
type Cursor struct {
	ID    string
	Value Value
}

type wireCursor struct {
	V  int    `json:"v"`
	K  string `json:"k"`
	S  string `json:"s"`
	ID string `json:"id"`
}

// Encode serializes c into an opaque, URL-safe token.
func Encode(c Cursor) string {
	b, err := json.Marshal(wireCursor{V: cursorVersion, K: c.Value.Kind.tag(), S: c.Value.String(), ID: c.ID})
	if err != nil {
		// wireCursor only holds strings and ints.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode inverts Encode. The embedded value must be of the expected kind;
// every failure is an invalid_cursor error.
func Decode(token string, want Kind) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var w wireCursor
	if err := dec.Decode(&w); err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}
	if dec.More() {
		return Cursor{}, apperr.InvalidCursor(errors.New("trailing data"))
	}
	if w.V != cursorVersion {
		return Cursor{}, apperr.InvalidCursor(fmt.Errorf("unsupported version %d", w.V))
	}
	if w.ID == "" {
		return Cursor{}, apperr.InvalidCursor(errors.New("missing id"))
	}
	kind, ok := kindFromTag(w.K)
	if !ok || kind != want {
		return Cursor{}, apperr.InvalidCursor(fmt.Errorf("cursor holds %q, want %s", w.K, want))
	}
	v, err := parseValue(kind, w.S)
	if err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}
	return Cursor{ID: w.ID, Value: v}, nil
}
