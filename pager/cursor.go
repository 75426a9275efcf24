package pager

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var _encoder = base64.RawURLEncoding

// ErrInvalidCursor is returned when a cursor token is malformed, tampered
// with, or carries a null boundary value. Callers should treat it as bad
// user input and fail the read closed rather than guess a page.
var ErrInvalidCursor = errors.New("invalid cursor")

// Direction defines which side of the boundary row the requested page
// lies on.
type Direction string

const (
	DirectionAfter  Direction = "after"
	DirectionBefore Direction = "before"
)

func (d Direction) Valid() bool {
	return d == DirectionAfter || d == DirectionBefore
}

// Cursor is a pagination token: a traversal direction plus the values of
// the ordering columns at the page boundary row.
//
// IMPORTANT:
// Values are positional. They MUST align one-to-one with the orderings the
// cursor is used with, and none of them may be null.
//
// The wire form is compact JSON wrapped in unpadded URL-safe base64 and is
// opaque to callers.
type Cursor struct {
	Direction Direction
	Values    []any
}

type cursorPayload struct {
	Direction Direction `json:"d"`
	Values    []any     `json:"v"`
}

func NewCursor(direction Direction, values ...any) *Cursor {
	return &Cursor{
		Direction: direction,
		Values:    values,
	}
}

// DecodeCursor attempts to parse an encoded (base64) token into *Cursor.
// An empty token decodes to a nil cursor, meaning the start of the dataset.
// Every failure wraps ErrInvalidCursor.
func DecodeCursor(b64String string) (*Cursor, error) {
	if len(b64String) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(b64String)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded cursor: %v", ErrInvalidCursor, err)
	}

	var payload cursorPayload
	if err = json.Unmarshal(jsonData, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal json encoded cursor: %v", ErrInvalidCursor, err)
	}

	if !payload.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction '%s'", ErrInvalidCursor, payload.Direction)
	}
	if len(payload.Values) == 0 {
		return nil, fmt.Errorf("%w: empty value tuple", ErrInvalidCursor)
	}
	for i, v := range payload.Values {
		// A boundary must be fully determined; null values make the keyset
		// comparison undecidable.
		if v == nil {
			return nil, fmt.Errorf("%w: null value at position %d", ErrInvalidCursor, i)
		}
	}

	return &Cursor{
		Direction: payload.Direction,
		Values:    payload.Values,
	}, nil
}

// String - implements fmt.Stringer. Returns the encoded wire form.
func (c *Cursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	jTok, err := json.Marshal(cursorPayload{
		Direction: c.Direction,
		Values:    c.Values,
	})
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor value: %w", err))
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, jTok); err != nil {
		panic(fmt.Errorf("cannot compact cursor value: %w", err))
	}

	return _encoder.EncodeToString(buf.Bytes())
}

// IsEmpty reports whether the cursor carries no boundary, i.e. the start of
// the dataset.
func (c *Cursor) IsEmpty() bool {
	return c == nil || len(c.Values) == 0
}

func (c *Cursor) validate(orderings Orderings) error {
	if c.IsEmpty() {
		return nil
	}

	if !c.Direction.Valid() {
		return fmt.Errorf("invalid cursor direction '%s'", c.Direction)
	}

	// The value tuple and the ordering list must describe the same columns.
	if len(c.Values) != len(orderings) {
		return fmt.Errorf("cursor value number mismatch")
	}

	for i, v := range c.Values {
		if v == nil {
			return fmt.Errorf("null cursor value at position %d", i)
		}
	}

	return nil
}

var _ fmt.Stringer = (*Cursor)(nil)
