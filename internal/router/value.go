package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Token is one decoded element of a control line: a number or a string.
type Token struct {
	num    float64
	str    string
	number bool
}

// Number returns a numeric token.
func Number(v float64) Token {
	return Token{num: v, number: true}
}

// String returns a string token.
func String(s string) Token {
	return Token{str: s}
}

// Sentinel is the identity meaning "no specific participant".
var Sentinel = Number(-1)

func (t Token) IsNumber() bool { return t.number }

// Float returns the numeric value and whether the token is a number.
func (t Token) Float() (float64, bool) {
	return t.num, t.number
}

// Text is the canonical text form, used for parameter names and identity keys.
func (t Token) Text() string {
	if t.number {
		return strconv.FormatFloat(t.num, 'g', -1, 64)
	}
	return t.str
}

func (t Token) String() string { return t.Text() }

func (t Token) Equal(o Token) bool {
	if t.number != o.number {
		return false
	}
	if t.number {
		return t.num == o.num
	}
	return t.str == o.str
}

// IsSentinel reports whether t is the broadcast identity.
func (t Token) IsSentinel() bool {
	return t.Equal(Sentinel)
}

func (t Token) MarshalJSON() ([]byte, error) {
	if t.number {
		if math.IsNaN(t.num) || math.IsInf(t.num, 0) {
			return nil, fmt.Errorf("token %v is not representable in JSON", t.num)
		}
		return []byte(strconv.FormatFloat(t.num, 'g', -1, 64)), nil
	}
	return json.Marshal(t.str)
}

func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = String(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("token must be a number or a string: %w", err)
	}
	*t = Number(f)
	return nil
}

// Value is what the parameter store holds: either a single scalar or an
// ordered sequence of scalars. The zero Value is an empty scalar (JSON null),
// produced when a message carries no arguments.
type Value struct {
	items []Token
	seq   bool
}

// Scalar wraps a single token.
func Scalar(t Token) Value {
	return Value{items: []Token{t}}
}

// Sequence wraps an ordered list of tokens; it stays a sequence whatever its length.
func Sequence(tokens ...Token) Value {
	items := make([]Token, len(tokens))
	copy(items, tokens)
	return Value{items: items, seq: true}
}

// Collapse applies the collapse rule: zero or one argument is a bare
// scalar, two or more are a sequence.
func Collapse(args []Token) Value {
	switch len(args) {
	case 0:
		return Value{}
	case 1:
		return Scalar(args[0])
	default:
		return Sequence(args...)
	}
}

func (v Value) IsSequence() bool { return v.seq }

// IsEmpty reports whether v is the empty scalar.
func (v Value) IsEmpty() bool { return !v.seq && len(v.items) == 0 }

// Scalar returns the scalar token; ok is false for sequences and the empty scalar.
func (v Value) Scalar() (Token, bool) {
	if v.seq || len(v.items) == 0 {
		return Token{}, false
	}
	return v.items[0], true
}

// Tokens returns a copy of the underlying tokens.
func (v Value) Tokens() []Token {
	out := make([]Token, len(v.items))
	copy(out, v.items)
	return out
}

func (v Value) Equal(o Value) bool {
	if v.seq != o.seq || len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if !v.seq {
		if len(v.items) == 0 {
			return "<empty>"
		}
		return v.items[0].Text()
	}
	parts := make([]string, len(v.items))
	for i, t := range v.items {
		parts[i] = t.Text()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.seq {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	if len(v.items) == 0 {
		return []byte("null"), nil
	}
	return v.items[0].MarshalJSON()
}

var errNestedSequence = errors.New("nested sequences are not supported")

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]Token, len(raw))
		for i, r := range raw {
			r = bytes.TrimSpace(r)
			if len(r) > 0 && r[0] == '[' {
				return errNestedSequence
			}
			if err := items[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = Value{items: items, seq: true}
		return nil
	default:
		var t Token
		if err := t.UnmarshalJSON(data); err != nil {
			return err
		}
		*v = Scalar(t)
		return nil
	}
}
