package store

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind enumerates the scalar types an extension field may hold.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

// Value is a tagged scalar used for admin-defined extension fields on users.
// It marshals to the plain JSON scalar, so files written by earlier
// deployments round-trip unchanged.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }
func Int(v int64) Value      { return Value{kind: KindInt, i: v} }
func Float(v float64) Value  { return Value{kind: KindFloat, f: v} }
func String(v string) Value  { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) Bool() bool      { return v.b }
func (v Value) Int() int64      { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) String() string  { return v.s }

// ParseValue applies the relaxed coercion rules of the admin surface:
// true/false become bool, null/none become null, integer and decimal
// literals become numbers, anything else stays a string.
func ParseValue(raw string) Value {
	v := strings.ToLower(strings.TrimSpace(raw))

	switch v {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null", "none":
		return Null()
	}

	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Float(f)
	}
	return String(raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case float64:
		if t == float64(int64(t)) {
			*v = Int(int64(t))
		} else {
			*v = Float(t)
		}
	case string:
		*v = String(t)
	default:
		// Nested structures are not part of the extension contract; keep
		// the raw text form rather than failing the whole file.
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		*v = String(string(b))
	}
	return nil
}
