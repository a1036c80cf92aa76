// Package presence implements PresenceData: the "map of string to
// arbitrary JSON-serializable value" spec §9 Design Notes describes as a
// recursive tagged sum, plus the document-level presence map's merge (not
// replace) set semantics (spec §9 open question (a)).
package presence

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Kind tags which alternative of the tagged sum a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	List
	Object
)

// Value is one PresenceData value: exactly one of the fields matching Kind
// is meaningful.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	obj  map[string]Value
}

func NewNull() Value           { return Value{kind: Null} }
func NewBool(b bool) Value     { return Value{kind: Bool, b: b} }
func NewInt(i int64) Value     { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value { return Value{kind: Float, f: f} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewList(vs []Value) Value { return Value{kind: List, list: vs} }
func NewObject(m map[string]Value) Value {
	return Value{kind: Object, obj: m}
}

func (v Value) Kind() Kind { return v.kind }

// MarshalJSON renders the canonical JSON form used for equality comparison
// (spec §9: "compare by canonical JSON for equality").
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Null:
		return []byte("null"), nil
	case Bool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Int:
		return json.Marshal(v.i)
	case Float:
		return json.Marshal(v.f)
	case String:
		return json.Marshal(v.s)
	case List:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := e.MarshalJSON()
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, _ := v.obj[k].MarshalJSON()
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// Equal compares two values by canonical JSON, per spec §9.
func (v Value) Equal(other Value) bool {
	a, _ := v.MarshalJSON()
	b, _ := other.MarshalJSON()
	return bytes.Equal(a, b)
}

// Data is one actor's presence: a set of string keys to Values, updated via
// merge semantics rather than wholesale replacement (spec §9 open
// question (a)): a Set call only ever adds/overwrites the named keys,
// leaving every other key untouched. A key is removed only through an
// explicit Clear call, never implicitly by a Set that omits it.
type Data struct {
	fields map[string]Value
}

// New returns an empty presence map.
func New() *Data {
	return &Data{fields: make(map[string]Value)}
}

// Set merges key=value into the map, leaving every other key as-is.
func (d *Data) Set(key string, value Value) {
	d.fields[key] = value
}

// Clear removes key entirely — the explicit marker spec §9(a) calls for,
// distinct from simply omitting the key from a Set call.
func (d *Data) Clear(key string) {
	delete(d.fields, key)
}

// Get returns the value at key and whether it's present.
func (d *Data) Get(key string) (Value, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Keys returns every currently-set key, in lexicographic order.
func (d *Data) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge applies every key in other into d (other wins on key collisions),
// the operation PeersChanged/presence-change application performs when a
// remote presence update arrives.
func (d *Data) Merge(other *Data) {
	for k, v := range other.fields {
		d.fields[k] = v
	}
}

// DeepCopy returns an independent copy.
func (d *Data) DeepCopy() *Data {
	cp := New()
	for k, v := range d.fields {
		cp.fields[k] = v
	}
	return cp
}
