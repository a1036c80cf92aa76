package crdt

import (
	"fmt"
	"strconv"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// PrimitiveKind tags the wire type of a Primitive's value (spec §3.3).
type PrimitiveKind int

const (
	KindBool PrimitiveKind = iota
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindBytes
	KindDate
)

// Primitive is an immutable scalar value.
type Primitive struct {
	base
	kind  PrimitiveKind
	value any
}

// NewPrimitive constructs a Primitive. value's Go type must match kind:
// bool, int32, int64, float64, string, []byte, or int64 (unix millis) for
// KindDate respectively.
func NewPrimitive(kind PrimitiveKind, value any, createdAt clock.TimeTicket) *Primitive {
	return &Primitive{base: newBase(createdAt), kind: kind, value: value}
}

func (p *Primitive) Kind() PrimitiveKind { return p.kind }
func (p *Primitive) Value() any          { return p.value }

func (p *Primitive) DeepCopy() Element {
	cp := *p
	cp.base = p.base.deepCopyBase()
	return &cp
}

func (p *Primitive) MarshalCanonicalJSON(buf []byte) []byte {
	switch p.kind {
	case KindBool:
		if p.value.(bool) {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case KindInt32:
		return strconv.AppendInt(buf, int64(p.value.(int32)), 10)
	case KindInt64, KindDate:
		return strconv.AppendInt(buf, p.value.(int64), 10)
	case KindDouble:
		return strconv.AppendFloat(buf, p.value.(float64), 'g', -1, 64)
	case KindString:
		return strconv.AppendQuote(buf, p.value.(string))
	case KindBytes:
		return strconv.AppendQuote(buf, fmt.Sprintf("%x", p.value.([]byte)))
	default:
		return append(buf, "null"...)
	}
}
