package rga

import (
	"unicode/utf16"

	"github.com/kevinxiao27/docweave/pkg/crdt/rht"
)

// TextValue is the payload of a text run: UTF-16 code units plus a per-run
// RHT of style attributes. Spec §9 open question (b): the source indexes
// strings by UTF-16 code unit (NSString semantics), and mixing code-point
// indexing across replicas breaks convergence — so Len/Split operate on
// code units, never runes.
type TextValue struct {
	units []uint16
	style *rht.RHT
}

// NewTextValue builds a TextValue from a Go string, converting to UTF-16
// code units at construction time so every subsequent Len/Split call is a
// pure slice operation.
func NewTextValue(s string) *TextValue {
	return &TextValue{units: utf16.Encode([]rune(s)), style: rht.New()}
}

// NewTextValueFromUnits builds a TextValue directly from code units, used
// when splitting or decoding off the wire.
func NewTextValueFromUnits(units []uint16, style *rht.RHT) *TextValue {
	if style == nil {
		style = rht.New()
	}
	return &TextValue{units: units, style: style}
}

// String decodes the run back to a Go string.
func (v *TextValue) String() string {
	return string(utf16.Decode(v.units))
}

// Style returns the run's style attribute table.
func (v *TextValue) Style() *rht.RHT { return v.style }

// Len returns the number of UTF-16 code units.
func (v *TextValue) Len() int { return len(v.units) }

// Split divides the run at a code-unit offset. The left half keeps the
// receiver's style table; the right half gets a deep copy of it, so later
// style changes on either half do not affect the other.
func (v *TextValue) Split(offset int) (Value, Value) {
	left := &TextValue{units: append([]uint16{}, v.units[:offset]...), style: v.style}
	right := &TextValue{units: append([]uint16{}, v.units[offset:]...), style: v.style.DeepCopy()}
	return left, right
}

// DeepCopy returns an independent TextValue.
func (v *TextValue) DeepCopy() Value {
	return &TextValue{units: append([]uint16{}, v.units...), style: v.style.DeepCopy()}
}
