package crdt

import (
	"strconv"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// CounterKind selects the counter's numeric width.
type CounterKind int

const (
	CounterInt32 CounterKind = iota
	CounterInt64
)

// Counter is a numeric accumulator (spec §3.3). Increases commute, so
// unlike the LWW-register elements a Counter merges every increase it's
// never seen before rather than picking a single winner — but each
// contributing ticket is applied at most once, so re-delivering the same
// IncreaseOperation during pack replay (spec §8.1 idempotence) is a no-op.
type Counter struct {
	base
	kind    CounterKind
	value   int64
	applied map[string]bool
}

// NewCounter returns a zero-valued counter of the given kind.
func NewCounter(kind CounterKind, createdAt clock.TimeTicket) *Counter {
	return &Counter{base: newBase(createdAt), kind: kind, applied: make(map[string]bool)}
}

func (c *Counter) Kind() CounterKind { return c.kind }
func (c *Counter) Value() int64      { return c.value }

// Increase applies delta once per distinct executedAt ticket; a duplicate
// delivery of the same ticket is dropped, making repeated pack application
// idempotent.
func (c *Counter) Increase(delta int64, executedAt clock.TimeTicket) bool {
	key := executedAt.Key()
	if c.applied[key] {
		return false
	}
	c.applied[key] = true
	c.value += delta
	return true
}

// AppliedTickets returns the raw keys of every executedAt ticket already
// applied, so a Document snapshot codec can preserve Increase's idempotence
// guard across a snapshot boundary.
func (c *Counter) AppliedTickets() []string {
	out := make([]string, 0, len(c.applied))
	for k := range c.applied {
		out = append(out, k)
	}
	return out
}

// RestoreApplied re-marks tickets (by raw key) as already applied without
// touching value, and SetValueForSnapshot installs the accumulated total
// directly. Together they let a snapshot decoder rebuild a Counter without
// replaying every historical Increase.
func (c *Counter) RestoreApplied(keys []string) {
	for _, k := range keys {
		c.applied[k] = true
	}
}

func (c *Counter) SetValueForSnapshot(value int64) { c.value = value }

func (c *Counter) DeepCopy() Element {
	cp := &Counter{base: c.base.deepCopyBase(), kind: c.kind, value: c.value, applied: make(map[string]bool, len(c.applied))}
	for k := range c.applied {
		cp.applied[k] = true
	}
	return cp
}

func (c *Counter) MarshalCanonicalJSON(buf []byte) []byte {
	return strconv.AppendInt(buf, c.value, 10)
}
