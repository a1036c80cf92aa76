package crdt

import (
	"errors"
	"sort"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// ErrKeyNotFound is returned when a requested object key has no live entry.
var ErrKeyNotFound = errors.New("crdt: key not found")

// objectEntry is one LWW-register slot: the element currently winning key,
// and the ticket that installed it, mirroring the "RHT-like structure"
// spec §3.3 describes for Object (distinct from pkg/crdt/rht, which is
// string-valued and used for style attributes rather than sub-elements).
type objectEntry struct {
	key       string
	value     Element
	updatedAt clock.TimeTicket
	removed   bool
	seq       int
}

// Object is an LWW-register map keyed by string, spec §3.3.
type Object struct {
	base
	entries map[string]*objectEntry
	nextSeq int
}

// NewObject returns an empty object.
func NewObject(createdAt clock.TimeTicket) *Object {
	return &Object{base: newBase(createdAt), entries: make(map[string]*objectEntry)}
}

// Set installs value under key if executedAt is not older than whatever
// currently occupies key, per the LWW-register rule (spec §3.4).
func (o *Object) Set(key string, value Element, executedAt clock.TimeTicket) bool {
	existing, ok := o.entries[key]
	if ok && existing.updatedAt.After(executedAt) {
		return false
	}
	seq := o.nextSeq
	if ok {
		seq = existing.seq
	} else {
		o.nextSeq++
	}
	o.entries[key] = &objectEntry{key: key, value: value, updatedAt: executedAt, seq: seq}
	return true
}

// Delete tombstones key's current entry, subject to the same LWW gate.
func (o *Object) Delete(key string, executedAt clock.TimeTicket) bool {
	existing, ok := o.entries[key]
	if ok && existing.updatedAt.After(executedAt) {
		return false
	}
	if !ok {
		return false
	}
	existing.removed = true
	existing.updatedAt = executedAt
	existing.value.Remove(executedAt)
	return true
}

// Get returns the live element stored at key.
func (o *Object) Get(key string) (Element, error) {
	e, ok := o.entries[key]
	if !ok || e.removed {
		return nil, ErrKeyNotFound
	}
	return e.value, nil
}

// Has reports whether key currently has a live entry.
func (o *Object) Has(key string) bool {
	e, ok := o.entries[key]
	return ok && !e.removed
}

// Keys returns live keys ordered by first-write sequence (JSON insertion
// order, mirroring rht.RHT.Elements' rule).
func (o *Object) Keys() []string {
	type kv struct {
		key string
		seq int
	}
	live := make([]kv, 0, len(o.entries))
	for k, e := range o.entries {
		if !e.removed {
			live = append(live, kv{k, e.seq})
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })
	out := make([]string, len(live))
	for i, e := range live {
		out[i] = e.key
	}
	return out
}

// Elements exposes every entry (including tombstones) for GC/traversal.
func (o *Object) Elements() map[string]Element {
	out := make(map[string]Element, len(o.entries))
	for k, e := range o.entries {
		out[k] = e.value
	}
	return out
}

// ObjectEntrySnapshot is one live entry's full state, exposed for Document
// snapshot encoding (spec §6.1's opaque snapshot bytes need the winning
// ticket, not just the current value, to replay Set correctly).
type ObjectEntrySnapshot struct {
	Key       string
	Value     Element
	UpdatedAt clock.TimeTicket
	Seq       int
}

// EntriesForSnapshot returns every live entry ordered by first-write
// sequence, the same order Keys() uses.
func (o *Object) EntriesForSnapshot() []ObjectEntrySnapshot {
	out := make([]ObjectEntrySnapshot, 0, len(o.entries))
	for _, e := range o.entries {
		if e.removed {
			continue
		}
		out = append(out, ObjectEntrySnapshot{Key: e.key, Value: e.value, UpdatedAt: e.updatedAt, Seq: e.seq})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (o *Object) DeepCopy() Element {
	cp := &Object{base: o.base.deepCopyBase(), entries: make(map[string]*objectEntry, len(o.entries)), nextSeq: o.nextSeq}
	for k, e := range o.entries {
		copied := *e
		copied.value = e.value.DeepCopy()
		cp.entries[k] = &copied
	}
	return cp
}

func (o *Object) MarshalCanonicalJSON(buf []byte) []byte {
	buf = append(buf, '{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '"')
		buf = append(buf, k...)
		buf = append(buf, '"', ':')
		v, _ := o.Get(k)
		buf = v.MarshalCanonicalJSON(buf)
	}
	buf = append(buf, '}')
	return buf
}
