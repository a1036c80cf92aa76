// Package rht implements the Replicated Hashtable: an LWW map from string
// key to value, ordered by TimeTicket, used for text style attributes.
package rht

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/kevinxiao27/docweave/pkg/clock"
)

// ErrNotFound is returned by Get when the key has never been written or its
// winning entry is a removal.
var ErrNotFound = errors.New("rht: key not found")

// node is one RHT entry: the winning value for a key and the ticket that
// produced it, plus the order keys were first written in (for JSON
// insertion-order preservation, spec §4.2).
type node struct {
	key       string
	value     string
	updatedAt clock.TimeTicket
	removedAt clock.TimeTicket
	seq       int
}

// RHT is a last-writer-wins map keyed by string.
type RHT struct {
	nodes   map[string]*node
	nextSeq int
}

// New returns an empty RHT.
func New() *RHT {
	return &RHT{nodes: make(map[string]*node)}
}

// Set writes key=value if executedAt is strictly greater than the ticket
// currently stored for key (spec §3.4, §4.2). A write that loses the LWW
// contest is silently dropped — the stored entry always carries the maximum
// updatedAt ever observed for that key.
func (r *RHT) Set(key, value string, executedAt clock.TimeTicket) {
	existing, ok := r.nodes[key]
	if ok && !executedAt.After(existing.updatedAt) {
		return
	}
	seq := r.nextSeq
	if ok {
		seq = existing.seq
	} else {
		r.nextSeq++
	}
	r.nodes[key] = &node{key: key, value: value, updatedAt: executedAt, seq: seq}
}

// Remove marks key as removed as of executedAt, subject to the same LWW
// gate as Set. Removed keys are tombstoned, not deleted outright, so a
// late-arriving Set with a smaller ticket than the removal still loses.
func (r *RHT) Remove(key string, executedAt clock.TimeTicket) {
	existing, ok := r.nodes[key]
	if ok && !executedAt.After(existing.updatedAt) {
		return
	}
	seq := r.nextSeq
	if ok {
		seq = existing.seq
	} else {
		r.nextSeq++
	}
	r.nodes[key] = &node{key: key, updatedAt: executedAt, removedAt: executedAt, seq: seq}
}

// Get returns the winning value for key.
func (r *RHT) Get(key string) (string, error) {
	n, ok := r.nodes[key]
	if !ok || !n.removedAt.Equal(clock.Initial) {
		return "", ErrNotFound
	}
	return n.value, nil
}

// Has reports whether key currently has a live (non-removed) value.
func (r *RHT) Has(key string) bool {
	n, ok := r.nodes[key]
	return ok && n.removedAt.Equal(clock.Initial)
}

// Keys returns live keys in lexicographic order, matching the XML rendering
// rule in spec §4.2.
func (r *RHT) Keys() []string {
	keys := make([]string, 0, len(r.nodes))
	for k, n := range r.nodes {
		if n.removedAt.Equal(clock.Initial) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Elements returns live key/value pairs ordered by first-write sequence, for
// JSON serialization (spec §4.2: "JSON preserves insertion order of first
// write per key").
func (r *RHT) Elements() []KeyValue {
	out := make([]KeyValue, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.removedAt.Equal(clock.Initial) {
			out = append(out, KeyValue{Key: n.key, Value: n.value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.nodes[out[i].Key].seq < r.nodes[out[j].Key].seq
	})
	return out
}

// KeyValue is a single live entry as exposed by Elements.
type KeyValue struct {
	Key   string
	Value string
}

// DeepCopy returns an independent RHT holding a copy of every stored entry
// (live and removed) with its ticket and first-write sequence.
func (r *RHT) DeepCopy() *RHT {
	out := New()
	for _, n := range r.nodes {
		out.nodes[n.key] = &node{
			key: n.key, value: n.value, updatedAt: n.updatedAt,
			removedAt: n.removedAt, seq: n.seq,
		}
	}
	out.nextSeq = r.nextSeq
	return out
}

// MarshalJSON renders live entries as a JSON object, in first-write order.
func (r *RHT) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range r.Elements() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(kv.Key)
		valJSON, _ := json.Marshal(kv.Value)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToXML renders live entries as space-separated key="value" attributes in
// lexicographic key order, matching spec §4.2's XML rendering rule.
func (r *RHT) ToXML() string {
	var buf bytes.Buffer
	for _, key := range r.Keys() {
		val, _ := r.Get(key)
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(key)
		buf.WriteString(`="`)
		buf.WriteString(val)
		buf.WriteByte('"')
	}
	return buf.String()
}
