// Package rga implements the RGA tree-split: a splittable, replicated
// sequence CRDT used for rich text. Content nodes can be split in two by a
// concurrent edit; tombstones are retained for causal convergence; an
// augmented index tree maps visible integer offsets to nodes in O(log n).
package rga

import "github.com/kevinxiao27/docweave/pkg/clock"

// Value is a splittable payload carried by a Node. Text runs are the only
// Value implementation the core ships, but the split/tombstone machinery
// below is generic over it.
type Value interface {
	// Len returns the number of indexable units (UTF-16 code units for
	// text, per spec §9 open question (b)) this value represents.
	Len() int
	// Split divides the value at offset, returning the left and right
	// halves. The receiver becomes the left half's owner; Split must not
	// mutate the receiver.
	Split(offset int) (left, right Value)
	// DeepCopy returns an independent copy.
	DeepCopy() Value
}

// ID identifies a split-tree node: the ticket of the original insertion,
// plus the offset within that insertion this particular split-fragment
// starts at. Splitting a node produces a new node sharing CreatedAt but with
// a larger Offset.
type ID struct {
	CreatedAt clock.TimeTicket
	Offset    int
}

// Compare orders IDs by CreatedAt then Offset.
func (id ID) Compare(other ID) int {
	if c := id.CreatedAt.Compare(other.CreatedAt); c != 0 {
		return c
	}
	if id.Offset != other.Offset {
		if id.Offset < other.Offset {
			return -1
		}
		return 1
	}
	return 0
}

func (id ID) String() string {
	return id.CreatedAt.String() + ":" + itoa(id.Offset)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Node is one fragment of the split sequence.
type Node struct {
	id    ID
	value Value

	removedAt clock.TimeTicket
	hasRemove bool

	// prev/next maintain the visible (possibly including tombstones) doubly
	// linked list used for neighbor lookups during edit/split.
	prev, next *Node

	// insPrev/insNext preserve original insertion order, independent of
	// where the node currently sits in the visible list; the RGA tie-break
	// walk in Split.InsertAfter uses this chain.
	insPrev, insNext *Node

	length int // cached value.Len(), kept in sync across splits
}

// NewNode creates a standalone node, not yet linked into any sequence.
func NewNode(id ID, value Value) *Node {
	return &Node{id: id, value: value, length: value.Len()}
}

// ID returns the node's identity.
func (n *Node) ID() ID { return n.id }

// Value returns the node's current payload.
func (n *Node) Value() Value { return n.value }

// Len returns the node's full (possibly tombstoned) length.
func (n *Node) Len() int { return n.length }

// IsRemoved reports whether the node has been tombstoned.
func (n *Node) IsRemoved() bool { return n.hasRemove }

// RemovedAt returns the tombstone ticket, valid only if IsRemoved.
func (n *Node) RemovedAt() clock.TimeTicket { return n.removedAt }

// Weight is the node's contribution to visible length: its full length if
// live, zero if tombstoned. This is exactly the index-tree node weight spec
// §4.1 calls for.
func (n *Node) Weight() int {
	if n.hasRemove {
		return 0
	}
	return n.length
}

// Remove tombstones the node at executedAt unless it is already removed at
// a ticket greater than or equal to executedAt, or executedAt is
// clock.Initial, honoring the monotonic-tombstone invariant (spec §3.4:
// removedAt never cleared) and giving removal its own LWW gate so a
// duplicate remote remove is a no-op.
func (n *Node) Remove(executedAt clock.TimeTicket) bool {
	if n.hasRemove && !n.removedAt.Before(executedAt) {
		return false
	}
	if executedAt.Equal(clock.Initial) {
		return false
	}
	n.hasRemove = true
	n.removedAt = executedAt
	return true
}

// split carves the node into [0,offset) and [offset,len), returning the new
// right-hand node. The receiver shrinks in place to become the left half;
// this lets existing pointers to it (prev/next, id maps) remain valid.
func (n *Node) split(offset int) *Node {
	leftVal, rightVal := n.value.Split(offset)
	n.value = leftVal
	n.length = leftVal.Len()

	right := &Node{
		id:        ID{CreatedAt: n.id.CreatedAt, Offset: n.id.Offset + offset},
		value:     rightVal,
		length:    rightVal.Len(),
		hasRemove: n.hasRemove,
		removedAt: n.removedAt,
	}

	// splice right into both chains immediately after n
	right.next = n.next
	if n.next != nil {
		n.next.prev = right
	}
	n.next = right
	right.prev = n

	right.insNext = n.insNext
	if n.insNext != nil {
		n.insNext.insPrev = right
	}
	n.insNext = right
	right.insPrev = n

	return right
}
