package rga

import (
	"errors"
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
)

// ErrStructure is returned when an operation references a node ID the
// local replica has never seen — its causal predecessor wasn't delivered
// yet. Nothing in this module buffers or retries such an operation:
// Document.ApplyChangePack logs it and stops applying the rest of the pack.
var ErrStructure = errors.New("rga: referenced node id is unknown")

// NodePos locates a point in the sequence: inside node identified by
// NodeID, relativeOffset units in.
type NodePos struct {
	ID             ID
	RelativeOffset int
}

// NodeRange is an ordered pair of positions.
type NodeRange struct {
	From, To NodePos
}

// ContentChange describes one visible mutation produced by Edit, in visible
// index space computed before the edit was applied (spec §4.1 step 5).
type ContentChange struct {
	From, To int
	Content  Value
	Actor    actor.ID
}

// Split is the RGA tree-split sequence CRDT.
type Split struct {
	head      *Node // sentinel; carries no value, never visible
	byID      map[ID]*Node
	idx       *indexTree
	hasTomb   bool // true once any node here has ever been removed
}

// NewSplit returns an empty sequence, seeded with a zero-length head
// sentinel so findNodeWithSplit/edit never need nil-prev special casing.
func NewSplit(headID ID) *Split {
	head := NewNode(headID, emptyValue{})
	s := &Split{
		head: head,
		byID: map[ID]*Node{headID: head},
		idx:  newIndexTree(),
	}
	s.idx.insertAfter(nil, head)
	return s
}

type emptyValue struct{}

func (emptyValue) Len() int                        { return 0 }
func (emptyValue) Split(int) (Value, Value)        { return emptyValue{}, emptyValue{} }
func (emptyValue) DeepCopy() Value                 { return emptyValue{} }

// Len returns the total visible length of the sequence.
func (s *Split) Len() int { return s.idx.totalWeight() }

// HasRemovedNodes reports whether any node in this sequence is currently a
// tombstone, i.e. whether this element is a GC candidate per spec §4.4's
// elementHasRemovedNodesSetByCreatedAt.
func (s *Split) HasRemovedNodes() bool { return s.hasTomb }

// nodeAt returns the node for an ID, or ErrStructure if unknown.
func (s *Split) nodeAt(id ID) (*Node, error) {
	n, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStructure, id)
	}
	return n, nil
}

// findNodeWithSplit locates the node containing pos and, if pos falls
// strictly inside it, splits it there. Returns (left-of-cut, right-of-cut);
// right is the node pos now points at the start of. The freshly created
// right half always inherits the parent's tombstone state; executedAt is
// accepted but not used.
func (s *Split) findNodeWithSplit(pos NodePos, executedAt clock.TimeTicket) (*Node, *Node, error) {
	absolute, err := s.nodeAt(pos.ID)
	if err != nil {
		return nil, nil, err
	}
	if pos.RelativeOffset >= absolute.Len() {
		return absolute, absolute.next, nil
	}
	if pos.RelativeOffset == 0 {
		return s.prevLive(absolute), absolute, nil
	}
	right := absolute.split(pos.RelativeOffset)
	s.byID[right.id] = right
	s.idx.insertAfter(absolute, right)
	_ = executedAt
	return absolute, right, nil
}

// prevLive returns the node immediately preceding n in the linked list
// (tombstoned or not — prev in the raw chain, used only as a split anchor).
func (s *Split) prevLive(n *Node) *Node {
	return n.prev
}

// InsertAfter splices a brand-new node for value, created at executedAt,
// immediately to the right of `after`, applying the RGA tie-break rule: if
// `after` already has a right neighbor inserted concurrently (i.e. linked
// via insNext from a different original insertion than a strict causal
// successor), the node with the larger ticket sorts further left. Returns
// the new node.
func (s *Split) InsertAfter(after *Node, id ID, value Value) *Node {
	newNode := NewNode(id, value)
	s.byID[id] = newNode

	// Walk right past any nodes that were inserted at the same origin but
	// carry a larger creation ticket than newNode: those stay to newNode's
	// left under the tie-break rule (larger executedAt sits closer to the
	// left origin, spec §4.1).
	insertionPoint := after
	cursor := after.insNext
	for cursor != nil && cursor.id.CreatedAt.After(id.CreatedAt) {
		insertionPoint = cursor
		cursor = cursor.insNext
	}

	newNode.next = insertionPoint.next
	if insertionPoint.next != nil {
		insertionPoint.next.prev = newNode
	}
	insertionPoint.next = newNode
	newNode.prev = insertionPoint

	newNode.insNext = after.insNext
	if after.insNext != nil {
		after.insNext.insPrev = newNode
	}
	after.insNext = newNode
	newNode.insPrev = after

	s.idx.insertAfter(insertionPoint, newNode)
	return newNode
}

// Edit deletes the content in [range.From, range.To), gated by
// latestCreatedAtByActor (nil means "local edit: delete everything in
// range"), and optionally inserts value immediately after the left
// boundary. Returns the caret position, the updated per-actor max-createdAt
// map, and the visible-index-space content changes (computed before the
// edit mutates the tree, spec §4.1 step 5).
func (s *Split) Edit(
	rng NodeRange,
	executedAt clock.TimeTicket,
	value Value,
	latestCreatedAtByActor map[string]clock.TimeTicket,
) (NodePos, map[string]clock.TimeTicket, []ContentChange, error) {
	who := executedAt.ActorID()
	fromIdx, toIdx, err := s.findIndexesFromRangeUnsafe(rng)
	if err != nil {
		return NodePos{}, nil, nil, err
	}

	fromLeft, fromRight, err := s.findNodeWithSplit(rng.From, executedAt)
	if err != nil {
		return NodePos{}, nil, nil, err
	}
	_, toRight, err := s.findNodeWithSplit(rng.To, executedAt)
	if err != nil {
		return NodePos{}, nil, nil, err
	}

	updatedMap := map[string]clock.TimeTicket{}
	for k, v := range latestCreatedAtByActor {
		updatedMap[k] = v
	}

	var changes []ContentChange
	if fromIdx != toIdx {
		changes = append(changes, ContentChange{From: fromIdx, To: toIdx, Content: nil, Actor: who})
	}

	for n := fromRight; n != nil && n != toRight; n = n.next {
		if n.IsRemoved() {
			continue
		}
		if !canDelete(n.id.CreatedAt, latestCreatedAtByActor) {
			continue
		}
		if n.Remove(executedAt) {
			s.hasTomb = true
			s.idx.refreshWeight(n)
			actorKey := n.id.CreatedAt.ActorID().String()
			if cur, ok := updatedMap[actorKey]; !ok || n.id.CreatedAt.After(cur) {
				updatedMap[actorKey] = n.id.CreatedAt
			}
		}
	}

	caret := NodePos{ID: fromLeft.id, RelativeOffset: fromLeft.Len()}
	if value != nil {
		inserted := s.InsertAfter(fromLeft, ID{CreatedAt: executedAt, Offset: 0}, value)
		caret = NodePos{ID: inserted.id, RelativeOffset: inserted.Len()}
		changes = append(changes, ContentChange{From: fromIdx, To: fromIdx, Content: value, Actor: who})
	}

	return caret, updatedMap, changes, nil
}

// canDelete implements the concurrency gate from spec §4.1 step 2: a
// remote deletion only removes nodes whose creator the deleter could have
// observed. A nil map means a purely local edit, which always deletes
// everything in range.
func canDelete(createdAt clock.TimeTicket, latest map[string]clock.TimeTicket) bool {
	if latest == nil {
		return true
	}
	bound, ok := latest[createdAt.ActorID().String()]
	if !ok {
		return false
	}
	return !createdAt.After(bound)
}

// FindNodePos walks the index tree to the node containing visible index.
func (s *Split) FindNodePos(index int) (NodePos, error) {
	n, rel, ok := s.idx.findByOffset(index)
	if !ok {
		if index == 0 {
			return NodePos{ID: s.head.id, RelativeOffset: 0}, nil
		}
		return NodePos{}, fmt.Errorf("%w: index %d out of range", ErrStructure, index)
	}
	return NodePos{ID: n.id, RelativeOffset: rel}, nil
}

// FindIndexesFromRange returns the visible [from, to) pair for rng.
func (s *Split) FindIndexesFromRange(rng NodeRange) (int, int, error) {
	return s.findIndexesFromRangeUnsafe(rng)
}

func (s *Split) findIndexesFromRangeUnsafe(rng NodeRange) (int, int, error) {
	from, err := s.indexOfPos(rng.From)
	if err != nil {
		return 0, 0, err
	}
	to, err := s.indexOfPos(rng.To)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func (s *Split) indexOfPos(pos NodePos) (int, error) {
	n, err := s.nodeAt(pos.ID)
	if err != nil {
		return 0, err
	}
	base := s.idx.visibleIndexOf(n)
	if n.IsRemoved() {
		return base, nil
	}
	return base + pos.RelativeOffset, nil
}

// PurgeRemovedNodesBefore removes tombstones whose RemovedAt precedes
// ticket, unlinking them from both chains and the index tree. Returns the
// number of nodes purged.
func (s *Split) PurgeRemovedNodesBefore(ticket clock.TimeTicket) int {
	count := 0
	stillHasTomb := false
	for n := s.head.next; n != nil; {
		next := n.next
		if n.IsRemoved() && n.RemovedAt().Before(ticket) {
			s.unlink(n)
			count++
		} else if n.IsRemoved() {
			stillHasTomb = true
		}
		n = next
	}
	s.hasTomb = stillHasTomb
	return count
}

func (s *Split) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if n.insPrev != nil {
		n.insPrev.insNext = n.insNext
	}
	if n.insNext != nil {
		n.insNext.insPrev = n.insPrev
	}
	s.idx.remove(n)
	delete(s.byID, n.id)
}

// Nodes returns every live node in visible order, for rendering/tests.
func (s *Split) Nodes() []*Node {
	var out []*Node
	for n := s.head.next; n != nil; n = n.next {
		if !n.IsRemoved() {
			out = append(out, n)
		}
	}
	return out
}

// AllNodes returns every node including tombstones, in list order — for
// diagnostics and scenario tests that assert on tombstone survival.
func (s *Split) AllNodes() []*Node {
	var out []*Node
	for n := s.head.next; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// HeadID returns the sentinel head node's ID, the canonical "origin" used
// as `after` for an insert at the very start of the sequence.
func (s *Split) HeadID() ID { return s.head.id }

// NodeByID exposes a node lookup for callers outside the package (e.g. the
// text element attaching per-node style RHTs).
func (s *Split) NodeByID(id ID) (*Node, error) { return s.nodeAt(id) }
