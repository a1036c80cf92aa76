package crdt

import (
	"errors"
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// ErrTargetNotFound is returned when an operation's parentCreatedAt names
// an element the root has never registered (spec §7 StructureError).
var ErrTargetNotFound = errors.New("crdt: target element not found")

// ErrTypeMismatch is returned when an operation's target isn't the element
// kind the operation expects (spec §7 TypeMismatch).
var ErrTypeMismatch = errors.New("crdt: element type mismatch")

// hasInternalTombstones is satisfied by element kinds whose nested removed
// nodes GarbageCollect can purge (text, array) and are therefore GC
// candidates beyond simple removal from the root's registry (spec §4.4's
// elementHasRemovedNodesSetByCreatedAt).
type hasInternalTombstones interface {
	purgeBefore(minSynced clock.TimeTicket) int
}

// CRDTRoot is the registry every operation executes against (spec §4.4).
type CRDTRoot struct {
	rootObject *Object

	elementByCreatedAt        map[string]Element
	removedByCreatedAt        map[string]Element
	hasInternalTombstoneByKey map[string]bool

	parentByCreatedAt map[string]Element
}

// NewRoot returns a root containing an empty top-level object, registered
// under createdAt.
func NewRoot(createdAt clock.TimeTicket) *CRDTRoot {
	rootObj := NewObject(createdAt)
	r := &CRDTRoot{
		rootObject:                rootObj,
		elementByCreatedAt:        make(map[string]Element),
		removedByCreatedAt:        make(map[string]Element),
		hasInternalTombstoneByKey: make(map[string]bool),
		parentByCreatedAt:         make(map[string]Element),
	}
	r.register(rootObj)
	return r
}

// Object returns the top-level object element.
func (r *CRDTRoot) Object() *Object { return r.rootObject }

// register adds elem to the live registry.
func (r *CRDTRoot) register(elem Element) {
	r.elementByCreatedAt[elem.CreatedAt().Key()] = elem
}

// RegisterChild records elem as reachable and notes its logical parent, for
// createPath. Callers invoke this after splicing elem into a container.
func (r *CRDTRoot) RegisterChild(elem, parent Element) {
	r.register(elem)
	r.parentByCreatedAt[elem.CreatedAt().Key()] = parent
}

// FindByCreatedAt looks up any element, live or tombstoned, by its
// createdAt ticket.
func (r *CRDTRoot) FindByCreatedAt(createdAt clock.TimeTicket) (Element, error) {
	if e, ok := r.elementByCreatedAt[createdAt.Key()]; ok {
		return e, nil
	}
	if e, ok := r.removedByCreatedAt[createdAt.Key()]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, createdAt.String())
}

// MarkRemoved moves elem from the live registry to the removed set and, if
// elem can carry internal tombstones, records it as a nested-GC candidate.
func (r *CRDTRoot) MarkRemoved(elem Element) {
	key := elem.CreatedAt().Key()
	delete(r.elementByCreatedAt, key)
	r.removedByCreatedAt[key] = elem
	if hasNestedTombstones(elem) {
		r.hasInternalTombstoneByKey[key] = true
	}
	log.WithFields(logrus.Fields{"createdAt": elem.CreatedAt().String()}).Debug("crdt: element tombstoned")
}

// MarkInternallyTombstoned flags an otherwise-live container (text, tree,
// array) as holding internal tombstones worth a later GC sweep, without
// removing the container itself.
func (r *CRDTRoot) MarkInternallyTombstoned(elem Element) {
	r.hasInternalTombstoneByKey[elem.CreatedAt().Key()] = true
}

func hasNestedTombstones(elem Element) bool {
	switch elem.(type) {
	case *Text, *Tree, *Array:
		return true
	default:
		return false
	}
}

// CreatePath walks parent pointers from elem up to the root, producing a
// debug path like "$.a.b[2]" (spec §4.4). Best-effort: array indices aren't
// tracked by this simplified registry, so array members render by their
// createdAt instead of a numeric index.
func (r *CRDTRoot) CreatePath(createdAt clock.TimeTicket) string {
	path := "$"
	var segments []string
	cur, err := r.FindByCreatedAt(createdAt)
	if err != nil {
		return path
	}
	for {
		parent, ok := r.parentByCreatedAt[cur.CreatedAt().Key()]
		if !ok {
			break
		}
		switch p := parent.(type) {
		case *Object:
			for _, k := range p.Keys() {
				v, _ := p.Get(k)
				if v == cur {
					segments = append([]string{"." + k}, segments...)
					break
				}
			}
		case *Array:
			segments = append([]string{"[" + cur.CreatedAt().String() + "]"}, segments...)
		default:
			_ = p
		}
		cur = parent
	}
	for _, s := range segments {
		path += s
	}
	return path
}

// GarbageCollect purges every tombstone whose removedAt is strictly before
// minSynced: removed from the root's removed set, and — for live containers
// flagged as holding internal tombstones — their own internal tombstones
// purged too (spec §4.4). Returns the number of top-level elements purged.
func (r *CRDTRoot) GarbageCollect(minSynced clock.TimeTicket) int {
	purged := 0
	for key, elem := range r.removedByCreatedAt {
		removedAt, ok := elem.RemovedAt()
		if !ok || !removedAt.Before(minSynced) {
			continue
		}
		delete(r.removedByCreatedAt, key)
		delete(r.hasInternalTombstoneByKey, key)
		delete(r.parentByCreatedAt, key)
		purged++
	}
	for key := range r.hasInternalTombstoneByKey {
		elem, ok := r.elementByCreatedAt[key]
		if !ok {
			continue
		}
		internal, ok := elem.(hasInternalTombstones)
		if !ok {
			continue
		}
		if internal.purgeBefore(minSynced) > 0 {
			log.WithFields(logrus.Fields{"createdAt": key}).Debug("crdt: purged nested tombstones")
		}
		if !stillHasInternalTombstones(elem) {
			delete(r.hasInternalTombstoneByKey, key)
		}
	}
	return purged
}

func stillHasInternalTombstones(elem Element) bool {
	switch e := elem.(type) {
	case *Text:
		return e.split.HasRemovedNodes()
	case *Array:
		return e.hasRemainingTombstones()
	default:
		return false
	}
}

// MarshalCanonicalJSON renders the whole document's live content, spec
// §8.1's convergence property tests compare this across replicas.
func (r *CRDTRoot) MarshalCanonicalJSON() []byte {
	return r.rootObject.MarshalCanonicalJSON(nil)
}

// DeepCopy returns an independent root: every element reachable from
// rootObject is copied (spec §9's "deep copy... do not reuse identity"), and
// the registry maps are rebuilt by walking the copy. Document.Update stages
// operations against a DeepCopy first, so a closure error never touches the
// live root (spec §4.5).
func (r *CRDTRoot) DeepCopy() *CRDTRoot {
	copiedRoot := r.rootObject.DeepCopy().(*Object)
	nr := &CRDTRoot{
		rootObject:                copiedRoot,
		elementByCreatedAt:        make(map[string]Element),
		removedByCreatedAt:        make(map[string]Element),
		hasInternalTombstoneByKey: make(map[string]bool),
		parentByCreatedAt:         make(map[string]Element),
	}
	nr.register(copiedRoot)
	nr.walkChildren(copiedRoot)
	return nr
}

// NewRootFromObject builds a root around an already-constructed object
// tree — e.g. one a Document snapshot decoder just rebuilt — registering
// every element reachable from it into the registry the same way DeepCopy
// does.
func NewRootFromObject(rootObj *Object) *CRDTRoot {
	r := &CRDTRoot{
		rootObject:                rootObj,
		elementByCreatedAt:        make(map[string]Element),
		removedByCreatedAt:        make(map[string]Element),
		hasInternalTombstoneByKey: make(map[string]bool),
		parentByCreatedAt:         make(map[string]Element),
	}
	r.register(rootObj)
	r.walkChildren(rootObj)
	return r
}

// walkChildren registers every element reachable from container into the
// registry, recursing into nested objects/arrays.
func (r *CRDTRoot) walkChildren(container Element) {
	switch c := container.(type) {
	case *Object:
		for _, e := range c.Elements() {
			r.registerReachable(e, c)
		}
	case *Array:
		for _, e := range c.AllElements() {
			r.registerReachable(e, c)
		}
	}
}

func (r *CRDTRoot) registerReachable(elem, parent Element) {
	key := elem.CreatedAt().Key()
	if elem.IsRemoved() {
		r.removedByCreatedAt[key] = elem
	} else {
		r.elementByCreatedAt[key] = elem
	}
	r.parentByCreatedAt[key] = parent
	if stillHasInternalTombstones(elem) || (elem.IsRemoved() && hasNestedTombstones(elem)) {
		r.hasInternalTombstoneByKey[key] = true
	}
	r.walkChildren(elem)
}
