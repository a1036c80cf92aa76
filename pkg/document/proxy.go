package document

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
	"github.com/kevinxiao27/docweave/pkg/operations"
)

// ObjectProxy is the ephemeral handle an update closure manipulates in
// place of the object element it wraps (spec §9's "Proxies for update").
// Every mutating method builds and executes one Operation through the
// enclosing changeContext; proxies never escape the closure that created
// them.
type ObjectProxy struct {
	ctx  *changeContext
	elem *crdt.Object
}

func newObjectProxy(ctx *changeContext, elem *crdt.Object) *ObjectProxy {
	return &ObjectProxy{ctx: ctx, elem: elem}
}

func (p *ObjectProxy) setPrimitive(key string, kind crdt.PrimitiveKind, value any) error {
	ticket := p.ctx.issueTicket()
	prim := crdt.NewPrimitive(kind, value, ticket)
	_, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: prim, At: ticket})
	return err
}

func (p *ObjectProxy) SetBool(key string, value bool) error      { return p.setPrimitive(key, crdt.KindBool, value) }
func (p *ObjectProxy) SetInt32(key string, value int32) error    { return p.setPrimitive(key, crdt.KindInt32, value) }
func (p *ObjectProxy) SetInt64(key string, value int64) error    { return p.setPrimitive(key, crdt.KindInt64, value) }
func (p *ObjectProxy) SetDouble(key string, value float64) error { return p.setPrimitive(key, crdt.KindDouble, value) }
func (p *ObjectProxy) SetString(key string, value string) error  { return p.setPrimitive(key, crdt.KindString, value) }
func (p *ObjectProxy) SetBytes(key string, value []byte) error   { return p.setPrimitive(key, crdt.KindBytes, value) }

// SetNewObject installs a fresh, empty object under key and returns a proxy
// over it, so the closure can keep nesting writes.
func (p *ObjectProxy) SetNewObject(key string) (*ObjectProxy, error) {
	ticket := p.ctx.issueTicket()
	child := crdt.NewObject(ticket)
	if _, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: child, At: ticket}); err != nil {
		return nil, err
	}
	return newObjectProxy(p.ctx, child), nil
}

// SetNewArray installs a fresh, empty array under key.
func (p *ObjectProxy) SetNewArray(key string) (*ArrayProxy, error) {
	ticket := p.ctx.issueTicket()
	child := crdt.NewArray(ticket)
	if _, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: child, At: ticket}); err != nil {
		return nil, err
	}
	return newArrayProxy(p.ctx, child), nil
}

// SetNewText installs a fresh, empty text element under key.
func (p *ObjectProxy) SetNewText(key string) (*TextProxy, error) {
	ticket := p.ctx.issueTicket()
	child := crdt.NewText(ticket)
	if _, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: child, At: ticket}); err != nil {
		return nil, err
	}
	return newTextProxy(p.ctx, child), nil
}

// SetNewCounter installs a fresh counter under key.
func (p *ObjectProxy) SetNewCounter(key string, kind crdt.CounterKind) (*CounterProxy, error) {
	ticket := p.ctx.issueTicket()
	child := crdt.NewCounter(kind, ticket)
	if _, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: child, At: ticket}); err != nil {
		return nil, err
	}
	return newCounterProxy(p.ctx, child), nil
}

// SetNewTree installs a fresh tree under key, with a synthetic root typed
// rootType.
func (p *ObjectProxy) SetNewTree(key, rootType string) (*TreeProxy, error) {
	ticket := p.ctx.issueTicket()
	child := crdt.NewTree(ticket, rootType)
	if _, err := p.ctx.apply(&operations.SetOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, Value: child, At: ticket}); err != nil {
		return nil, err
	}
	return newTreeProxy(p.ctx, child), nil
}

// Delete removes key.
func (p *ObjectProxy) Delete(key string) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.RemoveOperation{ParentCreatedAt: p.elem.CreatedAt(), Key: key, At: ticket})
	return err
}

// Get returns the live element stored at key, for reading within the
// closure (no operation is recorded).
func (p *ObjectProxy) Get(key string) (crdt.Element, error) { return p.elem.Get(key) }

// Keys returns the object's live keys in first-write order.
func (p *ObjectProxy) Keys() []string { return p.elem.Keys() }

// ArrayProxy is the proxy over an array element.
type ArrayProxy struct {
	ctx  *changeContext
	elem *crdt.Array
}

func newArrayProxy(ctx *changeContext, elem *crdt.Array) *ArrayProxy {
	return &ArrayProxy{ctx: ctx, elem: elem}
}

func (p *ArrayProxy) lastCreatedAt() clock.TimeTicket {
	elems := p.elem.Elements()
	if len(elems) == 0 {
		return clock.Initial
	}
	return elems[len(elems)-1].CreatedAt()
}

func (p *ArrayProxy) pushPrimitive(kind crdt.PrimitiveKind, value any) error {
	ticket := p.ctx.issueTicket()
	prim := crdt.NewPrimitive(kind, value, ticket)
	prev := p.lastCreatedAt()
	_, err := p.ctx.apply(&operations.AddOperation{ParentCreatedAt: p.elem.CreatedAt(), PrevCreatedAt: prev, Value: prim, At: ticket})
	return err
}

func (p *ArrayProxy) PushBool(value bool) error      { return p.pushPrimitive(crdt.KindBool, value) }
func (p *ArrayProxy) PushInt32(value int32) error    { return p.pushPrimitive(crdt.KindInt32, value) }
func (p *ArrayProxy) PushInt64(value int64) error    { return p.pushPrimitive(crdt.KindInt64, value) }
func (p *ArrayProxy) PushDouble(value float64) error { return p.pushPrimitive(crdt.KindDouble, value) }
func (p *ArrayProxy) PushString(value string) error  { return p.pushPrimitive(crdt.KindString, value) }

// MoveAfter re-splices the member created at target to just after prev.
func (p *ArrayProxy) MoveAfter(prev, target clock.TimeTicket) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.MoveOperation{ParentCreatedAt: p.elem.CreatedAt(), PrevCreatedAt: prev, TargetCreatedAt: target, At: ticket})
	return err
}

// RemoveByCreatedAt removes the member created at target.
func (p *ArrayProxy) RemoveByCreatedAt(target clock.TimeTicket) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.RemoveOperation{ParentCreatedAt: p.elem.CreatedAt(), TargetCreatedAt: target, At: ticket})
	return err
}

// Elements returns the array's live members in order.
func (p *ArrayProxy) Elements() []crdt.Element { return p.elem.Elements() }

// TextProxy is the proxy over a text element.
type TextProxy struct {
	ctx  *changeContext
	elem *crdt.Text
}

func newTextProxy(ctx *changeContext, elem *crdt.Text) *TextProxy {
	return &TextProxy{ctx: ctx, elem: elem}
}

// HeadPos returns the sentinel position at the start of the sequence, the
// starting point for a first insert.
func (p *TextProxy) HeadPos() rga.NodePos {
	return rga.NodePos{ID: p.elem.Split().HeadID()}
}

// Edit replaces [from, to) with content (content may be empty for a pure
// delete, and from == to for a pure insert).
func (p *TextProxy) Edit(from, to rga.NodePos, content string) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.EditOperation{ParentCreatedAt: p.elem.CreatedAt(), From: from, To: to, Content: content, At: ticket})
	return err
}

// Style applies key=value to every run overlapping [from, to).
func (p *TextProxy) Style(from, to rga.NodePos, key, value string) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.StyleOperation{ParentCreatedAt: p.elem.CreatedAt(), From: from, To: to, Key: key, Value: value, At: ticket})
	return err
}

// FindIndexesFromRange converts a NodeRange to visible index-space bounds.
func (p *TextProxy) FindIndexesFromRange(from, to rga.NodePos) (int, int, error) {
	return p.elem.Split().FindIndexesFromRange(rga.NodeRange{From: from, To: to})
}

// FindPos converts a visible index to a NodePos.
func (p *TextProxy) FindPos(index int) (rga.NodePos, error) { return p.elem.Split().FindNodePos(index) }

// String returns the text's current visible content.
func (p *TextProxy) String() string { return p.elem.String() }

// CounterProxy is the proxy over a counter element.
type CounterProxy struct {
	ctx  *changeContext
	elem *crdt.Counter
}

func newCounterProxy(ctx *changeContext, elem *crdt.Counter) *CounterProxy {
	return &CounterProxy{ctx: ctx, elem: elem}
}

// Increase adds delta to the counter.
func (p *CounterProxy) Increase(delta int64) error {
	ticket := p.ctx.issueTicket()
	_, err := p.ctx.apply(&operations.IncreaseOperation{ParentCreatedAt: p.elem.CreatedAt(), Delta: delta, At: ticket})
	return err
}

// Value returns the counter's current accumulated value.
func (p *CounterProxy) Value() int64 { return p.elem.Value() }

// TreeProxy is the proxy over a tree element.
type TreeProxy struct {
	ctx  *changeContext
	elem *crdt.Tree
}

func newTreeProxy(ctx *changeContext, elem *crdt.Tree) *TreeProxy {
	return &TreeProxy{ctx: ctx, elem: elem}
}

// EditByIndex edits the tree over the visible index range [fromIndex,
// toIndex), inserting contents at the from-site.
func (p *TreeProxy) EditByIndex(fromIndex, toIndex int, contents []*tree.Node) error {
	ticket := p.ctx.issueTicket()
	from, err := p.elem.Inner().IndexToPos(fromIndex, ticket)
	if err != nil {
		return err
	}
	to, err := p.elem.Inner().IndexToPos(toIndex, ticket)
	if err != nil {
		return err
	}
	_, err = p.ctx.apply(&operations.TreeEditOperation{ParentCreatedAt: p.elem.CreatedAt(), From: from, To: to, Contents: contents, At: ticket})
	return err
}

// Root returns the tree's synthetic root node, for read-only traversal.
func (p *TreeProxy) Root() *tree.Node { return p.elem.Inner().Root() }
