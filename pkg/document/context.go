package document

import (
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/operations"
)

// changeContext accumulates the operations a single update closure builds.
// Each proxy method executes its operation against a staged root as it
// goes, so later proxy calls in the same closure observe earlier ones —
// spec §9's "proxies... translate method calls into operation records,"
// ephemeral and scoped to the closure.
type changeContext struct {
	baseID clock.ChangeID
	cursor clock.ChangeID
	root   *crdt.CRDTRoot

	ops   []operations.Operation
	infos []operations.OpInfo
}

func newChangeContext(id clock.ChangeID, root *crdt.CRDTRoot) *changeContext {
	return &changeContext{baseID: id, cursor: id, root: root}
}

// issueTicket returns the next TimeTicket for this change (spec §3.2: the
// delimiter advances, the Lamport value stays fixed for the whole change).
func (c *changeContext) issueTicket() clock.TimeTicket {
	ticket, next := c.cursor.IssueTimeTicket()
	c.cursor = next
	return ticket
}

// apply executes op against the staged root. A failure (StructureError,
// TypeMismatch, OutOfRange) propagates to the proxy caller and is never
// recorded, so the closure can catch it and keep building the change (spec
// §7's OutOfRange handling) or let it abort the whole update.
func (c *changeContext) apply(op operations.Operation) ([]operations.OpInfo, error) {
	infos, err := op.Execute(c.root)
	if err != nil {
		return nil, err
	}
	c.ops = append(c.ops, op)
	c.infos = append(c.infos, infos...)
	return infos, nil
}
