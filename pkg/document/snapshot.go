package document

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
	"github.com/kevinxiao27/docweave/pkg/crdt/tree"
)

// snapshotDTO is the opaque wire form of ChangePack.Snapshot (spec §6.1):
// a full root plus the ChangeID it was taken at. Style attributes on text
// runs aren't carried across a snapshot boundary — a documented
// simplification, not a silent drop; a full-fidelity snapshot would also
// serialize each run's RHT.
type snapshotDTO struct {
	ChangeID  changeIDDTO `json:"changeId"`
	RootObj   elementDTO  `json:"root"`
}

type changeIDDTO struct {
	ClientSeq uint32    `json:"clientSeq"`
	Lamport   int64     `json:"lamport"`
	Actor     string    `json:"actor"`
}

type ticketDTO struct {
	Lamport   int64  `json:"l"`
	Delimiter uint32 `json:"d"`
	Actor     string `json:"a"`
}

type elementDTO struct {
	Kind      string     `json:"k"`
	CreatedAt ticketDTO  `json:"c"`
	MovedAt   *ticketDTO `json:"m,omitempty"`
	RemovedAt *ticketDTO `json:"r,omitempty"`

	PrimKind int             `json:"pk,omitempty"`
	PrimVal  json.RawMessage `json:"pv,omitempty"`

	ObjectEntries []objectEntryDTO `json:"oe,omitempty"`
	ArrayMembers  []elementDTO     `json:"am,omitempty"`

	CounterKind     int      `json:"ck,omitempty"`
	CounterVal      int64    `json:"cv,omitempty"`
	CounterApplied  []string `json:"ca,omitempty"`

	TextRuns []textRunDTO `json:"tr,omitempty"`

	TreeRootType string        `json:"trt,omitempty"`
	TreeChildren []treeNodeDTO `json:"tc,omitempty"`
}

type objectEntryDTO struct {
	Key       string     `json:"k"`
	UpdatedAt ticketDTO  `json:"u"`
	Value     elementDTO `json:"v"`
}

type textRunDTO struct {
	CreatedAt ticketDTO  `json:"c"`
	Offset    int        `json:"o"`
	Content   string     `json:"s"`
	RemovedAt *ticketDTO `json:"r,omitempty"`
}

type treeNodeDTO struct {
	CreatedAt ticketDTO     `json:"c"`
	Offset    int           `json:"o"`
	Type      string        `json:"t"`
	IsText    bool          `json:"x,omitempty"`
	Content   string        `json:"s,omitempty"`
	RemovedAt *ticketDTO    `json:"r,omitempty"`
	Children  []treeNodeDTO `json:"ch,omitempty"`
}

func encodeTicket(t clock.TimeTicket) ticketDTO {
	return ticketDTO{Lamport: t.Lamport(), Delimiter: t.Delimiter(), Actor: t.ActorID().String()}
}

func decodeTicket(d ticketDTO) (clock.TimeTicket, error) {
	raw, err := hex.DecodeString(d.Actor)
	if err != nil {
		return clock.TimeTicket{}, fmt.Errorf("document: decode ticket actor: %w", err)
	}
	id, err := actor.FromBytes(raw)
	if err != nil {
		return clock.TimeTicket{}, err
	}
	return clock.NewTicket(d.Lamport, d.Delimiter, id), nil
}

// EncodeSnapshot serializes root and changeID into the opaque bytes a
// ChangePack.Snapshot carries.
func EncodeSnapshot(root *crdt.CRDTRoot, changeID clock.ChangeID) ([]byte, error) {
	rootDTO, err := encodeElement(root.Object())
	if err != nil {
		return nil, err
	}
	snap := snapshotDTO{
		ChangeID: changeIDDTO{ClientSeq: changeID.ClientSeq(), Lamport: changeID.Lamport(), Actor: changeID.ActorID().String()},
		RootObj:  rootDTO,
	}
	return json.Marshal(snap)
}

// DecodeSnapshot rebuilds a root and ChangeID from bytes EncodeSnapshot
// produced.
func DecodeSnapshot(data []byte) (*crdt.CRDTRoot, clock.ChangeID, error) {
	var snap snapshotDTO
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, clock.ChangeID{}, fmt.Errorf("document: decode snapshot: %w", err)
	}
	rootElem, err := decodeElement(snap.RootObj)
	if err != nil {
		return nil, clock.ChangeID{}, err
	}
	rootObj, ok := rootElem.(*crdt.Object)
	if !ok {
		return nil, clock.ChangeID{}, fmt.Errorf("document: snapshot root is not an object")
	}

	rawActor, err := hex.DecodeString(snap.ChangeID.Actor)
	if err != nil {
		return nil, clock.ChangeID{}, err
	}
	actorID, err := actor.FromBytes(rawActor)
	if err != nil {
		return nil, clock.ChangeID{}, err
	}

	root := crdt.NewRootFromObject(rootObj)

	changeID := clock.InitialChangeID(actorID)
	for i := uint32(0); i < snap.ChangeID.ClientSeq; i++ {
		changeID = changeID.Next()
	}
	// SyncLamport lands one past its argument.
	if snap.ChangeID.Lamport > changeID.Lamport() {
		changeID = changeID.SyncLamport(snap.ChangeID.Lamport - 1)
	}
	return root, changeID, nil
}

func encodeElement(e crdt.Element) (elementDTO, error) {
	dto := elementDTO{CreatedAt: encodeTicket(e.CreatedAt())}
	if at, ok := e.MovedAt(); ok {
		t := encodeTicket(at)
		dto.MovedAt = &t
	}
	if at, ok := e.RemovedAt(); ok {
		t := encodeTicket(at)
		dto.RemovedAt = &t
	}

	switch v := e.(type) {
	case *crdt.Primitive:
		dto.Kind = "primitive"
		dto.PrimKind = int(v.Kind())
		raw, err := json.Marshal(v.Value())
		if err != nil {
			return dto, fmt.Errorf("document: encode primitive: %w", err)
		}
		dto.PrimVal = raw

	case *crdt.Object:
		dto.Kind = "object"
		for _, entry := range v.EntriesForSnapshot() {
			childDTO, err := encodeElement(entry.Value)
			if err != nil {
				return dto, err
			}
			dto.ObjectEntries = append(dto.ObjectEntries, objectEntryDTO{
				Key: entry.Key, UpdatedAt: encodeTicket(entry.UpdatedAt), Value: childDTO,
			})
		}

	case *crdt.Array:
		dto.Kind = "array"
		for _, m := range v.AllElements() {
			childDTO, err := encodeElement(m)
			if err != nil {
				return dto, err
			}
			dto.ArrayMembers = append(dto.ArrayMembers, childDTO)
		}

	case *crdt.Counter:
		dto.Kind = "counter"
		dto.CounterKind = int(v.Kind())
		dto.CounterVal = v.Value()
		dto.CounterApplied = v.AppliedTickets()

	case *crdt.Text:
		dto.Kind = "text"
		for _, n := range v.Split().AllNodes() {
			val := n.Value().(*rga.TextValue)
			run := textRunDTO{CreatedAt: encodeTicket(n.ID().CreatedAt), Offset: n.ID().Offset, Content: val.String()}
			if n.IsRemoved() {
				t := encodeTicket(n.RemovedAt())
				run.RemovedAt = &t
			}
			dto.TextRuns = append(dto.TextRuns, run)
		}

	case *crdt.Tree:
		dto.Kind = "tree"
		dto.TreeRootType = v.Inner().Root().Type()
		dto.TreeChildren = encodeTreeChildren(v.Inner().Root().Children())

	default:
		return dto, fmt.Errorf("document: unsupported element kind %T", e)
	}
	return dto, nil
}

func encodeTreeChildren(children []*tree.Node) []treeNodeDTO {
	out := make([]treeNodeDTO, 0, len(children))
	for _, c := range children {
		n := treeNodeDTO{CreatedAt: encodeTicket(c.ID().CreatedAt), Offset: c.ID().Offset, Type: c.Type(), IsText: c.IsText()}
		if c.IsText() {
			n.Content = c.TextContent()
		} else {
			n.Children = encodeTreeChildren(c.Children())
		}
		if c.IsRemoved() {
			t := encodeTicket(c.RemovedAt())
			n.RemovedAt = &t
		}
		out = append(out, n)
	}
	return out
}

func decodePrimVal(kind crdt.PrimitiveKind, raw json.RawMessage) (any, error) {
	switch kind {
	case crdt.KindBool:
		var v bool
		return v, json.Unmarshal(raw, &v)
	case crdt.KindInt32:
		var v int32
		return v, json.Unmarshal(raw, &v)
	case crdt.KindInt64, crdt.KindDate:
		var v int64
		return v, json.Unmarshal(raw, &v)
	case crdt.KindDouble:
		var v float64
		return v, json.Unmarshal(raw, &v)
	case crdt.KindString:
		var v string
		return v, json.Unmarshal(raw, &v)
	case crdt.KindBytes:
		var v []byte
		return v, json.Unmarshal(raw, &v)
	default:
		return nil, fmt.Errorf("document: unknown primitive kind %d", kind)
	}
}

func decodeElement(dto elementDTO) (crdt.Element, error) {
	createdAt, err := decodeTicket(dto.CreatedAt)
	if err != nil {
		return nil, err
	}

	var elem crdt.Element
	switch dto.Kind {
	case "primitive":
		val, err := decodePrimVal(crdt.PrimitiveKind(dto.PrimKind), dto.PrimVal)
		if err != nil {
			return nil, err
		}
		elem = crdt.NewPrimitive(crdt.PrimitiveKind(dto.PrimKind), val, createdAt)

	case "object":
		obj := crdt.NewObject(createdAt)
		for _, entry := range dto.ObjectEntries {
			child, err := decodeElement(entry.Value)
			if err != nil {
				return nil, err
			}
			updatedAt, err := decodeTicket(entry.UpdatedAt)
			if err != nil {
				return nil, err
			}
			obj.Set(entry.Key, child, updatedAt)
		}
		elem = obj

	case "array":
		arr := crdt.NewArray(createdAt)
		prev := clock.Initial
		for _, m := range dto.ArrayMembers {
			child, err := decodeElement(m)
			if err != nil {
				return nil, err
			}
			if err := arr.InsertAfter(prev, child); err != nil {
				return nil, err
			}
			prev = child.CreatedAt()
		}
		elem = arr

	case "counter":
		c := crdt.NewCounter(crdt.CounterKind(dto.CounterKind), createdAt)
		c.SetValueForSnapshot(dto.CounterVal)
		c.RestoreApplied(dto.CounterApplied)
		elem = c

	case "text":
		txt := crdt.NewText(createdAt)
		split := txt.Split()
		prev, _ := split.NodeByID(split.HeadID())
		for _, run := range dto.TextRuns {
			runCreatedAt, err := decodeTicket(run.CreatedAt)
			if err != nil {
				return nil, err
			}
			id := rga.ID{CreatedAt: runCreatedAt, Offset: run.Offset}
			node := split.InsertAfter(prev, id, rga.NewTextValue(run.Content))
			if run.RemovedAt != nil {
				removedAt, err := decodeTicket(*run.RemovedAt)
				if err != nil {
					return nil, err
				}
				node.Remove(removedAt)
			}
			prev = node
		}
		elem = txt

	case "tree":
		tr := crdt.NewTree(createdAt, dto.TreeRootType)
		if err := decodeTreeChildren(tr.Inner(), tr.Inner().Root(), dto.TreeChildren); err != nil {
			return nil, err
		}
		elem = tr

	default:
		return nil, fmt.Errorf("document: unknown snapshot element kind %q", dto.Kind)
	}

	if dto.MovedAt != nil {
		at, err := decodeTicket(*dto.MovedAt)
		if err != nil {
			return nil, err
		}
		elem.Move(at)
	}
	if dto.RemovedAt != nil {
		at, err := decodeTicket(*dto.RemovedAt)
		if err != nil {
			return nil, err
		}
		elem.Remove(at)
	}
	return elem, nil
}

func decodeTreeChildren(dst *tree.Tree, dstParent *tree.Node, children []treeNodeDTO) error {
	var anchor *tree.Node
	for _, c := range children {
		createdAt, err := decodeTicket(c.CreatedAt)
		if err != nil {
			return err
		}
		id := tree.NodeID{CreatedAt: createdAt, Offset: c.Offset}
		var node *tree.Node
		if c.IsText {
			node = tree.NewTextNode(id, c.Content, clock.Initial)
		} else {
			node = tree.NewElementNode(id, c.Type, clock.Initial)
		}
		if err := dst.Edit(tree.PosOf(dstParent, anchor), tree.PosOf(dstParent, anchor), []*tree.Node{node}, createdAt); err != nil {
			return err
		}
		if c.RemovedAt != nil {
			removedAt, err := decodeTicket(*c.RemovedAt)
			if err != nil {
				return err
			}
			node.Remove(removedAt)
		}
		anchor = node
		if !c.IsText {
			if err := decodeTreeChildren(dst, node, c.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
