package operations

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
)

// DTO is the wire form of an Operation (spec §6.2): a tagged union keyed by
// Kind, carrying only the fields that kind needs. Scoped to the operation
// kinds a transport actually needs to relay for primitive-valued object,
// array and text edits; Set/Add of a nested container (object, array,
// text, counter, tree) and the tree operations stay in-process only —
// EncodeOperation rejects them rather than silently dropping the nested
// value (a caller relaying a structural change should ship a snapshot
// instead).
type DTO struct {
	Kind            string           `json:"kind"`
	ParentCreatedAt ticketDTO        `json:"parentCreatedAt"`
	At              ticketDTO        `json:"at"`
	Key             string           `json:"key,omitempty"`
	TargetCreatedAt *ticketDTO       `json:"targetCreatedAt,omitempty"`
	PrevCreatedAt   *ticketDTO       `json:"prevCreatedAt,omitempty"`
	ValueCreatedAt  *ticketDTO       `json:"valueCreatedAt,omitempty"`
	PrimKind        int              `json:"primKind,omitempty"`
	PrimVal         json.RawMessage  `json:"primVal,omitempty"`
	From            *nodePosDTO      `json:"from,omitempty"`
	To              *nodePosDTO      `json:"to,omitempty"`
	Content         string           `json:"content,omitempty"`
	StyleKey        string           `json:"styleKey,omitempty"`
	StyleValue      string           `json:"styleValue,omitempty"`
	Delta           int64            `json:"delta,omitempty"`
}

type ticketDTO struct {
	Lamport   int64  `json:"l"`
	Delimiter uint32 `json:"d"`
	Actor     string `json:"a"`
}

type nodePosDTO struct {
	CreatedAt      ticketDTO `json:"c"`
	Offset         int       `json:"o"`
	RelativeOffset int       `json:"r"`
}

func encodeTicket(t clock.TimeTicket) ticketDTO {
	return ticketDTO{Lamport: t.Lamport(), Delimiter: t.Delimiter(), Actor: t.ActorID().String()}
}

func decodeTicket(d ticketDTO) (clock.TimeTicket, error) {
	raw, err := hex.DecodeString(d.Actor)
	if err != nil {
		return clock.TimeTicket{}, fmt.Errorf("operations: decode ticket actor: %w", err)
	}
	id, err := actor.FromBytes(raw)
	if err != nil {
		return clock.TimeTicket{}, err
	}
	return clock.NewTicket(d.Lamport, d.Delimiter, id), nil
}

func encodeNodePos(p rga.NodePos) nodePosDTO {
	return nodePosDTO{CreatedAt: encodeTicket(p.ID.CreatedAt), Offset: p.ID.Offset, RelativeOffset: p.RelativeOffset}
}

func decodeNodePos(d nodePosDTO) (rga.NodePos, error) {
	createdAt, err := decodeTicket(d.CreatedAt)
	if err != nil {
		return rga.NodePos{}, err
	}
	return rga.NodePos{ID: rga.ID{CreatedAt: createdAt, Offset: d.Offset}, RelativeOffset: d.RelativeOffset}, nil
}

// ErrOperationNotWireEncodable is returned by EncodeOperation for an
// operation kind or value this wire format doesn't cover.
var ErrOperationNotWireEncodable = fmt.Errorf("operations: not wire encodable")

// EncodeOperation renders op as its wire DTO.
func EncodeOperation(op Operation) (DTO, error) {
	switch o := op.(type) {
	case *SetOperation:
		prim, ok := o.Value.(*crdt.Primitive)
		if !ok {
			return DTO{}, fmt.Errorf("%w: set of %T", ErrOperationNotWireEncodable, o.Value)
		}
		raw, err := json.Marshal(prim.Value())
		if err != nil {
			return DTO{}, err
		}
		valueAt := encodeTicket(prim.CreatedAt())
		return DTO{
			Kind: "set", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			Key: o.Key, ValueCreatedAt: &valueAt, PrimKind: int(prim.Kind()), PrimVal: raw,
		}, nil

	case *RemoveOperation:
		var target *ticketDTO
		if !o.TargetCreatedAt.Equal(clock.Initial) {
			t := encodeTicket(o.TargetCreatedAt)
			target = &t
		}
		return DTO{
			Kind: "remove", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			Key: o.Key, TargetCreatedAt: target,
		}, nil

	case *AddOperation:
		prim, ok := o.Value.(*crdt.Primitive)
		if !ok {
			return DTO{}, fmt.Errorf("%w: add of %T", ErrOperationNotWireEncodable, o.Value)
		}
		raw, err := json.Marshal(prim.Value())
		if err != nil {
			return DTO{}, err
		}
		prev := encodeTicket(o.PrevCreatedAt)
		valueAt := encodeTicket(prim.CreatedAt())
		return DTO{
			Kind: "add", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			PrevCreatedAt: &prev, ValueCreatedAt: &valueAt, PrimKind: int(prim.Kind()), PrimVal: raw,
		}, nil

	case *MoveOperation:
		prev := encodeTicket(o.PrevCreatedAt)
		target := encodeTicket(o.TargetCreatedAt)
		return DTO{
			Kind: "move", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			PrevCreatedAt: &prev, TargetCreatedAt: &target,
		}, nil

	case *EditOperation:
		from, to := encodeNodePos(o.From), encodeNodePos(o.To)
		return DTO{
			Kind: "edit", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			From: &from, To: &to, Content: o.Content,
		}, nil

	case *StyleOperation:
		from, to := encodeNodePos(o.From), encodeNodePos(o.To)
		return DTO{
			Kind: "style", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			From: &from, To: &to, StyleKey: o.Key, StyleValue: o.Value,
		}, nil

	case *IncreaseOperation:
		return DTO{
			Kind: "increase", ParentCreatedAt: encodeTicket(o.ParentCreatedAt), At: encodeTicket(o.At),
			Delta: o.Delta,
		}, nil

	default:
		return DTO{}, fmt.Errorf("%w: %T", ErrOperationNotWireEncodable, op)
	}
}

// DecodeOperation rebuilds the Operation a DTO describes.
func DecodeOperation(dto DTO) (Operation, error) {
	parentCreatedAt, err := decodeTicket(dto.ParentCreatedAt)
	if err != nil {
		return nil, err
	}
	at, err := decodeTicket(dto.At)
	if err != nil {
		return nil, err
	}

	switch dto.Kind {
	case "set":
		valueAt, err := decodeTicket(*dto.ValueCreatedAt)
		if err != nil {
			return nil, err
		}
		val, err := decodePrimVal(crdt.PrimitiveKind(dto.PrimKind), dto.PrimVal)
		if err != nil {
			return nil, err
		}
		return &SetOperation{
			ParentCreatedAt: parentCreatedAt, Key: dto.Key,
			Value: crdt.NewPrimitive(crdt.PrimitiveKind(dto.PrimKind), val, valueAt), At: at,
		}, nil

	case "remove":
		var target clock.TimeTicket
		if dto.TargetCreatedAt != nil {
			target, err = decodeTicket(*dto.TargetCreatedAt)
			if err != nil {
				return nil, err
			}
		}
		return &RemoveOperation{ParentCreatedAt: parentCreatedAt, Key: dto.Key, TargetCreatedAt: target, At: at}, nil

	case "add":
		prev, err := decodeTicket(*dto.PrevCreatedAt)
		if err != nil {
			return nil, err
		}
		valueAt, err := decodeTicket(*dto.ValueCreatedAt)
		if err != nil {
			return nil, err
		}
		val, err := decodePrimVal(crdt.PrimitiveKind(dto.PrimKind), dto.PrimVal)
		if err != nil {
			return nil, err
		}
		return &AddOperation{
			ParentCreatedAt: parentCreatedAt, PrevCreatedAt: prev,
			Value: crdt.NewPrimitive(crdt.PrimitiveKind(dto.PrimKind), val, valueAt), At: at,
		}, nil

	case "move":
		prev, err := decodeTicket(*dto.PrevCreatedAt)
		if err != nil {
			return nil, err
		}
		target, err := decodeTicket(*dto.TargetCreatedAt)
		if err != nil {
			return nil, err
		}
		return &MoveOperation{ParentCreatedAt: parentCreatedAt, PrevCreatedAt: prev, TargetCreatedAt: target, At: at}, nil

	case "edit":
		from, err := decodeNodePos(*dto.From)
		if err != nil {
			return nil, err
		}
		to, err := decodeNodePos(*dto.To)
		if err != nil {
			return nil, err
		}
		return &EditOperation{ParentCreatedAt: parentCreatedAt, From: from, To: to, Content: dto.Content, At: at}, nil

	case "style":
		from, err := decodeNodePos(*dto.From)
		if err != nil {
			return nil, err
		}
		to, err := decodeNodePos(*dto.To)
		if err != nil {
			return nil, err
		}
		return &StyleOperation{ParentCreatedAt: parentCreatedAt, From: from, To: to, Key: dto.StyleKey, Value: dto.StyleValue, At: at}, nil

	case "increase":
		return &IncreaseOperation{ParentCreatedAt: parentCreatedAt, Delta: dto.Delta, At: at}, nil

	default:
		return nil, fmt.Errorf("operations: unknown wire kind %q", dto.Kind)
	}
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
		return nil, fmt.Errorf("operations: unknown primitive kind %d", kind)
	}
}
