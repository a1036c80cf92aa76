package document

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/operations"
)

// changeDTO is the wire form of a Change (spec §6.1). Presence isn't
// carried on this path — a connected client's presence travels over
// internal/presencehub instead, so a ChangePack stays pure document state.
type changeDTO struct {
	ClientSeq uint32           `json:"clientSeq"`
	Lamport   int64            `json:"lamport"`
	Actor     string           `json:"actor"`
	Message   string           `json:"message,omitempty"`
	Ops       []operations.DTO `json:"ops"`
}

// changePackDTO is the wire form of a ChangePack.
type changePackDTO struct {
	DocumentKey string      `json:"documentKey"`
	ServerSeq   int64       `json:"serverSeq"`
	ClientSeq   uint32      `json:"clientSeq"`
	Changes     []changeDTO `json:"changes,omitempty"`
	Snapshot    []byte      `json:"snapshot,omitempty"`
}

// EncodeChangePack serializes pack for transport (e.g. over a WebSocket
// frame). Any change carrying an operation kind wire.go doesn't cover
// (Set/Add of a nested container, tree edits) fails the whole encode —
// callers relaying a structural change should ship a fresh snapshot
// instead of a change list.
func EncodeChangePack(pack ChangePack) ([]byte, error) {
	dto := changePackDTO{
		DocumentKey: pack.DocumentKey,
		ServerSeq:   pack.Checkpoint.ServerSeq,
		ClientSeq:   pack.Checkpoint.ClientSeq,
		Snapshot:    pack.Snapshot,
	}
	for _, c := range pack.Changes {
		cd := changeDTO{ClientSeq: c.ID.ClientSeq(), Lamport: c.ID.Lamport(), Actor: c.ID.ActorID().String(), Message: c.Message}
		for _, op := range c.Operations {
			opDTO, err := operations.EncodeOperation(op)
			if err != nil {
				return nil, fmt.Errorf("document: encode change pack: %w", err)
			}
			cd.Ops = append(cd.Ops, opDTO)
		}
		dto.Changes = append(dto.Changes, cd)
	}
	return json.Marshal(dto)
}

// DecodeChangePack rebuilds the ChangePack EncodeChangePack produced.
func DecodeChangePack(data []byte) (ChangePack, error) {
	var dto changePackDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return ChangePack{}, fmt.Errorf("document: decode change pack: %w", err)
	}
	pack := ChangePack{
		DocumentKey: dto.DocumentKey,
		Checkpoint:  Checkpoint{ServerSeq: dto.ServerSeq, ClientSeq: dto.ClientSeq},
		Snapshot:    dto.Snapshot,
	}
	for _, cd := range dto.Changes {
		id, err := decodeChangeID(cd.ClientSeq, cd.Lamport, cd.Actor)
		if err != nil {
			return ChangePack{}, err
		}
		change := Change{ID: id, Message: cd.Message}
		for _, opDTO := range cd.Ops {
			op, err := operations.DecodeOperation(opDTO)
			if err != nil {
				return ChangePack{}, fmt.Errorf("document: decode change pack: %w", err)
			}
			change.Operations = append(change.Operations, op)
		}
		pack.Changes = append(pack.Changes, change)
	}
	return pack, nil
}

// decodeChangeID rebuilds a ChangeID with the given clientSeq/lamport for
// actorHex, the same Next()-then-SyncLamport reconstruction
// DecodeSnapshot uses: ChangeID has no field-level constructor, only the
// monotonic advances a replica would actually perform. SyncLamport lands
// one past its argument, so it is given lamport-1.
func decodeChangeID(clientSeq uint32, lamport int64, actorHex string) (clock.ChangeID, error) {
	raw, err := hex.DecodeString(actorHex)
	if err != nil {
		return clock.ChangeID{}, fmt.Errorf("document: decode change actor: %w", err)
	}
	actorID, err := actor.FromBytes(raw)
	if err != nil {
		return clock.ChangeID{}, err
	}
	id := clock.InitialChangeID(actorID)
	for i := uint32(0); i < clientSeq; i++ {
		id = id.Next()
	}
	if lamport > id.Lamport() {
		id = id.SyncLamport(lamport - 1)
	}
	return id, nil
}
