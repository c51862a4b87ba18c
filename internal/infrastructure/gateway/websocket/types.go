package gatewayws

import (
	"encoding/json"

	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

const (
	methodDeposit       = "deposit"
	methodRelease       = "release"
	methodStatus        = "status"
	methodTransferEvent = "transfer_event"
)

// message is the envelope of every frame exchanged with the custody
// service. Requests carry ID, Method and Params; responses carry the ID of
// the request and either Result or Error; notifications carry Method and
// Params only.
type message struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result *result         `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type result struct {
	Status string `json:"status"`
}

type transferParams struct {
	TransferID string `json:"transfer_id"`
	EscrowID   string `json:"escrow_id"`
	Kind       string `json:"kind"`
	Direction  string `json:"direction"`
	Domain     string `json:"domain"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	Party      string `json:"party"`
}

func newTransferParams(t domain.Transfer) transferParams {
	return transferParams{
		TransferID: t.ID,
		EscrowID:   t.EscrowID,
		Kind:       t.Kind.String(),
		Direction:  t.Direction.String(),
		Domain:     t.Domain,
		Asset:      t.Asset,
		Amount:     t.Amount.String(),
		Party:      t.Party,
	}
}

type statusParams struct {
	TransferID string `json:"transfer_id"`
}

type transferEventParams struct {
	TransferID string `json:"transfer_id"`
	EscrowID   string `json:"escrow_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

func (p transferEventParams) toEvent() ports.TransferEvent {
	kind, _ := domain.ParseTransitionKind(p.Kind)
	return ports.TransferEvent{
		TransferID: p.TransferID,
		EscrowID:   p.EscrowID,
		Kind:       kind,
		Status:     ports.ParseTransferStatus(p.Status),
		Reason:     p.Reason,
	}
}
