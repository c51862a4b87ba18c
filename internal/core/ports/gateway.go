package ports

import (
	"context"
	"errors"

	"github.com/tdex-network/escrowd/internal/core/domain"
)

// ErrTransferRejected is wrapped by the errors of Deposit and Release when the
// transfer was refused or never reached the custody service. Any other error
// leaves the outcome of the transfer unknown.
var ErrTransferRejected = errors.New("transfer rejected by funds gateway")

// TransferStatus is the outcome of a transfer as known by the funds gateway.
type TransferStatus int

const (
	TransferStatusUnknown TransferStatus = iota
	TransferStatusPending
	TransferStatusSucceeded
	TransferStatusFailed
)

var transferStatusNames = map[TransferStatus]string{
	TransferStatusUnknown:   "unknown",
	TransferStatusPending:   "pending",
	TransferStatusSucceeded: "succeeded",
	TransferStatusFailed:    "failed",
}

func (s TransferStatus) String() string {
	return transferStatusNames[s]
}

// ParseTransferStatus is the inverse of TransferStatus.String.
func ParseTransferStatus(s string) TransferStatus {
	for status, name := range transferStatusNames {
		if name == s {
			return status
		}
	}
	return TransferStatusUnknown
}

// IsFinal returns whether the transfer is not going to change status anymore.
func (s TransferStatus) IsFinal() bool {
	return s == TransferStatusSucceeded || s == TransferStatusFailed
}

// TransferEvent notifies the outcome of a transfer previously submitted to
// the funds gateway.
type TransferEvent struct {
	TransferID string
	EscrowID   string
	Kind       domain.TransitionKind
	Status     TransferStatus
	Reason     string
}

// TransferHandler is the completion callback for transfers.
type TransferHandler func(event TransferEvent)

// FundsGateway is the external custody service moving funds in and out of
// escrows. Deposit and Release only submit the transfer, the outcome is
// notified asynchronously to the registered handlers.
type FundsGateway interface {
	// Deposit requests to move the transfer amount from its party into the
	// escrow custody.
	Deposit(ctx context.Context, transfer domain.Transfer) error
	// Release requests to move the transfer amount out of the escrow custody
	// to its party.
	Release(ctx context.Context, transfer domain.Transfer) error
	// TransferStatus returns the current status of a transfer. It is used to
	// recover outcomes whose notification got lost.
	TransferStatus(ctx context.Context, transferID string) (TransferStatus, error)
	// RegisterHandlerForTransferEvent adds a handler invoked for every
	// transfer outcome.
	RegisterHandlerForTransferEvent(handler TransferHandler)
	Close()
}
