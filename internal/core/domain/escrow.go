package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewEscrow validates the given arguments and returns a new escrow in Created
// status, with its id derived from the swap parameters.
func NewEscrow(
	args EscrowArgs, localDomain string, hasher Hasher, now time.Time,
) (*Escrow, error) {
	if isBlank(args.SourceAsset) || isBlank(args.DestinationAsset) ||
		isBlank(args.Maker) || isBlank(args.Taker) ||
		isBlank(args.SourceDomain) || isBlank(args.DestinationDomain) {
		return nil, ErrEscrowMissingParams
	}
	if err := ValidateAmount(args.MakingAmount); err != nil {
		return nil, err
	}
	if err := ValidateAmount(args.TakingAmount); err != nil {
		return nil, err
	}
	if args.SourceAsset == args.DestinationAsset {
		return nil, ErrEscrowInvalidAssetPair
	}
	if err := args.Timelocks.Validate(); err != nil {
		return nil, err
	}

	return &Escrow{
		ID: DeriveEscrowID(hasher, args.Identity()),
		Direction: NewDirection(
			localDomain, args.SourceDomain, args.DestinationDomain,
		),
		SourceDomain:      args.SourceDomain,
		DestinationDomain: args.DestinationDomain,
		SourceAsset:       args.SourceAsset,
		DestinationAsset:  args.DestinationAsset,
		MakingAmount:      args.MakingAmount,
		TakingAmount:      args.TakingAmount,
		Maker:             args.Maker,
		Taker:             args.Taker,
		Recipient:         args.Recipient,
		Status:            EscrowStatusCreated,
		Timelocks:         args.Timelocks,
		CreatedAt:         now,
	}, nil
}

// Fund stages the transition of a Created escrow to the Funded status. Only
// the taker can fund an escrow. The returned transfer must be submitted to the
// funds gateway, the transition is applied by ConfirmTransfer once the deposit
// succeeds.
func (e *Escrow) Fund(
	actor, secretHash string, hasher Hasher, now time.Time,
) (*Transfer, error) {
	if e.HasPendingTransition() {
		return nil, e.pendingErr()
	}
	if !e.IsCreated() {
		return nil, fmt.Errorf(
			"%w: escrow must be created, got %s", ErrEscrowWrongState, e.Status,
		)
	}
	if actor != e.Taker {
		return nil, fmt.Errorf(
			"%w: only the taker can fund the escrow", ErrEscrowUnauthorized,
		)
	}
	commitment, err := NormalizeSecretHash(hasher, secretHash)
	if err != nil {
		return nil, err
	}

	transfer := e.newTransfer(TransitionFund, e.Taker)
	e.Pending = &PendingTransition{
		TransferID:  transfer.ID,
		Kind:        TransitionFund,
		SecretHash:  commitment,
		Stage:       e.Stage(now),
		RequestedAt: now,
	}
	return transfer, nil
}

// Withdraw stages the transition of a Funded escrow to the Withdrawn status.
// The secret must be the preimage of the escrow commitment and the escrow
// must be in one of the withdrawal stages. Funds are released to receiver, or
// to the caller if receiver is empty.
func (e *Escrow) Withdraw(
	secret, receiver, caller string, hasher Hasher, now time.Time,
) (*Transfer, error) {
	if e.HasPendingTransition() {
		return nil, e.pendingErr()
	}
	if !e.IsFunded() {
		return nil, fmt.Errorf(
			"%w: escrow must be funded, got %s", ErrEscrowWrongState, e.Status,
		)
	}
	if !VerifySecret(hasher, secret, e.SecretHash) {
		return nil, ErrEscrowInvalidSecret
	}
	stage := e.Stage(now)
	if !stage.AllowsWithdrawal() {
		return nil, fmt.Errorf(
			"%w: withdrawal not allowed in %s stage",
			ErrEscrowWrongTimelockStage, stage,
		)
	}
	if isBlank(receiver) {
		receiver = caller
	}
	if isBlank(receiver) {
		return nil, fmt.Errorf("%w: missing receiver", ErrEscrowMissingParams)
	}

	transfer := e.newTransfer(TransitionWithdraw, receiver)
	e.Pending = &PendingTransition{
		TransferID:  transfer.ID,
		Kind:        TransitionWithdraw,
		Secret:      secret,
		Receiver:    receiver,
		Stage:       stage,
		RequestedAt: now,
	}
	return transfer, nil
}

// Cancel stages the transition of a Funded escrow to the Cancelled status.
// The escrow must be in one of the cancellation stages. Funds are returned to
// the taker, the original depositor.
func (e *Escrow) Cancel(now time.Time) (*Transfer, error) {
	if e.HasPendingTransition() {
		return nil, e.pendingErr()
	}
	if !e.IsFunded() {
		return nil, fmt.Errorf(
			"%w: escrow must be funded, got %s", ErrEscrowWrongState, e.Status,
		)
	}
	stage := e.Stage(now)
	if !stage.AllowsCancellation() {
		return nil, fmt.Errorf(
			"%w: cancellation not allowed in %s stage",
			ErrEscrowWrongTimelockStage, stage,
		)
	}

	transfer := e.newTransfer(TransitionCancel, e.Taker)
	e.Pending = &PendingTransition{
		TransferID:  transfer.ID,
		Kind:        TransitionCancel,
		Receiver:    e.Taker,
		Stage:       stage,
		RequestedAt: now,
	}
	return transfer, nil
}

// ConfirmTransfer applies the staged transition once its transfer succeeded.
func (e *Escrow) ConfirmTransfer(transferID string, now time.Time) error {
	if !e.isPendingTransfer(transferID) {
		if transferID == e.LastFailedTransfer {
			return ErrEscrowTransferReverted
		}
		return ErrEscrowTransferMismatch
	}

	pending := e.Pending
	switch pending.Kind {
	case TransitionFund:
		e.SecretHash = pending.SecretHash
		e.FundedAt = now
		e.Status = EscrowStatusFunded
	case TransitionWithdraw:
		e.Secret = pending.Secret
		e.Receiver = pending.Receiver
		e.CompletedAt = now
		e.Status = EscrowStatusWithdrawn
	case TransitionCancel:
		e.Receiver = pending.Receiver
		e.CompletedAt = now
		e.Status = EscrowStatusCancelled
	}
	e.Pending = nil
	e.LastFailure = ""
	return nil
}

// RevertTransfer is the compensating action for a failed transfer: it drops
// the staged transition, leaving the escrow status untouched, and keeps track
// of the failure reason.
func (e *Escrow) RevertTransfer(transferID, reason string) error {
	if !e.isPendingTransfer(transferID) {
		return ErrEscrowTransferMismatch
	}

	e.Pending = nil
	e.LastFailure = reason
	e.LastFailedTransfer = transferID
	return nil
}

// Stage returns the timelock stage of the escrow at the given time.
func (e *Escrow) Stage(now time.Time) TimelockStage {
	return e.Timelocks.StageAt(e.CreatedAt, now)
}

// IsCreated returns whether the escrow is in Created status.
func (e *Escrow) IsCreated() bool {
	return e.Status == EscrowStatusCreated
}

// IsFunded returns whether the escrow is in Funded status.
func (e *Escrow) IsFunded() bool {
	return e.Status == EscrowStatusFunded
}

// IsWithdrawn returns whether the escrow is in Withdrawn status.
func (e *Escrow) IsWithdrawn() bool {
	return e.Status == EscrowStatusWithdrawn
}

// IsCancelled returns whether the escrow is in Cancelled status.
func (e *Escrow) IsCancelled() bool {
	return e.Status == EscrowStatusCancelled
}

// IsTerminal returns whether the escrow reached a final status.
func (e *Escrow) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// HasPendingTransition returns whether a staged transition is waiting for
// the outcome of its transfer.
func (e *Escrow) HasPendingTransition() bool {
	return e.Pending != nil
}

// Clone returns a deep copy of the escrow.
func (e *Escrow) Clone() *Escrow {
	clone := *e
	if e.Pending != nil {
		pending := *e.Pending
		clone.Pending = &pending
	}
	return &clone
}

func (e *Escrow) newTransfer(kind TransitionKind, party string) *Transfer {
	return &Transfer{
		ID:        uuid.New().String(),
		EscrowID:  e.ID,
		Kind:      kind,
		Direction: e.Direction,
		Domain:    e.DestinationDomain,
		Asset:     e.DestinationAsset,
		Amount:    e.TakingAmount,
		Party:     party,
	}
}

func (e *Escrow) isPendingTransfer(transferID string) bool {
	return e.Pending != nil && e.Pending.TransferID == transferID
}

func (e *Escrow) pendingErr() error {
	return fmt.Errorf(
		"%w: %s transfer %s still pending",
		ErrEscrowWrongState, e.Pending.Kind, e.Pending.TransferID,
	)
}

func isBlank(s string) bool {
	return len(strings.TrimSpace(s)) <= 0
}
