package dbbadger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

// escrow is the storage representation of a domain.Escrow. Maker, Taker and
// Status are indexed by badgerhold, times are kept as unix nanoseconds.
type escrow struct {
	ID                 string
	Direction          int
	SourceDomain       string
	DestinationDomain  string
	SourceAsset        string
	DestinationAsset   string
	MakingAmount       decimal.Decimal
	TakingAmount       decimal.Decimal
	Maker              string `badgerhold:"index"`
	Taker              string `badgerhold:"index"`
	Recipient          string
	Status             int `badgerhold:"index"`
	SecretHash         string
	Secret             string
	Receiver           string
	Timelocks          timelocks
	CreatedAt          int64
	FundedAt           int64
	CompletedAt        int64
	HasPending         bool
	Pending            *pendingTransition
	LastFailure        string
	LastFailedTransfer string
}

type timelocks struct {
	Finality           int64
	Withdrawal         int64
	PublicWithdrawal   int64
	Cancellation       int64
	PublicCancellation int64
}

type pendingTransition struct {
	TransferID  string
	Kind        int
	SecretHash  string
	Secret      string
	Receiver    string
	Stage       int
	RequestedAt int64
}

func newEscrow(e domain.Escrow) escrow {
	var pending *pendingTransition
	if p := e.Pending; p != nil {
		pending = &pendingTransition{
			TransferID:  p.TransferID,
			Kind:        int(p.Kind),
			SecretHash:  p.SecretHash,
			Secret:      p.Secret,
			Receiver:    p.Receiver,
			Stage:       int(p.Stage),
			RequestedAt: toUnixNano(p.RequestedAt),
		}
	}

	return escrow{
		ID:                e.ID,
		Direction:         int(e.Direction),
		SourceDomain:      e.SourceDomain,
		DestinationDomain: e.DestinationDomain,
		SourceAsset:       e.SourceAsset,
		DestinationAsset:  e.DestinationAsset,
		MakingAmount:      e.MakingAmount,
		TakingAmount:      e.TakingAmount,
		Maker:             e.Maker,
		Taker:             e.Taker,
		Recipient:         e.Recipient,
		Status:            int(e.Status),
		SecretHash:        e.SecretHash,
		Secret:            e.Secret,
		Receiver:          e.Receiver,
		Timelocks: timelocks{
			Finality:           int64(e.Timelocks.Finality),
			Withdrawal:         int64(e.Timelocks.Withdrawal),
			PublicWithdrawal:   int64(e.Timelocks.PublicWithdrawal),
			Cancellation:       int64(e.Timelocks.Cancellation),
			PublicCancellation: int64(e.Timelocks.PublicCancellation),
		},
		CreatedAt:          toUnixNano(e.CreatedAt),
		FundedAt:           toUnixNano(e.FundedAt),
		CompletedAt:        toUnixNano(e.CompletedAt),
		HasPending:         pending != nil,
		Pending:            pending,
		LastFailure:        e.LastFailure,
		LastFailedTransfer: e.LastFailedTransfer,
	}
}

func (e escrow) toDomain() *domain.Escrow {
	var pending *domain.PendingTransition
	if p := e.Pending; p != nil {
		pending = &domain.PendingTransition{
			TransferID:  p.TransferID,
			Kind:        domain.TransitionKind(p.Kind),
			SecretHash:  p.SecretHash,
			Secret:      p.Secret,
			Receiver:    p.Receiver,
			Stage:       domain.TimelockStage(p.Stage),
			RequestedAt: fromUnixNano(p.RequestedAt),
		}
	}

	return &domain.Escrow{
		ID:                e.ID,
		Direction:         domain.Direction(e.Direction),
		SourceDomain:      e.SourceDomain,
		DestinationDomain: e.DestinationDomain,
		SourceAsset:       e.SourceAsset,
		DestinationAsset:  e.DestinationAsset,
		MakingAmount:      e.MakingAmount,
		TakingAmount:      e.TakingAmount,
		Maker:             e.Maker,
		Taker:             e.Taker,
		Recipient:         e.Recipient,
		Status:            domain.EscrowStatus(e.Status),
		SecretHash:        e.SecretHash,
		Secret:            e.Secret,
		Receiver:          e.Receiver,
		Timelocks: domain.Timelocks{
			Finality:           time.Duration(e.Timelocks.Finality),
			Withdrawal:         time.Duration(e.Timelocks.Withdrawal),
			PublicWithdrawal:   time.Duration(e.Timelocks.PublicWithdrawal),
			Cancellation:       time.Duration(e.Timelocks.Cancellation),
			PublicCancellation: time.Duration(e.Timelocks.PublicCancellation),
		},
		CreatedAt:          fromUnixNano(e.CreatedAt),
		FundedAt:           fromUnixNano(e.FundedAt),
		CompletedAt:        fromUnixNano(e.CompletedAt),
		Pending:            pending,
		LastFailure:        e.LastFailure,
		LastFailedTransfer: e.LastFailedTransfer,
	}
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
