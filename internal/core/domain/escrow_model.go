package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EscrowStatus represents the different statuses that an escrow can assume.
type EscrowStatus int

const (
	EscrowStatusUndefined EscrowStatus = iota
	EscrowStatusCreated
	EscrowStatusFunded
	EscrowStatusWithdrawn
	EscrowStatusCancelled
)

var escrowStatusNames = map[EscrowStatus]string{
	EscrowStatusUndefined: "Undefined",
	EscrowStatusCreated:   "Created",
	EscrowStatusFunded:    "Funded",
	EscrowStatusWithdrawn: "Withdrawn",
	EscrowStatusCancelled: "Cancelled",
}

func (s EscrowStatus) String() string {
	if name, ok := escrowStatusNames[s]; ok {
		return name
	}
	return escrowStatusNames[EscrowStatusUndefined]
}

// IsTerminal returns whether no further transition is allowed from s.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusWithdrawn || s == EscrowStatusCancelled
}

// ParseEscrowStatus returns the status matching the given name, case
// insensitive.
func ParseEscrowStatus(name string) (EscrowStatus, bool) {
	for status, n := range escrowStatusNames {
		if status != EscrowStatusUndefined && strings.EqualFold(n, name) {
			return status, true
		}
	}
	return EscrowStatusUndefined, false
}

// Direction tells in which execution domains the two legs of a swap live,
// relative to the local one.
type Direction int

const (
	DirectionLocalToLocal Direction = iota
	DirectionLocalToForeign
	DirectionForeignToLocal
	DirectionForeignToForeign
)

var directionNames = map[Direction]string{
	DirectionLocalToLocal:     "LocalToLocal",
	DirectionLocalToForeign:   "LocalToForeign",
	DirectionForeignToLocal:   "ForeignToLocal",
	DirectionForeignToForeign: "ForeignToForeign",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return "Unknown"
}

// NewDirection returns the direction of a swap between the given source and
// destination domains.
func NewDirection(localDomain, sourceDomain, destinationDomain string) Direction {
	srcIsLocal := sourceDomain == localDomain
	dstIsLocal := destinationDomain == localDomain
	switch {
	case srcIsLocal && dstIsLocal:
		return DirectionLocalToLocal
	case srcIsLocal:
		return DirectionLocalToForeign
	case dstIsLocal:
		return DirectionForeignToLocal
	default:
		return DirectionForeignToForeign
	}
}

// TransitionKind identifies the escrow transition a transfer belongs to.
type TransitionKind int

const (
	TransitionFund TransitionKind = iota + 1
	TransitionWithdraw
	TransitionCancel
)

var transitionKindNames = map[TransitionKind]string{
	TransitionFund:     "Fund",
	TransitionWithdraw: "Withdraw",
	TransitionCancel:   "Cancel",
}

func (k TransitionKind) String() string {
	if name, ok := transitionKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseTransitionKind returns the transition kind matching the given name,
// case insensitive.
func ParseTransitionKind(name string) (TransitionKind, bool) {
	for kind, n := range transitionKindNames {
		if strings.EqualFold(n, name) {
			return kind, true
		}
	}
	return 0, false
}

// IsDeposit returns whether the transfer of this transition moves funds into
// custody rather than out of it.
func (k TransitionKind) IsDeposit() bool {
	return k == TransitionFund
}

// Transfer is a request for the funds gateway to move an amount of some
// asset into (deposit) or out of (release) the escrow custody.
type Transfer struct {
	ID        string
	EscrowID  string
	Kind      TransitionKind
	Direction Direction
	Domain    string
	Asset     string
	Amount    decimal.Decimal
	// Party is the holder of the deposited funds, or the recipient of the
	// released ones.
	Party string
}

// PendingTransition is a staged transition waiting for the outcome of its
// transfer.
type PendingTransition struct {
	TransferID  string
	Kind        TransitionKind
	SecretHash  string
	Secret      string
	Receiver    string
	Stage       TimelockStage
	RequestedAt time.Time
}

// EscrowArgs are the parameters for creating a new escrow.
type EscrowArgs struct {
	SourceAsset       string
	DestinationAsset  string
	MakingAmount      decimal.Decimal
	TakingAmount      decimal.Decimal
	Maker             string
	Taker             string
	SourceDomain      string
	DestinationDomain string
	// Recipient is the optional, possibly foreign, address where the maker
	// expects the other leg of the swap to be delivered. It is opaque to the
	// engine.
	Recipient string
	Timelocks Timelocks
}

// Identity returns the canonical tuple the escrow id is derived from.
func (a EscrowArgs) Identity() EscrowIdentity {
	return EscrowIdentity{
		SourceAsset:       a.SourceAsset,
		DestinationAsset:  a.DestinationAsset,
		MakingAmount:      a.MakingAmount,
		TakingAmount:      a.TakingAmount,
		Maker:             a.Maker,
		Taker:             a.Taker,
		SourceDomain:      a.SourceDomain,
		DestinationDomain: a.DestinationDomain,
	}
}

// Escrow is the data structure representing a hash and time locked escrow of
// a cross-domain swap.
type Escrow struct {
	ID                 string
	Direction          Direction
	SourceDomain       string
	DestinationDomain  string
	SourceAsset        string
	DestinationAsset   string
	MakingAmount       decimal.Decimal
	TakingAmount       decimal.Decimal
	Maker              string
	Taker              string
	Recipient          string
	Status             EscrowStatus
	SecretHash         string
	Secret             string
	Receiver           string
	Timelocks          Timelocks
	CreatedAt          time.Time
	FundedAt           time.Time
	CompletedAt        time.Time
	Pending            *PendingTransition
	LastFailure        string
	// LastFailedTransfer is the id of the last transfer whose transition got
	// reverted.
	LastFailedTransfer string
}
