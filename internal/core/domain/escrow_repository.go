package domain

import "context"

// EscrowRepository is the abstraction for any kind of database intended to
// persist Escrows. Returned escrows are snapshots: mutating them has no
// effect on the stored records.
type EscrowRepository interface {
	// AddEscrow inserts a new escrow and appends its id to the maker and taker
	// indices. It returns ErrEscrowAlreadyExists if the id is already taken.
	AddEscrow(ctx context.Context, escrow *Escrow) error
	// GetEscrow returns the escrow with the given id, or ErrEscrowNotFound.
	GetEscrow(ctx context.Context, id string) (*Escrow, error)
	// GetEscrowsByMaker returns all the escrows of the given maker in creation
	// order.
	GetEscrowsByMaker(ctx context.Context, maker string) ([]Escrow, error)
	// GetEscrowsByTaker returns all the escrows of the given taker in creation
	// order.
	GetEscrowsByTaker(ctx context.Context, taker string) ([]Escrow, error)
	// GetAllEscrows returns all escrows, optionally filtered by status.
	GetAllEscrows(ctx context.Context, status *EscrowStatus) ([]Escrow, error)
	// GetEscrowsWithPendingTransition returns all escrows with a staged
	// transition waiting for the outcome of its transfer.
	GetEscrowsWithPendingTransition(ctx context.Context) ([]Escrow, error)
	// UpdateEscrow allows to commit multiple changes to the same escrow in a
	// transactional way. Nothing is written if updateFn returns an error.
	UpdateEscrow(
		ctx context.Context, id string,
		updateFn func(e *Escrow) (*Escrow, error),
	) error
}
