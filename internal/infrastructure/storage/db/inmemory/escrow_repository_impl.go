package inmemory

import (
	"context"
	"sync"

	"github.com/tdex-network/escrowd/internal/core/domain"
)

type escrowInmemoryStore struct {
	escrows        map[string]domain.Escrow
	escrowsByMaker map[string][]string
	escrowsByTaker map[string][]string
	insertionOrder []string
	locker         *sync.RWMutex
}

type escrowRepositoryImpl struct {
	store *escrowInmemoryStore
}

// NewEscrowRepositoryImpl returns a new inmemory EscrowRepository
// implementation.
func NewEscrowRepositoryImpl() domain.EscrowRepository {
	return &escrowRepositoryImpl{
		store: &escrowInmemoryStore{
			escrows:        make(map[string]domain.Escrow),
			escrowsByMaker: make(map[string][]string),
			escrowsByTaker: make(map[string][]string),
			insertionOrder: make([]string, 0),
			locker:         &sync.RWMutex{},
		},
	}
}

func (r *escrowRepositoryImpl) AddEscrow(
	_ context.Context, escrow *domain.Escrow,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.escrows[escrow.ID]; ok {
		return domain.ErrEscrowAlreadyExists
	}

	r.store.escrows[escrow.ID] = *escrow.Clone()
	r.store.insertionOrder = append(r.store.insertionOrder, escrow.ID)
	r.store.escrowsByMaker[escrow.Maker] = append(
		r.store.escrowsByMaker[escrow.Maker], escrow.ID,
	)
	r.store.escrowsByTaker[escrow.Taker] = append(
		r.store.escrowsByTaker[escrow.Taker], escrow.ID,
	)
	return nil
}

func (r *escrowRepositoryImpl) GetEscrow(
	_ context.Context, id string,
) (*domain.Escrow, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.getEscrow(id)
}

func (r *escrowRepositoryImpl) GetEscrowsByMaker(
	_ context.Context, maker string,
) ([]domain.Escrow, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.escrowsFromIDs(r.store.escrowsByMaker[maker]), nil
}

func (r *escrowRepositoryImpl) GetEscrowsByTaker(
	_ context.Context, taker string,
) ([]domain.Escrow, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	return r.escrowsFromIDs(r.store.escrowsByTaker[taker]), nil
}

func (r *escrowRepositoryImpl) GetAllEscrows(
	_ context.Context, status *domain.EscrowStatus,
) ([]domain.Escrow, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	escrows := r.escrowsFromIDs(r.store.insertionOrder)
	if status == nil {
		return escrows, nil
	}

	filtered := make([]domain.Escrow, 0, len(escrows))
	for _, e := range escrows {
		if e.Status == *status {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (r *escrowRepositoryImpl) GetEscrowsWithPendingTransition(
	_ context.Context,
) ([]domain.Escrow, error) {
	r.store.locker.RLock()
	defer r.store.locker.RUnlock()

	escrows := make([]domain.Escrow, 0)
	for _, e := range r.escrowsFromIDs(r.store.insertionOrder) {
		if e.HasPendingTransition() {
			escrows = append(escrows, e)
		}
	}
	return escrows, nil
}

func (r *escrowRepositoryImpl) UpdateEscrow(
	_ context.Context, id string,
	updateFn func(e *domain.Escrow) (*domain.Escrow, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentEscrow, err := r.getEscrow(id)
	if err != nil {
		return err
	}

	updatedEscrow, err := updateFn(currentEscrow)
	if err != nil {
		return err
	}

	r.store.escrows[id] = *updatedEscrow.Clone()
	return nil
}

func (r *escrowRepositoryImpl) getEscrow(id string) (*domain.Escrow, error) {
	escrow, ok := r.store.escrows[id]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	return escrow.Clone(), nil
}

func (r *escrowRepositoryImpl) escrowsFromIDs(ids []string) []domain.Escrow {
	escrows := make([]domain.Escrow, 0, len(ids))
	for _, id := range ids {
		if escrow, ok := r.store.escrows[id]; ok {
			escrows = append(escrows, *escrow.Clone())
		}
	}
	return escrows
}
