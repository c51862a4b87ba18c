package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const maxUpdateRetries = 5

type escrowRepositoryImpl struct {
	store *badgerhold.Store
}

func NewEscrowRepositoryImpl(store *badgerhold.Store) domain.EscrowRepository {
	return &escrowRepositoryImpl{store}
}

func (r *escrowRepositoryImpl) AddEscrow(
	_ context.Context, e *domain.Escrow,
) error {
	if err := r.store.Insert(e.ID, newEscrow(*e)); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return domain.ErrEscrowAlreadyExists
		}
		return err
	}
	return nil
}

func (r *escrowRepositoryImpl) GetEscrow(
	_ context.Context, id string,
) (*domain.Escrow, error) {
	var e escrow
	if err := r.store.Get(id, &e); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, err
	}
	return e.toDomain(), nil
}

func (r *escrowRepositoryImpl) GetEscrowsByMaker(
	_ context.Context, maker string,
) ([]domain.Escrow, error) {
	query := badgerhold.Where("Maker").Eq(maker).Index("Maker")
	return r.findEscrows(query)
}

func (r *escrowRepositoryImpl) GetEscrowsByTaker(
	_ context.Context, taker string,
) ([]domain.Escrow, error) {
	query := badgerhold.Where("Taker").Eq(taker).Index("Taker")
	return r.findEscrows(query)
}

func (r *escrowRepositoryImpl) GetAllEscrows(
	_ context.Context, status *domain.EscrowStatus,
) ([]domain.Escrow, error) {
	var query *badgerhold.Query
	if status != nil {
		query = badgerhold.Where("Status").Eq(int(*status)).Index("Status")
	}
	return r.findEscrows(query)
}

func (r *escrowRepositoryImpl) GetEscrowsWithPendingTransition(
	_ context.Context,
) ([]domain.Escrow, error) {
	query := badgerhold.Where("HasPending").Eq(true)
	return r.findEscrows(query)
}

func (r *escrowRepositoryImpl) UpdateEscrow(
	_ context.Context, id string,
	updateFn func(e *domain.Escrow) (*domain.Escrow, error),
) error {
	var err error
	for i := 0; i < maxUpdateRetries; i++ {
		err = r.store.Badger().Update(func(tx *badger.Txn) error {
			var current escrow
			if err := r.store.TxGet(tx, id, &current); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return domain.ErrEscrowNotFound
				}
				return err
			}

			updated, err := updateFn(current.toDomain())
			if err != nil {
				return err
			}

			return r.store.TxUpdate(tx, id, newEscrow(*updated))
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (r *escrowRepositoryImpl) findEscrows(
	query *badgerhold.Query,
) ([]domain.Escrow, error) {
	var records []escrow
	if err := r.store.Find(&records, query); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt == records[j].CreatedAt {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt < records[j].CreatedAt
	})

	escrows := make([]domain.Escrow, 0, len(records))
	for _, e := range records {
		escrows = append(escrows, *e.toDomain())
	}
	return escrows, nil
}
