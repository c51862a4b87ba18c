package dbbadger

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	escrowsDir = "escrows"

	valueLogGCInterval     = 30 * time.Minute
	valueLogGCDiscardRatio = 0.5
)

type repoManager struct {
	store            *badgerhold.Store
	escrowRepository domain.EscrowRepository
	quitChan         chan struct{}
}

// NewRepoManager opens (or creates if not exists) the badger store in the
// given base directory. The store is kept in memory if the directory is
// empty. The logger is optional.
func NewRepoManager(
	baseDbDir string, logger badger.Logger,
) (ports.RepoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, escrowsDir)
	}

	quitChan := make(chan struct{})
	store, err := createDb(dbDir, logger, quitChan)
	if err != nil {
		return nil, fmt.Errorf("opening escrows db: %w", err)
	}

	return &repoManager{
		store:            store,
		escrowRepository: NewEscrowRepositoryImpl(store),
		quitChan:         quitChan,
	}, nil
}

func (r *repoManager) EscrowRepository() domain.EscrowRepository {
	return r.escrowRepository
}

func (r *repoManager) Close() {
	close(r.quitChan)
	if err := r.store.Close(); err != nil {
		log.WithError(err).Warn("failed to close escrows db")
	}
}

func createDb(
	dbDir string, logger badger.Logger, quitChan chan struct{},
) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(valueLogGCInterval)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := db.Badger().RunValueLogGC(
						valueLogGCDiscardRatio,
					); err != nil && err != badger.ErrNoRewrite {
						log.Error(err)
					}
				case <-quitChan:
					return
				}
			}
		}()
	}

	return db, nil
}
