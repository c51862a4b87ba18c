package inmemory

import (
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

type repoManager struct {
	escrowRepository domain.EscrowRepository
}

// NewRepoManager returns a RepoManager keeping everything in memory. Every
// call returns an independent instance.
func NewRepoManager() ports.RepoManager {
	return &repoManager{
		escrowRepository: NewEscrowRepositoryImpl(),
	}
}

func (d *repoManager) EscrowRepository() domain.EscrowRepository {
	return d.escrowRepository
}

func (d *repoManager) Close() {}
