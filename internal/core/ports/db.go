package ports

import "github.com/tdex-network/escrowd/internal/core/domain"

// RepoManager interface defines the methods for accessing the repositories
// of the daemon.
type RepoManager interface {
	EscrowRepository() domain.EscrowRepository
	Close()
}
