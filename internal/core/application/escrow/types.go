package escrow

import (
	"time"

	"github.com/tdex-network/escrowd/internal/core/domain"
)

// Ack is returned by the transitions of an escrow. The transition completes
// only once the outcome of the transfer is known, TransferID allows to
// correlate it.
type Ack struct {
	EscrowID   string
	TransferID string
	Transition domain.TransitionKind
}

// StageInfo is the timelock stage of an escrow at a certain time.
type StageInfo struct {
	Stage domain.TimelockStage
	// Deadline is when the stage ends, zero for the Expired stage.
	Deadline time.Time
	Now      time.Time
}
