package domain

import "time"

// TimelockStage is one of the sequential time windows gating which escrow
// transition is legal.
type TimelockStage int

const (
	TimelockStageFinality TimelockStage = iota
	TimelockStageWithdrawal
	TimelockStagePublicWithdrawal
	TimelockStageCancellation
	TimelockStagePublicCancellation
	TimelockStageExpired
)

var timelockStageNames = map[TimelockStage]string{
	TimelockStageFinality:           "Finality",
	TimelockStageWithdrawal:         "Withdrawal",
	TimelockStagePublicWithdrawal:   "PublicWithdrawal",
	TimelockStageCancellation:       "Cancellation",
	TimelockStagePublicCancellation: "PublicCancellation",
	TimelockStageExpired:            "Expired",
}

func (s TimelockStage) String() string {
	if name, ok := timelockStageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// AllowsWithdrawal returns whether the escrow can be withdrawn in this stage.
func (s TimelockStage) AllowsWithdrawal() bool {
	return s == TimelockStageWithdrawal || s == TimelockStagePublicWithdrawal
}

// AllowsCancellation returns whether the escrow can be cancelled in this
// stage.
func (s TimelockStage) AllowsCancellation() bool {
	return s == TimelockStageCancellation ||
		s == TimelockStagePublicCancellation
}

// IsPublic returns whether the stage is a window in which anyone, not only
// the escrow counterparties, may force the resolution.
func (s TimelockStage) IsPublic() bool {
	return s == TimelockStagePublicWithdrawal ||
		s == TimelockStagePublicCancellation
}

// Timelocks holds the five thresholds of an escrow. Every threshold is an
// absolute offset from the creation time of the escrow, not a delta from the
// previous one.
type Timelocks struct {
	Finality           time.Duration
	Withdrawal         time.Duration
	PublicWithdrawal   time.Duration
	Cancellation       time.Duration
	PublicCancellation time.Duration
}

// NewTimelocksFromSeconds returns the timelocks for the given thresholds
// expressed in seconds.
func NewTimelocksFromSeconds(
	finality, withdrawal, publicWithdrawal,
	cancellation, publicCancellation uint64,
) Timelocks {
	return Timelocks{
		Finality:           secondsToDuration(finality),
		Withdrawal:         secondsToDuration(withdrawal),
		PublicWithdrawal:   secondsToDuration(publicWithdrawal),
		Cancellation:       secondsToDuration(cancellation),
		PublicCancellation: secondsToDuration(publicCancellation),
	}
}

// Validate makes sure the thresholds are non negative, monotonically
// increasing and that the escrow does not expire at creation.
func (t Timelocks) Validate() error {
	thresholds := t.thresholds()
	if thresholds[0] < 0 {
		return ErrEscrowInvalidTimelocks
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] < thresholds[i-1] {
			return ErrEscrowInvalidTimelocks
		}
	}
	if t.PublicCancellation <= 0 {
		return ErrEscrowInvalidTimelocks
	}
	return nil
}

// Stage returns the timelock stage for the given elapsed time since the
// creation of the escrow. A negative elapsed time, due to a clock running
// behind the creation time, is treated as zero.
func (t Timelocks) Stage(elapsed time.Duration) TimelockStage {
	if elapsed < 0 {
		elapsed = 0
	}

	switch {
	case elapsed < t.Finality:
		return TimelockStageFinality
	case elapsed < t.Withdrawal:
		return TimelockStageWithdrawal
	case elapsed < t.PublicWithdrawal:
		return TimelockStagePublicWithdrawal
	case elapsed < t.Cancellation:
		return TimelockStageCancellation
	case elapsed < t.PublicCancellation:
		return TimelockStagePublicCancellation
	default:
		return TimelockStageExpired
	}
}

// StageAt returns the timelock stage at the given time for an escrow created
// at createdAt.
func (t Timelocks) StageAt(createdAt, now time.Time) TimelockStage {
	return t.Stage(now.Sub(createdAt))
}

// StageDeadline returns the time at which the given stage ends for an escrow
// created at createdAt. The Expired stage never ends and has a zero deadline.
func (t Timelocks) StageDeadline(
	createdAt time.Time, stage TimelockStage,
) time.Time {
	if stage < TimelockStageFinality || stage >= TimelockStageExpired {
		return time.Time{}
	}
	return createdAt.Add(t.thresholds()[stage])
}

func (t Timelocks) thresholds() []time.Duration {
	return []time.Duration{
		t.Finality, t.Withdrawal, t.PublicWithdrawal,
		t.Cancellation, t.PublicCancellation,
	}
}

func secondsToDuration(secs uint64) time.Duration {
	const maxSeconds = uint64(1<<63-1) / uint64(time.Second)
	if secs > maxSeconds {
		secs = maxSeconds
	}
	return time.Duration(secs) * time.Second
}
