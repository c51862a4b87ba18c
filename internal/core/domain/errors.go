package domain

import "errors"

var (
	// ErrEscrowNotFound is returned when no escrow matches the given id.
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrEscrowAlreadyExists is returned when creating an escrow whose derived
	// id is already taken.
	ErrEscrowAlreadyExists = errors.New("escrow already exists")
	// ErrEscrowInvalidAmount is returned if making or taking amount is not a
	// strictly positive integer fitting 128 bits.
	ErrEscrowInvalidAmount = errors.New(
		"escrow amounts must be positive integers lower than 2^128",
	)
	// ErrEscrowInvalidAssetPair is returned if source and destination assets
	// are the same.
	ErrEscrowInvalidAssetPair = errors.New(
		"escrow source and destination assets must be different",
	)
	// ErrEscrowMissingParams is returned if any of the string parameters of a
	// new escrow is blank.
	ErrEscrowMissingParams = errors.New(
		"escrow assets, parties and domains must not be empty",
	)
	// ErrEscrowInvalidTimelocks is returned when the timelock thresholds are not
	// monotonically increasing or the last one is null.
	ErrEscrowInvalidTimelocks = errors.New(
		"escrow timelocks must satisfy finality <= withdrawal <= " +
			"public withdrawal <= cancellation <= public cancellation",
	)
	// ErrEscrowUnauthorized is returned when the caller is not allowed to
	// perform the requested transition.
	ErrEscrowUnauthorized = errors.New("caller is not authorized")
	// ErrEscrowWrongState is returned when the escrow status does not allow the
	// requested transition.
	ErrEscrowWrongState = errors.New("escrow is in wrong state")
	// ErrEscrowInvalidSecret is returned when the revealed secret does not
	// match the escrow commitment.
	ErrEscrowInvalidSecret = errors.New("invalid secret")
	// ErrEscrowInvalidSecretHash is returned when the secret commitment given
	// at funding time is not a hex encoded digest of the expected size.
	ErrEscrowInvalidSecretHash = errors.New("invalid secret hash")
	// ErrEscrowWrongTimelockStage is returned when the current timelock stage
	// does not allow the requested transition.
	ErrEscrowWrongTimelockStage = errors.New("escrow is in wrong timelock stage")
	// ErrEscrowTransferMismatch is returned when a transfer outcome refers to
	// a transfer that is not the one pending for the escrow.
	ErrEscrowTransferMismatch = errors.New(
		"transfer does not match the pending one of the escrow",
	)
	// ErrEscrowTransferReverted is returned when a transfer succeeded after
	// its transition had already been reverted.
	ErrEscrowTransferReverted = errors.New(
		"transfer succeeded after its transition was reverted",
	)
	// ErrGatewayFailure is returned when the funds gateway rejects or fails a
	// transfer.
	ErrGatewayFailure = errors.New("funds gateway failure")
)
