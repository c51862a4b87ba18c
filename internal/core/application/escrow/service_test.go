package escrow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/application/escrow"
	"github.com/tdex-network/escrowd/internal/core/application/pubsub"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	gatewayinmemory "github.com/tdex-network/escrowd/internal/infrastructure/gateway/inmemory"
	"github.com/tdex-network/escrowd/internal/infrastructure/hasher"
	"github.com/tdex-network/escrowd/internal/infrastructure/storage/db/inmemory"
)

const (
	owner       = "owner"
	localDomain = "local"
	maker       = "alice"
	taker       = "bob"
	secret      = "s3cr3t"
)

var (
	ctx       = context.Background()
	h         = hasher.NewSha256()
	startTime = time.Unix(1700000000, 0)
)

type testEnv struct {
	svc     *escrow.Service
	gateway *gatewayinmemory.Gateway
	pubsub  *mockPubSub
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	gateway := gatewayinmemory.NewGateway(false)
	t.Cleanup(gateway.Close)

	ps := &mockPubSub{}
	ps.On("Publish", mock.Anything, mock.Anything).Return(nil)

	clock := newFakeClock(startTime)
	svc, err := escrow.NewService(
		inmemory.NewRepoManager(), gateway, pubsub.NewService(ps),
		clock, h, owner, localDomain,
	)
	require.NoError(t, err)

	return &testEnv{svc, gateway, ps, clock}
}

func (e *testEnv) at(secs int) {
	e.clock.Set(startTime.Add(time.Duration(secs) * time.Second))
}

func TestNewService(t *testing.T) {
	repoManager := inmemory.NewRepoManager()
	gateway := gatewayinmemory.NewGateway(false)
	pubsubSvc := pubsub.NewService(&mockPubSub{})

	tests := []struct {
		name        string
		repoManager ports.RepoManager
		gateway     ports.FundsGateway
		pubsub      *pubsub.Service
		hasher      domain.Hasher
		owner       string
		localDomain string
	}{
		{"missing_repo_manager", nil, gateway, pubsubSvc, h, owner, localDomain},
		{"missing_gateway", repoManager, nil, pubsubSvc, h, owner, localDomain},
		{"missing_pubsub", repoManager, gateway, nil, h, owner, localDomain},
		{"missing_hasher", repoManager, gateway, pubsubSvc, nil, owner, localDomain},
		{"missing_owner", repoManager, gateway, pubsubSvc, h, "", localDomain},
		{"missing_local_domain", repoManager, gateway, pubsubSvc, h, owner, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, err := escrow.NewService(
				tt.repoManager, tt.gateway, tt.pubsub, nil, tt.hasher,
				tt.owner, tt.localDomain,
			)
			require.Error(t, err)
			require.Nil(t, svc)
		})
	}
}

func TestCreateEscrow(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)
	require.Equal(t, domain.DeriveEscrowID(h, newEscrowArgs(maker, taker).Identity()), id)

	_, err = env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.ErrorIs(t, err, domain.ErrEscrowAlreadyExists)

	e, err := env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusCreated, e.Status)
	require.Equal(t, domain.DirectionLocalToForeign, e.Direction)
	env.pubsub.AssertCalled(t, "Publish", pubsub.EventEscrowCreated, mock.Anything)

	args := newEscrowArgs(maker, taker)
	args.MakingAmount = decimal.Zero
	_, err = env.svc.CreateEscrow(ctx, args)
	require.ErrorIs(t, err, domain.ErrEscrowInvalidAmount)

	args = newEscrowArgs(maker, taker)
	args.DestinationAsset = args.SourceAsset
	_, err = env.svc.CreateEscrow(ctx, args)
	require.ErrorIs(t, err, domain.ErrEscrowInvalidAssetPair)

	_, err = env.svc.GetEscrow(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)
}

func TestWithdrawScenario(t *testing.T) {
	env := newTestEnv(t)
	id := createAndFund(t, env)

	env.at(61)
	_, err := env.svc.Withdraw(ctx, id, "wrong", "", taker)
	require.ErrorIs(t, err, domain.ErrEscrowInvalidSecret)

	ack, err := env.svc.Withdraw(ctx, id, secret, "", maker)
	require.NoError(t, err)
	require.Equal(t, domain.TransitionWithdraw, ack.Transition)

	// The transition completes only once the release settles.
	e, err := env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusFunded, e.Status)
	require.True(t, e.HasPendingTransition())

	_, err = env.svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)

	require.NoError(t, env.gateway.Settle(ack.TransferID))

	e, err = env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusWithdrawn, e.Status)
	require.Equal(t, secret, e.Secret)
	require.Equal(t, maker, e.Receiver)
	require.True(t, env.gateway.Custody("foreign", "USDT").IsZero())
	env.pubsub.AssertCalled(t, "Publish", pubsub.EventEscrowWithdrawn, mock.Anything)

	// Terminal statuses are sticky.
	_, err = env.svc.Withdraw(ctx, id, secret, "", maker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)
	_, err = env.svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)
	env.at(11000)
	_, err = env.svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)
}

func TestCancelScenario(t *testing.T) {
	env := newTestEnv(t)
	id := createAndFund(t, env)

	env.at(5000)
	_, err := env.svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongTimelockStage)

	stage, err := env.svc.GetStage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TimelockStagePublicWithdrawal, stage.Stage)
	require.True(t, startTime.Add(7200*time.Second).Equal(stage.Deadline))

	env.at(11000)
	ack, err := env.svc.Cancel(ctx, id, "anyone")
	require.NoError(t, err)
	require.NoError(t, env.gateway.Settle(ack.TransferID))

	e, err := env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusCancelled, e.Status)
	require.Equal(t, taker, e.Receiver)
	require.Empty(t, e.Secret)
	env.pubsub.AssertCalled(t, "Publish", pubsub.EventEscrowCancelled, mock.Anything)
}

func TestFund(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)
	commitment := domain.CommitSecret(h, secret)

	_, err = env.svc.Fund(ctx, "unknown", commitment, taker)
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)

	_, err = env.svc.Fund(ctx, id, commitment, maker)
	require.ErrorIs(t, err, domain.ErrEscrowUnauthorized)

	_, err = env.svc.Fund(ctx, id, "abc", taker)
	require.ErrorIs(t, err, domain.ErrEscrowInvalidSecretHash)

	ack, err := env.svc.Fund(ctx, id, commitment, taker)
	require.NoError(t, err)
	require.Equal(t, id, ack.EscrowID)
	require.NotEmpty(t, ack.TransferID)

	_, err = env.svc.Fund(ctx, id, commitment, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)

	pending, err := env.svc.ListEscrows(ctx, nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.True(t, pending[0].HasPendingTransition())
	require.Empty(t, pending[0].SecretHash)

	require.NoError(t, env.gateway.Settle(ack.TransferID))

	e, err := env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusFunded, e.Status)
	require.Equal(t, commitment, e.SecretHash)
	require.True(t, decimal.NewFromInt(50).Equal(env.gateway.Custody("foreign", "USDT")))

	_, err = env.svc.Fund(ctx, id, commitment, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)
}

func TestTransferFailure(t *testing.T) {
	env := newTestEnv(t)
	id := createAndFund(t, env)

	env.at(61)
	ack, err := env.svc.Withdraw(ctx, id, secret, "", maker)
	require.NoError(t, err)
	require.NoError(t, env.gateway.Fail(ack.TransferID, "custody offline"))

	e, err := env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusFunded, e.Status)
	require.False(t, e.HasPendingTransition())
	require.Equal(t, "custody offline", e.LastFailure)
	require.Empty(t, e.Secret)
	env.pubsub.AssertCalled(
		t, "Publish", pubsub.EventEscrowTransferFailed, mock.Anything,
	)

	// A late success of the reverted transfer does not change the escrow.
	err = env.svc.HandleTransferEvent(ctx, ports.TransferEvent{
		TransferID: ack.TransferID,
		EscrowID:   id,
		Status:     ports.TransferStatusSucceeded,
	})
	require.NoError(t, err)
	requireStatus(t, env.svc, id, domain.EscrowStatusFunded, false)

	ack, err = env.svc.Withdraw(ctx, id, secret, "", maker)
	require.NoError(t, err)
	require.NoError(t, env.gateway.Settle(ack.TransferID))

	e, err = env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusWithdrawn, e.Status)
	require.Empty(t, e.LastFailure)
}

func TestGatewayRejection(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("RegisterHandlerForTransferEvent", mock.Anything).Return()
	gateway.On("Deposit", mock.Anything, mock.Anything).Return(
		fmt.Errorf("%w: connection refused", ports.ErrTransferRejected),
	)
	ps := &mockPubSub{}
	ps.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc, err := escrow.NewService(
		inmemory.NewRepoManager(), gateway, pubsub.NewService(ps),
		newFakeClock(startTime), h, owner, localDomain,
	)
	require.NoError(t, err)

	id, err := svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)

	ack, err := svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.ErrorIs(t, err, domain.ErrGatewayFailure)
	require.Nil(t, ack)

	e, err := svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusCreated, e.Status)
	require.False(t, e.HasPendingTransition())
	require.Empty(t, e.SecretHash)
	require.Contains(t, e.LastFailure, "connection refused")
}

func TestUnansweredGatewayRequest(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("RegisterHandlerForTransferEvent", mock.Anything).Return()
	gateway.On("Deposit", mock.Anything, mock.Anything).Return(nil)
	gateway.On("Release", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(errors.New("request to custody service timed out"))
	ps := &mockPubSub{}
	ps.On("Publish", mock.Anything, mock.Anything).Return(nil)
	clock := newFakeClock(startTime)

	svc, err := escrow.NewService(
		inmemory.NewRepoManager(), gateway, pubsub.NewService(ps),
		clock, h, owner, localDomain,
	)
	require.NoError(t, err)

	id, err := svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)
	ack, err := svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.NoError(t, err)
	require.NoError(t, svc.HandleTransferEvent(ctx, ports.TransferEvent{
		TransferID: ack.TransferID,
		EscrowID:   id,
		Status:     ports.TransferStatusSucceeded,
	}))

	// The caller going away must not affect the submitted release.
	reqCtx, cancel := context.WithCancel(ctx)
	cancel()

	clock.Set(startTime.Add(61 * time.Second))
	ack, err = svc.Withdraw(reqCtx, id, secret, "", maker)
	require.NoError(t, err)
	require.NotNil(t, ack)
	requireStatus(t, svc, id, domain.EscrowStatusFunded, true)

	// The release may have been executed, so the escrow cannot be cancelled.
	clock.Set(startTime.Add(11000 * time.Second))
	_, err = svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)

	require.NoError(t, svc.HandleTransferEvent(ctx, ports.TransferEvent{
		TransferID: ack.TransferID,
		EscrowID:   id,
		Status:     ports.TransferStatusSucceeded,
	}))
	requireStatus(t, svc, id, domain.EscrowStatusWithdrawn, false)

	_, err = svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, domain.ErrEscrowWrongState)
	gateway.AssertNumberOfCalls(t, "Release", 1)
}

func TestReconcile(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("RegisterHandlerForTransferEvent", mock.Anything).Return()
	gateway.On("Deposit", mock.Anything, mock.Anything).Return(nil)
	ps := &mockPubSub{}
	ps.On("Publish", mock.Anything, mock.Anything).Return(nil)
	clock := newFakeClock(startTime)

	svc, err := escrow.NewService(
		inmemory.NewRepoManager(), gateway, pubsub.NewService(ps),
		clock, h, owner, localDomain,
	)
	require.NoError(t, err)

	args := newEscrowArgs(maker, taker)
	settledID, err := svc.CreateEscrow(ctx, args)
	require.NoError(t, err)
	args.Maker = "carol"
	pendingID, err := svc.CreateEscrow(ctx, args)
	require.NoError(t, err)
	args.Maker = "dave"
	lostID, err := svc.CreateEscrow(ctx, args)
	require.NoError(t, err)

	commitment := domain.CommitSecret(h, secret)
	settledAck, err := svc.Fund(ctx, settledID, commitment, taker)
	require.NoError(t, err)
	pendingAck, err := svc.Fund(ctx, pendingID, commitment, taker)
	require.NoError(t, err)
	lostAck, err := svc.Fund(ctx, lostID, commitment, taker)
	require.NoError(t, err)

	gateway.On("TransferStatus", mock.Anything, settledAck.TransferID).
		Return(ports.TransferStatusSucceeded, nil)
	gateway.On("TransferStatus", mock.Anything, pendingAck.TransferID).
		Return(ports.TransferStatusPending, nil)
	gateway.On("TransferStatus", mock.Anything, lostAck.TransferID).
		Return(ports.TransferStatusUnknown, nil)

	require.NoError(t, svc.Reconcile(ctx))

	requireStatus(t, svc, settledID, domain.EscrowStatusFunded, false)
	requireStatus(t, svc, pendingID, domain.EscrowStatusCreated, true)
	// Unknown transfers are given some time to show up at the gateway.
	requireStatus(t, svc, lostID, domain.EscrowStatusCreated, true)

	clock.Set(startTime.Add(time.Hour))
	require.NoError(t, svc.Reconcile(ctx))

	requireStatus(t, svc, pendingID, domain.EscrowStatusCreated, true)
	requireStatus(t, svc, lostID, domain.EscrowStatusCreated, false)
}

func TestPause(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)

	err = env.svc.Pause(ctx, maker)
	require.ErrorIs(t, err, domain.ErrEscrowUnauthorized)
	require.False(t, env.svc.IsPaused())

	require.NoError(t, env.svc.Pause(ctx, owner))
	require.True(t, env.svc.IsPaused())
	env.pubsub.AssertCalled(t, "Publish", pubsub.EventEscrowPaused, mock.Anything)

	_, err = env.svc.CreateEscrow(ctx, newEscrowArgs("carol", taker))
	require.ErrorIs(t, err, escrow.ErrServicePaused)
	_, err = env.svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.ErrorIs(t, err, escrow.ErrServicePaused)
	_, err = env.svc.Withdraw(ctx, id, secret, "", maker)
	require.ErrorIs(t, err, escrow.ErrServicePaused)
	_, err = env.svc.Cancel(ctx, id, taker)
	require.ErrorIs(t, err, escrow.ErrServicePaused)

	// Queries keep working.
	_, err = env.svc.GetEscrow(ctx, id)
	require.NoError(t, err)

	err = env.svc.Unpause(ctx, taker)
	require.ErrorIs(t, err, domain.ErrEscrowUnauthorized)
	require.NoError(t, env.svc.Unpause(ctx, owner))
	require.False(t, env.svc.IsPaused())
	env.pubsub.AssertCalled(t, "Publish", pubsub.EventEscrowUnpaused, mock.Anything)

	_, err = env.svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.NoError(t, err)
}

func TestQueriesByParty(t *testing.T) {
	env := newTestEnv(t)

	firstID, err := env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)
	env.at(10)
	secondID, err := env.svc.CreateEscrow(ctx, newEscrowArgs(taker, maker))
	require.NoError(t, err)
	require.NotEqual(t, firstID, secondID)

	// Funding one escrow does not affect the other.
	env.at(20)
	ack, err := env.svc.Fund(ctx, firstID, domain.CommitSecret(h, secret), taker)
	require.NoError(t, err)
	require.NoError(t, env.gateway.Settle(ack.TransferID))

	byMaker, err := env.svc.GetEscrowsByMaker(ctx, maker)
	require.NoError(t, err)
	require.Len(t, byMaker, 1)
	require.Equal(t, firstID, byMaker[0].ID)

	byTaker, err := env.svc.GetEscrowsByTaker(ctx, maker)
	require.NoError(t, err)
	require.Len(t, byTaker, 1)
	require.Equal(t, secondID, byTaker[0].ID)

	for _, party := range []string{maker, taker} {
		byParty, err := env.svc.GetEscrowsByParty(ctx, party)
		require.NoError(t, err)
		require.Len(t, byParty, 2)
		require.Equal(t, firstID, byParty[0].ID)
		require.Equal(t, secondID, byParty[1].ID)
	}

	funded := domain.EscrowStatusFunded
	list, err := env.svc.ListEscrows(ctx, &funded)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, firstID, list[0].ID)
}

func createAndFund(t *testing.T, env *testEnv) string {
	id, err := env.svc.CreateEscrow(ctx, newEscrowArgs(maker, taker))
	require.NoError(t, err)

	ack, err := env.svc.Fund(ctx, id, domain.CommitSecret(h, secret), taker)
	require.NoError(t, err)
	require.NoError(t, env.gateway.Settle(ack.TransferID))
	return id
}

func requireStatus(
	t *testing.T, svc *escrow.Service, id string,
	status domain.EscrowStatus, pending bool,
) {
	e, err := svc.GetEscrow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, status, e.Status)
	require.Equal(t, pending, e.HasPendingTransition())
}

func newEscrowArgs(maker, taker string) domain.EscrowArgs {
	return domain.EscrowArgs{
		SourceAsset:       "LBTC",
		DestinationAsset:  "USDT",
		MakingAmount:      decimal.NewFromInt(100),
		TakingAmount:      decimal.NewFromInt(50),
		Maker:             maker,
		Taker:             taker,
		SourceDomain:      localDomain,
		DestinationDomain: "foreign",
		Timelocks: domain.NewTimelocksFromSeconds(
			60, 3600, 7200, 10800, 14400,
		),
	}
}
