package gatewayinmemory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	gatewayinmemory "github.com/tdex-network/escrowd/internal/infrastructure/gateway/inmemory"
)

var ctx = context.Background()

func TestManualSettlement(t *testing.T) {
	gateway := gatewayinmemory.NewGateway(false)
	t.Cleanup(gateway.Close)

	events := make([]ports.TransferEvent, 0)
	gateway.RegisterHandlerForTransferEvent(func(e ports.TransferEvent) {
		events = append(events, e)
	})

	deposit := newTransfer("t1", domain.TransitionFund, 50)
	require.NoError(t, gateway.Deposit(ctx, deposit))
	require.ErrorIs(
		t, gateway.Deposit(ctx, deposit), gatewayinmemory.ErrTransferAlreadyExists,
	)

	status, err := gateway.TransferStatus(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, ports.TransferStatusPending, status)
	require.Equal(t, []string{"t1"}, gateway.PendingTransfers())

	require.NoError(t, gateway.Settle("t1"))
	require.ErrorIs(t, gateway.Settle("t1"), gatewayinmemory.ErrTransferNotPending)
	require.ErrorIs(t, gateway.Settle("t0"), gatewayinmemory.ErrTransferNotFound)
	require.True(t, decimal.NewFromInt(50).Equal(gateway.Custody("foreign", "USDT")))

	require.Len(t, events, 1)
	require.Equal(t, ports.TransferStatusSucceeded, events[0].Status)
	require.Equal(t, "escrow", events[0].EscrowID)

	// Releasing more than the custody holds fails.
	release := newTransfer("t2", domain.TransitionWithdraw, 80)
	require.NoError(t, gateway.Release(ctx, release))
	require.NoError(t, gateway.Settle("t2"))
	require.Len(t, events, 2)
	require.Equal(t, ports.TransferStatusFailed, events[1].Status)
	require.NotEmpty(t, events[1].Reason)

	release = newTransfer("t3", domain.TransitionCancel, 50)
	require.NoError(t, gateway.Release(ctx, release))
	require.NoError(t, gateway.Fail("t3", "rejected"))
	require.Len(t, events, 3)
	require.Equal(t, "rejected", events[2].Reason)

	status, err = gateway.TransferStatus(ctx, "t3")
	require.NoError(t, err)
	require.Equal(t, ports.TransferStatusFailed, status)

	status, err = gateway.TransferStatus(ctx, "unknown")
	require.NoError(t, err)
	require.Equal(t, ports.TransferStatusUnknown, status)

	err = gateway.Deposit(ctx, domain.Transfer{ID: "t4"})
	require.ErrorIs(t, err, gatewayinmemory.ErrInvalidTransfer)
	require.ErrorIs(t, err, ports.ErrTransferRejected)
}

func TestAutoSettlement(t *testing.T) {
	gateway := gatewayinmemory.NewGateway(true)

	wg := &sync.WaitGroup{}
	wg.Add(2)
	lock := &sync.Mutex{}
	events := make(map[string]ports.TransferEvent)
	gateway.RegisterHandlerForTransferEvent(func(e ports.TransferEvent) {
		lock.Lock()
		defer lock.Unlock()
		events[e.TransferID] = e
		wg.Done()
	})

	require.NoError(t, gateway.Deposit(ctx, newTransfer("t1", domain.TransitionFund, 50)))
	require.Eventually(t, func() bool {
		status, _ := gateway.TransferStatus(ctx, "t1")
		return status == ports.TransferStatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, gateway.Release(ctx, newTransfer("t2", domain.TransitionWithdraw, 50)))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for settlement")
	}

	gateway.Close()
	require.Equal(t, ports.TransferStatusSucceeded, events["t1"].Status)
	require.Equal(t, ports.TransferStatusSucceeded, events["t2"].Status)
	require.True(t, gateway.Custody("foreign", "USDT").IsZero())

	require.ErrorIs(
		t, gateway.Deposit(ctx, newTransfer("t3", domain.TransitionFund, 1)),
		gatewayinmemory.ErrGatewayClosed,
	)
}

func TestCloseWaitsForSettlements(t *testing.T) {
	gateway := gatewayinmemory.NewGateway(true)

	lock := &sync.Mutex{}
	settled := make(map[string]bool)
	gateway.RegisterHandlerForTransferEvent(func(e ports.TransferEvent) {
		lock.Lock()
		defer lock.Unlock()
		settled[e.TransferID] = true
	})

	accepted := make(chan string, 100)
	wg := &sync.WaitGroup{}
	for i := 0; i < cap(accepted); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			if err := gateway.Deposit(
				ctx, newTransfer(id, domain.TransitionFund, 1),
			); err == nil {
				accepted <- id
			}
		}(i)
	}

	gateway.Close()

	// Every transfer accepted before Close returned must be settled by then.
	lock.Lock()
	settledAtClose := len(settled)
	lock.Unlock()

	wg.Wait()
	close(accepted)

	lock.Lock()
	defer lock.Unlock()
	count := 0
	for id := range accepted {
		require.True(t, settled[id], "transfer %s not settled", id)
		count++
	}
	require.Equal(t, count, settledAtClose)
}

func newTransfer(id string, kind domain.TransitionKind, amount int64) domain.Transfer {
	return domain.Transfer{
		ID:       id,
		EscrowID: "escrow",
		Kind:     kind,
		Domain:   "foreign",
		Asset:    "USDT",
		Amount:   decimal.NewFromInt(amount),
		Party:    "bob",
	}
}
