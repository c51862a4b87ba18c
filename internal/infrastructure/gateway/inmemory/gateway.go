package gatewayinmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

const errInsufficientCustody = "insufficient funds in custody"

var (
	ErrTransferNotFound      = fmt.Errorf("transfer not found")
	ErrTransferAlreadyExists = fmt.Errorf("transfer already exists")
	ErrTransferNotPending    = fmt.Errorf("transfer is not pending")
	ErrInvalidTransfer       = fmt.Errorf("%w: invalid transfer", ports.ErrTransferRejected)
	ErrGatewayClosed         = fmt.Errorf("%w: gateway is closed", ports.ErrTransferRejected)
)

type transfer struct {
	domain.Transfer
	deposit bool
	status  ports.TransferStatus
}

// Gateway is a FundsGateway simulating the custody of funds in memory. With
// auto-settlement every transfer is settled right after being submitted,
// otherwise Settle or Fail must be called explicitly.
type Gateway struct {
	autoSettle bool

	transfers map[string]*transfer
	custody   map[string]decimal.Decimal
	handlers  []ports.TransferHandler
	closed    bool

	lock *sync.RWMutex
	wg   *sync.WaitGroup
}

func NewGateway(autoSettle bool) *Gateway {
	return &Gateway{
		autoSettle: autoSettle,
		transfers:  make(map[string]*transfer),
		custody:    make(map[string]decimal.Decimal),
		handlers:   make([]ports.TransferHandler, 0),
		lock:       &sync.RWMutex{},
		wg:         &sync.WaitGroup{},
	}
}

func (g *Gateway) Deposit(_ context.Context, t domain.Transfer) error {
	return g.submit(t, true)
}

func (g *Gateway) Release(_ context.Context, t domain.Transfer) error {
	return g.submit(t, false)
}

func (g *Gateway) TransferStatus(
	_ context.Context, transferID string,
) (ports.TransferStatus, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()

	t, ok := g.transfers[transferID]
	if !ok {
		return ports.TransferStatusUnknown, nil
	}
	return t.status, nil
}

func (g *Gateway) RegisterHandlerForTransferEvent(handler ports.TransferHandler) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.handlers = append(g.handlers, handler)
}

// Settle completes the given pending transfer. A release fails if the custody
// does not hold enough funds.
func (g *Gateway) Settle(transferID string) error {
	g.lock.Lock()
	t, ok := g.transfers[transferID]
	if !ok {
		g.lock.Unlock()
		return ErrTransferNotFound
	}
	if t.status != ports.TransferStatusPending {
		g.lock.Unlock()
		return ErrTransferNotPending
	}

	key := custodyKey(t.Transfer)
	balance := g.custody[key]
	reason := ""
	if t.deposit {
		g.custody[key] = balance.Add(t.Amount)
		t.status = ports.TransferStatusSucceeded
	} else if balance.LessThan(t.Amount) {
		t.status = ports.TransferStatusFailed
		reason = errInsufficientCustody
	} else {
		g.custody[key] = balance.Sub(t.Amount)
		t.status = ports.TransferStatusSucceeded
	}
	event := newTransferEvent(t, reason)
	handlers := g.handlers
	g.lock.Unlock()

	notify(handlers, event)
	return nil
}

// Fail rejects the given pending transfer with the given reason.
func (g *Gateway) Fail(transferID, reason string) error {
	g.lock.Lock()
	t, ok := g.transfers[transferID]
	if !ok {
		g.lock.Unlock()
		return ErrTransferNotFound
	}
	if t.status != ports.TransferStatusPending {
		g.lock.Unlock()
		return ErrTransferNotPending
	}

	t.status = ports.TransferStatusFailed
	event := newTransferEvent(t, reason)
	handlers := g.handlers
	g.lock.Unlock()

	notify(handlers, event)
	return nil
}

// Custody returns the amount of the given asset held in the given domain.
func (g *Gateway) Custody(domainTag, asset string) decimal.Decimal {
	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.custody[custodyKey(domain.Transfer{Domain: domainTag, Asset: asset})]
}

// PendingTransfers returns the ids of the transfers waiting to be settled.
func (g *Gateway) PendingTransfers() []string {
	g.lock.RLock()
	defer g.lock.RUnlock()

	ids := make([]string, 0)
	for id, t := range g.transfers {
		if t.status == ports.TransferStatusPending {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Gateway) Close() {
	g.lock.Lock()
	g.closed = true
	g.lock.Unlock()

	g.wg.Wait()
}

func (g *Gateway) submit(t domain.Transfer, deposit bool) error {
	if len(t.ID) <= 0 || len(t.Party) <= 0 || !t.Amount.IsPositive() {
		return ErrInvalidTransfer
	}

	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		return ErrGatewayClosed
	}
	if _, ok := g.transfers[t.ID]; ok {
		g.lock.Unlock()
		return ErrTransferAlreadyExists
	}
	g.transfers[t.ID] = &transfer{t, deposit, ports.TransferStatusPending}
	// Added under lock so that Close cannot wait before the settlement starts.
	if g.autoSettle {
		g.wg.Add(1)
	}
	g.lock.Unlock()

	log.WithField("transfer_id", t.ID).Debugf(
		"submitted %s of %s %s for %s", t.Kind, t.Amount, t.Asset, t.Party,
	)

	if g.autoSettle {
		go func() {
			defer g.wg.Done()
			if err := g.Settle(t.ID); err != nil {
				log.WithError(err).Warnf("failed to settle transfer %s", t.ID)
			}
		}()
	}
	return nil
}

func newTransferEvent(t *transfer, reason string) ports.TransferEvent {
	return ports.TransferEvent{
		TransferID: t.ID,
		EscrowID:   t.EscrowID,
		Kind:       t.Kind,
		Status:     t.status,
		Reason:     reason,
	}
}

func notify(handlers []ports.TransferHandler, event ports.TransferEvent) {
	for _, handler := range handlers {
		handler(event)
	}
}

func custodyKey(t domain.Transfer) string {
	return fmt.Sprintf("%s/%s", t.Domain, t.Asset)
}
