package escrow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/application/pubsub"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/pkg/stats"
)

const (
	// unknownTransferGracePeriod is how long a staged transition may wait for
	// its transfer to show up at the gateway before being reverted.
	unknownTransferGracePeriod = 5 * time.Minute
)

var (
	ErrServicePaused = fmt.Errorf("service is paused, retry later")
)

type Service struct {
	repoManager ports.RepoManager
	gateway     ports.FundsGateway
	pubsub      *pubsub.Service
	clock       ports.Clock
	hasher      domain.Hasher
	owner       string
	localDomain string

	paused bool
	lock   *sync.RWMutex
}

func NewService(
	repoManager ports.RepoManager,
	gateway ports.FundsGateway,
	pubsubSvc *pubsub.Service,
	clock ports.Clock,
	hasher domain.Hasher,
	owner, localDomain string,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if gateway == nil {
		return nil, fmt.Errorf("missing funds gateway")
	}
	if pubsubSvc == nil {
		return nil, fmt.Errorf("missing pubsub service")
	}
	if hasher == nil {
		return nil, fmt.Errorf("missing hash function")
	}
	if len(owner) <= 0 {
		return nil, fmt.Errorf("missing owner")
	}
	if len(localDomain) <= 0 {
		return nil, fmt.Errorf("missing local domain")
	}
	if clock == nil {
		clock = systemClock{}
	}

	svc := &Service{
		repoManager: repoManager,
		gateway:     gateway,
		pubsub:      pubsubSvc,
		clock:       clock,
		hasher:      hasher,
		owner:       owner,
		localDomain: localDomain,
		lock:        &sync.RWMutex{},
	}

	gateway.RegisterHandlerForTransferEvent(func(event ports.TransferEvent) {
		if err := svc.HandleTransferEvent(
			context.Background(), event,
		); err != nil {
			log.WithError(err).WithField("transfer_id", event.TransferID).Warn(
				"failed to handle transfer event",
			)
		}
	})

	return svc, nil
}

// CreateEscrow validates the given arguments, derives the escrow id and
// stores a new escrow in Created status.
func (s *Service) CreateEscrow(
	ctx context.Context, args domain.EscrowArgs,
) (string, error) {
	if s.IsPaused() {
		return "", ErrServicePaused
	}

	escrow, err := domain.NewEscrow(
		args, s.localDomain, s.hasher, s.clock.Now(),
	)
	if err != nil {
		return "", err
	}

	if err := s.repoManager.EscrowRepository().AddEscrow(
		ctx, escrow,
	); err != nil {
		return "", err
	}

	stats.RecordEscrowCreated()
	log.WithField("escrow_id", escrow.ID).Debugf(
		"created %s escrow", escrow.Direction,
	)

	if err := s.pubsub.PublishEscrowCreatedEvent(*escrow); err != nil {
		log.WithError(err).Warn("failed to publish escrow created event")
	}
	return escrow.ID, nil
}

// Fund stages the funding of the escrow with the given secret commitment and
// asks the gateway to deposit the taker's funds.
func (s *Service) Fund(
	ctx context.Context, id, secretHash, caller string,
) (*Ack, error) {
	if s.IsPaused() {
		return nil, ErrServicePaused
	}

	return s.stageTransition(ctx, id, func(e *domain.Escrow) (*domain.Transfer, error) {
		return e.Fund(caller, secretHash, s.hasher, s.clock.Now())
	})
}

// Withdraw stages the withdrawal of the escrow and asks the gateway to
// release the funds to the receiver, or to the caller if receiver is empty.
func (s *Service) Withdraw(
	ctx context.Context, id, secret, receiver, caller string,
) (*Ack, error) {
	if s.IsPaused() {
		return nil, ErrServicePaused
	}

	return s.stageTransition(ctx, id, func(e *domain.Escrow) (*domain.Transfer, error) {
		return e.Withdraw(secret, receiver, caller, s.hasher, s.clock.Now())
	})
}

// Cancel stages the cancellation of the escrow and asks the gateway to
// return the funds to the depositor.
func (s *Service) Cancel(
	ctx context.Context, id, caller string,
) (*Ack, error) {
	if s.IsPaused() {
		return nil, ErrServicePaused
	}

	log.WithField("escrow_id", id).Debugf("cancellation requested by %s", caller)
	return s.stageTransition(ctx, id, func(e *domain.Escrow) (*domain.Transfer, error) {
		return e.Cancel(s.clock.Now())
	})
}

func (s *Service) GetEscrow(
	ctx context.Context, id string,
) (*domain.Escrow, error) {
	return s.repoManager.EscrowRepository().GetEscrow(ctx, id)
}

func (s *Service) GetEscrowsByMaker(
	ctx context.Context, maker string,
) ([]domain.Escrow, error) {
	return s.repoManager.EscrowRepository().GetEscrowsByMaker(ctx, maker)
}

func (s *Service) GetEscrowsByTaker(
	ctx context.Context, taker string,
) ([]domain.Escrow, error) {
	return s.repoManager.EscrowRepository().GetEscrowsByTaker(ctx, taker)
}

// GetEscrowsByParty returns all the escrows the given party either created
// or took, in creation order.
func (s *Service) GetEscrowsByParty(
	ctx context.Context, party string,
) ([]domain.Escrow, error) {
	byMaker, err := s.GetEscrowsByMaker(ctx, party)
	if err != nil {
		return nil, err
	}
	byTaker, err := s.GetEscrowsByTaker(ctx, party)
	if err != nil {
		return nil, err
	}

	escrows := make([]domain.Escrow, 0, len(byMaker)+len(byTaker))
	seen := make(map[string]struct{})
	for _, e := range append(byMaker, byTaker...) {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		escrows = append(escrows, e)
	}
	sort.SliceStable(escrows, func(i, j int) bool {
		return escrows[i].CreatedAt.Before(escrows[j].CreatedAt)
	})
	return escrows, nil
}

// ListEscrows returns all escrows, optionally filtered by status.
func (s *Service) ListEscrows(
	ctx context.Context, status *domain.EscrowStatus,
) ([]domain.Escrow, error) {
	return s.repoManager.EscrowRepository().GetAllEscrows(ctx, status)
}

// GetStage returns the current timelock stage of the escrow.
func (s *Service) GetStage(ctx context.Context, id string) (*StageInfo, error) {
	escrow, err := s.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	stage := escrow.Stage(now)
	return &StageInfo{
		Stage:    stage,
		Deadline: escrow.Timelocks.StageDeadline(escrow.CreatedAt, stage),
		Now:      now,
	}, nil
}

// Pause prevents any escrow from being created or transitioned. Only the
// owner can pause the service.
func (s *Service) Pause(_ context.Context, caller string) error {
	return s.setPaused(caller, true)
}

// Unpause resumes the service. Only the owner can unpause the service.
func (s *Service) Unpause(_ context.Context, caller string) error {
	return s.setPaused(caller, false)
}

// IsOwner returns whether the given caller is the owner of the daemon.
func (s *Service) IsOwner(caller string) bool {
	return len(caller) > 0 && caller == s.owner
}

func (s *Service) IsPaused() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.paused
}

// HandleTransferEvent is the completion handler for the transfers submitted
// to the gateway. It applies the staged transition if the transfer
// succeeded, otherwise it reverts it.
func (s *Service) HandleTransferEvent(
	ctx context.Context, event ports.TransferEvent,
) error {
	if !event.Status.IsFinal() {
		return nil
	}

	var (
		kind   domain.TransitionKind
		escrow *domain.Escrow
	)
	succeeded := event.Status == ports.TransferStatusSucceeded

	if err := s.repoManager.EscrowRepository().UpdateEscrow(
		ctx, event.EscrowID,
		func(e *domain.Escrow) (*domain.Escrow, error) {
			if e.Pending != nil {
				kind = e.Pending.Kind
			}

			var err error
			if succeeded {
				err = e.ConfirmTransfer(event.TransferID, s.clock.Now())
			} else {
				err = e.RevertTransfer(event.TransferID, failureReason(event))
			}
			if err != nil {
				return nil, err
			}

			escrow = e
			return e, nil
		},
	); err != nil {
		if errors.Is(err, domain.ErrEscrowTransferReverted) {
			log.WithField("escrow_id", event.EscrowID).Errorf(
				"transfer %s succeeded after its %s transition was reverted, "+
					"funds must be reviewed", event.TransferID, event.Kind,
			)
			return nil
		}
		if errors.Is(err, domain.ErrEscrowTransferMismatch) {
			log.WithField("escrow_id", event.EscrowID).Debugf(
				"ignoring outcome of stale transfer %s", event.TransferID,
			)
			return nil
		}
		return err
	}

	logger := log.WithField("escrow_id", escrow.ID)
	if !succeeded {
		stats.RecordTransition(kind.String(), stats.OutcomeReverted)
		logger.Warnf(
			"%s transfer %s failed, transition reverted: %s",
			kind, event.TransferID, escrow.LastFailure,
		)
		s.publishTransferFailed(*escrow, kind, event.TransferID)
		return nil
	}

	stats.RecordTransition(kind.String(), stats.OutcomeConfirmed)
	logger.Debugf("escrow %s", escrow.Status)

	var err error
	switch escrow.Status {
	case domain.EscrowStatusFunded:
		err = s.pubsub.PublishEscrowFundedEvent(*escrow, event.TransferID)
	case domain.EscrowStatusWithdrawn:
		err = s.pubsub.PublishEscrowWithdrawnEvent(*escrow, event.TransferID)
	case domain.EscrowStatusCancelled:
		err = s.pubsub.PublishEscrowCancelledEvent(*escrow, event.TransferID)
	}
	if err != nil {
		logger.WithError(err).Warn("failed to publish escrow event")
	}
	return nil
}

// Reconcile asks the gateway for the outcome of all pending transfers and
// completes the related transitions. It recovers notifications lost for
// example because of a restart.
func (s *Service) Reconcile(ctx context.Context) error {
	escrows, err := s.repoManager.EscrowRepository().
		GetEscrowsWithPendingTransition(ctx)
	if err != nil {
		return err
	}

	for _, e := range escrows {
		pending := e.Pending
		logger := log.WithField("escrow_id", e.ID)

		status, err := s.gateway.TransferStatus(ctx, pending.TransferID)
		if err != nil {
			logger.WithError(err).Warnf(
				"failed to get status of transfer %s", pending.TransferID,
			)
			continue
		}

		event := ports.TransferEvent{
			TransferID: pending.TransferID,
			EscrowID:   e.ID,
			Kind:       pending.Kind,
			Status:     status,
		}
		if status == ports.TransferStatusUnknown {
			if s.clock.Now().Sub(pending.RequestedAt) < unknownTransferGracePeriod {
				continue
			}
			event.Status = ports.TransferStatusFailed
			event.Reason = "transfer unknown to gateway"
		}

		if err := s.HandleTransferEvent(ctx, event); err != nil {
			logger.WithError(err).Warn("failed to reconcile pending transition")
		}
	}
	return nil
}

// RunReconciler periodically reconciles pending transitions until the
// context is done.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	if escrows, err := s.repoManager.EscrowRepository().
		GetEscrowsWithPendingTransition(ctx); err == nil {
		stats.SetPendingTransitions(len(escrows))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Reconcile(ctx); err != nil {
			log.WithError(err).Warn("failed to reconcile pending transitions")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) stageTransition(
	ctx context.Context, id string,
	stageFn func(e *domain.Escrow) (*domain.Transfer, error),
) (*Ack, error) {
	var transfer *domain.Transfer
	if err := s.repoManager.EscrowRepository().UpdateEscrow(
		ctx, id, func(e *domain.Escrow) (*domain.Escrow, error) {
			t, err := stageFn(e)
			if err != nil {
				return nil, err
			}
			transfer = t
			return e, nil
		},
	); err != nil {
		return nil, err
	}

	kind := transfer.Kind.String()
	stats.RecordTransition(kind, stats.OutcomeStaged)
	log.WithField("escrow_id", id).Debugf(
		"staged %s transition with transfer %s", kind, transfer.ID,
	)

	ack := &Ack{
		EscrowID:   id,
		TransferID: transfer.ID,
		Transition: transfer.Kind,
	}

	// The staged transition is committed, the transfer must not be bound to
	// the lifetime of the caller's request.
	gatewayCtx := context.Background()

	var err error
	operation := "release"
	if transfer.Kind.IsDeposit() {
		operation = "deposit"
		err = s.gateway.Deposit(gatewayCtx, *transfer)
	} else {
		err = s.gateway.Release(gatewayCtx, *transfer)
	}
	stats.RecordGatewayRequest(operation, err)

	if err != nil {
		if !errors.Is(err, ports.ErrTransferRejected) {
			log.WithError(err).WithField("escrow_id", id).Warnf(
				"outcome of %s transfer %s is unknown, waiting for its completion",
				kind, transfer.ID,
			)
			return ack, nil
		}

		if cerr := s.HandleTransferEvent(gatewayCtx, ports.TransferEvent{
			TransferID: transfer.ID,
			EscrowID:   id,
			Kind:       transfer.Kind,
			Status:     ports.TransferStatusFailed,
			Reason:     err.Error(),
		}); cerr != nil {
			log.WithError(cerr).WithField("escrow_id", id).Error(
				"failed to revert staged transition",
			)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayFailure, err)
	}

	return ack, nil
}

func (s *Service) setPaused(caller string, paused bool) error {
	if caller != s.owner {
		return fmt.Errorf(
			"%w: only the owner can pause the service", domain.ErrEscrowUnauthorized,
		)
	}

	s.lock.Lock()
	changed := s.paused != paused
	s.paused = paused
	s.lock.Unlock()

	if !changed {
		return nil
	}

	log.Infof("service paused: %t", paused)
	if err := s.pubsub.PublishPauseEvent(paused, caller); err != nil {
		log.WithError(err).Warn("failed to publish pause event")
	}
	return nil
}

func (s *Service) publishTransferFailed(
	escrow domain.Escrow, kind domain.TransitionKind, transferID string,
) {
	if err := s.pubsub.PublishTransferFailedEvent(
		escrow, kind, transferID,
	); err != nil {
		log.WithError(err).Warn("failed to publish transfer failed event")
	}
}

func failureReason(event ports.TransferEvent) string {
	if len(event.Reason) > 0 {
		return event.Reason
	}
	return fmt.Sprintf("%s transfer %s failed", event.Kind, event.TransferID)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
