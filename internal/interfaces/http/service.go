package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/application/escrow"
	"github.com/tdex-network/escrowd/internal/core/application/pubsub"
	"github.com/tdex-network/escrowd/internal/core/domain"
	interfaces "github.com/tdex-network/escrowd/internal/interfaces"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// EscrowService is the set of escrow operations exposed by the REST API.
type EscrowService interface {
	CreateEscrow(ctx context.Context, args domain.EscrowArgs) (string, error)
	Fund(ctx context.Context, id, secretHash, caller string) (*escrow.Ack, error)
	Withdraw(
		ctx context.Context, id, secret, receiver, caller string,
	) (*escrow.Ack, error)
	Cancel(ctx context.Context, id, caller string) (*escrow.Ack, error)
	GetEscrow(ctx context.Context, id string) (*domain.Escrow, error)
	GetEscrowsByMaker(ctx context.Context, maker string) ([]domain.Escrow, error)
	GetEscrowsByTaker(ctx context.Context, taker string) ([]domain.Escrow, error)
	GetEscrowsByParty(ctx context.Context, party string) ([]domain.Escrow, error)
	ListEscrows(
		ctx context.Context, status *domain.EscrowStatus,
	) ([]domain.Escrow, error)
	GetStage(ctx context.Context, id string) (*escrow.StageInfo, error)
	Pause(ctx context.Context, caller string) error
	Unpause(ctx context.Context, caller string) error
	IsPaused() bool
	IsOwner(caller string) bool
}

// WebhookService is the set of webhook operations exposed by the REST API.
type WebhookService interface {
	AddWebhook(ctx context.Context, event, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, event string) ([]pubsub.WebhookInfo, error)
}

type ServiceOpts struct {
	Port int
	// AuthSecret is the HMAC secret used to verify bearer tokens. If empty,
	// the caller is identified by the X-Caller-Id header.
	AuthSecret string

	EscrowSvc  EscrowService
	WebhookSvc WebhookService
}

func (o ServiceOpts) validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid listening port %d", o.Port)
	}
	if o.EscrowSvc == nil {
		return fmt.Errorf("escrow app service must not be null")
	}
	if o.WebhookSvc == nil {
		return fmt.Errorf("webhook app service must not be null")
	}
	return nil
}

func (o ServiceOpts) address() string {
	return fmt.Sprintf(":%d", o.Port)
}

type service struct {
	opts   ServiceOpts
	server *http.Server
}

// NewService returns the REST interface of the daemon. Both HTTP/1 and
// cleartext HTTP/2 requests are served on the same port.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	handler := NewRouter(opts.EscrowSvc, opts.WebhookSvc, opts.AuthSecret)
	return &service{
		opts: opts,
		server: &http.Server{
			Addr:              opts.address(),
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(lis); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	log.Infof("http interface listening on %s", s.server.Addr)
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
	}
	log.Debug("disabled http interface")
}
