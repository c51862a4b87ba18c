package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

const (
	EventEscrowCreated        = "ESCROW_CREATED"
	EventEscrowFunded         = "ESCROW_FUNDED"
	EventEscrowWithdrawn      = "ESCROW_WITHDRAWN"
	EventEscrowCancelled      = "ESCROW_CANCELLED"
	EventEscrowTransferFailed = "ESCROW_TRANSFER_FAILED"
	EventEscrowPaused         = "ESCROW_PAUSED"
	EventEscrowUnpaused       = "ESCROW_UNPAUSED"
)

var (
	ErrInvalidWebhookEvent    = fmt.Errorf("invalid webhook event type")
	ErrInvalidWebhookEndpoint = fmt.Errorf("invalid webhook endpoint")

	supportedEvents = map[string]struct{}{
		EventEscrowCreated:        {},
		EventEscrowFunded:         {},
		EventEscrowWithdrawn:      {},
		EventEscrowCancelled:      {},
		EventEscrowTransferFailed: {},
		EventEscrowPaused:         {},
		EventEscrowUnpaused:       {},
		ports.AnyTopic:            {},
	}
)

// WebhookInfo describes a registered webhook. The secret is never exposed.
type WebhookInfo struct {
	Id        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type Service struct {
	pubsub ports.PubSub
}

func NewService(pubsub ports.PubSub) *Service {
	return &Service{pubsub}
}

func (s *Service) AddWebhook(
	_ context.Context, event, endpoint, secret string,
) (string, error) {
	if _, ok := supportedEvents[event]; !ok {
		return "", ErrInvalidWebhookEvent
	}
	if u, err := url.ParseRequestURI(endpoint); err != nil || len(u.Host) <= 0 {
		return "", ErrInvalidWebhookEndpoint
	}
	return s.pubsub.Subscribe(event, endpoint, secret)
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	return s.pubsub.Unsubscribe(ports.UnspecifiedTopic, id)
}

func (s *Service) ListWebhooks(
	_ context.Context, event string,
) ([]WebhookInfo, error) {
	if _, ok := supportedEvents[event]; !ok {
		return nil, ErrInvalidWebhookEvent
	}
	subs := s.pubsub.ListSubscriptionsForTopic(event)
	webhooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		webhooks = append(webhooks, WebhookInfo{
			Id:        sub.Id(),
			Event:     sub.Topic(),
			Endpoint:  sub.NotifyAt(),
			IsSecured: sub.IsSecured(),
		})
	}
	return webhooks, nil
}

func (s *Service) PublishEscrowCreatedEvent(escrow domain.Escrow) error {
	return s.publish(EventEscrowCreated, map[string]interface{}{
		"escrow": getEscrowPayload(escrow),
	})
}

func (s *Service) PublishEscrowFundedEvent(
	escrow domain.Escrow, transferID string,
) error {
	return s.publish(EventEscrowFunded, map[string]interface{}{
		"escrow":      getEscrowPayload(escrow),
		"transfer_id": transferID,
	})
}

// PublishEscrowWithdrawnEvent notifies the revealed secret, that the
// counterparty can use to claim the other leg of the swap.
func (s *Service) PublishEscrowWithdrawnEvent(
	escrow domain.Escrow, transferID string,
) error {
	return s.publish(EventEscrowWithdrawn, map[string]interface{}{
		"escrow":      getEscrowPayload(escrow),
		"transfer_id": transferID,
		"secret":      escrow.Secret,
		"receiver":    escrow.Receiver,
	})
}

func (s *Service) PublishEscrowCancelledEvent(
	escrow domain.Escrow, transferID string,
) error {
	return s.publish(EventEscrowCancelled, map[string]interface{}{
		"escrow":      getEscrowPayload(escrow),
		"transfer_id": transferID,
		"receiver":    escrow.Receiver,
	})
}

func (s *Service) PublishTransferFailedEvent(
	escrow domain.Escrow, kind domain.TransitionKind, transferID string,
) error {
	return s.publish(EventEscrowTransferFailed, map[string]interface{}{
		"escrow":      getEscrowPayload(escrow),
		"transfer_id": transferID,
		"transition":  kind.String(),
		"reason":      escrow.LastFailure,
	})
}

func (s *Service) PublishPauseEvent(paused bool, by string) error {
	event := EventEscrowUnpaused
	if paused {
		event = EventEscrowPaused
	}
	return s.publish(event, map[string]interface{}{
		"by":   by,
		"date": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) Close() {
	s.pubsub.Close()
}

func (s *Service) publish(event string, payload map[string]interface{}) error {
	payload["event"] = event
	message, _ := json.Marshal(payload)
	return s.pubsub.Publish(event, string(message))
}
