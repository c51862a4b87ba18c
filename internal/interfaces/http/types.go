package httpinterface

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tdex-network/escrowd/internal/core/application/escrow"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

const maxBodySize = 1 << 20

var errBadRequest = fmt.Errorf("bad request")

type timelocksDTO struct {
	Finality           uint64 `json:"finality"`
	Withdrawal         uint64 `json:"withdrawal"`
	PublicWithdrawal   uint64 `json:"public_withdrawal"`
	Cancellation       uint64 `json:"cancellation"`
	PublicCancellation uint64 `json:"public_cancellation"`
}

type createEscrowRequest struct {
	SourceAsset       string       `json:"source_asset"`
	DestinationAsset  string       `json:"destination_asset"`
	MakingAmount      string       `json:"making_amount"`
	TakingAmount      string       `json:"taking_amount"`
	Maker             string       `json:"maker"`
	Taker             string       `json:"taker"`
	SourceDomain      string       `json:"source_domain"`
	DestinationDomain string       `json:"destination_domain"`
	Recipient         string       `json:"recipient,omitempty"`
	Timelocks         timelocksDTO `json:"timelocks"`
}

type createEscrowResponse struct {
	ID string `json:"id"`
}

type fundRequest struct {
	SecretHash string `json:"secret_hash"`
}

type withdrawRequest struct {
	Secret   string `json:"secret"`
	Receiver string `json:"receiver,omitempty"`
}

type ackResponse struct {
	EscrowID   string `json:"escrow_id"`
	TransferID string `json:"transfer_id"`
	Transition string `json:"transition"`
}

type pendingDTO struct {
	TransferID  string `json:"transfer_id"`
	Transition  string `json:"transition"`
	Stage       string `json:"stage"`
	RequestedAt string `json:"requested_at"`
}

type escrowDTO struct {
	ID                string       `json:"id"`
	Direction         string       `json:"direction"`
	SourceDomain      string       `json:"source_domain"`
	DestinationDomain string       `json:"destination_domain"`
	SourceAsset       string       `json:"source_asset"`
	DestinationAsset  string       `json:"destination_asset"`
	MakingAmount      string       `json:"making_amount"`
	TakingAmount      string       `json:"taking_amount"`
	Maker             string       `json:"maker"`
	Taker             string       `json:"taker"`
	Recipient         string       `json:"recipient,omitempty"`
	Status            string       `json:"status"`
	SecretHash        string       `json:"secret_hash,omitempty"`
	Secret            string       `json:"secret,omitempty"`
	Receiver          string       `json:"receiver,omitempty"`
	Timelocks         timelocksDTO `json:"timelocks"`
	CreatedAt         string       `json:"created_at"`
	FundedAt          string       `json:"funded_at,omitempty"`
	CompletedAt       string       `json:"completed_at,omitempty"`
	Pending           *pendingDTO  `json:"pending,omitempty"`
	LastFailure       string       `json:"last_failure,omitempty"`
}

type listEscrowsResponse struct {
	Escrows []escrowDTO `json:"escrows"`
}

type stageResponse struct {
	Stage    string `json:"stage"`
	Deadline string `json:"deadline,omitempty"`
	Now      string `json:"now"`
}

type statusResponse struct {
	Paused bool `json:"paused"`
}

type addWebhookRequest struct {
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret,omitempty"`
}

type addWebhookResponse struct {
	ID string `json:"id"`
}

type webhookDTO struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type listWebhooksResponse struct {
	Webhooks []webhookDTO `json:"webhooks"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %s", errBadRequest, err)
	}
	return nil
}

func (req createEscrowRequest) toArgs() (domain.EscrowArgs, error) {
	makingAmount, err := domain.ParseAmount(req.MakingAmount)
	if err != nil {
		return domain.EscrowArgs{}, err
	}
	takingAmount, err := domain.ParseAmount(req.TakingAmount)
	if err != nil {
		return domain.EscrowArgs{}, err
	}

	return domain.EscrowArgs{
		SourceAsset:       req.SourceAsset,
		DestinationAsset:  req.DestinationAsset,
		MakingAmount:      makingAmount,
		TakingAmount:      takingAmount,
		Maker:             req.Maker,
		Taker:             req.Taker,
		SourceDomain:      req.SourceDomain,
		DestinationDomain: req.DestinationDomain,
		Recipient:         req.Recipient,
		Timelocks: domain.NewTimelocksFromSeconds(
			req.Timelocks.Finality,
			req.Timelocks.Withdrawal,
			req.Timelocks.PublicWithdrawal,
			req.Timelocks.Cancellation,
			req.Timelocks.PublicCancellation,
		),
	}, nil
}

func newTimelocksDTO(t domain.Timelocks) timelocksDTO {
	return timelocksDTO{
		Finality:           durationToSeconds(t.Finality),
		Withdrawal:         durationToSeconds(t.Withdrawal),
		PublicWithdrawal:   durationToSeconds(t.PublicWithdrawal),
		Cancellation:       durationToSeconds(t.Cancellation),
		PublicCancellation: durationToSeconds(t.PublicCancellation),
	}
}

func newEscrowDTO(e domain.Escrow) escrowDTO {
	dto := escrowDTO{
		ID:                e.ID,
		Direction:         e.Direction.String(),
		SourceDomain:      e.SourceDomain,
		DestinationDomain: e.DestinationDomain,
		SourceAsset:       e.SourceAsset,
		DestinationAsset:  e.DestinationAsset,
		MakingAmount:      e.MakingAmount.String(),
		TakingAmount:      e.TakingAmount.String(),
		Maker:             e.Maker,
		Taker:             e.Taker,
		Recipient:         e.Recipient,
		Status:            e.Status.String(),
		SecretHash:        e.SecretHash,
		Secret:            e.Secret,
		Receiver:          e.Receiver,
		Timelocks:         newTimelocksDTO(e.Timelocks),
		CreatedAt:         formatTime(e.CreatedAt),
		FundedAt:          formatTime(e.FundedAt),
		CompletedAt:       formatTime(e.CompletedAt),
		LastFailure:       e.LastFailure,
	}
	if p := e.Pending; p != nil {
		dto.Pending = &pendingDTO{
			TransferID:  p.TransferID,
			Transition:  p.Kind.String(),
			Stage:       p.Stage.String(),
			RequestedAt: formatTime(p.RequestedAt),
		}
	}
	return dto
}

func newEscrowDTOList(escrows []domain.Escrow) []escrowDTO {
	list := make([]escrowDTO, 0, len(escrows))
	for _, e := range escrows {
		list = append(list, newEscrowDTO(e))
	}
	return list
}

func newAckResponse(ack *escrow.Ack) ackResponse {
	return ackResponse{
		EscrowID:   ack.EscrowID,
		TransferID: ack.TransferID,
		Transition: ack.Transition.String(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func durationToSeconds(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Second)
}
