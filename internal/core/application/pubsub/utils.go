package pubsub

import (
	"time"

	"github.com/tdex-network/escrowd/internal/core/domain"
)

func getEscrowPayload(escrow domain.Escrow) map[string]interface{} {
	payload := map[string]interface{}{
		"id":                 escrow.ID,
		"direction":          escrow.Direction.String(),
		"source_domain":      escrow.SourceDomain,
		"destination_domain": escrow.DestinationDomain,
		"source_asset":       escrow.SourceAsset,
		"destination_asset":  escrow.DestinationAsset,
		"making_amount":      escrow.MakingAmount.String(),
		"taking_amount":      escrow.TakingAmount.String(),
		"maker":              escrow.Maker,
		"taker":              escrow.Taker,
		"status":             escrow.Status.String(),
		"timelocks":          getTimelocksPayload(escrow.Timelocks),
		"created_at":         formatTime(escrow.CreatedAt),
	}
	if escrow.Recipient != "" {
		payload["recipient"] = escrow.Recipient
	}
	if escrow.SecretHash != "" {
		payload["secret_hash"] = escrow.SecretHash
	}
	if !escrow.FundedAt.IsZero() {
		payload["funded_at"] = formatTime(escrow.FundedAt)
	}
	if !escrow.CompletedAt.IsZero() {
		payload["completed_at"] = formatTime(escrow.CompletedAt)
	}
	return payload
}

func getTimelocksPayload(t domain.Timelocks) map[string]int64 {
	return map[string]int64{
		"finality":            int64(t.Finality.Seconds()),
		"withdrawal":          int64(t.Withdrawal.Seconds()),
		"public_withdrawal":   int64(t.PublicWithdrawal.Seconds()),
		"cancellation":        int64(t.Cancellation.Seconds()),
		"public_cancellation": int64(t.PublicCancellation.Seconds()),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
