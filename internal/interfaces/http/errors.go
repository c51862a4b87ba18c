package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/application/escrow"
	"github.com/tdex-network/escrowd/internal/core/application/pubsub"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{errUnauthenticated, http.StatusUnauthorized},
	{errBadRequest, http.StatusBadRequest},
	{domain.ErrEscrowNotFound, http.StatusNotFound},
	{domain.ErrEscrowAlreadyExists, http.StatusConflict},
	{domain.ErrEscrowInvalidAmount, http.StatusBadRequest},
	{domain.ErrEscrowInvalidAssetPair, http.StatusBadRequest},
	{domain.ErrEscrowMissingParams, http.StatusBadRequest},
	{domain.ErrEscrowInvalidTimelocks, http.StatusBadRequest},
	{domain.ErrEscrowInvalidSecretHash, http.StatusBadRequest},
	{domain.ErrEscrowUnauthorized, http.StatusForbidden},
	{domain.ErrEscrowWrongState, http.StatusConflict},
	{domain.ErrEscrowInvalidSecret, http.StatusBadRequest},
	{domain.ErrEscrowWrongTimelockStage, http.StatusTooEarly},
	{domain.ErrGatewayFailure, http.StatusBadGateway},
	{escrow.ErrServicePaused, http.StatusServiceUnavailable},
	{pubsub.ErrInvalidWebhookEvent, http.StatusBadRequest},
	{pubsub.ErrInvalidWebhookEndpoint, http.StatusBadRequest},
	{ports.ErrSubscriptionNotFound, http.StatusNotFound},
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFromError(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("unexpected error while serving request")
	}
	writeJSON(w, status, errorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}
