package httpinterface

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

type webhookHandler struct {
	webhookSvc WebhookService
}

func newWebhookHandler(webhookSvc WebhookService) *webhookHandler {
	return &webhookHandler{webhookSvc}
}

func (h *webhookHandler) addWebhook(w http.ResponseWriter, r *http.Request) {
	var req addWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.webhookSvc.AddWebhook(
		r.Context(), req.Event, req.Endpoint, req.Secret,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addWebhookResponse{id})
}

func (h *webhookHandler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookSvc.RemoveWebhook(
		r.Context(), chi.URLParam(r, "id"),
	); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *webhookHandler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	event := r.URL.Query().Get("event")
	if len(event) <= 0 {
		event = ports.AnyTopic
	}

	hooks, err := h.webhookSvc.ListWebhooks(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]webhookDTO, 0, len(hooks))
	for _, hook := range hooks {
		list = append(list, webhookDTO{
			ID:        hook.Id,
			Event:     hook.Event,
			Endpoint:  hook.Endpoint,
			IsSecured: hook.IsSecured,
		})
	}
	writeJSON(w, http.StatusOK, listWebhooksResponse{list})
}
