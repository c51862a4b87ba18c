package httpinterface

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns the handler serving the REST API and the prometheus
// metrics.
func NewRouter(
	escrowSvc EscrowService, webhookSvc WebhookService, authSecret string,
) http.Handler {
	escrowHandler := newEscrowHandler(escrowSvc)
	webhookHandler := newWebhookHandler(webhookSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(callerIdentity(authSecret))

		api.Route("/escrows", func(er chi.Router) {
			er.Post("/", escrowHandler.createEscrow)
			er.Get("/", escrowHandler.listEscrows)
			er.Get("/{id}", escrowHandler.getEscrow)
			er.Get("/{id}/stage", escrowHandler.getStage)
			er.Post("/{id}/fund", escrowHandler.fund)
			er.Post("/{id}/withdraw", escrowHandler.withdraw)
			er.Post("/{id}/cancel", escrowHandler.cancel)
		})

		api.Route("/admin", func(ar chi.Router) {
			ar.Get("/status", escrowHandler.status)
			ar.Post("/pause", escrowHandler.pause)
			ar.Post("/unpause", escrowHandler.unpause)
		})

		api.Route("/webhooks", func(wr chi.Router) {
			wr.Use(ownerOnly(escrowSvc))
			wr.Post("/", webhookHandler.addWebhook)
			wr.Get("/", webhookHandler.listWebhooks)
			wr.Delete("/{id}", webhookHandler.removeWebhook)
		})
	})

	return r
}
