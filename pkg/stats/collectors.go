package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "escrowd"

// Outcomes of an escrow transition.
const (
	OutcomeStaged    = "staged"
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
	OutcomeRejected  = "rejected"
)

var (
	escrowsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrows_created_total",
		Help:      "Number of created escrows.",
	})

	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Number of escrow transitions by kind and outcome.",
	}, []string{"transition", "outcome"})

	gatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Number of requests to the funds gateway by operation and result.",
	}, []string{"operation", "result"})

	pendingTransitions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_transitions",
		Help:      "Number of escrow transitions waiting for their transfer outcome.",
	})
)

func init() {
	prometheus.MustRegister(
		escrowsCreated, transitions, gatewayRequests, pendingTransitions,
	)
}

// RecordEscrowCreated increments the counter of created escrows.
func RecordEscrowCreated() {
	escrowsCreated.Inc()
}

// RecordTransition increments the counter of the given transition outcome
// and keeps the pending gauge in sync.
func RecordTransition(transition, outcome string) {
	transitions.WithLabelValues(transition, outcome).Inc()

	switch outcome {
	case OutcomeStaged:
		pendingTransitions.Inc()
	case OutcomeConfirmed, OutcomeReverted:
		pendingTransitions.Dec()
	}
}

// RecordGatewayRequest increments the counter of requests to the funds
// gateway.
func RecordGatewayRequest(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequests.WithLabelValues(operation, result).Inc()
}

// SetPendingTransitions resets the pending gauge, used at startup.
func SetPendingTransitions(count int) {
	pendingTransitions.Set(float64(count))
}
