package stats_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/pkg/stats"
)

func TestCollectors(t *testing.T) {
	stats.SetPendingTransitions(0)
	stats.RecordEscrowCreated()
	stats.RecordTransition("Fund", stats.OutcomeStaged)
	stats.RecordTransition("Fund", stats.OutcomeConfirmed)
	stats.RecordGatewayRequest("deposit", nil)
	stats.RecordGatewayRequest("deposit", errors.New("boom"))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	require.True(t, found["escrowd_escrows_created_total"])
	require.True(t, found["escrowd_transitions_total"])
	require.True(t, found["escrowd_gateway_requests_total"])
	require.True(t, found["escrowd_pending_transitions"])
}

func TestDumpPrometheusDefaults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "stats")
	require.NoError(t, stats.DumpPrometheusDefaults(filename))
	require.FileExists(t, filename)
}
