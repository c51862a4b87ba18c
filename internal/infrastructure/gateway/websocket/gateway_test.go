package gatewayws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	gatewayws "github.com/tdex-network/escrowd/internal/infrastructure/gateway/websocket"
)

var ctx = context.Background()

type frame struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result interface{}     `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// custodyServer is a fake custody service: it accepts every transfer but the
// ones for the party "blocked", and settles them right after. With a delay,
// requests are executed but answered late.
type custodyServer struct {
	*httptest.Server

	lock        sync.Mutex
	statuses    map[string]string
	executed    map[string]int
	connections int
	dropNext    bool
	delay       time.Duration
}

func newCustodyServer(t *testing.T) *custodyServer {
	s := &custodyServer{
		statuses: make(map[string]string),
		executed: make(map[string]int),
	}
	upgrader := websocket.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			s.lock.Lock()
			s.connections++
			s.lock.Unlock()

			for {
				var req frame
				if err := conn.ReadJSON(&req); err != nil {
					return
				}

				s.lock.Lock()
				drop := s.dropNext
				s.dropNext = false
				delay := s.delay
				s.lock.Unlock()
				if drop {
					return
				}

				resps := s.handle(req)
				time.Sleep(delay)
				for _, resp := range resps {
					if err := conn.WriteJSON(resp); err != nil {
						return
					}
				}
			}
		},
	))
	t.Cleanup(s.Close)
	return s
}

func (s *custodyServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *custodyServer) handle(req frame) []frame {
	s.lock.Lock()
	defer s.lock.Unlock()

	var params map[string]string
	//nolint
	json.Unmarshal(req.Params, &params)
	transferID := params["transfer_id"]

	switch req.Method {
	case "status":
		status, ok := s.statuses[transferID]
		if !ok {
			status = "unknown"
		}
		return []frame{{ID: req.ID, Result: map[string]string{"status": status}}}
	case "deposit", "release":
		if params["party"] == "blocked" {
			return []frame{{ID: req.ID, Error: "party is blocked"}}
		}
		s.statuses[transferID] = "succeeded"
		s.executed[req.Method]++
		event, _ := json.Marshal(map[string]string{
			"transfer_id": transferID,
			"escrow_id":   params["escrow_id"],
			"kind":        params["kind"],
			"status":      "succeeded",
		})
		return []frame{
			{ID: req.ID, Result: map[string]string{"status": "pending"}},
			{Method: "transfer_event", Params: event},
		}
	default:
		return []frame{{ID: req.ID, Error: "unknown method"}}
	}
}

func TestGateway(t *testing.T) {
	server := newCustodyServer(t)

	gateway, err := gatewayws.NewGateway(server.url(), 100, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(gateway.Close)

	events := make(chan ports.TransferEvent, 10)
	gateway.RegisterHandlerForTransferEvent(func(e ports.TransferEvent) {
		events <- e
	})

	err = gateway.Deposit(ctx, newTransfer("t1", domain.TransitionFund, "bob"))
	require.NoError(t, err)

	event := waitForEvent(t, events)
	require.Equal(t, "t1", event.TransferID)
	require.Equal(t, "escrow", event.EscrowID)
	require.Equal(t, domain.TransitionFund, event.Kind)
	require.Equal(t, ports.TransferStatusSucceeded, event.Status)

	status, err := gateway.TransferStatus(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, ports.TransferStatusSucceeded, status)

	status, err = gateway.TransferStatus(ctx, "unknown")
	require.NoError(t, err)
	require.Equal(t, ports.TransferStatusUnknown, status)

	err = gateway.Release(ctx, newTransfer("t2", domain.TransitionCancel, "blocked"))
	require.ErrorIs(t, err, ports.ErrTransferRejected)
	require.Contains(t, err.Error(), "party is blocked")

	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()
	err = gateway.Release(cancelledCtx, newTransfer("t3", domain.TransitionCancel, "bob"))
	require.ErrorIs(t, err, ports.ErrTransferRejected)
	server.lock.Lock()
	_, ok := server.statuses["t3"]
	server.lock.Unlock()
	require.False(t, ok)
}

func TestGatewayUnansweredRequest(t *testing.T) {
	server := newCustodyServer(t)
	server.lock.Lock()
	server.delay = 300 * time.Millisecond
	server.lock.Unlock()

	gateway, err := gatewayws.NewGateway(server.url(), 100, 100*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(gateway.Close)

	events := make(chan ports.TransferEvent, 10)
	gateway.RegisterHandlerForTransferEvent(func(e ports.TransferEvent) {
		events <- e
	})

	// The custody service executes the release but answers too late, the
	// outcome of the request is unknown rather than rejected.
	err = gateway.Release(ctx, newTransfer("t1", domain.TransitionWithdraw, "bob"))
	require.ErrorIs(t, err, gatewayws.ErrRequestTimeout)
	require.NotErrorIs(t, err, ports.ErrTransferRejected)

	event := waitForEvent(t, events)
	require.Equal(t, "t1", event.TransferID)
	require.Equal(t, ports.TransferStatusSucceeded, event.Status)

	server.lock.Lock()
	defer server.lock.Unlock()
	require.Equal(t, 1, server.executed["release"])
}

func TestGatewayOpenCircuit(t *testing.T) {
	server := newCustodyServer(t)

	gateway, err := gatewayws.NewGateway(server.url(), 100, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(gateway.Close)

	for i := 0; i < 11; i++ {
		err := gateway.Release(ctx, newTransfer("t", domain.TransitionCancel, "blocked"))
		require.ErrorIs(t, err, ports.ErrTransferRejected)
	}

	err = gateway.Release(ctx, newTransfer("t1", domain.TransitionCancel, "bob"))
	require.ErrorIs(t, err, ports.ErrTransferRejected)
	require.Contains(t, err.Error(), gobreaker.ErrOpenState.Error())

	server.lock.Lock()
	defer server.lock.Unlock()
	require.Zero(t, server.executed["release"])
}

func TestGatewayReconnect(t *testing.T) {
	server := newCustodyServer(t)

	gateway, err := gatewayws.NewGateway(server.url(), 100, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(gateway.Close)

	server.lock.Lock()
	server.dropNext = true
	server.lock.Unlock()

	// The request in flight when the connection drops fails.
	err = gateway.Deposit(ctx, newTransfer("t1", domain.TransitionFund, "bob"))
	require.ErrorIs(t, err, gatewayws.ErrNotConnected)
	require.NotErrorIs(t, err, ports.ErrTransferRejected)

	require.Eventually(t, func() bool {
		server.lock.Lock()
		defer server.lock.Unlock()
		return server.connections == 2
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		err := gateway.Deposit(ctx, newTransfer("t2", domain.TransitionFund, "bob"))
		return err == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNewGateway(t *testing.T) {
	_, err := gatewayws.NewGateway("", 0, 0)
	require.Error(t, err)

	_, err = gatewayws.NewGateway("ws://127.0.0.1:1", 0, 0)
	require.Error(t, err)
}

func waitForEvent(t *testing.T, events chan ports.TransferEvent) ports.TransferEvent {
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for transfer event")
	}
	return ports.TransferEvent{}
}

func newTransfer(id string, kind domain.TransitionKind, party string) domain.Transfer {
	return domain.Transfer{
		ID:        id,
		EscrowID:  "escrow",
		Kind:      kind,
		Direction: domain.DirectionLocalToForeign,
		Domain:    "foreign",
		Asset:     "USDT",
		Amount:    decimal.NewFromInt(50),
		Party:     party,
	}
}
