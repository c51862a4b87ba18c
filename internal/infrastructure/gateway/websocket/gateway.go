package gatewayws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/pkg/circuitbreaker"
	"go.uber.org/ratelimit"
)

const (
	DefaultRateLimit      = 50
	DefaultRequestTimeout = 30 * time.Second

	minReconnectDelay = 100 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

var (
	ErrGatewayClosed  = fmt.Errorf("gateway is closed")
	ErrNotConnected   = fmt.Errorf("connection with custody service dropped")
	ErrRequestTimeout = fmt.Errorf("request to custody service timed out")
)

// Gateway is a FundsGateway talking JSON over a websocket with an external
// custody service. The connection is re-established if dropped, requests in
// flight at that time fail.
//
// Errors wrap ports.ErrTransferRejected only if the request was never sent or
// the custody service answered with an error. A request that was sent but got
// no answer, because of a timeout or a dropped connection, fails with an
// error leaving its outcome unknown.
type Gateway struct {
	addr           string
	requestTimeout time.Duration

	conn      *websocket.Conn
	connLock  *sync.RWMutex
	writeLock *sync.Mutex

	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker

	pending     map[string]chan message
	pendingLock *sync.Mutex

	handlers     []ports.TransferHandler
	handlersLock *sync.RWMutex

	quitChan chan struct{}
	closed   bool
	wg       *sync.WaitGroup
}

// NewGateway connects to the custody service at the given websocket url.
// Outgoing requests are throttled to rateLimit per second.
func NewGateway(
	addr string, rateLimit int, requestTimeout time.Duration,
) (*Gateway, error) {
	if len(addr) <= 0 {
		return nil, fmt.Errorf("missing gateway address")
	}
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		addr:           addr,
		requestTimeout: requestTimeout,
		conn:           conn,
		connLock:       &sync.RWMutex{},
		writeLock:      &sync.Mutex{},
		limiter:        ratelimit.New(rateLimit),
		cb:             circuitbreaker.NewCircuitBreaker("gateway"),
		pending:        make(map[string]chan message),
		pendingLock:    &sync.Mutex{},
		handlers:       make([]ports.TransferHandler, 0),
		handlersLock:   &sync.RWMutex{},
		quitChan:       make(chan struct{}),
		wg:             &sync.WaitGroup{},
	}

	g.wg.Add(1)
	go g.listen()

	return g, nil
}

func (g *Gateway) Deposit(ctx context.Context, t domain.Transfer) error {
	_, err := g.request(ctx, methodDeposit, newTransferParams(t))
	return err
}

func (g *Gateway) Release(ctx context.Context, t domain.Transfer) error {
	_, err := g.request(ctx, methodRelease, newTransferParams(t))
	return err
}

func (g *Gateway) TransferStatus(
	ctx context.Context, transferID string,
) (ports.TransferStatus, error) {
	res, err := g.request(ctx, methodStatus, statusParams{transferID})
	if err != nil {
		return ports.TransferStatusUnknown, err
	}
	if res == nil {
		return ports.TransferStatusUnknown, nil
	}
	return ports.ParseTransferStatus(res.Status), nil
}

func (g *Gateway) RegisterHandlerForTransferEvent(handler ports.TransferHandler) {
	g.handlersLock.Lock()
	defer g.handlersLock.Unlock()

	g.handlers = append(g.handlers, handler)
}

func (g *Gateway) Close() {
	g.connLock.Lock()
	if g.closed {
		g.connLock.Unlock()
		return
	}
	g.closed = true
	close(g.quitChan)
	conn := g.conn
	g.connLock.Unlock()

	g.writeLock.Lock()
	//nolint
	conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	g.writeLock.Unlock()
	conn.Close()

	g.wg.Wait()
}

func (g *Gateway) request(
	ctx context.Context, method string, params interface{},
) (*result, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.doRequest(ctx, method, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ports.ErrTransferRejected, err)
		}
		return nil, err
	}
	return res.(*result), nil
}

func (g *Gateway) doRequest(
	ctx context.Context, method string, params interface{},
) (*result, error) {
	g.limiter.Take()

	buf, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrTransferRejected, err)
	}
	req := message{
		ID:     uuid.New().String(),
		Method: method,
		Params: buf,
	}

	respChan := make(chan message, 1)
	g.pendingLock.Lock()
	g.pending[req.ID] = respChan
	g.pendingLock.Unlock()
	defer func() {
		g.pendingLock.Lock()
		delete(g.pending, req.ID)
		g.pendingLock.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrTransferRejected, err)
	}
	if err := g.write(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrTransferRejected, err)
	}

	timer := time.NewTimer(g.requestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, ErrNotConnected
		}
		if len(resp.Error) > 0 {
			return nil, fmt.Errorf(
				"%w: %s: %s", ports.ErrTransferRejected, method, resp.Error,
			)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	case <-g.quitChan:
		return nil, ErrGatewayClosed
	}
}

func (g *Gateway) write(msg message) error {
	g.connLock.RLock()
	defer g.connLock.RUnlock()
	if g.closed {
		return ErrGatewayClosed
	}

	g.writeLock.Lock()
	defer g.writeLock.Unlock()
	return g.conn.WriteJSON(msg)
}

// listen reads incoming frames until the gateway is closed, reconnecting
// whenever the connection drops.
func (g *Gateway) listen() {
	defer g.wg.Done()

	for {
		g.connLock.RLock()
		conn := g.conn
		g.connLock.RUnlock()

		g.read(conn)

		select {
		case <-g.quitChan:
			g.failPendingRequests()
			return
		default:
		}

		log.Warn("connection with custody service dropped. Trying to reconnect...")
		g.failPendingRequests()
		if !g.reconnect() {
			return
		}
		log.Debug("connection with custody service re-established")
	}
}

func (g *Gateway) read(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			switch err.(type) {
			case *json.SyntaxError, *json.UnmarshalTypeError:
				log.WithError(err).Warn("received malformed message")
				continue
			}
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
			) {
				log.WithError(err).Debug("read from custody service failed")
			}
			return
		}
		g.handleMessage(msg)
	}
}

func (g *Gateway) handleMessage(msg message) {
	if msg.Method == methodTransferEvent {
		var params transferEventParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			log.WithError(err).Warn("received malformed transfer event")
			return
		}
		g.notify(params.toEvent())
		return
	}

	g.pendingLock.Lock()
	respChan, ok := g.pending[msg.ID]
	if ok {
		delete(g.pending, msg.ID)
	}
	g.pendingLock.Unlock()

	if !ok {
		log.Debugf("received response for unknown request %s", msg.ID)
		return
	}
	respChan <- msg
}

func (g *Gateway) notify(event ports.TransferEvent) {
	g.handlersLock.RLock()
	handlers := make([]ports.TransferHandler, len(g.handlers))
	copy(handlers, g.handlers)
	g.handlersLock.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (g *Gateway) failPendingRequests() {
	g.pendingLock.Lock()
	defer g.pendingLock.Unlock()

	for id, respChan := range g.pending {
		close(respChan)
		delete(g.pending, id)
	}
}

func (g *Gateway) reconnect() bool {
	delay := minReconnectDelay
	for {
		select {
		case <-g.quitChan:
			return false
		case <-time.After(delay):
		}

		conn, err := dial(g.addr)
		if err != nil {
			log.WithError(err).Debugf("reconnection failed, retrying in %s", delay)
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		g.connLock.Lock()
		if g.closed {
			g.connLock.Unlock()
			conn.Close()
			return false
		}
		g.conn = conn
		g.connLock.Unlock()
		return true
	}
}

func dial(addr string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to custody service: %w", err)
	}
	return conn, nil
}
