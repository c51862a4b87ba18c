package pubsub

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/pkg/circuitbreaker"
	"github.com/timshannon/badgerhold/v4"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestTimeout = 15 * time.Second

	tokenExpiration = 5 * time.Minute
)

var (
	ErrWebhookNotFound = ports.ErrSubscriptionNotFound
)

type service struct {
	store      *badgerhold.Store
	httpClient *client
	cb         *gobreaker.CircuitBreaker
	wg         *sync.WaitGroup
}

// NewService returns a webhook PubSub. Subscriptions are persisted in the
// given datadir, or kept in memory if empty. Notifications are delivered in
// background with a POST request to every endpoint subscribed for the topic.
func NewService(
	datadir string, requestTimeout time.Duration,
) (ports.PubSub, error) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	store, err := openStore(datadir)
	if err != nil {
		return nil, fmt.Errorf("opening webhooks db: %w", err)
	}

	return &service{
		store:      store,
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhooks"),
		wg:         &sync.WaitGroup{},
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	if err := ws.store.Insert(sub.ID, sub.toRecord()); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (ws *service) Unsubscribe(_, id string) error {
	if err := ws.store.Delete(id, subscriptionRecord{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrWebhookNotFound
		}
		return err
	}
	return nil
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

// Publish sends the message to the subscribers of the topic in background.
func (ws *service) Publish(topic string, message string) error {
	subs := ws.listSubscriptionsForTopic(topic)
	if len(subs) <= 0 {
		return nil
	}

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()

		eg := &errgroup.Group{}
		for i := range subs {
			sub := subs[i]
			eg.Go(func() error { return ws.doRequest(sub, message) })
		}
		if err := eg.Wait(); err != nil {
			log.WithError(err).Warnf("failed to notify %s event", topic)
		}
	}()
	return nil
}

// Close waits for pending notifications to be delivered and closes the
// store.
func (ws *service) Close() error {
	ws.wg.Wait()
	return ws.store.Close()
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	subs := ws.getSubscriptionsForTopic(topic)
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subsForAnyTopic := ws.getSubscriptionsForTopic(ports.AnyTopic)
		subs = append(subs, subsForAnyTopic...)
	}
	return subs
}

func (ws *service) getSubscriptionsForTopic(topic string) subscriptions {
	var query *badgerhold.Query
	if topic != ports.UnspecifiedTopic {
		query = badgerhold.Where("Event").Eq(topic).Index("Event")
	}

	var records []subscriptionRecord
	if err := ws.store.Find(&records, query); err != nil {
		log.WithError(err).Warn("failed to retrieve webhooks")
		return nil
	}

	subs := make(subscriptions, 0, len(records))
	for _, r := range records {
		subs = append(subs, r.toSubscription())
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
	return subs
}

func (ws *service) doRequest(sub Subscription, payload string) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if sub.IsSecured() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
				Subject:   sub.ID,
				IssuedAt:  time.Now().Unix(),
				ExpiresAt: time.Now().Add(tokenExpiration).Unix(),
			})
			tokenString, err := token.SignedString([]byte(sub.Secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(sub.Endpoint, payload, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("webhook %s: %d %s", sub.ID, status, resp)
		}
		return nil, nil
	})

	return err
}
