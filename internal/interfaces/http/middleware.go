package httpinterface

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

const callerHeader = "X-Caller-Id"

type callerKey struct{}

var errUnauthenticated = fmt.Errorf("missing or invalid caller identity")

// ownerOnly lets through only the requests made by the owner of the daemon.
func ownerOnly(escrowSvc EscrowService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := requireCaller(w, r)
			if !ok {
				return
			}
			if !escrowSvc.IsOwner(caller) {
				writeError(w, fmt.Errorf(
					"%w: operation reserved to the owner", domain.ErrEscrowUnauthorized,
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"status":     ww.Status(),
			"elapsed":    time.Since(start).String(),
		}).Debugf("%s %s", r.Method, r.URL.Path)
	})
}

// callerIdentity attaches the identity of the caller to the request context.
// With a non empty secret the identity is the subject of a HS256 bearer
// token, otherwise it is taken as is from the X-Caller-Id header. Requests
// with an invalid token are rejected, requests without identity go through
// and handlers that need one reject them.
func callerIdentity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caller string
			if len(secret) > 0 {
				token := bearerToken(r)
				if len(token) > 0 {
					sub, err := parseCallerToken(token, secret)
					if err != nil {
						log.WithError(err).Debug("rejected bearer token")
						writeError(w, errUnauthenticated)
						return
					}
					caller = sub
				}
			} else {
				caller = strings.TrimSpace(r.Header.Get(callerHeader))
			}

			if len(caller) > 0 {
				r = r.WithContext(context.WithValue(r.Context(), callerKey{}, caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func parseCallerToken(tokenString, secret string) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if len(claims.Subject) <= 0 {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// NewCallerToken returns a HS256 token identifying the given caller, valid
// for the given duration.
func NewCallerToken(caller, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   caller,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(
		[]byte(secret),
	)
}
