package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-core/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Claims are the token claims issued by the identity provider. Subject holds
// the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid or expired token")

type actorKey struct{}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor set by the Actor middleware.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

// NewToken signs an HS256 token for actor.
func NewToken(secret string, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a token and returns its actor.
func ParseToken(secret, tokenString string) (model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Actor{}, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return model.Actor{}, errInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Actor{}, errInvalidToken
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Actor{}, errInvalidToken
	}
	return model.Actor{ID: id, Role: role}, nil
}

// Actor authenticates the caller from an "Authorization: Bearer" header.
// Websocket clients that cannot set headers may pass the token as ?token=.
func Actor(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.URL.Query().Get("token")
			if header := r.Header.Get("Authorization"); header != "" {
				parts := strings.SplitN(header, " ", 2)
				if len(parts) != 2 || parts[0] != "Bearer" {
					unauthorised(w, "invalid authorization format")
					return
				}
				tokenString = parts[1]
			}
			if tokenString == "" {
				unauthorised(w, "missing authorization header")
				return
			}

			actor, err := ParseToken(secret, tokenString)
			if err != nil {
				logger.Warn().Str("path", r.URL.Path).Msg("rejected bearer token")
				unauthorised(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
