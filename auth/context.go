package auth

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"context"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor injects the authenticated identity for downstream handlers.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// TokenFromRequest reads the "Authorization: Bearer <token>" header and, for
// browsers that cannot set headers on a WebSocket upgrade, the "token" query parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", errors.ErrUnauthenticated)
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("%w: authorization token is missing", errors.ErrUnauthenticated)
}

// Authenticate resolves the actor of a request from its bearer token.
func (m *TokenManager) Authenticate(r *http.Request) (domain.Actor, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return domain.Actor{}, err
	}
	claims, err := m.Validate(token)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: invalid or expired token", errors.ErrUnauthenticated)
	}
	return claims.Actor(), nil
}
