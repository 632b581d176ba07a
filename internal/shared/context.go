package shared

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Roles understood by the permission check.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Identity headers set by the upstream identity provider.
const (
	HeaderUserID        = "X-User-ID"
	HeaderUserName      = "X-User-Name"
	HeaderUserRole      = "X-User-Role"
	HeaderUserLocations = "X-User-Locations"
)

// ErrInvalidActor indicates malformed identity headers.
var ErrInvalidActor = errors.New("invalid actor headers")

// Actor is the acting user as asserted by the identity provider.
type Actor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	LocationIDs []int64 `json:"location_ids,omitempty"`
}

// IsAdmin reports whether the actor administers every location.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAct reports whether the actor may mutate stock held at locationID.
func (a Actor) CanAct(locationID int64) bool {
	if a.ID == "" {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	return slices.Contains(a.LocationIDs, locationID)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok && actor.ID != ""
}

// ActorFromRequest parses the identity headers. A missing user id yields
// ErrUnauthorized.
func ActorFromRequest(r *http.Request) (Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return Actor{}, ErrUnauthorized
	}
	actor := Actor{
		ID:   id,
		Name: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		Role: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
	}
	if actor.Role == "" {
		actor.Role = RoleStaff
	}
	if actor.Role != RoleAdmin && actor.Role != RoleStaff {
		return Actor{}, ErrInvalidActor
	}
	if raw := strings.TrimSpace(r.Header.Get(HeaderUserLocations)); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			locID, err := strconv.ParseInt(part, 10, 64)
			if err != nil || locID <= 0 {
				return Actor{}, ErrInvalidActor
			}
			actor.LocationIDs = append(actor.LocationIDs, locID)
		}
	}
	return actor, nil
}
