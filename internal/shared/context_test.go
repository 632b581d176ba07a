package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, err := ActorFromRequest(req)
	require.ErrorIs(t, err, ErrUnauthorized)

	req.Header.Set(HeaderUserID, "u-1")
	req.Header.Set(HeaderUserName, "Ana")
	req.Header.Set(HeaderUserLocations, "3, 7")
	actor, err := ActorFromRequest(req)
	require.NoError(t, err)
	require.Equal(t, Actor{ID: "u-1", Name: "Ana", Role: RoleStaff, LocationIDs: []int64{3, 7}}, actor)

	req.Header.Set(HeaderUserLocations, "3,x")
	_, err = ActorFromRequest(req)
	require.ErrorIs(t, err, ErrInvalidActor)

	req.Header.Set(HeaderUserLocations, "")
	req.Header.Set(HeaderUserRole, "root")
	_, err = ActorFromRequest(req)
	require.ErrorIs(t, err, ErrInvalidActor)
}

func TestActorCanAct(t *testing.T) {
	staff := Actor{ID: "u-1", Role: RoleStaff, LocationIDs: []int64{3}}
	require.True(t, staff.CanAct(3))
	require.False(t, staff.CanAct(4))

	admin := Actor{ID: "root", Role: RoleAdmin}
	require.True(t, admin.CanAct(99))

	require.False(t, Actor{Role: RoleAdmin}.CanAct(1))
}

func TestActorContextRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{ID: "u-2"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u-2", actor.ID)
}

func TestUserSafeMessage(t *testing.T) {
	require.Equal(t, "", UserSafeMessage(nil))
	require.Equal(t, "Unexpected error", UserSafeMessage(errors.New("pg: relation missing")))
	require.Equal(t, "Service temporarily unavailable, please retry", UserSafeMessage(fmt.Errorf("x: %w", ErrUnavailable)))
	wrapped := fmt.Errorf("item 4: %w", ErrNotFound)
	require.Equal(t, wrapped.Error(), UserSafeMessage(wrapped))
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, ClampLimit(0))
	require.Equal(t, 10, ClampLimit(10))
	require.Equal(t, MaxLimit, ClampLimit(10_000))
}
