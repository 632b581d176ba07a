package locations

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(slog.New(slog.DiscardHandler), svc)
	r := chi.NewRouter()
	r.Use(httpx.ActorMiddleware)
	r.Route("/locations", h.MountRoutes)
	return r, svc
}

func doRequest(router http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(shared.HeaderUserID, "u-1")
	req.Header.Set(shared.HeaderUserRole, role)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndLink(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/locations/", shared.RoleAdmin, `{"kind":"shop","name":"Main Street"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var shop Location
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shop))
	require.Equal(t, KindShop, shop.Kind)

	rec = doRequest(router, http.MethodPost, "/locations/", shared.RoleAdmin, `{"kind":"depot","name":"North"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(router, http.MethodPost, "/locations/1/depots/2", shared.RoleAdmin, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodGet, "/locations/2/links", shared.RoleStaff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var links Links
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	require.Equal(t, []int64{1}, links.LinkedIDs)

	rec = doRequest(router, http.MethodDelete, "/locations/1/depots/2", shared.RoleAdmin, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodGet, "/locations/1", shared.RoleStaff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shop))
	require.Empty(t, shop.LinkedDepotIDs)
}

func TestHandlerStaffCannotMutate(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/locations/", shared.RoleStaff, `{"kind":"shop","name":"S"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerErrors(t *testing.T) {
	router, svc := newTestRouter(t)
	mustCreate(t, svc, KindShop, "S1")
	mustCreate(t, svc, KindShop, "S2")

	rec := doRequest(router, http.MethodGet, "/locations/99", shared.RoleStaff, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/locations/abc", shared.RoleStaff, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/locations/1/depots/2", shared.RoleAdmin, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/locations/", shared.RoleAdmin, `{"kind":"shop","name":"S","extra":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/locations/?kind=kiosk", shared.RoleStaff, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerEmptyListIsArray(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/locations/", shared.RoleStaff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	mustCreate(t, svc, KindShop, "S1")
	rec = doRequest(router, http.MethodGet, "/locations/?kind=depot", shared.RoleStaff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
