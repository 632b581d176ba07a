package documents

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

func newTestRouter() (http.Handler, *memoryRepo) {
	svc, repo, _ := newTestService()
	h := NewHandler(slog.New(slog.DiscardHandler), svc)
	r := chi.NewRouter()
	r.Use(httpx.ActorMiddleware)
	r.Route("/documents", h.MountRoutes)
	return r, repo
}

func doRequest(h http.Handler, method, path, body, role, locations, idemKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(shared.HeaderUserID, "u-1")
	req.Header.Set(shared.HeaderUserRole, role)
	if locations != "" {
		req.Header.Set(shared.HeaderUserLocations, locations)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerIssuesInvoice(t *testing.T) {
	router, repo := newTestRouter()
	body := `{"doc_type":"invoice","location_id":2,"customer_name":"Acme","lines":[{"item_id":10,"quantity":2}]}`

	rec := doRequest(router, http.MethodPost, "/documents", body, shared.RoleStaff, "2", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "2025-001", doc.Number)
	require.Equal(t, "5.00", doc.Total.StringFixed(2))
	require.Equal(t, 18, repo.items[rice.ID].Quantity)

	rec = doRequest(router, http.MethodPost, "/documents", body, shared.RoleStaff, "2", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var replayed Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	require.Equal(t, doc.ID, replayed.ID)
	require.Equal(t, 18, repo.items[rice.ID].Quantity)

	changed := `{"doc_type":"invoice","location_id":2,"lines":[{"item_id":10,"quantity":5}]}`
	rec = doRequest(router, http.MethodPost, "/documents", changed, shared.RoleStaff, "2", "req-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 18, repo.items[rice.ID].Quantity)

	rec = doRequest(router, http.MethodGet, "/documents/1", "", shared.RoleStaff, "2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/documents/1", "", shared.RoleStaff, "5", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerRejects(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/documents",
		`{"doc_type":"invoice","location_id":2,"lines":[{"item_id":11,"quantity":9}]}`, shared.RoleAdmin, "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/documents",
		`{"doc_type":"receipt","location_id":2,"lines":[{"item_id":10,"quantity":1}]}`, shared.RoleAdmin, "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/documents",
		`{"doc_type":"quote","location_id":2,"lines":[{"item_id":10,"quantity":1}]}`, shared.RoleStaff, "3", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodGet, "/documents/42", "", shared.RoleAdmin, "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/documents", "", shared.RoleStaff, "2", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodGet, "/documents?location_id=2&type=quote", "", shared.RoleStaff, "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
