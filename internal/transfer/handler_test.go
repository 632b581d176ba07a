package transfer

import (
	"encoding/json"
	"fmt"
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

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(slog.New(slog.DiscardHandler), f.svc)
	r := chi.NewRouter()
	r.Use(httpx.ActorMiddleware)
	r.Route("/transfers", h.MountRoutes)
	r.Route("/locations", h.MountLocationRoutes)
	return r
}

func call(router http.Handler, method, path, locations, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(shared.HeaderUserID, "u-9")
	req.Header.Set(shared.HeaderUserName, "Kim")
	req.Header.Set(shared.HeaderUserRole, shared.RoleStaff)
	req.Header.Set(shared.HeaderUserLocations, locations)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerWithdraw(t *testing.T) {
	f := newFixture()
	rice := f.seed(depotID, "Rice", "Food", 50)
	router := newTestRouter(f)
	body := fmt.Sprintf(`{"item":{"id":%d,"name":"Rice","category":"Food","quantity":50},"quantity":10,"depot_id":1,"shop_id":2,"mode":"transfer"}`, rice.ID)

	rec := call(router, http.MethodPost, "/transfers/withdraw", "1,2", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "Kim", out.ActorName)
	require.Equal(t, 40, f.repo.items[rice.ID].Quantity)

	rec = call(router, http.MethodPost, "/transfers/withdraw", "2", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	over := strings.Replace(body, `"quantity":10`, `"quantity":90`, 1)
	rec = call(router, http.MethodPost, "/transfers/withdraw", "1,2", over)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	missing := strings.Replace(body, `,"shop_id":2`, "", 1)
	rec = call(router, http.MethodPost, "/transfers/withdraw", "1,2", missing)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodGet, "/transfers?shop_id=2", "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)

	rec = call(router, http.MethodGet, "/transfers", "2", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerCandidates(t *testing.T) {
	f := newFixture()
	f.seed(depotID, "Rice", "Food", 50)
	router := newTestRouter(f)

	rec := call(router, http.MethodGet, "/locations/2/candidates", "2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"Rice"`)

	rec = call(router, http.MethodGet, "/locations/2/candidates", "1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}
