package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dcspace-backend/internal/auth"
	"dcspace-backend/internal/config"
	"dcspace-backend/internal/handlers"
	"dcspace-backend/internal/health"
	"dcspace-backend/internal/middleware"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/monitoring"
	"dcspace-backend/internal/services"
	"dcspace-backend/internal/testutil"
	"dcspace-backend/internal/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type apiFixture struct {
	router http.Handler
	jwt    *auth.JWTManager
	store  *testutil.MemoryStore
	clock  *testutil.FixedClock
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "router-test"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "dcspace"
	jwt := auth.NewJWTManager(cfg)

	store := testutil.NewMemoryStore()
	store.AddSpace(models.Space{ID: "space-1", ProviderID: "prov-1", Price: 2500000, Published: true})
	clock := testutil.NewFixedClock(time.Date(2024, time.January, 31, 10, 0, 0, 0, timeutil.WIB))

	svc := services.NewRentService(store, testutil.NewMemoryObjectStore(), clock)
	rentHandler := handlers.NewRentHandler(svc, services.NewReceiptService(clock), 1)
	healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(okPinger{}))

	router := NewRouter(rentHandler, healthHandler, monitoring.NewEventHub(), middleware.NewAuthMiddleware(jwt))
	return &apiFixture{router: router, jwt: jwt, store: store, clock: clock}
}

func (a *apiFixture) do(t *testing.T, c models.Caller, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if c != nil {
		token, err := a.jwt.GenerateToken(c)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.RentWithInvoice {
	t.Helper()
	var view models.RentWithInvoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view), rec.Body.String())
	return view
}

func TestRentFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	customer := models.Customer{ID: "c1"}
	provider := models.Provider{ID: "u1", ProviderID: "prov-1"}
	admin := models.Admin{ID: "a1"}

	rec := a.do(t, customer, jsonRequest(http.MethodPost, "/api/rents", map[string]string{"space_id": "space-1"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decodeView(t, rec)
	base := "/api/rents/" + view.ID
	entry0 := view.Invoice.History[0].InvoiceID

	rec = a.do(t, admin, jsonRequest(http.MethodPost, base+"/provision", nil))
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = a.do(t, customer, uploadRequest(t, base+"/invoices/"+entry0+"/pay", "proof", "transfer.png", []byte("png bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RentStatusPending, decodeView(t, rec).Status)

	rec = a.do(t, admin, jsonRequest(http.MethodPost, base+"/invoices/"+entry0+"/verify", map[string]bool{"action": true}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, admin, jsonRequest(http.MethodPost, base+"/provision", map[string]bool{"approve": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RentStatusProvisioned, decodeView(t, rec).Status)

	rec = a.do(t, provider, uploadRequest(t, base+"/activate", "contract", "baa.pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decodeView(t, rec)
	assert.Equal(t, models.RentStatusActive, view.Status)
	require.Len(t, view.Invoice.History, 12)
	entry1 := view.Invoice.History[1].InvoiceID

	rec = a.do(t, customer, uploadRequest(t, base+"/invoices/"+entry1+"/pay", "proof", "feb.png", []byte("png")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, customer, httptest.NewRequest(http.MethodGet, base+"/invoices/"+entry1+"/pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = a.do(t, provider, httptest.NewRequest(http.MethodGet, base+"/contract", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contracts/"+view.ID)

	rec = a.do(t, models.Customer{ID: "c2"}, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterAuthAndHealth(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/rents/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, models.Customer{ID: "c1"}, httptest.NewRequest(http.MethodGet, "/api/rents/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, models.Customer{ID: "c1"}, httptest.NewRequest(http.MethodGet, "/api/events/ws", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, nil, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, nil, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpaceConflictOverHTTP(t *testing.T) {
	a := newAPI(t)
	body := map[string]string{"space_id": "space-1"}

	rec := a.do(t, models.Customer{ID: "c1"}, jsonRequest(http.MethodPost, "/api/rents", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, models.Customer{ID: "c2"}, jsonRequest(http.MethodPost, "/api/rents", body))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, models.Provider{ID: "u1", ProviderID: "prov-1"}, jsonRequest(http.MethodPost, "/api/rents", body))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
