package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/marketplace/internal/app"
	"github.com/templui/marketplace/internal/config"
	"github.com/templui/marketplace/internal/db/dbtest"
	"github.com/templui/marketplace/internal/model"
	"github.com/templui/marketplace/internal/routes"
	"github.com/templui/marketplace/internal/storage/storagetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
	app     *app.App
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type itemBody struct {
	Item model.Item `json:"item"`
}

func newAPI(t *testing.T, buyLimit int) *apiClient {
	t.Helper()

	cfg := &config.Config{
		AppEnv:          "development",
		JWTSecret:       "routes-test-secret-with-32-characters",
		JWTExpiry:       time.Hour,
		CORSAllowOrigin: "*",
		RateLimitBuy:    buyLimit,
		RateLimitWindow: time.Minute,
	}

	a := app.NewWithDeps(cfg, dbtest.NewSQLite(t), storagetest.NewMemory())
	t.Cleanup(a.BuyLimiter.Stop)

	return &apiClient{t: t, handler: routes.SetupRoutes(a), app: a}
}

func (c *apiClient) token(userID string) string {
	c.t.Helper()
	token, err := c.app.AuthService.GenerateJWT(userID)
	require.NoError(c.t, err)
	return token
}

func (c *apiClient) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+c.token(userID))
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decode[apiError](t, rec).Error.Code)
}

func TestBikeScenarioOverHTTP(t *testing.T) {
	api := newAPI(t, 100)
	alice, bob := uuid.NewString(), uuid.NewString()

	rec := api.do(http.MethodPost, "/items", alice, map[string]any{"name": "Bike", "price": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"price":100`)
	bike := decode[itemBody](t, rec).Item
	assert.Equal(t, model.ItemStatusAvailable, bike.Status)
	assert.Nil(t, bike.BuyerID)
	assert.Nil(t, bike.Description)

	rec = api.do(http.MethodGet, "/items/"+bike.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/items/"+bike.ID+"/buy", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sold := decode[itemBody](t, rec).Item
	assert.Equal(t, model.ItemStatusSold, sold.Status)
	require.NotNil(t, sold.BuyerID)
	assert.Equal(t, bob, *sold.BuyerID)

	rec = api.do(http.MethodPatch, "/items/"+bike.ID, alice, map[string]any{"price": 50})
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = api.do(http.MethodPost, "/items/"+bike.ID+"/buy", uuid.NewString(), nil)
	assertError(t, rec, http.StatusConflict, "CONFLICT")

	rec = api.do(http.MethodDelete, "/items/"+bike.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

	rec = api.do(http.MethodGet, "/items/"+bike.ID, alice, nil)
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestCreateValidation(t *testing.T) {
	api := newAPI(t, 100)
	alice := uuid.NewString()

	tests := []struct {
		name string
		body any
	}{
		{name: "negative price", body: map[string]any{"name": "Lamp", "price": -5}},
		{name: "missing price", body: map[string]any{"name": "Lamp"}},
		{name: "missing name", body: map[string]any{"price": 5}},
		{name: "price as garbage", body: map[string]any{"name": "Lamp", "price": "cheap"}},
		{name: "not an object", body: []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/items", alice, tt.body)
			assertError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
		})
	}

	rec := api.do(http.MethodGet, "/items/mine", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	api := newAPI(t, 100)

	protected := []struct{ method, path string }{
		{http.MethodPost, "/items"},
		{http.MethodGet, "/items/mine"},
		{http.MethodPatch, "/items/x"},
		{http.MethodDelete, "/items/x"},
		{http.MethodPost, "/items/x/attachment"},
		{http.MethodPost, "/items/x/buy"},
	}
	for _, route := range protected {
		rec := api.do(route.method, route.path, "", map[string]any{})
		assertError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	}

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestListingsAndVisibility(t *testing.T) {
	api := newAPI(t, 100)
	alice, bob := uuid.NewString(), uuid.NewString()

	create := func(name string) model.Item {
		rec := api.do(http.MethodPost, "/items", alice, map[string]any{"name": name, "description": "nice", "price": "9.99"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[itemBody](t, rec).Item
	}

	shown := create("Chair")
	hidden := create("Table")

	rec := api.do(http.MethodPatch, "/items/"+hidden.ID, alice, map[string]any{"hidden": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[itemBody](t, rec).Item
	assert.Equal(t, model.ItemStatusHidden, patched.Status)
	require.NotNil(t, patched.Description)
	assert.Equal(t, "nice", *patched.Description)
	assert.True(t, decimal.RequireFromString("9.99").Equal(patched.Price))

	rec = api.do(http.MethodGet, "/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	visible := decode[struct {
		Items []model.Item `json:"items"`
	}](t, rec).Items
	require.Len(t, visible, 1)
	assert.Equal(t, shown.ID, visible[0].ID)

	rec = api.do(http.MethodGet, "/items/mine", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[struct {
		Items []model.Item `json:"items"`
	}](t, rec).Items
	assert.Len(t, mine, 2)

	rec = api.do(http.MethodGet, "/items/"+hidden.ID, bob, nil)
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = api.do(http.MethodGet, "/items/"+hidden.ID, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPatch, "/items/"+hidden.ID, bob, map[string]any{"hidden": false})
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = api.do(http.MethodPost, "/items/"+shown.ID+"/buy", alice, nil)
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")
}

func TestAttachment(t *testing.T) {
	api := newAPI(t, 100)
	alice := uuid.NewString()

	rec := api.do(http.MethodPost, "/items", alice, map[string]any{"name": "Lamp", "price": 20})
	require.Equal(t, http.StatusCreated, rec.Code)
	lamp := decode[itemBody](t, rec).Item

	rec = api.do(http.MethodPost, "/items/"+lamp.ID+"/attachment", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[struct {
		UploadURL string     `json:"uploadUrl"`
		Item      model.Item `json:"item"`
	}](t, rec)
	assert.Contains(t, result.UploadURL, lamp.ID)
	require.NotNil(t, result.Item.AttachmentURL)
	assert.Equal(t, "https://items.test/"+lamp.ID, *result.Item.AttachmentURL)

	rec = api.do(http.MethodPost, "/items/"+lamp.ID+"/attachment", alice, map[string]any{"contentType": "image/gif"})
	assertError(t, rec, http.StatusBadRequest, "INVALID_INPUT")

	rec = api.do(http.MethodPost, "/items/"+lamp.ID+"/attachment", uuid.NewString(), nil)
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")
}

func TestBuyRateLimit(t *testing.T) {
	api := newAPI(t, 1)
	bob := uuid.NewString()

	rec := api.do(http.MethodPost, "/items/"+uuid.NewString()+"/buy", bob, nil)
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = api.do(http.MethodPost, "/items/"+uuid.NewString()+"/buy", bob, nil)
	assertError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")
}

func TestPlumbing(t *testing.T) {
	api := newAPI(t, 100)

	rec := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = api.do(http.MethodGet, "/nope", "", nil)
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")

	req := httptest.NewRequest(http.MethodOptions, "/items", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
