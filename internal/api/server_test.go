package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/Kerhoff/ShoppingBoT/internal/auth"
	"github.com/Kerhoff/ShoppingBoT/internal/live"
	"github.com/Kerhoff/ShoppingBoT/internal/metrics"
	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository/memory"
	"github.com/Kerhoff/ShoppingBoT/internal/service"
	"github.com/Kerhoff/ShoppingBoT/internal/summary"
	"github.com/Kerhoff/ShoppingBoT/pkg/logger"
)

type testAPI struct {
	handler  http.Handler
	verifier *auth.Verifier
	token    string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	l := logger.Discard()
	m := metrics.New()
	hub := live.NewHub(memory.NewItemStore(), l, m)
	svc := service.New(l, m, hub, memory.NewUserRepository(), hub, language.Spanish)
	verifier := auth.NewVerifier("test-secret", "shoppingbot")

	token, err := verifier.Issue("user-1", "ana@example.com", time.Hour)
	require.NoError(t, err)

	return &testAPI{
		handler:  NewServer(svc, verifier, models.DefaultListID, l).Handler(),
		verifier: verifier,
		token:    token,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return a.doAs(t, a.token, method, path, body)
}

func (a *testAPI) doAs(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) create(t *testing.T, body string) models.ShoppingItem {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/items", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.ShoppingItem](t, rec)
}

func TestHealthzIsPublic(t *testing.T) {
	a := newTestAPI(t)
	rec := a.doAs(t, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestsNeedAValidToken(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, a.doAs(t, "", http.MethodGet, "/api/items", "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.doAs(t, "bogus", http.MethodGet, "/api/items", "").Code)

	foreign, err := auth.NewVerifier("other", "shoppingbot").Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, a.doAs(t, foreign, http.MethodGet, "/api/items", "").Code)
}

func TestLoginAndLogout(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/session", `{"display_name":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode[models.User](t, rec)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Ana", user.DisplayName)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/session", "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/items", "").Code)
}

func TestCreateAndListItems(t *testing.T) {
	a := newTestAPI(t)

	milk := a.create(t, `{"name":"Milk","quantity":2,"planned_value":3000}`)
	assert.NotEmpty(t, milk.ID)
	assert.False(t, milk.Purchased)
	a.create(t, `{"code":"7790070411716","quantity":1,"planned_value":500}`)

	rec := a.do(t, http.MethodGet, "/api/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[summary.Overview](t, rec)
	assert.Len(t, overview.Pending, 2)
	assert.Empty(t, overview.Purchased)
	assert.Equal(t, 6500.0, overview.Summary.TotalPlanned)
}

func TestCreateItemValidation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/items", `{"name":" ","quantity":0,"planned_value":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[struct {
		Fields []service.FieldError `json:"fields"`
	}](t, rec)
	assert.Len(t, body.Fields, 3)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/items", `{`).Code)
}

func TestPurchaseLifecycle(t *testing.T) {
	a := newTestAPI(t)
	milk := a.create(t, `{"name":"Milk","quantity":2,"planned_value":3000}`)
	base := "/api/items/" + milk.ID

	rec := a.do(t, http.MethodPut, base+"/purchased", `{"purchased":true,"actual_value":2800}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[summary.Summary](t, rec)
	assert.Equal(t, 6000.0, s.TotalPlanned)
	assert.Equal(t, 5600.0, s.TotalActual)
	assert.Equal(t, 400.0, s.Difference)

	rec = a.do(t, http.MethodPut, base+"/purchased", `{"purchased":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[summary.Summary](t, a.do(t, http.MethodGet, "/api/summary", ""))
	assert.Zero(t, s.TotalActual)
}

func TestPurchaseConfirmation(t *testing.T) {
	a := newTestAPI(t)
	bread := a.create(t, `{"name":"Bread","quantity":1,"planned_value":1500}`)
	base := "/api/items/" + bread.ID

	rec := a.do(t, http.MethodPost, base+"/purchase/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/purchase", "")
	require.Equal(t, http.StatusOK, rec.Code)
	begin := decode[map[string]any](t, rec)
	assert.Equal(t, "confirming", begin["state"])
	assert.Equal(t, 1500.0, begin["actual_value"])

	rec = a.do(t, http.MethodPost, base+"/purchase/confirm", `{"actual_value":1400}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1400.0, decode[map[string]any](t, rec)["actual_value"])

	rec = a.do(t, http.MethodPost, base+"/purchase", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelPurchaseConfirmation(t *testing.T) {
	a := newTestAPI(t)
	bread := a.create(t, `{"name":"Bread","quantity":1,"planned_value":1500}`)
	base := "/api/items/" + bread.ID

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, base+"/purchase", "").Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, base+"/purchase", "").Code)
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, base+"/purchase/confirm", "").Code)
}

func TestEditField(t *testing.T) {
	a := newTestAPI(t)
	item := a.create(t, `{"name":"Apples","quantity":3,"planned_value":100}`)
	base := "/api/items/" + item.ID

	rec := a.do(t, http.MethodPut, base+"/fields/quantity", `{"value":"-5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[map[string]bool](t, rec)["changed"])

	rec = a.do(t, http.MethodPut, base+"/fields/quantity", `{"value":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["changed"])

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPut, base+"/fields/name", `{"value":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPut, "/api/items/missing/fields/quantity", `{"value":"2"}`).Code)
}

func TestUpdateItem(t *testing.T) {
	a := newTestAPI(t)
	item := a.create(t, `{"name":"Cheese","quantity":1,"planned_value":1000}`)
	base := "/api/items/" + item.ID

	rec := a.do(t, http.MethodPatch, base, `{"name":"Goat cheese","quantity":-2,"actual_value":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.ShoppingItem](t, rec)
	assert.Equal(t, "Goat cheese", updated.Name)
	assert.Equal(t, 1, updated.Quantity)
	assert.Zero(t, updated.ActualValue)

	rec = a.do(t, http.MethodPatch, base, `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteAndClear(t *testing.T) {
	a := newTestAPI(t)
	a1 := a.create(t, `{"name":"A","quantity":1,"planned_value":1}`)
	b := a.create(t, `{"name":"B","quantity":1,"planned_value":1}`)
	a.create(t, `{"name":"C","quantity":1,"planned_value":1}`)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/items/"+a1.ID, "").Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/items/"+a1.ID, "").Code)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPut, "/api/items/"+b.ID+"/purchased", `{"purchased":true}`).Code)
	rec := a.do(t, http.MethodDelete, "/api/items/purchased", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["removed"])

	overview := decode[summary.Overview](t, a.do(t, http.MethodGet, "/api/items", ""))
	assert.Len(t, overview.Pending, 1)
	assert.Empty(t, overview.Purchased)
}

func TestRawValue(t *testing.T) {
	assert.Equal(t, "12", rawValue(json.RawMessage(`"12"`)))
	assert.Equal(t, "12.5", rawValue(json.RawMessage(`12.5`)))
}

func TestStreamItems(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/items/stream?access_token="+a.token, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan summary.Overview, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var o summary.Overview
			if json.Unmarshal([]byte(data), &o) == nil {
				events <- o
			}
		}
	}()

	next := func() summary.Overview {
		select {
		case o := <-events:
			return o
		case <-time.After(2 * time.Second):
			t.Fatal("no stream event")
			return summary.Overview{}
		}
	}

	assert.Empty(t, next().Pending)

	a.create(t, `{"name":"Tea","quantity":1,"planned_value":900}`)
	o := next()
	require.Len(t, o.Pending, 1)
	assert.Equal(t, "Tea", o.Pending[0].Name)
	assert.Equal(t, 900.0, o.Summary.TotalPlanned)
}
