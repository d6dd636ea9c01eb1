package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/models"
	"whatsapp-reminders/parser"
)

func newTestRouter(t *testing.T) (*gin.Engine, ReminderStore, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := func() time.Time { return at(today, 9, 0) }
	store := newTestStore(t)
	reg := prometheus.NewRegistry()
	hub := NewHub(nopLogger)
	scheduler := NewReminderService(store, &fakeNotifier{}, SchedulerConfig{Location: time.UTC}, nopLogger,
		WithClock(now), WithMetrics(NewMetrics(reg)))

	router := gin.New()
	SetupAPIRoutes(router, APIDeps{
		Store:     store,
		Parser:    parser.New(time.UTC, now),
		Scheduler: scheduler,
		Hub:       hub,
		Gatherer:  reg,
		Location:  time.UTC,
		Now:       now,
	})
	return router, store, hub
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPICreateAndList(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/reminders", gin.H{"owner": alice, "text": "dentista amanhã às 15:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Reminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "dentista", created.Text)
	assert.Equal(t, today.AddDays(1), created.Date)
	assert.Equal(t, "15:00", created.Time)

	w = doJSON(router, http.MethodGet, "/api/reminders?owner="+alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Reminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	w = doJSON(router, http.MethodGet, "/api/reminders?owner="+bob, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAPIValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/reminders", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/reminders", gin.H{"owner": alice})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/reminders", gin.H{"owner": alice, "text": "oi"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAPIParse(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/parse", gin.H{"text": "reunião dia 15 de maio às 14:00"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Matched bool         `json:"matched"`
		Draft   models.Draft `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Equal(t, "14:00", resp.Draft.Time)
	require.NotNil(t, resp.Draft.Date)
	assert.Equal(t, time.May, resp.Draft.Date.Month)

	// Nessun salvataggio
	reminders, err := store.ListByOwner(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	w = doJSON(router, http.MethodPost, "/api/parse", gin.H{"text": "oi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matched": false, "draft": null}`, w.Body.String())
}

func TestAPICompleteAndDelete(t *testing.T) {
	router, store, _ := newTestRouter(t)
	r := mustCreate(t, store, alice, "dentista", today, "10:00", models.FrequencyOnce)

	w := doJSON(router, http.MethodPost, "/api/reminders/"+r.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var completed models.Reminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, models.StateCompleted, completed.State)
	assert.NotNil(t, completed.CompletedAt)

	w = doJSON(router, http.MethodPost, "/api/reminders/"+r.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/reminders/nope/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/reminders/"+r.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/reminders/"+r.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIStatusAndMetrics(t *testing.T) {
	router, _, hub := newTestRouter(t)
	hub.Broadcast(models.WSTypeStatus, models.ConnectionStatus{Connected: true, Message: "Conectado"})

	w := doJSON(router, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		WhatsApp  models.ConnectionStatus `json:"whatsapp"`
		WSClients int                     `json:"wsClients"`
		LastTick  TickReport              `json:"lastTick"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.WhatsApp.Connected)
	assert.Equal(t, 0, status.WSClients)

	w = doJSON(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reminder_ticks_total")
}

func TestAPICORSPreflight(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, http.MethodOptions, "/api/reminders", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nopLogger)
	router := gin.New()
	SetupRoutes(router, hub)

	w := doJSON(router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	hub.Broadcast(models.WSTypeStatus, models.ConnectionStatus{Connected: true})
	w = doJSON(router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
