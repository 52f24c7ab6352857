package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/database"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/handlers"
	"example.com/backstage/services/saga/messaging"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/projections"
	"example.com/backstage/services/saga/replay"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/tracking"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	b := bus.NewInProcessBus()
	c := cache.Disabled()

	events := eventstore.NewGormEventRepository(db)
	eventViews := eventstore.NewGormEventViewRepository(db, db)
	instances := repositories.NewGormSagaInstanceRepository(db)
	instanceViews := repositories.NewGormSagaInstanceViewRepository(db, db)
	steps := repositories.NewGormSagaStepRepository(db)
	stepViews := repositories.NewGormSagaStepViewRepository(db, db)
	logs := repositories.NewGormSagaLogRepository(db)
	logViews := repositories.NewGormSagaLogViewRepository(db, db)

	projections.Register(b,
		projections.NewEventProjector(eventViews, nil),
		projections.NewSagaInstanceProjector(instanceViews, c, nil),
		projections.NewSagaStepProjector(stepViews, c),
		projections.NewSagaLogProjector(logViews),
	)
	tracking.NewService(events, b, m).Register(b)

	instanceHandler := handlers.NewSagaInstanceHandler(instances, steps, b, m, nil)
	stepHandler := handlers.NewSagaStepHandler(steps, instances, b, m, nil)
	logHandler := handlers.NewSagaLogHandler(logs, instances, steps, b, m, nil)

	cfg := config.Config{
		Server:  config.ServerConfig{CorsEnabled: true},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	server := NewServer(cfg, Services{
		Instances:       instanceHandler,
		Steps:           stepHandler,
		Logs:            logHandler,
		EventQueries:    handlers.NewEventQueries(eventViews),
		InstanceQueries: handlers.NewSagaInstanceQueries(instanceViews, c),
		StepQueries:     handlers.NewSagaStepQueries(stepViews, c),
		LogQueries:      handlers.NewSagaLogQueries(logViews),
		Processor:       messaging.NewProcessor(instanceHandler, stepHandler, logHandler),
		Replay:          replay.NewService(events, eventViews, b, config.ReplayConfig{BatchSize: 10, Delay: time.Nanosecond}, m, nil),
	}, registry, nil)
	return server.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createInstance(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/saga-instances", map[string]string{"name": "checkout"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[CreatedResponse](t, rec).ID
}

func TestPing(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(requestIDKey))
}

func TestSagaInstanceRoutes(t *testing.T) {
	h := newTestServer(t)
	id := createInstance(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/saga-instances/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = do(t, h, http.MethodPatch, "/api/v1/saga-instances/"+id+"/status", map[string]string{"status": "STARTED"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/api/v1/saga-instances/"+id+"/status", map[string]string{"status": "COMPLETED"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "INVALID_TRANSITION", decodeBody[ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPut, "/api/v1/saga-instances/"+id, map[string]string{"name": "refund"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/saga-instances?status=STARTED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"refund"`)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, h, http.MethodDelete, "/api/v1/saga-instances/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/saga-instances/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSagaStepRoutes(t *testing.T) {
	h := newTestServer(t)
	instanceID := createInstance(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/saga-steps", map[string]interface{}{
		"saga_instance_id": instanceID,
		"name":             "pay",
		"payload":          map[string]int{"amount": 10},
		"max_retries":      0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stepID := decodeBody[CreatedResponse](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/v1/saga-steps", map[string]interface{}{
		"saga_instance_id": instanceID,
		"name":             "ship",
		"order":            1,
		"payload":          map[string]int{"parcels": 1},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/saga-steps/"+stepID+"/status", map[string]string{"status": "FAILED", "error_message": "card declined"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/saga-steps/"+stepID+"/retry", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/saga-instances/"+instanceID+"/steps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"error_message":"card declined"`)

	rec = do(t, h, http.MethodPost, "/api/v1/saga-steps", map[string]interface{}{"name": "orphan"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION", decodeBody[ErrorResponse](t, rec).Code)
}

func TestSagaLogRoutes(t *testing.T) {
	h := newTestServer(t)
	instanceID := createInstance(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/saga-logs", map[string]string{
		"saga_instance_id": instanceID,
		"type":             "WARNING",
		"message":          "slow payment provider",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	logID := decodeBody[CreatedResponse](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/v1/saga-logs/search", map[string]interface{}{
		"filters": []map[string]string{{"field": "type", "operator": "EQ", "value": "WARNING"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), logID)

	rec = do(t, h, http.MethodPost, "/api/v1/saga-logs/search", map[string]interface{}{
		"filters": []map[string]string{{"field": "message", "value": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/saga-logs/"+logID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/v1/saga-logs/"+logID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventRoutesAndReplay(t *testing.T) {
	h := newTestServer(t)
	id := createInstance(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/events?aggregateId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, h, http.MethodPost, "/api/v1/events/replay", map[string]interface{}{
		"filters": map[string]string{"aggregateId": id},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, decodeBody[ReplayResponse](t, rec).Replayed)

	// replays are never appended again
	rec = do(t, h, http.MethodGet, "/api/v1/events", nil)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, h, http.MethodPost, "/api/v1/events/replay", map[string]interface{}{"batchSize": 5000})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandEnvelope(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/commands", map[string]interface{}{
		"eventType": messaging.CreateSagaInstance,
		"data":      map[string]string{"id": "I-1", "name": "checkout"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/saga-instances/I-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/commands", map[string]interface{}{"eventType": "Unknown"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)
	createInstance(t, h)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "saga_events_tracked_total")
}

func TestRequestIDIsKeptOnlyWhenUUID(t *testing.T) {
	h := newTestServer(t)
	incoming := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDKey, incoming)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, incoming, rec.Header().Get(requestIDKey))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDKey, "not-an-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEqual(t, "not-an-id", rec.Header().Get(requestIDKey))
}
