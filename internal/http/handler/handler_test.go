package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"svckit/internal/health"
	"svckit/internal/model"
	"svckit/internal/service"
	serviceMocks "svckit/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc service.EventService, checks *health.Registry) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	if checks == nil {
		checks = health.NewRegistry(time.Second)
	}
	RegisterRoutes(app, checks, svc, prometheus.NewRegistry())
	return app
}

func TestLiveness(t *testing.T) {
	app := newTestApp(new(serviceMocks.MockEventService), nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		checks := health.NewRegistry(time.Second)
		checks.Register("db", func(ctx context.Context) error { return nil })
		app := newTestApp(new(serviceMocks.MockEventService), checks)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report health.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, health.StatusUp, report.Status)
		assert.Equal(t, health.StatusUp, report.Checks["db"].Status)
	})

	t.Run("unhealthy dependency", func(t *testing.T) {
		checks := health.NewRegistry(time.Second)
		checks.Register("db", func(ctx context.Context) error { return errors.New("connection refused") })
		app := newTestApp(new(serviceMocks.MockEventService), checks)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var report health.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, health.StatusDown, report.Status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(new(serviceMocks.MockEventService), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestEvent(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Ingest", mock.Anything, mock.MatchedBy(func(in service.IngestInput) bool {
			return in.Type == "user.signup" && in.Source == "web"
		})).Return(&model.Event{ID: "gen-id", Type: "user.signup"}, nil)

		app := newTestApp(svc, nil)

		body := bytes.NewBufferString(`{"type":"user.signup","source":"web","payload":{"plan":"free"}}`)
		req := httptest.NewRequest(http.MethodPost, "/events", body)
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var ev model.Event
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
		assert.Equal(t, "gen-id", ev.ID)
	})

	t.Run("invalid body", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockEventService), nil)

		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, "INVALID_BODY", payload.Error.Code)
	})

	t.Run("missing type", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, service.ErrTypeRequired)
		app := newTestApp(svc, nil)

		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"payload":{}}`))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, "TYPE_REQUIRED", payload.Error.Code)
	})
}

func TestListEvents(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("List", mock.Anything, 5, 10).
			Return(&service.EventListResult{Items: []model.Event{{ID: "a"}}, Total: 1}, nil)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events?limit=5&offset=10", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res service.EventListResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, 1, res.Total)
	})

	t.Run("invalid limit", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockEventService), nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetEvent(t *testing.T) {
	id := uuid.NewString()

	t.Run("found", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Get", mock.Anything, id).Return(&model.Event{ID: id}, nil)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		app := newTestApp(new(serviceMocks.MockEventService), nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetEventPayload(t *testing.T) {
	id := uuid.NewString()

	t.Run("inline payload served directly", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Get", mock.Anything, id).
			Return(&model.Event{ID: id, Payload: json.RawMessage(`{"plan":"free"}`)}, nil)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events/"+id+"/payload", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "free", body["plan"])
	})

	t.Run("offloaded payload redirects", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Get", mock.Anything, id).
			Return(&model.Event{ID: id, PayloadRef: "events/" + id + ".json"}, nil)
		svc.On("PayloadURL", mock.Anything, id, payloadURLTTL).
			Return("https://store/signed", nil)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events/"+id+"/payload", nil))
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "https://store/signed", resp.Header.Get("Location"))
	})
}

func TestDeleteEvent(t *testing.T) {
	id := uuid.NewString()

	t.Run("deleted", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Delete", mock.Anything, id).Return(nil)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/events/"+id, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(serviceMocks.MockEventService)
		svc.On("Delete", mock.Anything, id).Return(service.ErrNotFound)
		app := newTestApp(svc, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/events/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	app := newTestApp(new(serviceMocks.MockEventService), nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var payload errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "NOT_FOUND", payload.Error.Code)
}
