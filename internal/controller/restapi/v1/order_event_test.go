package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/usecase/idempotency"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	mu        sync.Mutex
	submitted []entity.OrderSnapshot
	stored    map[uuid.UUID]entity.OrderSnapshot
}

func (f *fakeEvents) Submit(_ context.Context, s entity.OrderSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, s)
}

func (f *fakeEvents) SubmitByID(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error) {
	s, ok := f.stored[id]
	if !ok {
		return entity.OrderSnapshot{}, fmt.Errorf("SubmitByID: %w", errs.ErrRecordNotFound)
	}

	f.Submit(ctx, s)

	return s, nil
}

type memoryIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]entity.IdempotencyRecord
}

func (m *memoryIdempotencyRepo) Get(_ context.Context, key string) (*entity.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}

	return &rec, nil
}

func (m *memoryIdempotencyRepo) Create(_ context.Context, r *entity.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[r.Key]; ok {
		return errs.ErrDuplicateKey
	}

	m.records[r.Key] = *r

	return nil
}

func (m *memoryIdempotencyRepo) UpdateResponse(_ context.Context, r *entity.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[r.Key] = *r

	return nil
}

func newTestApp() (*fiber.App, *fakeEvents) {
	events := &fakeEvents{stored: map[uuid.UUID]entity.OrderSnapshot{}}
	guard := idempotency.New(&memoryIdempotencyRepo{records: map[string]entity.IdempotencyRecord{}}, logger.NewNop())

	app := fiber.New()
	NewOrderEventRoutes(app.Group("/v1"), events, guard, logger.NewNop())

	return app, events
}

func post(t *testing.T, app *fiber.App, path, body, key string) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(b)
}

const snapshotBody = `{"id":"0b6f3c1e-4a8e-4f57-9d0c-6a7a1f0d2b11","orderNumber":"A1","status":"Pending",
"totalAmount":"20.00","customerEmail":"jane@example.com",
"lineItems":[{"productName":"Mug","unitPrice":"10.00","quantity":2,"lineTotal":"20.00"}]}`

func TestSubmitEvent_Queues(t *testing.T) {
	app, events := newTestApp()

	resp, body := post(t, app, "/v1/orders/events", snapshotBody, "")

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"id":"0b6f3c1e-4a8e-4f57-9d0c-6a7a1f0d2b11","order_number":"A1","queued":true}`, body)
	require.Len(t, events.submitted, 1)
	assert.Equal(t, "A1", events.submitted[0].OrderNumber)
}

func TestSubmitEvent_InvalidBody(t *testing.T) {
	app, events := newTestApp()

	resp, _ := post(t, app, "/v1/orders/events", `{"orderNumber":"A1"}`, "k")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, events.submitted)
}

func TestSubmitEvent_IdempotentReplay(t *testing.T) {
	app, events := newTestApp()

	first, firstBody := post(t, app, "/v1/orders/events", snapshotBody, "key-1")
	second, secondBody := post(t, app, "/v1/orders/events", snapshotBody, "key-1")

	assert.Equal(t, http.StatusAccepted, first.StatusCode)
	assert.Equal(t, http.StatusAccepted, second.StatusCode)
	assert.Equal(t, firstBody, secondBody)
	assert.Empty(t, first.Header.Get(HeaderIdempotentReplayed))
	assert.Equal(t, "true", second.Header.Get(HeaderIdempotentReplayed))
	assert.Equal(t, fiber.MIMEApplicationJSON, second.Header.Get(fiber.HeaderContentType))
	assert.Len(t, events.submitted, 1)
}

func TestSubmitEvent_KeyReusedWithOtherBody(t *testing.T) {
	app, _ := newTestApp()

	post(t, app, "/v1/orders/events", snapshotBody, "key-1")
	other := strings.Replace(snapshotBody, `"A1"`, `"A2"`, 1)

	resp, _ := post(t, app, "/v1/orders/events", other, "key-1")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSubmitEventByID(t *testing.T) {
	app, events := newTestApp()
	id := uuid.New()
	events.stored[id] = entity.OrderSnapshot{ID: id, OrderNumber: "B7"}

	resp, _ := post(t, app, "/v1/orders/"+id.String()+"/events", "", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, events.submitted, 1)

	resp, _ = post(t, app, "/v1/orders/"+uuid.NewString()+"/events", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, app, "/v1/orders/not-a-uuid/events", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
