package order

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/order-store-service/internal/config"
	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "development",
		Logger: config.Logger{
			Level: "error",
		},
		Peers: config.Peers{
			Timeout: time.Second,
		},
	}
}

func newTestHandler(t *testing.T, repo Repository, notifier Notifier) http.Handler {
	t.Helper()

	cfg := testConfig()
	svc, err := NewService(repo, mockTrManager{}, nil, notifier, nil, logger.New(cfg), cfg)
	require.NoError(t, err)

	return HandlerWithOptions(svc, ChiServerOptions{
		BaseURL:          "/order",
		ErrorHandlerFunc: ErrorHandlerFunc,
	})
}

func doRequest(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCreateOrderOperationMiddleware(t *testing.T) {
	longID := strings.Repeat("x", 101)
	longCustomer := strings.Repeat("c", 51)

	tests := []struct {
		name       string
		payload    string
		wantStatus int
		wantErrors []string
	}{
		{
			name:       "OK defaults to Received",
			payload:    `{"customerID":"12345678"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "OK explicit status",
			payload:    `{"customerID":"C1","status":"In progress"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "OK unknown fields stripped",
			payload:    `{"customerID":"C1","totallyUnknown":42}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing customerID",
			payload:    `{"orderID":"ORD-1"}`,
			wantStatus: http.StatusBadRequest,
			wantErrors: []string{"customerID: Customer ID is required"},
		},
		{
			name:       "customerID too long",
			payload:    fmt.Sprintf(`{"customerID":%q}`, longCustomer),
			wantStatus: http.StatusBadRequest,
			wantErrors: []string{"customerID: Customer ID cannot exceed 50 characters"},
		},
		{
			name:       "orderID too long",
			payload:    fmt.Sprintf(`{"customerID":"C1","orderID":%q}`, longID),
			wantStatus: http.StatusBadRequest,
			wantErrors: []string{"orderID: Order ID cannot exceed 100 characters"},
		},
		{
			name:       "invalid status",
			payload:    `{"customerID":"C1","status":"Shipped"}`,
			wantStatus: http.StatusBadRequest,
			wantErrors: []string{"status: Status must be one of: Received, In progress, Sended"},
		},
		{
			name:       "all field errors reported at once",
			payload:    fmt.Sprintf(`{"customerID":%q,"status":"Shipped"}`, longCustomer),
			wantStatus: http.StatusBadRequest,
			wantErrors: []string{
				"customerID: Customer ID cannot exceed 50 characters",
				"status: Status must be one of: Received, In progress, Sended",
			},
		},
		{
			name:       "malformed json",
			payload:    `{"customerID":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, &mockRepository{}, nil)

			w := doRequest(handler, http.MethodPost, "/order/createorder", tt.payload)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusCreated {
				var resp CreateOrderResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.True(t, resp.OrderCreated)
				require.NotNil(t, resp.Order)
				assert.NotEmpty(t, resp.Order.OrderID)
				assert.False(t, resp.Order.CreatedAt.IsZero())
			}

			if len(tt.wantErrors) > 0 {
				body := w.Body.String()
				for _, want := range tt.wantErrors {
					assert.Contains(t, body, want)
				}
			}
		})
	}
}

func TestCreateOrderDefaultsAndGeneration(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{}
	handler := newTestHandler(t, repo, notifier)

	w := doRequest(handler, http.MethodPost, "/order/createorder", `{"customerID":"12345678"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "12345678", resp.Order.CustomerID)
	assert.Equal(t, order.RECEIVED, resp.Order.Status)
	assert.True(t, strings.HasPrefix(resp.Order.OrderID, "ORD-"))

	// One audit event inside the write transaction, one stream event.
	require.Len(t, repo.events, 1)
	assert.Equal(t, EventOrderCreated, repo.events[0].Type)
	assert.Equal(t, []string{EventOrderCreated + ":" + resp.Order.OrderID}, notifier.events)
}

func TestCreateOrderDuplicateConflict(t *testing.T) {
	repo := &mockRepository{}
	handler := newTestHandler(t, repo, nil)

	first := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C1","orderID":"ORD-FIXED","status":"In progress"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C2","orderID":"ORD-FIXED"}`)
	assert.Equal(t, http.StatusConflict, second.Code)

	// The first order must remain unmodified.
	got := doRequest(handler, http.MethodGet, "/order/getorderbyid/ORD-FIXED", "")
	require.Equal(t, http.StatusOK, got.Code)

	var stored order.Order
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &stored))
	assert.Equal(t, "C1", stored.CustomerID)
	assert.Equal(t, order.INPROGRESS, stored.Status)
}

func TestUpdateOrderStatusOperationMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		seed       bool
		wantStatus int
	}{
		{
			name:       "OK",
			payload:    `{"orderID":"ORD-1","status":"Sended"}`,
			seed:       true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown order",
			payload:    `{"orderID":"ORD-MISSING","status":"Sended"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing orderID",
			payload:    `{"status":"Sended"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing status",
			payload:    `{"orderID":"ORD-1"}`,
			seed:       true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid status",
			payload:    `{"orderID":"ORD-1","status":"Done"}`,
			seed:       true,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			handler := newTestHandler(t, repo, nil)

			if tt.seed {
				w := doRequest(handler, http.MethodPost, "/order/createorder",
					`{"customerID":"C1","orderID":"ORD-1"}`)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			w := doRequest(handler, http.MethodPut, "/order/updateorderstatus", tt.payload)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var resp UpdateOrderStatusResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.True(t, resp.OrderStatusUpdated)
				assert.Equal(t, order.SENDED, resp.Order.Status)
			}
		})
	}
}

func TestUpdateOrderStatusIsIdempotent(t *testing.T) {
	handler := newTestHandler(t, &mockRepository{}, nil)

	w := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C1","orderID":"ORD-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 2; i++ {
		w = doRequest(handler, http.MethodPut, "/order/updateorderstatus",
			`{"orderID":"ORD-1","status":"Sended"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	got := doRequest(handler, http.MethodGet, "/order/getorderbyid/ORD-1", "")
	require.Equal(t, http.StatusOK, got.Code)

	var stored order.Order
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &stored))
	assert.Equal(t, order.SENDED, stored.Status)
}

func TestUpdateStatusNeverCreates(t *testing.T) {
	repo := &mockRepository{}
	handler := newTestHandler(t, repo, nil)

	w := doRequest(handler, http.MethodPut, "/order/updateorderstatus",
		`{"orderID":"ORD-GHOST","status":"Sended"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	got := doRequest(handler, http.MethodGet, "/order/getorderbyid/ORD-GHOST", "")
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestFindOrdersByCustomerID(t *testing.T) {
	handler := newTestHandler(t, &mockRepository{}, nil)

	// Zero orders is an empty array, not an error.
	w := doRequest(handler, http.MethodGet, "/order/findorderbycustomerid?customerID=nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	// Missing parameter is a validation failure.
	w = doRequest(handler, http.MethodGet, "/order/findorderbycustomerid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 3; i++ {
		resp := doRequest(handler, http.MethodPost, "/order/createorder",
			fmt.Sprintf(`{"customerID":"C7","orderID":"ORD-%d"}`, i))
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	w = doRequest(handler, http.MethodGet, "/order/findorderbycustomerid?customerID=C7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var orders []order.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 3)
	// Newest first.
	assert.Equal(t, "ORD-2", orders[0].OrderID)
	assert.Equal(t, "ORD-0", orders[2].OrderID)
}

func TestGetOrderByIDRoundTrip(t *testing.T) {
	handler := newTestHandler(t, &mockRepository{}, nil)

	w := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C1","status":"In progress"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	got := doRequest(handler, http.MethodGet, "/order/getorderbyid/"+created.Order.OrderID, "")
	require.Equal(t, http.StatusOK, got.Code)

	var fetched order.Order
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &fetched))
	assert.Equal(t, "C1", fetched.CustomerID)
	assert.Equal(t, order.INPROGRESS, fetched.Status)
	assert.Equal(t, created.Order.OrderID, fetched.OrderID)
}

func TestGetAllOrdersPagination(t *testing.T) {
	handler := newTestHandler(t, &mockRepository{}, nil)

	for i := 0; i < 15; i++ {
		w := doRequest(handler, http.MethodPost, "/order/createorder",
			fmt.Sprintf(`{"customerID":"C1","orderID":"ORD-%02d"}`, i))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(handler, http.MethodGet, "/order/getallorders?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page1 ListOrdersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page1))
	assert.Len(t, page1.Data, 10)
	assert.Equal(t, Pagination{
		Page: 1, Limit: 10, Total: 15, TotalPages: 2, HasNext: true, HasPrev: false,
	}, page1.Pagination)

	w = doRequest(handler, http.MethodGet, "/order/getallorders?page=2&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page2 ListOrdersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page2))
	assert.Len(t, page2.Data, 5)
	assert.Equal(t, Pagination{
		Page: 2, Limit: 10, Total: 15, TotalPages: 2, HasNext: false, HasPrev: true,
	}, page2.Pagination)

	// No overlap and no gap across the two pages.
	seen := make(map[string]bool)
	for _, o := range append(page1.Data, page2.Data...) {
		assert.False(t, seen[o.OrderID], "order %s appears twice", o.OrderID)
		seen[o.OrderID] = true
	}
	assert.Len(t, seen, 15)
}

func TestGetAllOrdersPaginationValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"defaults", "/order/getallorders", http.StatusOK},
		{"page zero rejected", "/order/getallorders?page=0", http.StatusBadRequest},
		{"negative page rejected", "/order/getallorders?page=-1", http.StatusBadRequest},
		{"limit zero rejected", "/order/getallorders?limit=0", http.StatusBadRequest},
		{"limit above max rejected", "/order/getallorders?limit=101", http.StatusBadRequest},
		{"non-numeric page rejected", "/order/getallorders?page=abc", http.StatusBadRequest},
		{"numeric strings coerced", "/order/getallorders?page=1&limit=25", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, &mockRepository{}, nil)
			w := doRequest(handler, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestDeleteOrder(t *testing.T) {
	notifier := &mockNotifier{}
	handler := newTestHandler(t, &mockRepository{}, notifier)

	w := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C1","orderID":"ORD-DEL"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(handler, http.MethodDelete, "/order/deleteorder/ORD-DEL", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DeleteOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OrderDeleted)

	// The record is gone.
	got := doRequest(handler, http.MethodGet, "/order/getorderbyid/ORD-DEL", "")
	assert.Equal(t, http.StatusNotFound, got.Code)

	// Deleting again is NotFound, not idempotent success.
	w = doRequest(handler, http.MethodDelete, "/order/deleteorder/ORD-DEL", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	handler := newTestHandler(t, &mockRepository{}, nil)

	seed := []string{
		`{"customerID":"C1"}`,
		`{"customerID":"C1"}`,
		`{"customerID":"C2","status":"Sended"}`,
	}
	for _, payload := range seed {
		w := doRequest(handler, http.MethodPost, "/order/createorder", payload)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(handler, http.MethodGet, "/order/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)

	byStatus := make(map[order.Status]int)
	for _, sc := range resp.StatusCounts {
		byStatus[sc.Status] = sc.Count
	}
	assert.Equal(t, 2, byStatus[order.RECEIVED])
	assert.Equal(t, 1, byStatus[order.SENDED])
}

func TestInternalErrorIsOpaqueInProduction(t *testing.T) {
	repo := &mockRepository{}
	cfg := testConfig()
	cfg.Env = "production"

	svc, err := NewService(repo, mockTrManager{}, nil, nil, nil, logger.New(cfg), cfg)
	require.NoError(t, err)

	handler := HandlerWithOptions(svc, ChiServerOptions{
		BaseURL:          "/order",
		ErrorHandlerFunc: ErrorHandlerFor(cfg.Env),
	})

	// The mock fails any create with orderID "boom".
	w := doRequest(handler, http.MethodPost, "/order/createorder",
		`{"customerID":"C1","orderID":"boom"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Contains(t, w.Body.String(), "internal server error")
}
