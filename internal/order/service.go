package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/KretovDmitry/order-store-service/internal/config"
	"github.com/KretovDmitry/order-store-service/internal/models/errs"
	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
)

// Lifecycle event types, shared by the audit trail and the stream.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status.updated"
	EventOrderDeleted       = "order.deleted"
)

// Notifier publishes lifecycle events to the stream. Publishing is
// best-effort: implementations must never return publish failures to
// the caller.
type Notifier interface {
	Notify(eventType, orderID string, payload interface{})
}

// CustomerDirectory is the advisory lookup against the peer customer
// service. A failed or negative lookup never blocks order writes.
type CustomerDirectory interface {
	ValidateCustomer(ctx context.Context, customerID string) error
}

type Service struct {
	repo     Repository
	trm      trm.Manager
	cache    *Cache
	notifier Notifier
	peers    CustomerDirectory
	logger   logger.Logger
	config   *config.Config
}

func NewService(
	repo Repository,
	trm trm.Manager,
	cache *Cache,
	notifier Notifier,
	peers CustomerDirectory,
	logger logger.Logger,
	config *config.Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &Service{
		repo:     repo,
		trm:      trm,
		cache:    cache,
		notifier: notifier,
		peers:    peers,
		logger:   logger,
		config:   config,
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// CreateOrderResponse is the body of a successful create.
type CreateOrderResponse struct {
	Order        *order.Order `json:"order"`
	OrderCreated bool         `json:"orderCreated"`
}

// UpdateOrderStatusResponse is the body of a successful status update.
type UpdateOrderStatusResponse struct {
	Order              *order.Order `json:"order"`
	OrderStatusUpdated bool         `json:"orderStatusUpdated"`
}

// DeleteOrderResponse is the body of a successful delete.
type DeleteOrderResponse struct {
	OrderDeleted bool `json:"orderDeleted"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ListOrdersResponse is the body of the paginated list-all.
type ListOrdersResponse struct {
	Data       []*order.Order `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// StatsResponse is the aggregate count grouped by status.
type StatsResponse struct {
	StatusCounts []StatusCount `json:"statusCounts"`
	Total        int           `json:"total"`
}

// Create order (POST /order/createorder).
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request, params CreateOrderParams) {
	o := &order.Order{
		CustomerID: params.CustomerID,
		OrderID:    params.OrderID,
		Status:     order.Status(params.Status),
	}
	if o.OrderID == "" {
		o.OrderID = order.NewOrderID()
	}

	// Advisory lookup, fire-and-forget. An unknown customer or an
	// unreachable directory never blocks the write.
	s.validateCustomer(o.CustomerID)

	var stored *order.Order
	err := s.trm.Do(r.Context(), func(ctx context.Context) error {
		var err error
		if stored, err = s.repo.Create(ctx, o); err != nil {
			return err
		}
		return s.repo.SaveEvent(ctx, newEvent(EventOrderCreated, stored))
	})
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			s.errorHandler(w, r, fmt.Errorf("%w: order %q already exists", err, o.OrderID))
			return
		}
		s.errorHandler(w, r, fmt.Errorf("create order: %w", err))
		return
	}

	s.cache.Set(r.Context(), stored)
	s.notify(EventOrderCreated, stored)

	writeJSON(w, http.StatusCreated, CreateOrderResponse{OrderCreated: true, Order: stored})
}

// Update order status (PUT /order/updateorderstatus).
func (s *Service) UpdateOrderStatus(w http.ResponseWriter, r *http.Request, params UpdateOrderStatusParams) {
	var updated *order.Order
	err := s.trm.Do(r.Context(), func(ctx context.Context) error {
		var err error
		if updated, err = s.repo.UpdateStatus(ctx, params.OrderID, order.Status(params.Status)); err != nil {
			return err
		}
		return s.repo.SaveEvent(ctx, newEvent(EventOrderStatusUpdated, updated))
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.errorHandler(w, r, fmt.Errorf("%w: order %q", err, params.OrderID))
			return
		}
		s.errorHandler(w, r, fmt.Errorf("update order status: %w", err))
		return
	}

	s.cache.Set(r.Context(), updated)
	s.notify(EventOrderStatusUpdated, updated)

	writeJSON(w, http.StatusOK, UpdateOrderStatusResponse{OrderStatusUpdated: true, Order: updated})
}

// Find orders by customer (GET /order/findorderbycustomerid).
// A customer with zero orders yields an empty array, not an error.
func (s *Service) GetOrdersByCustomerID(w http.ResponseWriter, r *http.Request, params CustomerLookupParams) {
	orders, err := s.repo.GetByCustomerID(r.Context(), params.CustomerID)
	if err != nil {
		s.errorHandler(w, r, fmt.Errorf("find orders by customer: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// Get single order (GET /order/getorderbyid/{orderID}).
func (s *Service) GetOrderByID(w http.ResponseWriter, r *http.Request, params OrderIDParam) {
	if o, ok := s.cache.Get(r.Context(), params.OrderID); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}

	o, err := s.repo.GetByOrderID(r.Context(), params.OrderID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.errorHandler(w, r, fmt.Errorf("%w: order %q", err, params.OrderID))
			return
		}
		s.errorHandler(w, r, fmt.Errorf("get order: %w", err))
		return
	}

	s.cache.Set(r.Context(), o)

	writeJSON(w, http.StatusOK, o)
}

// List all orders paginated (GET /order/getallorders).
func (s *Service) GetAllOrders(w http.ResponseWriter, r *http.Request, params PaginationParams) {
	offset := (params.Page - 1) * params.Limit

	orders, err := s.repo.List(r.Context(), params.Limit, offset)
	if err != nil {
		s.errorHandler(w, r, fmt.Errorf("list orders: %w", err))
		return
	}

	total, err := s.repo.Count(r.Context())
	if err != nil {
		s.errorHandler(w, r, fmt.Errorf("count orders: %w", err))
		return
	}

	totalPages := (total + params.Limit - 1) / params.Limit

	writeJSON(w, http.StatusOK, ListOrdersResponse{
		Data: orders,
		Pagination: Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    params.Page < totalPages,
			HasPrev:    params.Page > 1,
		},
	})
}

// Delete order (DELETE /order/deleteorder/{orderID}).
func (s *Service) DeleteOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam) {
	err := s.trm.Do(r.Context(), func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, params.OrderID); err != nil {
			return err
		}
		return s.repo.SaveEvent(ctx, &Event{
			ID:      uuid.NewString(),
			OrderID: params.OrderID,
			Type:    EventOrderDeleted,
		})
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.errorHandler(w, r, fmt.Errorf("%w: order %q", err, params.OrderID))
			return
		}
		s.errorHandler(w, r, fmt.Errorf("delete order: %w", err))
		return
	}

	s.cache.Invalidate(r.Context(), params.OrderID)
	if s.notifier != nil {
		s.notifier.Notify(EventOrderDeleted, params.OrderID, nil)
	}

	writeJSON(w, http.StatusOK, DeleteOrderResponse{OrderDeleted: true})
}

// Aggregate counts by status (GET /order/stats).
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.repo.CountByStatus(r.Context())
	if err != nil {
		s.errorHandler(w, r, fmt.Errorf("order stats: %w", err))
		return
	}

	total := 0
	for _, sc := range counts {
		total += sc.Count
	}

	writeJSON(w, http.StatusOK, StatsResponse{Total: total, StatusCounts: counts})
}

func (s *Service) validateCustomer(customerID string) {
	if s.peers == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Peers.Timeout)
		defer cancel()

		if err := s.peers.ValidateCustomer(ctx, customerID); err != nil {
			s.logger.Warnf("customer %q not confirmed by directory: %s", customerID, err)
		}
	}()
}

func (s *Service) notify(eventType string, o *order.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(eventType, o.OrderID, o)
}

func (s *Service) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ErrorHandlerFor(s.config.Env)(w, r, err)
}

func newEvent(eventType string, o *order.Order) *Event {
	payload, _ := json.Marshal(o)
	return &Event{
		ID:      uuid.NewString(),
		OrderID: o.OrderID,
		Type:    eventType,
		Payload: payload,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal
// that. It exposes full error messages; production servers should use
// ErrorHandlerFor instead.
var ErrorHandlerFunc = ErrorHandlerFor("development")

// ErrorHandlerFor builds the error responder for the given runtime
// environment. Outside development, unexpected errors are reported
// with an opaque message.
func ErrorHandlerFor(env string) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, _ *http.Request, err error) {
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errs.ValidationJSON{
				Success: false,
				Message: "Validation failed",
				Errors:  ve.Fields,
			})
			return
		}

		code := http.StatusInternalServerError

		switch {
		// Status Bad Request.
		case errors.Is(err, errs.ErrInvalidPayload) ||
			errors.Is(err, errs.ErrInvalidContentType) ||
			errors.Is(err, io.EOF):
			code = http.StatusBadRequest

		// Status Not Found.
		case errors.Is(err, errs.ErrNotFound):
			code = http.StatusNotFound

		// Status Conflict.
		case errors.Is(err, errs.ErrConflict):
			code = http.StatusConflict
		}

		message := err.Error()
		if code == http.StatusInternalServerError && env != "development" {
			message = "internal server error"
		}

		writeJSON(w, code, errs.JSON{Error: message})
	}
}
