package order

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/KretovDmitry/order-store-service/internal/models/errs"
	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/go-chi/chi/v5"
)

const (
	maxCustomerIDLen = 50
	maxOrderIDLen    = 100

	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// CreateOrderParams defines parameters for CreateOrder.
type CreateOrderParams struct {
	CustomerID string `json:"customerID"`
	OrderID    string `json:"orderID"`
	Status     string `json:"status"`
}

// UpdateOrderStatusParams defines parameters for UpdateOrderStatus.
type UpdateOrderStatusParams struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
}

// CustomerLookupParams defines parameters for GetOrdersByCustomerID.
type CustomerLookupParams struct {
	CustomerID string
}

// PaginationParams defines parameters for GetAllOrders.
type PaginationParams struct {
	Page  int
	Limit int
}

// OrderIDParam defines the path parameter shared by lookup and delete.
type OrderIDParam struct {
	OrderID string
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Create order (POST /order/createorder).
	CreateOrder(w http.ResponseWriter, r *http.Request, params CreateOrderParams)
	// Update order status (PUT /order/updateorderstatus).
	UpdateOrderStatus(w http.ResponseWriter, r *http.Request, params UpdateOrderStatusParams)
	// Find orders by customer (GET /order/findorderbycustomerid).
	GetOrdersByCustomerID(w http.ResponseWriter, r *http.Request, params CustomerLookupParams)
	// Get single order (GET /order/getorderbyid/{orderID}).
	GetOrderByID(w http.ResponseWriter, r *http.Request, params OrderIDParam)
	// List all orders paginated (GET /order/getallorders).
	GetAllOrders(w http.ResponseWriter, r *http.Request, params PaginationParams)
	// Delete order (DELETE /order/deleteorder/{orderID}).
	DeleteOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam)
	// Aggregate counts by status (GET /order/stats).
	GetStats(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts payloads to parameters. All request
// validation happens here, synchronously and side-effect-free, before
// any handler or repository code runs. Unknown JSON fields are
// dropped by decoding into the typed params structs.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// CreateOrder operation middleware.
func (siw *ServerInterfaceWrapper) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var params CreateOrderParams

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.Unmarshal(data, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err))
		return
	}

	// ------------- Required body parameter "customerID" -------------

	ve := new(errs.ValidationError)

	params.CustomerID = strings.TrimSpace(params.CustomerID)
	switch {
	case params.CustomerID == "":
		ve.Add("customerID", "Customer ID is required")
	case len(params.CustomerID) > maxCustomerIDLen:
		ve.Add("customerID", fmt.Sprintf("Customer ID cannot exceed %d characters", maxCustomerIDLen))
	}

	// ------------- Optional body parameter "orderID" ----------------

	params.OrderID = strings.TrimSpace(params.OrderID)
	if len(params.OrderID) > maxOrderIDLen {
		ve.Add("orderID", fmt.Sprintf("Order ID cannot exceed %d characters", maxOrderIDLen))
	}

	// ------------- Optional body parameter "status" -----------------

	if params.Status == "" {
		params.Status = string(order.RECEIVED)
	}
	if !order.Status(params.Status).Valid() {
		ve.Add("status", statusEnumMessage())
	}

	if !ve.Empty() {
		siw.ErrorHandlerFunc(w, r, ve)
		return
	}

	siw.Handler.CreateOrder(w, r, params)
}

// UpdateOrderStatus operation middleware.
func (siw *ServerInterfaceWrapper) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var params UpdateOrderStatusParams

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.Unmarshal(data, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err))
		return
	}

	// ------------- Required body parameter "orderID" ----------------

	ve := new(errs.ValidationError)

	params.OrderID = strings.TrimSpace(params.OrderID)
	switch {
	case params.OrderID == "":
		ve.Add("orderID", "Order ID is required")
	case len(params.OrderID) > maxOrderIDLen:
		ve.Add("orderID", fmt.Sprintf("Order ID cannot exceed %d characters", maxOrderIDLen))
	}

	// ------------- Required body parameter "status" -----------------

	if params.Status == "" {
		ve.Add("status", "Status is required")
	} else if !order.Status(params.Status).Valid() {
		ve.Add("status", statusEnumMessage())
	}

	if !ve.Empty() {
		siw.ErrorHandlerFunc(w, r, ve)
		return
	}

	siw.Handler.UpdateOrderStatus(w, r, params)
}

// GetOrdersByCustomerID operation middleware.
func (siw *ServerInterfaceWrapper) GetOrdersByCustomerID(w http.ResponseWriter, r *http.Request) {
	// ------------- Required query parameter "customerID" ------------

	ve := new(errs.ValidationError)

	customerID := strings.TrimSpace(r.URL.Query().Get("customerID"))
	switch {
	case customerID == "":
		ve.Add("customerID", "Customer ID is required")
	case len(customerID) > maxCustomerIDLen:
		ve.Add("customerID", fmt.Sprintf("Customer ID cannot exceed %d characters", maxCustomerIDLen))
	}

	if !ve.Empty() {
		siw.ErrorHandlerFunc(w, r, ve)
		return
	}

	siw.Handler.GetOrdersByCustomerID(w, r, CustomerLookupParams{CustomerID: customerID})
}

// GetOrderByID operation middleware.
func (siw *ServerInterfaceWrapper) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	params, err := orderIDFromPath(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetOrderByID(w, r, params)
}

// GetAllOrders operation middleware.
func (siw *ServerInterfaceWrapper) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	// ------------- Optional query parameters "page", "limit" --------
	//
	// Numeric strings are coerced; out-of-range values are rejected,
	// not clamped.

	ve := new(errs.ValidationError)
	params := PaginationParams{Page: defaultPage, Limit: defaultLimit}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			ve.Add("page", "Page must be an integer")
		case page < 1:
			ve.Add("page", "Page must be at least 1")
		default:
			params.Page = page
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			ve.Add("limit", "Limit must be an integer")
		case limit < 1:
			ve.Add("limit", "Limit must be at least 1")
		case limit > maxLimit:
			ve.Add("limit", fmt.Sprintf("Limit cannot exceed %d", maxLimit))
		default:
			params.Limit = limit
		}
	}

	if !ve.Empty() {
		siw.ErrorHandlerFunc(w, r, ve)
		return
	}

	siw.Handler.GetAllOrders(w, r, params)
}

// DeleteOrder operation middleware.
func (siw *ServerInterfaceWrapper) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	params, err := orderIDFromPath(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.DeleteOrder(w, r, params)
}

// GetStats operation middleware.
func (siw *ServerInterfaceWrapper) GetStats(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetStats(w, r)
}

func orderIDFromPath(r *http.Request) (OrderIDParam, error) {
	ve := new(errs.ValidationError)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	switch {
	case orderID == "":
		ve.Add("orderID", "Order ID is required")
	case len(orderID) > maxOrderIDLen:
		ve.Add("orderID", fmt.Sprintf("Order ID cannot exceed %d characters", maxOrderIDLen))
	}

	if !ve.Empty() {
		return OrderIDParam{}, ve
	}

	return OrderIDParam{OrderID: orderID}, nil
}

func statusEnumMessage() string {
	literals := make([]string, 0, len(order.Statuses()))
	for _, s := range order.Statuses() {
		literals = append(literals, string(s))
	}
	return fmt.Sprintf("Status must be one of: %s", strings.Join(literals, ", "))
}

// Handler creates http.Handler with routing matching spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
}

// HandlerFromMux creates http.Handler with routing matching spec.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

func HandlerFromMuxWithBaseURL(si ServerInterface, r chi.Router, baseURL string) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseURL:    baseURL,
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/createorder", wrapper.CreateOrder)
		r.Put(options.BaseURL+"/updateorderstatus", wrapper.UpdateOrderStatus)
		r.Get(options.BaseURL+"/findorderbycustomerid", wrapper.GetOrdersByCustomerID)
		r.Get(options.BaseURL+"/getorderbyid/{orderID}", wrapper.GetOrderByID)
		r.Get(options.BaseURL+"/getallorders", wrapper.GetAllOrders)
		r.Delete(options.BaseURL+"/deleteorder/{orderID}", wrapper.DeleteOrder)
		r.Get(options.BaseURL+"/stats", wrapper.GetStats)
	})

	return r
}
