package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/order-store-service/internal/models/errs"
	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// StatusCount is a single aggregate bucket of GetStats.
type StatusCount struct {
	Status order.Status `json:"status"`
	Count  int          `json:"count"`
}

// Event is a lifecycle audit record appended alongside every write.
type Event struct {
	ID      string
	OrderID string
	Type    string
	Payload []byte
}

type Repository interface {
	Create(ctx context.Context, o *order.Order) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*order.Order, error)
	GetByCustomerID(ctx context.Context, customerID string) ([]*order.Order, error)
	List(ctx context.Context, limit, offset int) ([]*order.Order, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, orderID string) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	SaveEvent(ctx context.Context, e *Event) error
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

const orderColumns = "customer_id, order_id, status, created_at, updated_at"

func scanOrder(row interface{ Scan(...any) error }) (*order.Order, error) {
	o := new(order.Order)
	err := row.Scan(
		&o.CustomerID,
		&o.OrderID,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a new order. The unique index on order_id is the
// sole arbiter of identifier uniqueness: a colliding insert surfaces
// as errs.ErrConflict and never overwrites the existing record.
func (r *Repo) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	const query = `
		INSERT INTO orders (customer_id, order_id, status)
		VALUES ($1, $2, $3)
		RETURNING ` + orderColumns

	stored, err := scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, o.CustomerID, o.OrderID, o.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, errs.ErrConflict
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return stored, nil
}

// UpdateStatus replaces the status of an existing order. Any status
// may follow any other; only updated_at changes besides the status.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	const query = `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE order_id = $1
		RETURNING ` + orderColumns

	updated, err := scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, orderID, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return updated, nil
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	const query = "SELECT " + orderColumns + " FROM orders WHERE order_id = $1"

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return o, nil
}

// GetByCustomerID returns all orders of a customer, newest first.
// A customer with no orders yields an empty slice, not an error.
func (r *Repo) GetByCustomerID(ctx context.Context, customerID string) ([]*order.Order, error) {
	const query = "SELECT " + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`

	return r.queryOrders(ctx, query, customerID)
}

// List returns a page of orders, newest first. Ties on created_at
// break on the surrogate id so a page walk never skips or repeats.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]*order.Order, error) {
	const query = "SELECT " + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	return r.queryOrders(ctx, query, limit, offset)
}

func (r *Repo) queryOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	orders := make([]*order.Order, 0)

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	const query = "SELECT COUNT(*) FROM orders"

	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}

	return total, nil
}

func (r *Repo) Delete(ctx context.Context, orderID string) error {
	const query = "DELETE FROM orders WHERE order_id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *Repo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const query = "SELECT status, COUNT(*) FROM orders GROUP BY status"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	counts := make([]StatusCount, 0)

	for rows.Next() {
		var sc StatusCount
		if err = rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// SaveEvent appends an audit record. Callers run it inside the same
// transaction as the write it describes.
func (r *Repo) SaveEvent(ctx context.Context, e *Event) error {
	const query = `
		INSERT INTO order_events (event_id, order_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, e.ID, e.OrderID, e.Type, e.Payload)
	if err != nil {
		return fmt.Errorf("save order event: %w", err)
	}

	return nil
}
