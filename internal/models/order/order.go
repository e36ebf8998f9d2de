package order

import (
	"fmt"
	"math/rand"
	"time"
)

type Status string

// The three statuses an order passes through. No transition order is
// enforced: any status may replace any other, including moving back
// from SENDED to RECEIVED.
const (
	RECEIVED   Status = "Received"
	INPROGRESS Status = "In progress"
	SENDED     Status = "Sended"
)

// Valid reports whether s is one of the three persisted literals.
func (s Status) Valid() bool {
	switch s {
	case RECEIVED, INPROGRESS, SENDED:
		return true
	}
	return false
}

// Statuses lists all valid status literals, e.g. for error messages.
func Statuses() []Status {
	return []Status{RECEIVED, INPROGRESS, SENDED}
}

// Order description. Fields aligned for the GC optimal scanning.
type Order struct {
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
	CustomerID string    `db:"customer_id" json:"customerID"`
	OrderID    string    `db:"order_id" json:"orderID"`
	Status     Status    `db:"status" json:"status"`
}

// NewOrderID generates a business identifier of the form
// ORD-<unix-millis>-<3-digit-random>. Generation is not guaranteed
// unique under concurrent creates; the unique index on order_id is
// the correctness backstop.
func NewOrderID() string {
	return fmt.Sprintf("ORD-%d-%03d", time.Now().UnixMilli(), rand.Intn(1000))
}
