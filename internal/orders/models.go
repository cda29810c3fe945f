package orders

import (
	"time"

	"github.com/ariefcatur/go-marketplace/internal/paging"
)

// DeliveryWindow is added to the order time for the delivery estimate.
const DeliveryWindow = 7 * 24 * time.Hour

type Order struct {
	ID                  string     `json:"id"`
	ProductID           string     `json:"product_id"`
	SellerID            string     `json:"seller_id"`
	CustomerID          string     `json:"customer_id"`
	CheckoutSessionID   string     `json:"checkout_session_id,omitempty"`
	Address             string     `json:"address"`
	Status              Status     `json:"status"`
	Quantity            int        `json:"quantity"`
	UnitPrice           int64      `json:"unit_price"`
	Amount              int64      `json:"amount"`
	OrderedAt           time.Time  `json:"ordered_at"`
	EstimatedDeliveryAt time.Time  `json:"estimated_delivery_at"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
}

func (o Order) IsParticipant(userID string) bool {
	return o.SellerID == userID || o.CustomerID == userID
}

// ProductRef is the slice of a product an order snapshots.
type ProductRef struct {
	ID       string
	OwnerID  string
	Title    string
	Price    int64
	Discount int64
}

// UnitPrice applies the discount percent, rounding down to the minor unit.
func UnitPrice(price, discount int64) int64 {
	return price * (100 - discount) / 100
}

// New builds a pending order for qty units of p priced at the moment now.
func New(id string, p ProductRef, customerID, address string, qty int, now time.Time) Order {
	unit := UnitPrice(p.Price, p.Discount)
	now = now.UTC().Truncate(time.Microsecond) // storage precision
	return Order{
		ID:                  id,
		ProductID:           p.ID,
		SellerID:            p.OwnerID,
		CustomerID:          customerID,
		Address:             address,
		Status:              StatusPending,
		Quantity:            qty,
		UnitPrice:           unit,
		Amount:              unit * int64(qty),
		OrderedAt:           now,
		EstimatedDeliveryAt: now.Add(DeliveryWindow),
	}
}

// Sale is one row of the sales aggregate, written once per finished order.
type Sale struct {
	OrderID      string
	ProductID    string
	SellerID     string
	Quantity     int
	Amount       int64
	DeliveryDays int
	Cancelled    bool
	SoldOn       time.Time
}

// ElapsedDays counts whole 24h periods between two instants.
func ElapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// SaleFor derives the aggregate row for an order that just left pending.
func SaleFor(o Order, at time.Time) Sale {
	s := Sale{
		OrderID:   o.ID,
		ProductID: o.ProductID,
		SellerID:  o.SellerID,
		Quantity:  o.Quantity,
		SoldOn:    at,
	}
	if o.Status == StatusCancelled {
		s.Cancelled = true
		return s
	}
	s.Amount = o.Amount
	if o.DeliveredAt != nil {
		s.DeliveryDays = ElapsedDays(o.OrderedAt, *o.DeliveredAt)
	}
	return s
}

var (
	fieldOrderedAt   = paging.Field{Name: "ordered_at", Column: "o.ordered_at", Kind: paging.KindTime}
	fieldDeliveredAt = paging.Field{Name: "delivered_at", Column: "COALESCE(o.delivered_at, " + paging.MaxTimeSQL + ")", Kind: paging.KindTime}
	fieldAmount      = paging.Field{Name: "amount", Column: "o.amount", Kind: paging.KindInt}
)

// Sorts is the order listing sort table. Undelivered orders sort after every
// delivered one on delivered_at.
var Sorts = paging.Spec{
	Sorts: map[string]paging.Sort{
		"ordered_at_desc":   {Field: fieldOrderedAt, Dir: paging.Desc},
		"ordered_at_asc":    {Field: fieldOrderedAt, Dir: paging.Asc},
		"delivered_at_desc": {Field: fieldDeliveredAt, Dir: paging.Desc},
		"delivered_at_asc":  {Field: fieldDeliveredAt, Dir: paging.Asc},
		"amount_desc":       {Field: fieldAmount, Dir: paging.Desc},
		"amount_asc":        {Field: fieldAmount, Dir: paging.Asc},
	},
	Default:      "ordered_at_desc",
	IDColumn:     "o.id",
	MinLimit:     1,
	MaxLimit:     100,
	DefaultLimit: 20,
}

// SortKey returns the row accessor matching a plan's sort field.
func SortKey(f paging.Field) func(Order) (paging.Value, string) {
	return func(o Order) (paging.Value, string) {
		switch f.Name {
		case "delivered_at":
			return paging.NullableTime(o.DeliveredAt), o.ID
		case "amount":
			return paging.Int(o.Amount), o.ID
		default:
			return paging.Time(o.OrderedAt), o.ID
		}
	}
}
