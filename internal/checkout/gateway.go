package checkout

import "context"

// Gateway event types the reconciler acts on.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"

	PaymentStatusPaid = "paid"
)

type LineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64
	Quantity    int
}

type SessionRequest struct {
	CustomerEmail string
	Currency      string
	Lines         []LineItem
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Session struct {
	ID  string `json:"checkoutSessionId"`
	URL string `json:"url,omitempty"`
}

// SessionObject is the checkout session an event refers to.
type SessionObject struct {
	ID            string
	PaymentStatus string
	Metadata      map[string]string
}

type Event struct {
	ID      string
	Type    string
	Session *SessionObject // set for checkout.session.* events
}

// Gateway is the payment provider. ParseEvent must verify the signature
// before decoding anything.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}
