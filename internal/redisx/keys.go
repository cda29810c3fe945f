package redisx

import "time"

const (
	// Session written by the auth service: session:{token} -> principal JSON
	KeySession = "session:%s"

	// Buy-now idempotency: idem:order:create:{customer_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Order read cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{consumer}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour

	// Orders vanish by cascade without passing through the order service, so
	// a cached order may outlive its row by up to this long.
	TTLOrderCache = 30 * time.Second

	TTLDedup = 48 * time.Hour
)

// IdemPending marks an idempotency key whose request is still in flight.
const IdemPending = "pending"
