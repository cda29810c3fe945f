package events

const (
	TopicOrderPlaced         = "marketplace.order.placed"
	TopicOrderDelivered      = "marketplace.order.delivered"
	TopicOrderCancelled      = "marketplace.order.cancelled"
	TopicCheckoutCompleted   = "marketplace.checkout.completed"
	TopicNotificationCreated = "marketplace.notification.created"
)

var topics = map[string]string{
	EventOrderPlaced:         TopicOrderPlaced,
	EventOrderDelivered:      TopicOrderDelivered,
	EventOrderCancelled:      TopicOrderCancelled,
	EventCheckoutCompleted:   TopicCheckoutCompleted,
	EventNotificationCreated: TopicNotificationCreated,
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType string) (string, bool) {
	t, ok := topics[eventType]
	return t, ok
}

// PartitionKey keeps every event of one aggregate on the same partition.
func PartitionKey(id string) []byte { return []byte(id) }
