package lifecycle

import "orderhub/internal/order/domain/models"

type EventKind string

const (
	EventOrderCreated   EventKind = "order_created"
	EventOrderUpdated   EventKind = "order_updated"
	EventPaymentUpdated EventKind = "payment_updated"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventOrderCreated, EventOrderUpdated, EventPaymentUpdated:
		return true
	}
	return false
}

// PublishRequest names the topics that must receive the new snapshot.
type PublishRequest struct {
	Topics []string
	Kind   EventKind
	Order  models.Order
}

func (p PublishRequest) Empty() bool {
	return len(p.Topics) == 0
}

const (
	outletTopicPrefix = "outlet:"
	userTopicPrefix   = "user:"
)

func OutletTopic(outletID string) string {
	return outletTopicPrefix + outletID
}

func UserTopic(userID string) string {
	return userTopicPrefix + userID
}

// Topics resolves the fan-out topics for an order. The outlet topic is
// only included once the order is paid, so unpaid orders never reach staff.
func Topics(o models.Order) []string {
	topics := make([]string, 0, 2)
	if o.Paid() && o.OutletID != "" {
		topics = append(topics, OutletTopic(o.OutletID))
	}
	if o.Customer.Authenticated() {
		topics = append(topics, UserTopic(o.Customer.UserID))
	}
	return topics
}

func publish(kind EventKind, o models.Order) PublishRequest {
	return PublishRequest{Topics: Topics(o), Kind: kind, Order: o}
}
