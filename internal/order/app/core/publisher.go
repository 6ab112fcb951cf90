package core

import (
	"context"

	"orderhub/internal/order/domain/lifecycle"
)

// IPublisher delivers order snapshots to fan-out topics.
type IPublisher interface {
	Publish(ctx context.Context, req lifecycle.PublishRequest) error
}
