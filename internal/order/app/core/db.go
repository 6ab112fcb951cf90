package core

import (
	"context"

	"orderhub/internal/order/domain/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IOrderRepo is the durable order record. Save replaces the whole order and
// succeeds only while the stored revision still equals expectedRevision;
// the stored revision is then incremented.
type IOrderRepo interface {
	Create(ctx context.Context, order models.Order, log *models.StatusLog) (models.Order, error)
	Get(ctx context.Context, orderID string) (models.Order, error)
	Save(ctx context.Context, order models.Order, expectedRevision int64, log *models.StatusLog) (models.Order, error)
	ListByOutlet(ctx context.Context, outletID string) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	History(ctx context.Context, orderID string) ([]models.StatusLog, error)
	NextNumber(ctx context.Context) (string, error)
}

// IDirectory resolves outlet display data for kitchen tickets.
type IDirectory interface {
	Outlet(ctx context.Context, outletID string) (models.OutletInfo, error)
}

type IDB interface {
	Close() error
	IsAlive(ctx context.Context) error
	Pool() *pgxpool.Pool
}
