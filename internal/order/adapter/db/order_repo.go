package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `
	order_id, order_number, outlet_id, restaurant_id, type, table_number,
	delivery_address, payment_type, payment_status, paid_at, status, items,
	kot_items, total_price::text, user_id, guest, revision, created_at, updated_at`

type OrderRepo struct {
	db  core.IDB
	now func() time.Time
}

func NewOrderRepo(db core.IDB) *OrderRepo {
	return &OrderRepo{
		db:  db,
		now: time.Now,
	}
}

func (or *OrderRepo) Create(ctx context.Context, order models.Order, log *models.StatusLog) (models.Order, error) {
	if err := or.db.IsAlive(ctx); err != nil {
		return models.Order{}, core.ErrDBConn
	}

	items, kotItems, guest, err := encodeJSONColumns(order)
	if err != nil {
		return models.Order{}, err
	}

	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order.Revision = 1
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			order_id, order_number, outlet_id, restaurant_id, type, table_number,
			delivery_address, payment_type, payment_status, paid_at, status, items,
			kot_items, total_price, user_id, guest, revision, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14::text::numeric, $15, $16, $17, $18, $19
		)`,
		order.ID,
		order.Number,
		order.OutletID,
		order.RestaurantID,
		order.Type,
		order.TableNumber,
		order.DeliveryAddress,
		order.PaymentType,
		order.PaymentStatus,
		order.PaidAt,
		order.Status,
		items,
		kotItems,
		order.TotalPrice.String(),
		nullable(order.Customer.UserID),
		guest,
		order.Revision,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertLog(ctx, tx, log); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return order, nil
}

func (or *OrderRepo) Get(ctx context.Context, orderID string) (models.Order, error) {
	row := or.db.Pool().QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, core.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return o, nil
}

// Save replaces the order only if nobody else has written it since it was
// loaded. The status log entry commits in the same transaction.
func (or *OrderRepo) Save(ctx context.Context, order models.Order, expectedRevision int64, log *models.StatusLog) (models.Order, error) {
	items, kotItems, guest, err := encodeJSONColumns(order)
	if err != nil {
		return models.Order{}, err
	}

	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET
			items = $3,
			kot_items = $4,
			status = $5,
			payment_status = $6,
			paid_at = $7,
			guest = $8,
			table_number = $9,
			delivery_address = $10,
			updated_at = $11,
			revision = revision + 1
		WHERE order_id = $1 AND revision = $2`,
		order.ID,
		expectedRevision,
		items,
		kotItems,
		order.Status,
		order.PaymentStatus,
		order.PaidAt,
		guest,
		order.TableNumber,
		order.DeliveryAddress,
		order.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, order.ID).Scan(&exists); err != nil {
			return models.Order{}, fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return models.Order{}, core.ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("%w: order %s, expected revision %d", core.ErrStoreConflict, order.ID, expectedRevision)
	}

	if err := insertLog(ctx, tx, log); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	order.Revision = expectedRevision + 1
	return order, nil
}

func (or *OrderRepo) ListByOutlet(ctx context.Context, outletID string) ([]models.Order, error) {
	return or.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE outlet_id = $1 AND payment_status = 'paid'
		ORDER BY created_at DESC, order_number DESC`, outletID)
}

func (or *OrderRepo) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return or.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, order_number DESC`, userID)
}

func (or *OrderRepo) History(ctx context.Context, orderID string) ([]models.StatusLog, error) {
	var exists bool
	if err := or.db.Pool().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, core.ErrOrderNotFound
	}

	rows, err := or.db.Pool().Query(ctx, `
		SELECT order_id, status, changed_by, changed_at, note
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at, log_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status log: %w", err)
	}
	defer rows.Close()

	logs := make([]models.StatusLog, 0)
	for rows.Next() {
		var l models.StatusLog
		if err := rows.Scan(&l.OrderID, &l.Status, &l.ChangedBy, &l.ChangedAt, &l.Note); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// NextNumber generates ORD_YYYYMMDD_NNN; the sequence restarts every UTC day.
func (or *OrderRepo) NextNumber(ctx context.Context) (string, error) {
	currentDate := or.now().UTC().Format("20060102")

	var seq int
	err := or.db.Pool().QueryRow(ctx, `
		INSERT INTO order_number_seq (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_number_seq.last_value + 1
		RETURNING last_value`, currentDate).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD_%s_%03d", currentDate, seq), nil
}

// Outlet implements core.IDirectory.
func (or *OrderRepo) Outlet(ctx context.Context, outletID string) (models.OutletInfo, error) {
	var info models.OutletInfo
	err := or.db.Pool().QueryRow(ctx, `
		SELECT outlet_id, name, restaurant_id, restaurant_name
		FROM outlets WHERE outlet_id = $1`, outletID,
	).Scan(&info.ID, &info.Name, &info.RestaurantID, &info.RestaurantName)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OutletInfo{}, core.ErrOutletNotFound
	}
	if err != nil {
		return models.OutletInfo{}, fmt.Errorf("failed to load outlet: %w", err)
	}
	return info, nil
}

func (or *OrderRepo) list(ctx context.Context, q string, arg string) ([]models.Order, error) {
	rows, err := or.db.Pool().Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func insertLog(ctx context.Context, tx pgx.Tx, log *models.StatusLog) error {
	if log == nil {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5)`,
		log.OrderID, log.Status, log.ChangedBy, log.ChangedAt, log.Note)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o                    models.Order
		items, kotItems, gst []byte
		total                string
		userID               *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.OutletID, &o.RestaurantID, &o.Type, &o.TableNumber,
		&o.DeliveryAddress, &o.PaymentType, &o.PaymentStatus, &o.PaidAt, &o.Status, &items,
		&kotItems, &total, &userID, &gst, &o.Revision, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return models.Order{}, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(kotItems, &o.KOTItems); err != nil {
		return models.Order{}, fmt.Errorf("decode kot items: %w", err)
	}
	if len(gst) > 0 && string(gst) != "null" {
		o.Customer.Guest = &models.GuestContact{}
		if err := json.Unmarshal(gst, o.Customer.Guest); err != nil {
			return models.Order{}, fmt.Errorf("decode guest: %w", err)
		}
	}
	if userID != nil {
		o.Customer.UserID = *userID
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return models.Order{}, fmt.Errorf("decode total price: %w", err)
	}
	return o, nil
}

func encodeJSONColumns(o models.Order) (items, kotItems, guest []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("encode items: %w", err)
	}
	if kotItems, err = json.Marshal(o.KOTItems); err != nil {
		return nil, nil, nil, fmt.Errorf("encode kot items: %w", err)
	}
	if o.Customer.Guest != nil {
		if guest, err = json.Marshal(o.Customer.Guest); err != nil {
			return nil, nil, nil, fmt.Errorf("encode guest: %w", err)
		}
	}
	return items, kotItems, guest, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
