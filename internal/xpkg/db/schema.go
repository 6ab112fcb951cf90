package db

import (
	"context"
	"fmt"

	"orderhub/internal/xpkg/config"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS outlets (
		outlet_id       TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		restaurant_id   TEXT NOT NULL,
		restaurant_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id         TEXT PRIMARY KEY,
		order_number     TEXT NOT NULL UNIQUE,
		outlet_id        TEXT NOT NULL,
		restaurant_id    TEXT NOT NULL,
		type             TEXT NOT NULL CHECK (type IN ('dine_in', 'takeaway', 'delivery')),
		table_number     TEXT NOT NULL DEFAULT '',
		delivery_address TEXT NOT NULL DEFAULT '',
		payment_type     TEXT NOT NULL CHECK (payment_type IN ('pay_now', 'pay_later')),
		payment_status   TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid')),
		paid_at          TIMESTAMPTZ,
		status           TEXT NOT NULL,
		items            JSONB NOT NULL,
		kot_items        JSONB NOT NULL,
		total_price      NUMERIC(12,2) NOT NULL,
		user_id          TEXT,
		guest            JSONB,
		revision         BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_outlet_paid_idx ON orders (outlet_id, created_at DESC) WHERE payment_status = 'paid'`,
	`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_status_log (
		log_id     BIGSERIAL PRIMARY KEY,
		order_id   TEXT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		note       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS order_number_seq (
		day        TEXT PRIMARY KEY,
		last_value INT NOT NULL
	)`,
}

// EnsureSchema creates the tables the order store needs.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedOutlets upserts the outlets listed in the config file.
func (d *DB) SeedOutlets(ctx context.Context, outlets []config.Outlet) error {
	for _, o := range outlets {
		_, err := d.pool.Exec(ctx, `
			INSERT INTO outlets (outlet_id, name, restaurant_id, restaurant_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (outlet_id) DO UPDATE
			SET name = EXCLUDED.name,
				restaurant_id = EXCLUDED.restaurant_id,
				restaurant_name = EXCLUDED.restaurant_name
		`, o.ID, o.Name, o.RestaurantID, o.RestaurantName)
		if err != nil {
			return fmt.Errorf("seed outlet %s: %w", o.ID, err)
		}
	}
	return nil
}
