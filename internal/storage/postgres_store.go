package storage

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/example/ride-share/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ride_orders (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT        NOT NULL,
	role       SMALLINT    NOT NULL,
	start_at   TIMESTAMPTZ NOT NULL,
	end_at     TIMESTAMPTZ NOT NULL,
	address    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ride_orders_user_idx ON ride_orders (user_id);
CREATE INDEX IF NOT EXISTS ride_orders_role_idx ON ride_orders (role);
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the orders table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) SaveOrder(ctx context.Context, o models.Order) (models.StoredOrder, error) {
	so := models.StoredOrder{Order: o}
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO ride_orders(user_id, role, start_at, end_at, address) VALUES($1,$2,$3,$4,$5) RETURNING id, created_at`,
		string(o.Identity), int(o.Role), o.Window.Start, o.Window.End, string(o.Address)).Scan(&id, &so.CreatedAt)
	if err != nil {
		return models.StoredOrder{}, err
	}
	so.ID = models.OrderID(strconv.FormatInt(id, 10))
	return so, nil
}

func (p *PostgresStore) DeleteOrder(ctx context.Context, identity models.Identity, id models.OrderID) error {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM ride_orders WHERE id=$1 AND user_id=$2`, n, string(identity))
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) OrdersFor(ctx context.Context, identity models.Identity) ([]models.StoredOrder, error) {
	return p.query(ctx, `WHERE user_id=$1`, string(identity))
}

func (p *PostgresStore) OrdersByRole(ctx context.Context, role models.Role) ([]models.StoredOrder, error) {
	return p.query(ctx, `WHERE role=$1`, int(role))
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM ride_orders`).Scan(&n)
	return n, err
}

func (p *PostgresStore) query(ctx context.Context, where string, arg any) ([]models.StoredOrder, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, role, start_at, end_at, address, created_at FROM ride_orders `+where+` ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.StoredOrder, 0)
	for rows.Next() {
		var (
			so   models.StoredOrder
			id   int64
			user string
			role int
			addr string
		)
		if err := rows.Scan(&id, &user, &role, &so.Order.Window.Start, &so.Order.Window.End, &addr, &so.CreatedAt); err != nil {
			return nil, err
		}
		so.ID = models.OrderID(strconv.FormatInt(id, 10))
		so.Order.Identity = models.Identity(user)
		so.Order.Role = models.Role(role)
		so.Order.Address = models.Address(addr)
		out = append(out, so)
	}
	return out, rows.Err()
}
