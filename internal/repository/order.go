package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	createOrderSQL = `INSERT INTO orders (customer_name, created_at, subtotal, discount_code, discount_amount, total, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	addLineSQL = `INSERT INTO order_lines (order_id, position, product_id, quantity, unit_price, addons)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateOrderStateSQL = `UPDATE orders SET state = $3 WHERE id = $1 AND upper(state) = ANY($2)`

	appendHistorySQL = `INSERT INTO order_state_history (order_id, state, changed_at) VALUES ($1, $2, $3)`

	orderColumns = `id, customer_name, created_at, subtotal, discount_code, discount_amount, total, state`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC LIMIT $1`

	listLinesSQL = `SELECT order_id, product_id, quantity, unit_price, addons
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`

	listHistorySQL = `SELECT order_id, state, changed_at
		FROM order_state_history WHERE order_id = ANY($1) ORDER BY order_id, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row and returns the generated id.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	var id int64
	err := conn(ctx, r.pool).QueryRow(ctx, createOrderSQL,
		o.CustomerName, o.CreatedAt, o.Subtotal, o.DiscountCode, o.DiscountAmount, o.Total, o.State.String(),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "create order")
	}
	return id, nil
}

// AddLines inserts the lines in the given order in a single batch.
func (r *OrderRepository) AddLines(ctx context.Context, orderID int64, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for i, l := range lines {
		b.Queue(addLineSQL, orderID, i, l.ProductID, l.Quantity, l.UnitPrice, pricing.AddonTokens(l.Addons))
	}
	if err := conn(ctx, r.pool).SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrapf(err, "add lines to order %d", orderID)
	}
	return nil
}

// UpdateState moves the order from one state to another. It returns
// order.ErrStateConflict when the stored state is not from. Rows still holding
// a legacy token for from match as well and are rewritten canonically.
func (r *OrderRepository) UpdateState(ctx context.Context, id int64, from, to order.State) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderStateSQL, id, from.StoredTokens(), to.String())
	if err != nil {
		return errors.Wrapf(err, "update state of order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStateConflict
	}
	return nil
}

// AppendHistory records a state change.
func (r *OrderRepository) AppendHistory(ctx context.Context, id int64, change order.StateChange) error {
	_, err := conn(ctx, r.pool).Exec(ctx, appendHistorySQL, id, change.State.String(), change.At)
	if err != nil {
		return errors.Wrapf(err, "append history of order %d", id)
	}
	return nil
}

// GetByID returns the order with its lines and state history.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	orders := []order.Order{o}
	if err := r.loadDetails(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns up to f.Limit orders created within the filter bounds, newest
// first, with lines and history.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, listOrdersSQL, f.Limit, nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if err := r.loadDetails(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) loadDetails(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := q.Query(ctx, listLinesSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order lines")
	}
	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return errors.Wrap(err, "list order lines")
	}
	for _, l := range lines {
		o := byID[l.orderID]
		o.Lines = append(o.Lines, l.Line)
	}

	rows, err = q.Query(ctx, listHistorySQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order history")
	}
	changes, err := pgx.CollectRows(rows, scanStateChange)
	if err != nil {
		return errors.Wrap(err, "list order history")
	}
	for _, c := range changes {
		o := byID[c.orderID]
		o.History = append(o.History, c.StateChange)
	}
	return nil
}

// nullTime maps an open bound to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		state string
	)
	if err := row.Scan(
		&o.ID, &o.CustomerName, &o.CreatedAt, &o.Subtotal,
		&o.DiscountCode, &o.DiscountAmount, &o.Total, &state,
	); err != nil {
		return o, err
	}

	st, err := order.ParseState(state)
	if err != nil {
		return o, errors.Wrapf(err, "order %d", o.ID)
	}
	o.State = st
	return o, nil
}

type lineRow struct {
	orderID int64
	order.Line
}

func scanLine(row pgx.CollectableRow) (lineRow, error) {
	var (
		l        lineRow
		quantity int32
		addons   []string
	)
	if err := row.Scan(&l.orderID, &l.ProductID, &quantity, &l.UnitPrice, &addons); err != nil {
		return l, err
	}
	l.Quantity = int(quantity)

	kinds, err := pricing.ParseAddonKinds(addons)
	if err != nil {
		return l, errors.Wrapf(err, "order %d", l.orderID)
	}
	l.Addons = kinds
	return l, nil
}

type stateChangeRow struct {
	orderID int64
	order.StateChange
}

func scanStateChange(row pgx.CollectableRow) (stateChangeRow, error) {
	var (
		c     stateChangeRow
		state string
		at    time.Time
	)
	if err := row.Scan(&c.orderID, &state, &at); err != nil {
		return c, err
	}

	st, err := order.ParseState(state)
	if err != nil {
		return c, errors.Wrapf(err, "order %d history", c.orderID)
	}
	c.State = st
	c.At = at
	return c, nil
}
