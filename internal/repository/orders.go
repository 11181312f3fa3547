package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

const orderColumns = `o.id, o.user_id, o.total, o.status, o.address, o.payment_method, o.created_at, o.updated_at`

func scanOrder(row pgx.Row, extra ...any) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	dest := append([]any{&o.ID, &o.UserID, &o.Total, &status, &o.Address, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// CreateOrder сохраняет заказ и его позиции в одной транзакции.
// Идентификатор и временные метки заполняются базой данных.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanOrder(tx.QueryRow(ctx,
		`INSERT INTO orders AS o (user_id, total, status, address, payment_method)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+orderColumns,
		order.UserID, order.Total, string(order.Status), order.Address, order.PaymentMethod,
	))
	if err != nil {
		return nil, storeError("insert order", err)
	}

	for i, line := range order.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, qty, price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			created.ID, i, line.ProductID, line.Name, line.Quantity, line.Price,
		)
		if err != nil {
			return nil, storeError("insert order item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	created.Items = append([]model.OrderLine(nil), order.Items...)
	return created, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, storeError("get order", err)
	}

	if err := r.attachItems(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrdersByUser возвращает заказы пользователя, начиная с самых новых.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC, o.id DESC`,
		userID,
	)
	if err != nil {
		return nil, storeError("select orders", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return r.withItems(ctx, orders)
}

// GetAllOrders возвращает все заказы с данными владельцев, начиная с самых новых.
func (r *PostgresRepository) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`, u.name, u.email
		 FROM orders o
		 JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC, o.id DESC`,
	)
	if err != nil {
		return nil, storeError("select orders", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		var owner model.OrderOwner
		o, err := scanOrder(rows, &owner.Name, &owner.Email)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Owner = &owner
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return r.withItems(ctx, orders)
}

// UpdateOrderStatus меняет только статус заказа и возвращает обновлённый заказ.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders AS o SET status = $2, updated_at = now()
		 WHERE o.id = $1
		 RETURNING `+orderColumns,
		id, string(status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, storeError("update order status", err)
	}

	if err := r.attachItems(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *PostgresRepository) withItems(ctx context.Context, orders []*model.Order) ([]model.Order, error) {
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	res := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		res = append(res, *o)
	}
	return res, nil
}

// attachItems загружает позиции для набора заказов одним запросом.
func (r *PostgresRepository) attachItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.Items = []model.OrderLine{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, name, qty, price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return storeError("select order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			line    model.OrderLine
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.Quantity, &line.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, line)
		}
	}

	if err := rows.Err(); err != nil {
		return storeError("rows error", err)
	}

	return nil
}
