package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tokenapi/tokenapi/internal/model"
)

// ErrOrderNotFound is returned when no sales order has the requested ID.
var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, item, price, quantity, amount, created_at, updated_at`

// CreateOrder inserts a new sales order.
func (r *Repository) CreateOrder(ctx context.Context, order *model.SalesOrder) error {
	query := `
		INSERT INTO sales_orders (id, item, price, quantity, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn(ctx).Exec(ctx, query,
		order.ID,
		order.Item,
		int64(order.Price),
		order.Quantity,
		int64(order.Amount),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrder retrieves a sales order by ID.
func (r *Repository) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM sales_orders WHERE id = $1`

	order, err := scanOrder(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListOrders returns all sales orders, newest first.
func (r *Repository) ListOrders(ctx context.Context) ([]*model.SalesOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM sales_orders ORDER BY created_at DESC, id DESC`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*model.SalesOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateOrder overwrites the mutable fields of a sales order.
func (r *Repository) UpdateOrder(ctx context.Context, order *model.SalesOrder) error {
	query := `
		UPDATE sales_orders
		SET item = $2, price = $3, quantity = $4, amount = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.conn(ctx).Exec(ctx, query,
		order.ID,
		order.Item,
		int64(order.Price),
		order.Quantity,
		int64(order.Amount),
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteOrder removes a sales order.
func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM sales_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.SalesOrder, error) {
	var (
		order         model.SalesOrder
		price, amount int64
	)
	err := row.Scan(
		&order.ID,
		&order.Item,
		&price,
		&order.Quantity,
		&amount,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	order.Price = model.Money(price)
	order.Amount = model.Money(amount)
	return &order, nil
}
