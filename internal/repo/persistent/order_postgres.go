package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/postgres"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Tables
	ordersTable     = "orders"
	orderItemsTable = "order_items"

	// orders columns
	orderIDColumn            = "id"
	orderNumberColumn        = "order_number"
	orderDateColumn          = "order_date"
	orderStatusColumn        = "status"
	orderTotalAmountColumn   = "total_amount"
	orderCustomerEmailColumn = "customer_email"

	// order_items columns
	itemOrderIDColumn     = "order_id"
	itemPositionColumn    = "position"
	itemProductNameColumn = "product_name"
	itemUnitPriceColumn   = "unit_price"
	itemQuantityColumn    = "quantity"
	itemLineTotalColumn   = "line_total"
)

// OrderRepo reads orders the domain layer has already written. It exists to
// hydrate a snapshot when a caller only knows the order id.
type OrderRepo struct {
	*postgres.Postgres
}

func NewOrderRepo(pg *postgres.Postgres) *OrderRepo {
	return &OrderRepo{pg}
}

func (r *OrderRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error) {
	var snapshot entity.OrderSnapshot

	err := r.WithinReadTransaction(ctx, func(ctx context.Context) error {
		var err error

		snapshot, err = r.getOrder(ctx, id)
		if err != nil {
			return err
		}

		snapshot.LineItems, err = r.getItems(ctx, id)

		return err
	})
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("OrderRepo - GetSnapshot - r.WithinReadTransaction: %w", err)
	}

	return snapshot, nil
}

func (r *OrderRepo) getOrder(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error) {
	sql, args, err := r.Builder.
		Select(
			orderIDColumn,
			orderNumberColumn,
			orderDateColumn,
			orderStatusColumn,
			orderTotalAmountColumn,
			orderCustomerEmailColumn,
		).
		From(ordersTable).
		Where(orderIDColumn+" = ?", id).
		ToSql()
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("OrderRepo - getOrder - r.Builder.ToSql: %w", err)
	}

	var s entity.OrderSnapshot

	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(
		&s.ID,
		&s.OrderNumber,
		&s.OrderDate,
		&s.Status,
		&s.TotalAmount,
		&s.CustomerEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.OrderSnapshot{}, fmt.Errorf("OrderRepo - getOrder: %w", errs.ErrRecordNotFound)
		}

		return entity.OrderSnapshot{}, fmt.Errorf("OrderRepo - getOrder - row.Scan: %w", err)
	}

	return s, nil
}

func (r *OrderRepo) getItems(ctx context.Context, id uuid.UUID) ([]entity.LineItem, error) {
	sql, args, err := r.Builder.
		Select(
			itemProductNameColumn,
			itemUnitPriceColumn,
			itemQuantityColumn,
			itemLineTotalColumn,
		).
		From(orderItemsTable).
		Where(itemOrderIDColumn+" = ?", id).
		OrderBy(itemPositionColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("OrderRepo - getItems - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("OrderRepo - getItems - executor.Query: %w", err)
	}
	defer rows.Close()

	items := make([]entity.LineItem, 0)
	for rows.Next() {
		var item entity.LineItem
		err = rows.Scan(
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("OrderRepo - getItems - rows.Scan: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("OrderRepo - getItems - rows.Err: %w", err)
	}

	return items, nil
}
