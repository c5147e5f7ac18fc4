package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrDuplicateOrder = errors.New("order already exists")
)

const mysqlDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

const productColumns = `id, sku, name, description, category, price, stock, min_stock, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.Stock, &p.MinStock, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := scanProduct(m.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProduct inserts the product or overwrites its catalog fields and
// stock, bumping the version.
func (m *MySQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON DUPLICATE KEY UPDATE
			sku = VALUES(sku), name = VALUES(name), description = VALUES(description),
			category = VALUES(category), price = VALUES(price), stock = VALUES(stock),
			min_stock = VALUES(min_stock), version = version + 1, updated_at = VALUES(updated_at)`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Stock, p.MinStock, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// CreateOrder inserts the order with its lines and takes the stock in one
// transaction. A line whose product no longer has enough stock aborts it.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	return m.insertOrder(ctx, order, true)
}

// ImportOrder stores an order as-is without touching stock.
func (m *MySQLAdapter) ImportOrder(ctx context.Context, order domain.Order) error {
	return m.insertOrder(ctx, order, false)
}

func (m *MySQLAdapter) insertOrder(ctx context.Context, order domain.Order, takeStock bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := order.Customer
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, user_id, customer_name, customer_email, shipping_address,
			item_count, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, c.TenantID, c.UserID, c.Name, c.Email, c.ShippingAddress,
		order.ItemCount, order.Total, string(order.Status), order.CreatedAt, order.UpdatedAt,
	)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, l := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, product_id, name, sku, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, i, l.ProductID, l.Name, l.SKU, l.Quantity, l.UnitPrice, l.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}

		if !takeStock {
			continue
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, version = version + 1, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			l.Quantity, order.UpdatedAt, l.ProductID, l.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: product %s", ErrOptimisticLock, l.ProductID)
		}
	}

	return tx.Commit()
}

const orderColumns = `id, tenant_id, user_id, customer_name, customer_email, shipping_address,
	item_count, total, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	var status string
	c := &o.Customer
	err := row.Scan(&o.ID, &c.TenantID, &c.UserID, &c.Name, &c.Email, &c.ShippingAddress,
		&o.ItemCount, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Status = domain.OrderStatus(status)
	return o, err
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if o.Lines, err = m.orderLines(ctx, m.db, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var where []string
	var args []any
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		where = append(where, "(LOWER(id) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ?)")
		args = append(args, like, like, like)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if orders[i].Lines, err = m.orderLines(ctx, m.db, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), now, orderID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}

	if to == domain.OrderStatusCancelled {
		lines, err := m.orderLines(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			_, err = tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + ?, version = version + 1, updated_at = ?
				WHERE id = ?`,
				l.Quantity, now, l.ProductID,
			)
			if err != nil {
				return fmt.Errorf("restock product %s: %w", l.ProductID, err)
			}
		}
	}

	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (m *MySQLAdapter) orderLines(ctx context.Context, q querier, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, name, sku, quantity, unit_price, line_total
		FROM order_lines WHERE order_id = ? ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.SKU, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
