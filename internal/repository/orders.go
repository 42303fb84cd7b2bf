package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/domain"
)

// OrderStore is the durable record of orders. Orders are never deleted;
// terminal rows are kept for audit.
type OrderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, user_id, plan_id, amount::text, currency, state,
	COALESCE(invoice_ref, ''), pay_url, provision_ref, fail_reason,
	confirmation_source, created_at, updated_at, expires_at`

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, plan_id, amount, currency, state,
			invoice_ref, pay_url, provision_ref, fail_reason,
			confirmation_source, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.UserID, o.PlanID, o.Amount.String(), o.Currency, string(o.State),
		o.InvoiceRef, o.PayURL, o.ProvisionRef, o.FailReason,
		string(o.ConfirmationSource), o.CreatedAt, o.UpdatedAt, o.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *OrderStore) GetByInvoiceRef(ctx context.Context, invoiceRef string) (*domain.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE invoice_ref = $1`, invoiceRef)
	return scanOrder(row)
}

// Update persists all mutable order fields. Immutable fields (user, plan,
// amount) are intentionally not part of the statement.
func (s *OrderStore) Update(ctx context.Context, o *domain.Order) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET state = $2, invoice_ref = NULLIF($3, ''), pay_url = $4,
			provision_ref = $5, fail_reason = $6, confirmation_source = $7,
			updated_at = $8
		WHERE id = $1`,
		o.ID, string(o.State), o.InvoiceRef, o.PayURL,
		o.ProvisionRef, o.FailReason, string(o.ConfirmationSource),
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) ListByState(ctx context.Context, state domain.OrderState, limit int) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE state = $1
		ORDER BY created_at
		LIMIT $2`,
		string(state), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders by state: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListExpirable returns non-terminal orders whose TTL has lapsed. Only
// created and invoiced orders can expire.
func (s *OrderStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE state IN ('created', 'invoiced') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expirable orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var amount, state, source string
	err := row.Scan(
		&o.ID, &o.UserID, &o.PlanID, &amount, &o.Currency, &state,
		&o.InvoiceRef, &o.PayURL, &o.ProvisionRef, &o.FailReason,
		&source, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse order amount: %w", err)
	}
	o.State = domain.OrderState(state)
	o.ConfirmationSource = domain.ConfirmationSource(source)
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
