package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/supplements-store/pkg/storage"
)

// IntentRepository define a interface para persistência das intenções de pagamento
type IntentRepository interface {
	Create(ctx context.Context, intent *Intent) error
	Get(ctx context.Context, id uuid.UUID) (*Intent, error)
	GetByCharge(ctx context.Context, provider Provider, chargeID string) (*Intent, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, folio int64) error
	MarkStatus(ctx context.Context, id uuid.UUID, status IntentStatus, reason string) error
	// ExpirePending marca como expired as pendentes criadas antes de olderThan
	ExpirePending(ctx context.Context, olderThan time.Time) (int, error)
	CountByStatus(ctx context.Context, status IntentStatus) (int, error)
}

// PostgresIntentRepository implementa IntentRepository usando PostgreSQL
type PostgresIntentRepository struct {
	db storage.DB
}

// NewPostgresIntentRepository cria uma nova instância de PostgresIntentRepository
func NewPostgresIntentRepository(db *pgxpool.Pool) *PostgresIntentRepository {
	return &PostgresIntentRepository{db: db}
}

const intentColumns = `id, provider, charge_id, customer_id, customer_email, customer_name, customer_is_admin,
	items, store_amount, charge_amount, currency, status, COALESCE(folio, 0), failure_reason, created_at, updated_at`

func scanIntent(row pgx.Row) (*Intent, error) {
	var (
		intent Intent
		items  []byte
	)
	err := row.Scan(
		&intent.ID,
		&intent.Provider,
		&intent.ChargeID,
		&intent.Customer.UserID,
		&intent.Customer.Email,
		&intent.Customer.Name,
		&intent.Customer.IsAdmin,
		&items,
		&intent.StoreAmount,
		&intent.ChargeAmount,
		&intent.Currency,
		&intent.Status,
		&intent.Folio,
		&intent.FailureReason,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &intent.Items); err != nil {
		return nil, fmt.Errorf("failed to decode intent items: %w", err)
	}
	return &intent, nil
}

func (r *PostgresIntentRepository) Create(ctx context.Context, intent *Intent) error {
	items, err := json.Marshal(intent.Items)
	if err != nil {
		return fmt.Errorf("failed to encode intent items: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO payment_intents (
			id, provider, charge_id, customer_id, customer_email, customer_name, customer_is_admin,
			items, store_amount, charge_amount, currency, status, failure_reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, '', NOW(), NOW())
		RETURNING created_at, updated_at
	`,
		intent.ID,
		intent.Provider,
		intent.ChargeID,
		intent.Customer.UserID,
		intent.Customer.Email,
		intent.Customer.Name,
		intent.Customer.IsAdmin,
		items,
		intent.StoreAmount,
		intent.ChargeAmount,
		intent.Currency,
		intent.Status,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *PostgresIntentRepository) Get(ctx context.Context, id uuid.UUID) (*Intent, error) {
	intent, err := scanIntent(r.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound.With("intent_id", id.String())
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

func (r *PostgresIntentRepository) GetByCharge(ctx context.Context, provider Provider, chargeID string) (*Intent, error) {
	intent, err := scanIntent(r.db.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE provider = $1 AND charge_id = $2
	`, provider, chargeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound.With("charge_id", chargeID)
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

func (r *PostgresIntentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, folio int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_intents
		SET status = $2, folio = $3, failure_reason = '', updated_at = NOW()
		WHERE id = $1
	`, id, IntentCompleted, folio)
	if err != nil {
		return fmt.Errorf("failed to complete payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIntentNotFound.With("intent_id", id.String())
	}
	return nil
}

func (r *PostgresIntentRepository) MarkStatus(ctx context.Context, id uuid.UUID, status IntentStatus, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_intents
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, reason)
	if err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIntentNotFound.With("intent_id", id.String())
	}
	return nil
}

func (r *PostgresIntentRepository) ExpirePending(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_intents
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
	`, IntentExpired, IntentPending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payment intents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresIntentRepository) CountByStatus(ctx context.Context, status IntentStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payment_intents WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payment intents: %w", err)
	}
	return count, nil
}
