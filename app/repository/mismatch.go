package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

var (
	ErrMismatchNotFound      = errors.New("payment mismatch not found")
	ErrMismatchAlreadyExists = errors.New("payment mismatch already exists")
)

// MismatchSchema is the DDL for the ledger table.
const MismatchSchema = `
CREATE TABLE IF NOT EXISTS payment_mismatches (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	tab_id VARCHAR(128) NOT NULL,
	client_name VARCHAR(255) NOT NULL,
	payment_intent_id VARCHAR(255) NOT NULL,
	payment_method_id VARCHAR(255) NOT NULL,
	amount DECIMAL(12,2) NOT NULL,
	tier VARCHAR(64) NULL,
	partner_code VARCHAR(64) NULL,
	message TEXT NOT NULL,
	resolved TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE KEY uniq_payment_mismatches_intent (payment_intent_id),
	KEY idx_payment_mismatches_resolved (resolved, created_at)
)`

const mismatchColumns = `id, tab_id, client_name, payment_intent_id, payment_method_id, amount, tier, partner_code, message, resolved, created_at, updated_at`

type MismatchRepository struct {
	db DBTX
}

func NewMismatchRepository(db DBTX) *MismatchRepository {
	return &MismatchRepository{db: db}
}

func (r *MismatchRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, MismatchSchema)
	return err
}

func (r *MismatchRepository) Create(ctx context.Context, mismatch *entity.PaymentMismatch) error {
	query := `
		INSERT INTO payment_mismatches (
			tab_id, client_name, payment_intent_id, payment_method_id, amount,
			tier, partner_code, message, resolved, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		mismatch.TabID,
		mismatch.ClientName,
		mismatch.PaymentIntentID,
		mismatch.PaymentMethodID,
		mismatch.Amount.StringFixed(2),
		nullableStringValue(mismatch.Tier),
		nullableStringValue(mismatch.PartnerCode),
		mismatch.Message,
		mismatch.Resolved,
		mismatch.CreatedAt,
		mismatch.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMismatchAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	mismatch.ID = uint64(id)
	return nil
}

func (r *MismatchRepository) FindByID(ctx context.Context, id uint64) (*entity.PaymentMismatch, error) {
	query := `SELECT ` + mismatchColumns + ` FROM payment_mismatches WHERE id = ?`
	mismatch, err := scanMismatch(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMismatchNotFound
	}
	return mismatch, err
}

func (r *MismatchRepository) ListUnresolved(ctx context.Context, limit int32) ([]*entity.PaymentMismatch, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + mismatchColumns + ` FROM payment_mismatches WHERE resolved = 0 ORDER BY created_at ASC, id ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentMismatch, 0)
	for rows.Next() {
		item, err := scanMismatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MismatchRepository) MarkResolved(ctx context.Context, id uint64, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE payment_mismatches SET resolved = 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMismatchNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMismatch(row rowScanner) (*entity.PaymentMismatch, error) {
	var (
		item        entity.PaymentMismatch
		amount      sql.NullString
		tier        sql.NullString
		partnerCode sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.TabID,
		&item.ClientName,
		&item.PaymentIntentID,
		&item.PaymentMethodID,
		&amount,
		&tier,
		&partnerCode,
		&item.Message,
		&item.Resolved,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	value, err := decimalFromNull(amount)
	if err != nil {
		return nil, err
	}
	item.Amount = value
	item.Tier = stringPtrFromNull(tier)
	item.PartnerCode = stringPtrFromNull(partnerCode)
	return &item, nil
}
