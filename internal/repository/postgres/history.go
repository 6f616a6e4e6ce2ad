package postgres

import (
	"context"
	"time"

	"cred/internal/domain"
	"cred/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TransactionHistoryRepository serves the windowed reads the AML pattern
// detectors depend on, and records transactions as they commit.
type TransactionHistoryRepository struct {
	db *sqlx.DB
}

func NewTransactionHistoryRepository(db *sqlx.DB) *TransactionHistoryRepository {
	return &TransactionHistoryRepository{db: db}
}

type transactionRow struct {
	ID         uuid.UUID `db:"id"`
	SubjectID  uuid.UUID `db:"subject_id"`
	Amount     string    `db:"amount"`
	ChainDepth int       `db:"chain_depth"`
	Country    string    `db:"country"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (r *TransactionHistoryRepository) Record(ctx context.Context, tx *domain.TransactionRecord) error {
	query := `
		INSERT INTO transactions (id, subject_id, amount, chain_depth, country, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.SubjectID, tx.Amount.String(), tx.ChainDepth, tx.Country, tx.OccurredAt)
	if err != nil {
		return errors.Wrap(err, "failed to record transaction")
	}
	return nil
}

func (r *TransactionHistoryRepository) Window(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]domain.TransactionRecord, error) {
	query := `
		SELECT * FROM transactions
		WHERE subject_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at DESC
	`

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction window")
	}

	out := make([]domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode transaction amount")
		}
		out = append(out, domain.TransactionRecord{
			ID:         row.ID,
			SubjectID:  row.SubjectID,
			Amount:     amount,
			ChainDepth: row.ChainDepth,
			Country:    row.Country,
			OccurredAt: row.OccurredAt,
		})
	}
	return out, nil
}
