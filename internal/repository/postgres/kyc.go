// Package postgres implements the engine's persistence on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"cred/internal/domain"
	"cred/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type KYCRecordRepository struct {
	db *sqlx.DB
}

func NewKYCRecordRepository(db *sqlx.DB) *KYCRecordRepository {
	return &KYCRecordRepository{db: db}
}

// kycRecordRow is the storage shape: status and levels travel as the small
// integer codes defined in the domain package.
type kycRecordRow struct {
	SubjectID       uuid.UUID  `db:"subject_id"`
	Status          int        `db:"status"`
	Level           int        `db:"level"`
	RiskLevel       int        `db:"risk_level"`
	RiskScore       int        `db:"risk_score"`
	DocumentHash    string     `db:"document_hash"`
	VerificationID  string     `db:"verification_id"`
	VerifiedAt      *time.Time `db:"verified_at"`
	ExpiresAt       *time.Time `db:"expires_at"`
	Whitelisted     bool       `db:"whitelisted"`
	Blacklisted     bool       `db:"blacklisted"`
	BlacklistReason string     `db:"blacklist_reason"`
	DailyLimit      string     `db:"daily_limit"`
	MonthlyLimit    string     `db:"monthly_limit"`
	TotalLimit      string     `db:"total_limit"`
	VerifiedBy      string     `db:"verified_by"`
	RejectionReason string     `db:"rejection_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func toRow(record *domain.KYCRecord) (*kycRecordRow, error) {
	status, err := record.Status.Code()
	if err != nil {
		return nil, err
	}
	level, err := record.Level.Code()
	if err != nil {
		return nil, err
	}
	riskLevel, err := record.RiskLevel.Code()
	if err != nil {
		return nil, err
	}
	return &kycRecordRow{
		SubjectID:       record.SubjectID,
		Status:          status,
		Level:           level,
		RiskLevel:       riskLevel,
		RiskScore:       record.RiskScore,
		DocumentHash:    record.DocumentHash,
		VerificationID:  record.VerificationID,
		VerifiedAt:      record.VerifiedAt,
		ExpiresAt:       record.ExpiresAt,
		Whitelisted:     record.Whitelisted,
		Blacklisted:     record.Blacklisted,
		BlacklistReason: record.BlacklistReason,
		DailyLimit:      record.Limits.Daily.String(),
		MonthlyLimit:    record.Limits.Monthly.String(),
		TotalLimit:      record.Limits.Total.String(),
		VerifiedBy:      record.VerifiedBy,
		RejectionReason: record.RejectionReason,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}, nil
}

func (row *kycRecordRow) toDomain() (*domain.KYCRecord, error) {
	status, err := domain.KYCStatusFromCode(row.Status)
	if err != nil {
		return nil, err
	}
	level, err := domain.KYCLevelFromCode(row.Level)
	if err != nil {
		return nil, err
	}
	riskLevel, err := domain.RiskLevelFromCode(row.RiskLevel)
	if err != nil {
		return nil, err
	}
	daily, err := decimalFromString(row.DailyLimit)
	if err != nil {
		return nil, err
	}
	monthly, err := decimalFromString(row.MonthlyLimit)
	if err != nil {
		return nil, err
	}
	total, err := decimalFromString(row.TotalLimit)
	if err != nil {
		return nil, err
	}
	return &domain.KYCRecord{
		SubjectID:       row.SubjectID,
		Status:          status,
		Level:           level,
		RiskLevel:       riskLevel,
		RiskScore:       row.RiskScore,
		DocumentHash:    row.DocumentHash,
		VerificationID:  row.VerificationID,
		VerifiedAt:      row.VerifiedAt,
		ExpiresAt:       row.ExpiresAt,
		Whitelisted:     row.Whitelisted,
		Blacklisted:     row.Blacklisted,
		BlacklistReason: row.BlacklistReason,
		Limits:          domain.TransactionLimits{Daily: daily, Monthly: monthly, Total: total},
		VerifiedBy:      row.VerifiedBy,
		RejectionReason: row.RejectionReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *KYCRecordRepository) Create(ctx context.Context, record *domain.KYCRecord) error {
	row, err := toRow(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode kyc record")
	}

	query := `
		INSERT INTO kyc_records (
			subject_id, status, level, risk_level, risk_score,
			document_hash, verification_id, verified_at, expires_at,
			whitelisted, blacklisted, blacklist_reason,
			daily_limit, monthly_limit, total_limit,
			verified_by, rejection_reason, created_at, updated_at
		) VALUES (
			:subject_id, :status, :level, :risk_level, :risk_score,
			:document_hash, :verification_id, :verified_at, :expires_at,
			:whitelisted, :blacklisted, :blacklist_reason,
			:daily_limit, :monthly_limit, :total_limit,
			:verified_by, :rejection_reason, :created_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to create kyc record")
	}
	return nil
}

func (r *KYCRecordRepository) Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	query := `SELECT * FROM kyc_records WHERE subject_id = $1`

	var row kycRecordRow
	err := r.db.GetContext(ctx, &row, query, subjectID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kyc record")
	}
	return row.toDomain()
}

// Update rewrites the record inside a transaction that first takes a row
// lock, so concurrent writers on different engine instances cannot
// interleave read-modify-write cycles.
func (r *KYCRecordRepository) Update(ctx context.Context, record *domain.KYCRecord) error {
	row, err := toRow(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode kyc record")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	var locked uuid.UUID
	err = tx.GetContext(ctx, &locked,
		`SELECT subject_id FROM kyc_records WHERE subject_id = $1 FOR UPDATE`, record.SubjectID)
	if err == sql.ErrNoRows {
		return errors.ErrRecordNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock kyc record")
	}

	query := `
		UPDATE kyc_records SET
			status = :status, level = :level, risk_level = :risk_level,
			risk_score = :risk_score, document_hash = :document_hash,
			verification_id = :verification_id, verified_at = :verified_at,
			expires_at = :expires_at, whitelisted = :whitelisted,
			blacklisted = :blacklisted, blacklist_reason = :blacklist_reason,
			daily_limit = :daily_limit, monthly_limit = :monthly_limit,
			total_limit = :total_limit, verified_by = :verified_by,
			rejection_reason = :rejection_reason, updated_at = :updated_at
		WHERE subject_id = :subject_id
	`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to update kyc record")
	}

	return tx.Commit()
}

// ListExpired returns verified subjects whose expiry has passed.
func (r *KYCRecordRepository) ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	verifiedCode, err := domain.KYCStatusVerified.Code()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT subject_id FROM kyc_records
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2
	`
	var out []uuid.UUID
	if err := r.db.SelectContext(ctx, &out, query, verifiedCode, before); err != nil {
		return nil, errors.Wrap(err, "failed to list expired records")
	}
	return out, nil
}
