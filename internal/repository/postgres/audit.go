package postgres

import (
	"context"

	"cred/internal/domain"
	"cred/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditRepository is append-only: there is no update or delete path.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_events (
			id, actor, action, subject_id, before_state, after_state,
			reason, metadata, created_at
		) VALUES (
			:id, :actor, :action, :subject_id, :before_state, :after_state,
			:reason, :metadata, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return errors.Wrap(err, "failed to create audit event")
	}
	return nil
}

func (r *AuditRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT * FROM audit_events
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var events []domain.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, subjectID, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list audit events")
	}
	return events, nil
}
