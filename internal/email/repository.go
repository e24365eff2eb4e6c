package email

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateLog(ctx context.Context, log *EmailLog) error
	ListLogs(ctx context.Context) ([]EmailLog, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateLog(ctx context.Context, log *EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO email_logs (id, recipient, subject, message, status, user_id, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.Recipient, log.Subject, log.Message,
		log.Status, nullable(log.UserID), nullable(log.RequestedBy), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListLogs(ctx context.Context) ([]EmailLog, error) {
	query := `
		SELECT id, recipient, subject, message, status, user_id, requested_by, created_at
		FROM email_logs
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	defer rows.Close()

	logs := make([]EmailLog, 0)
	for rows.Next() {
		var (
			log         EmailLog
			userID      sql.NullString
			requestedBy sql.NullString
		)
		if err := rows.Scan(
			&log.ID, &log.Recipient, &log.Subject, &log.Message,
			&log.Status, &userID, &requestedBy, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}
		log.UserID = userID.String
		log.RequestedBy = requestedBy.String
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email logs: %w", err)
	}

	return logs, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
