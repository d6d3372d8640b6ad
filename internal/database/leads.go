package database

import (
	"context"
	"database/sql"
	"fmt"

	"smile-preview-backend/internal/leads"
)

// LeadStore writes submissions straight to Postgres.
type LeadStore struct {
	db *sql.DB
}

func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

func (s *LeadStore) Insert(ctx context.Context, sub leads.Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions
			(timestamp, name, phone, email, free_treatment, selected_tooth_type, selected_tooth_color, output_img_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.Timestamp,
		sub.Name,
		sub.Phone,
		nullIfEmpty(sub.Email),
		sub.FreeTreatment,
		sub.SelectedToothType,
		sub.SelectedToothColor,
		sub.OutputImgURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (s *LeadStore) List(ctx context.Context) ([]leads.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, name, phone, email, COALESCE(free_treatment, false),
			selected_tooth_type, selected_tooth_color, output_img_url
		FROM submissions
		ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	subs := []leads.Submission{}
	for rows.Next() {
		var sub leads.Submission
		var email sql.NullString
		if err := rows.Scan(
			&sub.Timestamp,
			&sub.Name,
			&sub.Phone,
			&email,
			&sub.FreeTreatment,
			&sub.SelectedToothType,
			&sub.SelectedToothColor,
			&sub.OutputImgURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		sub.Email = email.String
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

func (s *LeadStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM submissions"); err != nil {
		return fmt.Errorf("failed to clear submissions: %w", err)
	}
	return nil
}

func nullIfEmpty(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
