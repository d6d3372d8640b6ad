package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"smile-preview-backend/internal/leads"
)

type Client struct {
	Supabase *supabase.Client
}

func NewClient(url, key string) (*Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Client{Supabase: client}, nil
}

// submissionRow is the submissions table layout.
type submissionRow struct {
	Timestamp          time.Time `json:"timestamp"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone"`
	Email              *string   `json:"email"`
	FreeTreatment      *bool     `json:"free_treatment"`
	SelectedToothType  *string   `json:"selected_tooth_type"`
	SelectedToothColor *string   `json:"selected_tooth_color"`
	OutputImgURL       *string   `json:"output_img_url"`
}

func toRow(s leads.Submission) submissionRow {
	free := s.FreeTreatment
	return submissionRow{
		Timestamp:          s.Timestamp,
		Name:               s.Name,
		Phone:              s.Phone,
		Email:              nilIfEmpty(s.Email),
		FreeTreatment:      &free,
		SelectedToothType:  nilIfEmpty(s.SelectedToothType),
		SelectedToothColor: nilIfEmpty(s.SelectedToothColor),
		OutputImgURL:       nilIfEmpty(s.OutputImgURL),
	}
}

func (r submissionRow) toSubmission() leads.Submission {
	return leads.Submission{
		Timestamp:          r.Timestamp,
		Name:               r.Name,
		Phone:              r.Phone,
		Email:              deref(r.Email),
		FreeTreatment:      r.FreeTreatment != nil && *r.FreeTreatment,
		SelectedToothType:  deref(r.SelectedToothType),
		SelectedToothColor: deref(r.SelectedToothColor),
		OutputImgURL:       deref(r.OutputImgURL),
	}
}

// LeadStore keeps submissions in a Supabase table through PostgREST.
type LeadStore struct {
	client *supabase.Client
	table  string
}

func NewLeadStore(client *Client, table string) *LeadStore {
	if table == "" {
		table = "submissions"
	}
	return &LeadStore{client: client.Supabase, table: table}
}

func (s *LeadStore) Insert(ctx context.Context, sub leads.Submission) error {
	_, _, err := s.client.From(s.table).
		Insert([]submissionRow{toRow(sub)}, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (s *LeadStore) List(ctx context.Context) ([]leads.Submission, error) {
	var rows []submissionRow
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}

	subs := make([]leads.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

// Clear deletes every row. PostgREST refuses an unfiltered delete, so the
// filter matches all ids.
func (s *LeadStore) Clear(ctx context.Context) error {
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Neq("id", "0").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to clear submissions: %w", err)
	}
	return nil
}

func nilIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
