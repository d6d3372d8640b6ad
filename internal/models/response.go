package models

import (
	"time"

	"smile-preview-backend/internal/catalog"
	"smile-preview-backend/internal/leads"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type CatalogResponse struct {
	Styles    []catalog.Style    `json:"styles"`
	Shades    []catalog.Shade    `json:"shades"`
	DialCodes []catalog.DialCode `json:"dial_codes"`
}

type GeoResponse struct {
	CountryCode string `json:"country_code"`
	DialCode    string `json:"dial_code"`
}

type VisitorResponse struct {
	VisitorID     string `json:"visitor_id"`
	FormSubmitted bool   `json:"form_submitted"`
	CountryCode   string `json:"country_code,omitempty"`
	DialCode      string `json:"dial_code,omitempty"`
}

type JobResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type SessionResponse struct {
	SessionID string       `json:"session_id"`
	Flow      string       `json:"flow"`
	Step      int          `json:"step"`
	State     string       `json:"state"`
	Style     string       `json:"style,omitempty"`
	Shade     string       `json:"shade,omitempty"`
	Capturing bool         `json:"capturing"`
	Job       *JobResponse `json:"job,omitempty"`
	BeforeURL string       `json:"before_url,omitempty"`
	AfterURL  string       `json:"after_url,omitempty"`
	Gated     bool         `json:"gated"`
	Fallback  bool         `json:"fallback"`
	LastError string       `json:"last_error,omitempty"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LeadListResponse struct {
	Leads []leads.Submission `json:"leads"`
	Count int                `json:"count"`
}
