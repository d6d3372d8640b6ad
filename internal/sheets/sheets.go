package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"smile-preview-backend/internal/leads"
)

const (
	DefaultRange     = "Sheet1!A:F"
	valueInputOption = "USER_ENTERED"
)

// Appender mirrors each lead as a row in a Google spreadsheet.
type Appender struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

func NewAppender(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Appender, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Appender{service: service, spreadsheetID: spreadsheetID, writeRange: DefaultRange}, nil
}

// Row is the column order of the sheet.
func Row(s leads.Submission) []interface{} {
	return []interface{}{
		s.Timestamp.Format(time.RFC3339),
		s.Name,
		s.Email,
		s.Phone,
		s.SelectedToothType,
		s.SelectedToothColor,
	}
}

func (a *Appender) Publish(ctx context.Context, s leads.Submission) error {
	_, err := a.service.Spreadsheets.Values.
		Append(a.spreadsheetID, a.writeRange, &sheets.ValueRange{Values: [][]interface{}{Row(s)}}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}
