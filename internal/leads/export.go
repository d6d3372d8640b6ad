package leads

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

var csvHeader = []string{
	"TIMESTAMP", "NAME", "PHONE", "EMAIL", "FREE TREATMENT",
	"SELECTED TOOTH TYPE", "SELECTED TOOTH COLOR", "OUTPUT IMG URL",
}

func WriteCSV(w io.Writer, subs []Submission) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range subs {
		free := "No"
		if s.FreeTreatment {
			free = "Yes"
		}
		row := []string{
			s.Timestamp.Format(time.RFC3339),
			s.Name,
			s.Phone,
			s.Email,
			free,
			s.SelectedToothType,
			s.SelectedToothColor,
			s.OutputImgURL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, subs []Submission) error {
	if subs == nil {
		subs = []Submission{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(subs)
}

// ExportFileName follows the admin panel download naming.
func ExportFileName(ext string, now time.Time) string {
	return "design-your-teeth-submissions-" + now.Format("2006-01-02") + "." + ext
}
