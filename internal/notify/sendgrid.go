package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"smile-preview-backend/internal/leads"
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid emails the clinic whenever a lead comes in.
type SendGrid struct {
	client sender
	from   *mail.Email
	to     *mail.Email
}

func NewSendGrid(apiKey, from, to string) *SendGrid {
	return newSendGrid(sendgrid.NewSendClient(apiKey), from, to)
}

func newSendGrid(client sender, from, to string) *SendGrid {
	return &SendGrid{
		client: client,
		from:   mail.NewEmail("Smile Preview", from),
		to:     mail.NewEmail("Sales", to),
	}
}

// Message builds the notification for a lead.
func Message(from, to *mail.Email, s leads.Submission) *mail.SGMailV3 {
	subject := "New smile preview lead: " + s.Name

	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", s.Timestamp.Format(time.RFC1123))
	fmt.Fprintf(&b, "Name: %s\n", s.Name)
	fmt.Fprintf(&b, "Phone: %s\n", s.Phone)
	if s.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", s.Email)
	}
	fmt.Fprintf(&b, "Free treatment: %t\n", s.FreeTreatment)
	fmt.Fprintf(&b, "Style: %s\n", s.SelectedToothType)
	fmt.Fprintf(&b, "Shade: %s\n", s.SelectedToothColor)
	fmt.Fprintf(&b, "Result: %s\n", s.OutputImgURL)
	text := b.String()

	html := "<pre>" + strings.ReplaceAll(text, "<", "&lt;") + "</pre>"
	return mail.NewSingleEmail(from, subject, to, text, html)
}

func (n *SendGrid) Publish(ctx context.Context, s leads.Submission) error {
	response, err := n.client.SendWithContext(ctx, Message(n.from, n.to, s))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
