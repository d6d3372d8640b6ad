package notify

import (
	"context"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/leads"
)

type fakeSender struct {
	sent   *mail.SGMailV3
	status int
}

func (f *fakeSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func TestSendGrid_Publish(t *testing.T) {
	sender := &fakeSender{status: 202}
	n := newSendGrid(sender, "no-reply@clinic.test", "sales@clinic.test")

	err := n.Publish(context.Background(), leads.Submission{
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Name:      "Jane",
		Phone:     "+1 555-1234",
	})
	require.NoError(t, err)
	require.NotNil(t, sender.sent)
	assert.Equal(t, "New smile preview lead: Jane", sender.sent.Subject)
	assert.Equal(t, "sales@clinic.test", sender.sent.Personalizations[0].To[0].Address)
	assert.Contains(t, sender.sent.Content[0].Value, "+1 555-1234")
}

func TestSendGrid_PublishStatusError(t *testing.T) {
	n := newSendGrid(&fakeSender{status: 401}, "a@b.c", "d@e.f")

	err := n.Publish(context.Background(), leads.Submission{Name: "Jane"})
	assert.ErrorContains(t, err, "status code: 401")
}
