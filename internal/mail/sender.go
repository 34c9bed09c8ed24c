package mail

import (
	"context"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender is the provider call behind the dispatchers, kept narrow so tests
// can substitute a fake.
type Sender interface {
	Send(ctx context.Context, m *sgmail.SGMailV3) (*rest.Response, error)
}

type sendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender wraps the SendGrid v3 mail-send API.
func NewSendGridSender(apiKey string) Sender {
	return &sendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *sendGridSender) Send(ctx context.Context, m *sgmail.SGMailV3) (*rest.Response, error) {
	return s.client.SendWithContext(ctx, m)
}

// messageID pulls the provider message id from a send response.
func messageID(resp *rest.Response) string {
	if resp == nil {
		return ""
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}
