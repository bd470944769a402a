package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendNotifier implements Notifier on the Resend transactional email API.
// The ticket image is embedded inline in the HTML body and also attached, so
// the QR survives clients that strip either form.
type ResendNotifier struct {
	client      *resend.Client
	fromAddress string
	fromName    string
	logger      *zap.Logger
}

// NewResendNotifier creates a Resend-backed notifier. fromAddress must be a
// sender verified with Resend.
func NewResendNotifier(apiKey, fromAddress, fromName string, logger *zap.Logger) *ResendNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResendNotifier{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
	}
}

// SendTicket delivers one ticket email. It is attempted exactly once; the
// caller decides what a failure means.
func (n *ResendNotifier) SendTicket(ctx context.Context, msg TicketEmail) error {
	inline := base64.StdEncoding.EncodeToString(msg.TicketPNG)
	html := fmt.Sprintf(`<div style="font-family:sans-serif">
<h2>You're in, %s!</h2>
<p>Your registration for %s is confirmed. Show this QR code at the door.</p>
<img src="data:image/png;base64,%s" alt="ticket QR" width="256" height="256"/>
<p style="color:#666;font-size:12px">Registration ID: %s</p>
</div>`, msg.FullName, msg.EventName, inline, msg.RegistrationID)

	req := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.fromName, n.fromAddress),
		To:      []string{msg.To},
		Subject: fmt.Sprintf("Your %s ticket", msg.EventName),
		Html:    html,
		Attachments: []*resend.Attachment{
			{
				Filename:    "ticket.png",
				Content:     msg.TicketPNG,
				ContentType: "image/png",
			},
		},
	}

	sent, err := n.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}
	n.logger.Debug("ticket email sent",
		zap.String("email_id", sent.Id),
		zap.String("registration_id", msg.RegistrationID),
	)
	return nil
}
