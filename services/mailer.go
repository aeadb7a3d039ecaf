package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/golang/glog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"photohunter/models"
)

// Mailer delivers account emails. Delivery is not confirmed back to callers.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to models.User, link string) error
}

const verificationText = `Hi {{.Name}},

please confirm your PhotoHunter account by opening the link below:

{{.Link}}

The link is valid for 24 hours.
`

var verificationTemplate = template.Must(template.New("verification").Parse(verificationText))

func renderVerification(to models.User, link string) (string, error) {
	body := &bytes.Buffer{}
	err := verificationTemplate.Execute(body, struct{ Name, Link string }{to.FullName, link})
	if err != nil {
		return "", fmt.Errorf("while rendering verification mail: %w", err)
	}
	return body.String(), nil
}

type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("PhotoHunter", from),
	}
}

func (m *SendgridMailer) SendVerificationEmail(ctx context.Context, to models.User, link string) error {
	text, err := renderVerification(to, link)
	if err != nil {
		return err
	}

	message := mail.NewV3Mail()
	message.From = m.from
	message.Subject = "Confirm your PhotoHunter account"

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(to.FullName, to.Email))
	message.Personalizations = append(message.Personalizations, personalization)
	message.Content = append(message.Content, mail.NewContent("text/plain", text))

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("SendGrid answered %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes the mail to the log instead of sending it. It is used
// when no SendGrid key is configured.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(_ context.Context, to models.User, link string) error {
	text, err := renderVerification(to, link)
	if err != nil {
		return err
	}
	glog.Infof("Verification mail for %s:\n%s", to.Email, text)
	return nil
}
