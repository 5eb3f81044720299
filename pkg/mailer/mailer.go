// Package mailer sends report notification emails over SMTP.
package mailer

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Attachment is a named file attached to a notification.
type Attachment struct {
	Name        string
	Content     []byte
	ContentType string
}

// Mailer sends a notification with a plain-text body, an optional HTML
// alternative, and optional attachments.
type Mailer interface {
	Send(ctx context.Context, subject, textBody, htmlBody string, attachments []Attachment) error
}

// SMTPOptions configures the SMTP mailer.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTPMailer implements Mailer using STARTTLS SMTP.
type SMTPMailer struct {
	opts SMTPOptions
}

// NewSMTP creates an SMTPMailer with the given options.
func NewSMTP(opts SMTPOptions) *SMTPMailer {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPMailer{opts: opts}
}

func (m *SMTPMailer) Send(ctx context.Context, subject, textBody, htmlBody string, attachments []Attachment) error {
	msg := mail.NewMsg()
	if err := msg.From(m.opts.From); err != nil {
		return eris.Wrap(err, "mailer: set from")
	}
	if err := msg.To(m.opts.To...); err != nil {
		return eris.Wrap(err, "mailer: set to")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}
	for _, att := range attachments {
		if err := msg.AttachReader(att.Name, bytes.NewReader(att.Content)); err != nil {
			return eris.Wrapf(err, "mailer: attach %s", att.Name)
		}
	}

	client, err := mail.NewClient(m.opts.Host,
		mail.WithPort(m.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.opts.Username),
		mail.WithPassword(m.opts.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return eris.Wrap(err, "mailer: new client")
	}

	zap.L().Info("sending email", zap.String("subject", subject))
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrapf(err, "mailer: send %q", subject)
	}
	return nil
}
