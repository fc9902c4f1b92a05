// Package mail defines the outbound email gateway and its SMTP
// implementation. The client is built once at process start and injected;
// there is no package-level transporter.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Attachment is a file delivered with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a fully prepared outbound email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers messages. Implementations report delivery failure through
// the returned error; callers decide whether that degrades or aborts.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through a reused SMTP client.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTP constructs the mailer. Credentials are optional for relays like
// Mailpit that accept unauthenticated mail.
func NewSMTP(cfg Config) (*SMTPMailer, error) {
	if cfg.From == "" {
		return nil, errors.New("mail: sender address required")
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: new client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send delivers a single message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	mm := gomail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := mm.To(msg.To...); err != nil {
		return fmt.Errorf("mail: to: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		mm.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	for _, att := range msg.Attachments {
		if err := mm.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
			return fmt.Errorf("mail: attach %s: %w", att.Filename, err)
		}
	}
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}
