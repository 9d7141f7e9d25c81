package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/FACorreiaa/go-auth-service/config"
)

var _ Dispatcher = (*SMTPDispatcher)(nil)

// SMTPDispatcher sends mail through an SMTP relay, upgrading with STARTTLS when offered.
type SMTPDispatcher struct {
	logger  *slog.Logger
	client  *mail.Client
	from    string
	timeout time.Duration
}

func NewSMTPDispatcher(cfg config.MailConfig, logger *slog.Logger) (*SMTPDispatcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.Host, err)
	}
	return &SMTPDispatcher{logger: logger, client: client, from: cfg.From, timeout: timeout}, nil
}

// newMessage renders msg as a plain-text mail.
func (d *SMTPDispatcher) newMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(d.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", d.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	l := d.logger.With(slog.String("method", "Send"), slog.String("to", msg.To), slog.String("kind", msg.Kind))

	m, err := d.newMessage(msg)
	if err != nil {
		return err
	}
	if err := d.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	l.InfoContext(ctx, "Email sent")
	return nil
}
