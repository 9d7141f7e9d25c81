package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
	// Kind tags the message for logs and metrics, e.g. "verification" or "password_reset".
	Kind string
}

// Dispatcher delivers email. Implementations must honour ctx cancellation.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage builds the email carrying a verification code.
func VerificationMessage(to, username, code string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your email address",
		Kind:    "verification",
		Body: fmt.Sprintf("Hi %s,\n\nYour verification code is %s.\n"+
			"It expires in 24 hours. If you did not create an account you can ignore this email.\n", username, code),
	}
}

// ResetMessage builds the email carrying a password reset link.
func ResetMessage(to, username, resetURL, token string) Message {
	link := resetURL
	if u, err := url.Parse(resetURL); err == nil {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		link = u.String()
	}
	return Message{
		To:      to,
		Subject: "Reset your password",
		Kind:    "password_reset",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in 1 hour.\n\n%s\n\n"+
			"If you did not ask for a reset you can ignore this email.\n", username, link),
	}
}

var _ Dispatcher = (*LogDispatcher)(nil)

// LogDispatcher writes messages to the logger instead of sending them. Bodies are not logged.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "Email dispatched to log",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("kind", msg.Kind))
	return nil
}

var _ Dispatcher = (*Recorder)(nil)

// Recorder keeps every message in memory. Err, when set, is returned instead of recording.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of what was sent.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message sent to addr.
func (r *Recorder) Last(addr string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].To == addr {
			return r.messages[i], true
		}
	}
	return Message{}, false
}
