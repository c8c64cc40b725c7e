package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
)

// ErrInvalidMessage is returned when a message is missing a sender, recipient
// or subject, or when a header field contains a line break.
var ErrInvalidMessage = errors.New("invalid email message")

// Message is a single HTML email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Validate checks that the message can be safely rendered into SMTP headers.
func (m Message) Validate() error {
	if m.From == "" || m.To == "" || m.Subject == "" {
		return fmt.Errorf("%w: from, to and subject are required", ErrInvalidMessage)
	}
	for _, v := range []string{m.From, m.To, m.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%w: header contains a line break", ErrInvalidMessage)
		}
	}
	return nil
}

// Sender delivers notification messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Bytes renders the message as an RFC 5322 document with an HTML body.
func (m Message) Bytes(now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}

// LogSender writes messages to a logger instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "log_mailer")}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not delivered, logging instead",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.HTML)
	return nil
}
