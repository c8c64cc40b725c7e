package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/phrazzld/storefront-accounts/internal/config"
)

const defaultDialTimeout = 10 * time.Second

// SMTPSender delivers messages through an authenticated SMTP relay.
type SMTPSender struct {
	host        string
	port        int
	username    string
	password    string
	useStartTLS bool
	logger      *slog.Logger

	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	timeNow func() time.Time
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender builds an SMTPSender from the email configuration. Port 465
// uses implicit TLS unless UseStartTLS is set.
func NewSMTPSender(cfg config.EmailConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	return &SMTPSender{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		username:    cfg.SMTPUsername,
		password:    cfg.SMTPPassword,
		useStartTLS: cfg.UseStartTLS,
		logger:      logger.With("component", "smtp_mailer"),
		dial:        dialer.DialContext,
		timeNow:     time.Now,
	}
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	conn, err := s.dial(ctx, "tcp", s.addr())
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server %s: %w", s.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
	if !s.useStartTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if s.useStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to negotiate starttls: %w", err)
		}
	}

	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA rejected: %w", err)
	}
	if _, err := w.Write(msg.Bytes(s.timeNow())); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.WarnContext(ctx, "smtp quit failed after delivery", "error", err)
	}

	s.logger.DebugContext(ctx, "email delivered", "subject", msg.Subject)
	return nil
}
