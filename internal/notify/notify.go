// Package notify tells users that a ban on their account was lifted.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/pkg/email"
)

const pardonSubject = "Vault Security - Account Unblocked"

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails pardon notices. smtp.SendMail upgrades the connection with
// STARTTLS when the server offers it, and PLAIN auth refuses to run without TLS
// except against localhost.
type SMTPNotifier struct {
	addr   string
	host   string
	user   string
	pass   string
	from   string
	send   SendFunc
	logger *slog.Logger
}

type Option func(*SMTPNotifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *SMTPNotifier) {
		n.logger = logger
	}
}

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(send SendFunc) Option {
	return func(n *SMTPNotifier) {
		if send != nil {
			n.send = send
		}
	}
}

func NewSMTPNotifier(cfg config.SMTPConfig, opts ...Option) (*SMTPNotifier, error) {
	if !cfg.SMTPEnabled() {
		return nil, errors.New("smtp user and password are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	n := &SMTPNotifier{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:   cfg.Host,
		user:   cfg.User,
		pass:   cfg.Password,
		from:   from,
		send:   smtp.SendMail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// SendPardonNotice reports whether the notice was handed to the mail server.
// Failures are logged and never returned.
func (n *SMTPNotifier) SendPardonNotice(ctx context.Context, to, reason string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if strings.ContainsAny(to, "\r\n") {
		n.logger.WarnContext(ctx, "refusing pardon notice to malformed address")
		return false
	}
	msg := pardonMessage(n.from, to, reason)
	auth := smtp.PlainAuth("", n.user, n.pass, n.host)
	if err := n.send(n.addr, auth, n.from, []string{to}, msg); err != nil {
		n.logger.WarnContext(ctx, "pardon notice failed", "to", email.Mask(to), "error", err)
		return false
	}
	n.logger.InfoContext(ctx, "pardon notice sent", "to", email.Mask(to))
	return true
}

func pardonMessage(from, to, reason string) []byte {
	greeting := "Hello,"
	if name := email.FirstName(to); name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", pardonSubject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(greeting + "\r\n\r\n")
	b.WriteString("Our security system temporarily restricted your account access as a precautionary measure. " +
		"After a thorough review, we have determined this was a false positive and your access has been fully restored.\r\n\r\n")
	b.WriteString("Review Details:\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(reason, "\r\n", "\n"), "\n", "\r\n") + "\r\n\r\n")
	b.WriteString("We apologise for any inconvenience. No further action is required.\r\n\r\n")
	b.WriteString("Vault Security Team\r\n")
	return b.Bytes()
}

// LogNotifier stands in when SMTP is not configured. It logs the notice and
// reports it as not sent.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPardonNotice(ctx context.Context, to, _ string) bool {
	n.logger.InfoContext(ctx, "smtp not configured, skipping pardon notice", "to", email.Mask(to))
	return false
}
