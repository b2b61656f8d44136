package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
)

// SendMailFunc delivers msg through the relay at addr. It must return once
// ctx is done.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends plain-text mail to recipients that have an address.
type EmailNotifier struct {
	cfg      EmailConfig
	sendMail SendMailFunc
	now      func() time.Time
}

// NewEmailNotifier builds an SMTP notifier. A nil send uses SendMail.
func NewEmailNotifier(cfg EmailConfig, send SendMailFunc) *EmailNotifier {
	if send == nil {
		send = SendMail
	}
	return &EmailNotifier{cfg: cfg, sendMail: send, now: time.Now}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Accepts(evt models.NotificationEvent) bool {
	return evt.Recipient.Email != ""
}

// Notify sends the message within ctx.
func (n *EmailNotifier) Notify(ctx context.Context, evt models.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	msg := n.compose(evt)
	if err := n.sendMail(ctx, addr, auth, n.cfg.From, []string{evt.Recipient.Email}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", evt.Recipient.Email, err)
	}
	return nil
}

func (n *EmailNotifier) compose(evt models.NotificationEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", evt.Recipient.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(Subject(evt)))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(Body(evt), "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// SendMail is smtp.SendMail bounded by ctx. The dial uses ctx and the
// connection is closed as soon as ctx is done.
func SendMail(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := smtpSession(conn, addr, auth, from, to, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

func smtpSession(conn net.Conn, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		_ = conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
