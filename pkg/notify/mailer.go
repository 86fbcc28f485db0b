package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/xhad/papertrail/internal/models"
)

// MailerConfig represents the configuration for the SMTP digest mailer.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mailer delivers the digest email over SMTP with STARTTLS.
type Mailer struct {
	config MailerConfig
}

func NewWithConfig(config MailerConfig) (*Mailer, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if len(config.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	return &Mailer{config: config}, nil
}

// Send renders the reviews into a multipart/alternative message and
// delivers it to all configured recipients.
func (m *Mailer) Send(ctx context.Context, subject string, reviews []models.Review) error {
	digest := RenderMarkdown(reviews, time.Now())

	html, err := RenderHTML(digest)
	if err != nil {
		return err
	}

	text, err := PlainText(html)
	if err != nil {
		return err
	}

	msg, err := m.buildMessage(subject, text, html)
	if err != nil {
		return err
	}

	return m.deliver(ctx, msg)
}

func (m *Mailer) buildMessage(subject, text, html string) ([]byte, error) {
	var b strings.Builder
	body := &strings.Builder{}
	writer := multipart.NewWriter(body)

	b.WriteString(fmt.Sprintf("From: %s\r\n", m.config.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.config.To, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary()))
	b.WriteString("\r\n")

	// Plain part first so capable clients prefer the HTML alternative.
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(text)); err != nil {
		return nil, err
	}

	part, err = writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(html)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	b.WriteString(body.String())
	return []byte(b.String()), nil
}

func (m *Mailer) deliver(ctx context.Context, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range m.config.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}
