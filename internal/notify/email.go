package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type EmailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
	To       string
}

// Email delivers alerts over SMTP. smtp.SendMail upgrades with STARTTLS
// when the server offers it, and PLAIN auth refuses to run without TLS.
type Email struct {
	cfg      EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.To == "" {
		return nil, nil
	}
	if cfg.Server == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("email: smtp server, username and password are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (e *Email) Send(ctx context.Context, ev domain.AlertEvent) error {
	if e == nil {
		return errors.New("email disabled")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.cfg.Server, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Server)
	msg := e.message(ev)

	// net/smtp has no context support; run it aside so cancellation returns promptly.
	done := make(chan error, 1)
	go func() { done <- e.sendMail(addr, auth, e.cfg.From, []string{e.cfg.To}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Email) message(ev domain.AlertEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(ev))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(Body(ev), "\n", "\r\n"))
	return []byte(b.String())
}
