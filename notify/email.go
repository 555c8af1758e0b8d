package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"pricehound/models"
	"pricehound/utils"
)

// EmailTransport delivers alerts over implicit-TLS SMTP (port 465).
type EmailTransport struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
}

// NewEmailTransport creates a transport. An empty from address defaults to user.
func NewEmailTransport(host string, port int, user, password, from string, timeout time.Duration) *EmailTransport {
	if from == "" {
		from = user
	}
	return &EmailTransport{host: host, port: port, user: user, password: password, from: from, timeout: timeout}
}

// Send composes and delivers the alert to the address to.
func (e *EmailTransport) Send(ctx context.Context, to string, a *models.PriceAlert) error {
	msg, err := composeEmail(e.from, to, a, time.Now())
	if err != nil {
		return utils.E(utils.KindMalformed, "compose email", err)
	}

	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: e.timeout},
		Config:    &tls.Config{ServerName: e.host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return utils.E(utils.KindTransport, "smtp dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, e.host)
	if err != nil {
		_ = conn.Close()
		return utils.E(utils.KindTransport, "smtp handshake", err)
	}
	defer c.Close()

	if e.user != "" {
		if err := c.Auth(smtp.PlainAuth("", e.user, e.password, e.host)); err != nil {
			return utils.E(utils.KindPermanent, "smtp auth", err)
		}
	}
	if err := c.Mail(e.from); err != nil {
		return utils.E(utils.KindPermanent, "smtp mail from", err)
	}
	if err := c.Rcpt(to); err != nil {
		return utils.E(utils.KindPermanent, "smtp rcpt", err)
	}
	w, err := c.Data()
	if err != nil {
		return utils.E(utils.KindTransport, "smtp data", err)
	}
	if _, err := w.Write(msg); err != nil {
		return utils.E(utils.KindTransport, "smtp write", err)
	}
	if err := w.Close(); err != nil {
		return utils.E(utils.KindTransport, "smtp close data", err)
	}
	return c.Quit()
}

func composeEmail(from, to string, a *models.PriceAlert, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: brand, Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: displayName(a), Address: to}})
	h.SetSubject(EmailSubject(a))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	if _, err := io.WriteString(w, EmailBody(a)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
