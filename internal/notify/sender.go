package notify

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"garmentsapi/internal/config"
	"garmentsapi/internal/models"
)

// Sender delivers the confirmation sent to a buyer once an order is stored.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, o models.Order) error
}

// sendTimeout bounds a network delivery when the caller set no deadline.
const sendTimeout = 10 * time.Second

type LogSender struct{}

func (LogSender) SendOrderConfirmation(_ context.Context, o models.Order) error {
	log.Printf("order confirmation order_id=%s to=%s product_id=%s quantity=%d total=%s",
		o.ID, o.Email, o.ProductID, o.Quantity, o.TotalPrice.StringFixed(2))
	return nil
}

type NoopSender struct{}

func (NoopSender) SendOrderConfirmation(context.Context, models.Order) error { return nil }

type SMTPSender struct {
	host string
	port int
	from string
}

type SendGridSender struct {
	apiKey string
	from   string
}

func NewSender(cfg config.Config) Sender {
	switch cfg.OrderNotifySender {
	case "smtp":
		return SMTPSender{host: cfg.SMTPHost, port: cfg.SMTPPort, from: cfg.OrderNotifyFrom}
	case "sendgrid":
		return SendGridSender{apiKey: cfg.SendGridAPIKey, from: cfg.OrderNotifyFrom}
	case "none":
		return NoopSender{}
	default:
		return LogSender{}
	}
}

func subject(o models.Order) string {
	return fmt.Sprintf("Order %s received", o.ID)
}

func body(o models.Order) string {
	name := o.ProductName
	if name == "" {
		name = o.ProductID
	}
	return fmt.Sprintf("Thank you for your order.\r\n\r\nOrder: %s\r\nProduct: %s\r\nQuantity: %d\r\nTotal: %s\r\nStatus: %s\r\n",
		o.ID, name, o.Quantity, o.TotalPrice.StringFixed(2), o.Status)
}

func htmlBody(o models.Order) string {
	return "<pre>" + html.EscapeString(body(o)) + "</pre>"
}

// ComposeConfirmation renders the confirmation as an RFC 5322 message.
func ComposeConfirmation(from string, o models.Order, now time.Time) ([]byte, error) {
	var h gomail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*gomail.Address{{Address: from}})
	h.SetAddressList("To", []*gomail.Address{{Address: o.Email}})
	h.SetSubject(subject(o))
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body(o)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SendOrderConfirmation relays through an unauthenticated SMTP server. The
// whole exchange is bounded by ctx's deadline, or sendTimeout without one.
func (s SMTPSender) SendOrderConfirmation(ctx context.Context, o models.Order) error {
	raw, err := ComposeConfirmation(s.from, o, time.Now())
	if err != nil {
		return fmt.Errorf("compose confirmation: %w", err)
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: sendTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(o.Email); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s SendGridSender) SendOrderConfirmation(ctx context.Context, o models.Order) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("", s.from),
		subject(o),
		sgmail.NewEmail("", o.Email),
		body(o),
		htmlBody(o),
	)
	resp, err := sendgrid.NewSendClient(s.apiKey).SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}
