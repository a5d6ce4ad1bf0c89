package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ticketflow/internal/model"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers confirmation e-mails over SMTP.
type Mailer struct {
	cfg  Config
	send SendFunc
	log  *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail, log: log}
}

// WithSender replaces the SMTP transport, mostly for tests.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

func (m *Mailer) SendConfirmation(c model.Confirmation) error {
	if c.To == "" {
		return fmt.Errorf("send email: empty recipient")
	}

	subject, body := Compose(c)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		m.cfg.From, c.To, subject, body,
	)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	if err := m.send(addr, auth, m.cfg.From, []string{c.To}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("to", c.To).Str("kind", c.Kind).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", c.To).Str("kind", c.Kind).Str("reference_id", c.ReferenceID).Msg("confirmation email sent")
	return nil
}

// Compose builds subject and plain-text body for a confirmation.
func Compose(c model.Confirmation) (string, string) {
	var b strings.Builder
	name := c.Name
	if name == "" {
		name = "participant"
	}
	fmt.Fprintf(&b, "Hello, %s!\n\n", name)

	switch c.Kind {
	case model.KindPhotoOrder:
		fmt.Fprintf(&b, "Your order of %d photo(s) from %q has been paid.\n", c.PhotoQuantity, c.EventName)
		fmt.Fprintf(&b, "Amount: %.2f\n", c.Amount)
		fmt.Fprintf(&b, "Order: %s\n", c.ReferenceID)
		return fmt.Sprintf("Your photos from %s", c.EventName), b.String()
	default:
		fmt.Fprintf(&b, "Your registration for %q is confirmed.\n", c.EventName)
		if c.CategoryName != "" {
			fmt.Fprintf(&b, "Category: %s\n", c.CategoryName)
		}
		if c.TicketCode != "" {
			fmt.Fprintf(&b, "Ticket: %s\n", c.TicketCode)
		}
		if c.Amount > 0 {
			fmt.Fprintf(&b, "Amount paid: %.2f\n", c.Amount)
		}
		b.WriteString("\nSee you there!\n")
		return fmt.Sprintf("Registration confirmed: %s", c.EventName), b.String()
	}
}

type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

// Dispatcher hands confirmations to the queue; the consumer worker
// performs the actual delivery.
type Dispatcher struct {
	pub Publisher
	log *zerolog.Logger
}

func NewDispatcher(pub Publisher, log *zerolog.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, log: log}
}

func (d *Dispatcher) SendConfirmation(ctx context.Context, c model.Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}
	if err := d.pub.Publish(body, 0); err != nil {
		d.log.Error().Err(err).Str("reference_id", c.ReferenceID).Msg("failed to enqueue confirmation")
		return fmt.Errorf("enqueue confirmation: %w", err)
	}
	return nil
}
