// Package mail sends plain-text notification emails over authenticated SMTP.
package mail

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	gomail "github.com/wneessen/go-mail"
)

// submissionPort gets opportunistic STARTTLS; other ports go out in the clear.
const submissionPort = 587

// Sender delivers messages through a single configured SMTP account.
// When the account is incomplete, Send logs the message and succeeds,
// so an unconfigured monitor still runs end to end.
type Sender struct {
	Host string
	Port int
	User string
	Pass string
	To   string
}

// New returns a Sender for the given SMTP account and recipient.
func New(host string, port int, user, pass, to string) *Sender {
	return &Sender{Host: host, Port: port, User: user, Pass: pass, To: to}
}

func (s *Sender) configured() bool {
	return s.Host != "" && s.User != "" && s.Pass != "" && s.To != ""
}

// Send delivers one plain-text message, or logs and skips when the sender
// is not fully configured.
func (s *Sender) Send(subject, body string) error {
	if !s.configured() {
		log.Warn("email not configured properly, skipping send", "subject", subject)
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.User); err != nil {
		return fmt.Errorf("setting sender %q: %w", s.User, err)
	}
	if err := msg.To(s.To); err != nil {
		return fmt.Errorf("setting recipient %q: %w", s.To, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	opts := []gomail.Option{
		gomail.WithPort(s.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.User),
		gomail.WithPassword(s.Pass),
		gomail.WithTimeout(30 * time.Second),
	}
	if s.Port == submissionPort {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	client, err := gomail.NewClient(s.Host, opts...)
	if err != nil {
		return fmt.Errorf("building SMTP client for %q: %w", s.Host, err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending %q: %w", subject, err)
	}

	log.Info("email sent", "subject", subject)
	return nil
}
