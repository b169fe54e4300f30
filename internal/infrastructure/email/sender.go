package email

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/wneessen/go-mail"
)

// Sender delivers notifications over SMTP, opening one connection per message.
type Sender struct {
	client *mail.Client
	from   string
}

func NewSender(host string, port int, username, password, from string, timeout time.Duration) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}

	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email - NewSender - mail.NewClient: %w", err)
	}

	return &Sender{client: client, from: from}, nil
}

func (s *Sender) Send(ctx context.Context, n entity.Notification) error {
	msg, err := s.message(n)
	if err != nil {
		return err
	}

	err = s.client.DialAndSendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("email - Send - s.client.DialAndSendWithContext: %w", err)
	}

	return nil
}

func (s *Sender) message(n entity.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("email - message - msg.From: %w", err)
	}

	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("email - message - msg.To: %w", err)
	}

	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	return msg, nil
}
