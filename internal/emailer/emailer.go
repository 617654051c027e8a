package emailer

import (
	"errors"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/weatherhub/weather-updates-api/internal/config"
)

var ErrDelivery = errors.New("email delivery failed")

// SMTPService sends mail through the configured SMTP relay.
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTP) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers a single HTML message. Transport failures are wrapped
// in ErrDelivery so callers can decide whether they are fatal.
func (e *SMTPService) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := e.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}
