package mail

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Config holds SMTP settings for outbound mail.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Sender delivers transactional mail over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender builds a Sender from SMTP settings.
func NewSender(cfg Config) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
	}
}

// Send delivers one plain-text message.
func (s *Sender) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-Id", messageID(s.from))
	msg.SetBody("text/plain", body)
	return s.dialer.DialAndSend(msg)
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
