package mail

import (
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/tomymiron/ETH-Global/config"
)

// Message is one HTML mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers mail over SMTP with PLAIN auth.
type Sender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	send     sendFunc
}

func NewSender(cfg config.MailConfig) *Sender {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Sender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		send:     smtp.SendMail,
	}
}

// Send delivers msg.
func (s *Sender) Send(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}
	if s.host == "" {
		return errors.New("smtp host is not configured")
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if err := s.send(addr, auth, s.from, []string{msg.To}, s.build(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (s *Sender) build(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
