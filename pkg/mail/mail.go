// Package mail sends scan reports and account confirmations by email.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/japaniel/labelscan/pkg/match"
	"github.com/japaniel/labelscan/pkg/scanner"
)

// ErrNoRecipients is returned when a message has no To address.
var ErrNoRecipients = errors.New("mail: no recipients")

// Config holds SMTP settings.
type Config struct {
	Enable  bool   `yaml:"enable"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
	From    string `yaml:"from"`
	ReplyTo string `yaml:"reply_to"`
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// SendFunc delivers a raw message. It has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender sends emails via SMTP.
type Sender struct {
	cfg Config
	// Transport defaults to smtp.SendMail.
	Transport SendFunc
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg, Transport: smtp.SendMail}
}

// Enabled reports whether Send delivers anything.
func (s *Sender) Enabled() bool { return s != nil && s.cfg.Enable }

// Send dispatches an email. A disabled sender drops the message.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return nil
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
	from := s.from()

	body, err := s.build(msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	send := s.Transport
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, from, msg.To, body); err != nil {
		return fmt.Errorf("send mail to %s: %w", strings.Join(msg.To, ", "), err)
	}
	return nil
}

func (s *Sender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.User
}

// build writes the headers and a multipart/alternative body with the text part
// first.
func (s *Sender) build(msg Message) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", s.from()))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeHeader(msg.Subject)))
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}

	var parts bytes.Buffer
	w := multipart.NewWriter(&parts)
	body.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary()))

	add := func(contentType, content string) error {
		if content == "" {
			return nil
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", contentType+"; charset=UTF-8")
		pw, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		_, err = pw.Write([]byte(content))
		return err
	}
	if err := add("text/plain", msg.Text); err != nil {
		return nil, fmt.Errorf("build mail: %w", err)
	}
	if err := add("text/html", msg.HTML); err != nil {
		return nil, fmt.Errorf("build mail: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build mail: %w", err)
	}
	body.Write(parts.Bytes())
	return body.Bytes(), nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// encodeHeader folds line breaks into spaces so a value cannot start a new
// header, and Q-encodes non-ASCII text.
func encodeHeader(v string) string {
	return mime.QEncoding.Encode("utf-8", headerBreaks.Replace(v))
}

// ReportMessage builds the email for a scan report. The text part is the
// rendered report exactly as shown on screen.
func ReportMessage(to string, rep *scanner.Report) (Message, error) {
	var matches []match.Result
	subject := "Label scan"
	if rep != nil {
		matches = rep.Matches
		if rep.Source != "" {
			subject = "Label scan: " + rep.Source
		}
	}
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(match.Markdown(matches)), &html); err != nil {
		return Message{}, fmt.Errorf("render report: %w", err)
	}
	return Message{
		To:      []string{to},
		Subject: subject,
		Text:    rep.String(),
		HTML:    html.String(),
	}, nil
}

// ConfirmationMessage builds the email carrying an account confirmation token.
func ConfirmationMessage(to, token string) Message {
	return Message{
		To:      []string{to},
		Subject: "Confirm your account",
		Text:    "Your confirmation token is: " + token + "\n",
		HTML:    "<p>Your confirmation token is: <code>" + token + "</code></p>\n",
	}
}
