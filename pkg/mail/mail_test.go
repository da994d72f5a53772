package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/japaniel/labelscan/pkg/match"
	"github.com/japaniel/labelscan/pkg/scanner"
)

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func capture(c *captured) SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, string(msg)
		return nil
	}
}

func TestSendDisabledIsNoop(t *testing.T) {
	s := New(Config{Enable: false})
	called := false
	s.Transport = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}
	if err := s.Send(context.Background(), Message{To: []string{"a@example.com"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if called {
		t.Fatal("disabled sender must not deliver")
	}
}

func TestSendBuildsMultipart(t *testing.T) {
	var c captured
	s := New(Config{Enable: true, Host: "smtp.example.com", User: "bot@example.com", Pass: "pw", ReplyTo: "help@example.com"})
	s.Transport = capture(&c)

	err := s.Send(context.Background(), Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c.addr != "smtp.example.com:587" {
		t.Errorf("expected default port, got %s", c.addr)
	}
	if c.from != "bot@example.com" {
		t.Errorf("expected From to fall back to user, got %s", c.from)
	}
	if c.auth == nil {
		t.Error("expected auth when a user is configured")
	}
	for _, want := range []string{
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hello\r\n",
		"Reply-To: help@example.com\r\n",
		"multipart/alternative; boundary=",
		"text/plain; charset=UTF-8",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(c.msg, want) {
			t.Errorf("message missing %q:\n%s", want, c.msg)
		}
	}
	if strings.Index(c.msg, "plain body") > strings.Index(c.msg, "html body") {
		t.Error("text part should come before html part")
	}
}

func TestSendErrors(t *testing.T) {
	s := New(Config{Enable: true, Host: "smtp.example.com", Port: 25})
	if err := s.Send(context.Background(), Message{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}

	boom := errors.New("connection refused")
	s.Transport = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := s.Send(context.Background(), Message{To: []string{"a@example.com"}}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Message{To: []string{"a@example.com"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReportMessage(t *testing.T) {
	rep := &scanner.Report{
		Source:  "label.png",
		Matches: []match.Result{{Name: "paraben", Description: "Preservative <b>"}},
	}
	msg, err := ReportMessage("a@example.com", rep)
	if err != nil {
		t.Fatalf("ReportMessage: %v", err)
	}
	if msg.Text != match.Render(rep.Matches) {
		t.Fatalf("text part must equal rendered report, got %q", msg.Text)
	}
	if msg.Subject != "Label scan: label.png" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "<h2>Harmful Ingredients Detected:</h2>") {
		t.Errorf("expected heading in html, got %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "<strong>paraben</strong>") {
		t.Errorf("expected bold name in html, got %s", msg.HTML)
	}
	if strings.Contains(msg.HTML, "<b>") {
		t.Errorf("description must be escaped, got %s", msg.HTML)
	}

	empty, err := ReportMessage("a@example.com", &scanner.Report{})
	if err != nil {
		t.Fatalf("ReportMessage: %v", err)
	}
	if empty.Text != "No harmful ingredients detected." {
		t.Errorf("unexpected empty text %q", empty.Text)
	}
}

func TestConfirmationMessage(t *testing.T) {
	msg := ConfirmationMessage("a@example.com", "tok-123")
	if len(msg.To) != 1 || msg.To[0] != "a@example.com" {
		t.Fatalf("unexpected recipients %v", msg.To)
	}
	if !strings.Contains(msg.Text, "tok-123") || !strings.Contains(msg.HTML, "tok-123") {
		t.Fatalf("token missing from message %+v", msg)
	}
}

func TestSendSanitizesSubject(t *testing.T) {
	var c captured
	s := New(Config{Enable: true, Host: "smtp.example.com"})
	s.Transport = capture(&c)

	msg, err := ReportMessage("a@example.com", &scanner.Report{Source: "ünïcode.jpg\r\nBcc: evil@example.com"})
	if err != nil {
		t.Fatalf("ReportMessage: %v", err)
	}
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	headers, _, _ := strings.Cut(c.msg, "\r\n\r\n")
	for _, line := range strings.Split(headers, "\r\n") {
		if strings.HasPrefix(line, "Bcc:") {
			t.Fatalf("subject injected a header:\n%s", headers)
		}
	}
	if !strings.Contains(headers, "Subject: =?utf-8?q?") {
		t.Fatalf("expected Q-encoded subject:\n%s", headers)
	}
	if strings.ContainsAny(headers, "üï") {
		t.Fatalf("raw non-ASCII in headers:\n%s", headers)
	}
}
