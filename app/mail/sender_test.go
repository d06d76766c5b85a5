package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-nengtul/config"
)

func TestNewSenderDrivers(t *testing.T) {
	if s, err := NewSender(config.MailConfig{Driver: "log"}); err != nil {
		t.Fatalf("log driver failed: %v", err)
	} else if _, ok := s.(*LogSender); !ok {
		t.Fatalf("expected LogSender, got %T", s)
	}

	if _, err := NewSender(config.MailConfig{Driver: "smtp"}); err == nil {
		t.Fatalf("expected error without SMTP host")
	}

	s, err := NewSender(config.MailConfig{Driver: "smtp", SMTPHost: "mail.local", SMTPPort: "25"})
	if err != nil {
		t.Fatalf("smtp driver failed: %v", err)
	}
	if smtpSender, ok := s.(*SMTPSender); !ok || smtpSender.addr != "mail.local:25" {
		t.Fatalf("unexpected smtp sender: %#v", s)
	}

	if _, err := NewSender(config.MailConfig{Driver: "pigeon"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSMTPSenderSend(t *testing.T) {
	sender := NewSMTPSender(config.MailConfig{SMTPHost: "mail.local", SMTPPort: "587"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	sender.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := sender.Send(context.Background(), Message{
		From:    "no-reply@nengtul.local",
		To:      "user@example.com",
		Subject: "Verify your account",
		Text:    "code: ABC123",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotAddr != "mail.local:587" || gotFrom != "no-reply@nengtul.local" {
		t.Fatalf("unexpected envelope: %s %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	body := string(gotBody)
	if !strings.Contains(body, "Subject: Verify your account\r\n") || !strings.HasSuffix(body, "\r\n\r\ncode: ABC123") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSMTPSenderSendError(t *testing.T) {
	sender := NewSMTPSender(config.MailConfig{SMTPHost: "mail.local", SMTPPort: "587"})
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	if err := sender.Send(context.Background(), Message{To: "user@example.com"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	sender := NewSMTPSender(config.MailConfig{SMTPHost: "mail.local", SMTPPort: "587"})
	called := false
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, Message{To: "user@example.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("expected no delivery after cancellation")
	}
}
