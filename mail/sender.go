package mail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGridSender(apiKey, from string) (*SendGridSender, error) {
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(addr.Name, addr.Address),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, job Job) error {
	msg := sgmail.NewSingleEmail(s.from, job.Subject, sgmail.NewEmail("", job.To), job.Text, job.HTML)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, job Job) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{job.To},
		Subject: job.Subject,
		Html:    job.HTML,
		Text:    job.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	s := &SMTPSender{addr: host + ":" + strconv.Itoa(port), from: from}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, password, host)
	}
	return s
}

func (s *SMTPSender) Send(_ context.Context, job Job) error {
	from, err := netmail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	msg, err := buildMessage(from.String(), job)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, from.Address, []string{job.To}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage renders job as a multipart/alternative MIME message.
func buildMessage(from string, job Job) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ ctype, content string }{
		{"text/plain", job.Text},
		{"text/html", job.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {part.ctype + `; charset="UTF-8"`},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", job.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", job.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// LogSender writes messages to the process log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, job Job) error {
	log.Printf("mail job=%s to=%s subject=%q\n%s", job.ID, job.To, job.Subject, job.Text)
	return nil
}
