package notify

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dial func() (gomail.SendCloser, error)
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	d := gomail.NewDialer(host, port, username, password)
	return &SMTPMailer{dial: d.Dial}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", msg.From)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	} else {
		gm.SetBody("text/html", msg.HTML)
	}
	for _, a := range msg.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		gm.Attach(a.Filename, settings...)
	}

	s, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer s.Close()

	if err := gomail.Send(s, gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
