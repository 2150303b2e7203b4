package accounts

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/goliatone/go-errors"
)

// EmailMessage is a rendered email ready for transport
type EmailMessage struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers rendered emails. Implementations must be safe for
// concurrent use, command handlers send from goroutines.
type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// SMTPMailer delivers mail through a plain SMTP endpoint using net/smtp.
// When an HTML body is present the payload is a multipart/alternative
// envelope with the text part first.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
}

// NewSMTPMailer creates a mailer for the given host:port. Auth may be nil
// for unauthenticated relays such as a local dev catcher.
func NewSMTPMailer(addr string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{addr: addr, auth: auth}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *EmailMessage) error {
	if msg == nil || msg.To == "" {
		return errors.New("email message requires a recipient", errors.CategoryBadInput)
	}

	payload, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	if err := smtp.SendMail(m.addr, m.auth, msg.From, []string{msg.To}, payload); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"to": msg.To})
	}

	return nil
}

func encodeMessage(msg *EmailMessage) ([]byte, error) {
	var b strings.Builder

	// Subjects are rendered from templates, collapse stray newlines so the
	// header stays a single line.
	subject := strings.Join(strings.Fields(msg.Subject), " ")

	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.TextBody)
		return []byte(b.String()), nil
	}

	var body strings.Builder
	writer := multipart.NewWriter(&body)

	text, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode email text part")
	}
	fmt.Fprint(text, msg.TextBody)

	html, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode email html part")
	}
	fmt.Fprint(html, msg.HTMLBody)

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to finalize email envelope")
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary())
	b.WriteString("\r\n")
	b.WriteString(body.String())

	return []byte(b.String()), nil
}

// LogMailer writes emails to the logger instead of delivering them. Meant
// for development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(ctx context.Context, msg *EmailMessage) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}

	logger.Info("outgoing email to=%s subject=%q\n%s", msg.To, msg.Subject, msg.TextBody)
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = LogMailer{}
)
