package accounts

import (
	"bytes"
	"context"
	"strings"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

// Template names looked up in the email template directory
const (
	TemplateActivationSubject    = "activation_subject"
	TemplateActivationBody       = "activation_body"
	TemplateActivationHTML       = "activation_body_html"
	TemplatePasswordResetSubject = "password_reset_subject"
	TemplatePasswordResetBody    = "password_reset_body"
	TemplatePasswordResetHTML    = "password_reset_body_html"
)

// Notifier renders and sends the activation and password reset emails. The
// subject and body are django templates so deployments can override copy
// without touching code. HTML variants are optional, a missing template
// falls back to text only.
type Notifier struct {
	engine *django.Engine
	mailer Mailer
	tokens *OneTimeTokenService
	config Config
	logger Logger
}

// NewNotifier creates a Notifier. The engine must already be loaded.
func NewNotifier(engine *django.Engine, mailer Mailer, tokens *OneTimeTokenService, cfg Config) *Notifier {
	return &Notifier{
		engine: engine,
		mailer: mailer,
		tokens: tokens,
		config: cfg,
		logger: defLogger{},
	}
}

func (n *Notifier) WithLogger(l Logger) *Notifier {
	if l != nil {
		n.logger = l
	}
	return n
}

// SendActivationEmail mints an activation token and mails the link
func (n *Notifier) SendActivationEmail(ctx context.Context, user *User) error {
	return n.send(ctx, user, PurposeActivate, n.config.GetActivationURL(),
		TemplateActivationSubject, TemplateActivationBody, TemplateActivationHTML)
}

// SendPasswordResetEmail mints a reset token and mails the link
func (n *Notifier) SendPasswordResetEmail(ctx context.Context, user *User) error {
	return n.send(ctx, user, PurposePasswordReset, n.config.GetPasswordResetConfirmURL(),
		TemplatePasswordResetSubject, TemplatePasswordResetBody, TemplatePasswordResetHTML)
}

func (n *Notifier) send(ctx context.Context, user *User, purpose TokenPurpose, urlTemplate, subjectTpl, bodyTpl, htmlTpl string) error {
	if user == nil || user.Email == "" {
		return errors.New("cannot email a user without an address", errors.CategoryBadInput)
	}

	token, err := n.tokens.Make(user, purpose)
	if err != nil {
		return err
	}

	data := n.emailContext(user, token, urlTemplate)

	subject, err := n.render(subjectTpl, data)
	if err != nil {
		return err
	}

	body, err := n.render(bodyTpl, data)
	if err != nil {
		return err
	}

	msg := &EmailMessage{
		From:     n.config.GetFromEmail(),
		To:       user.Email,
		Subject:  subject,
		TextBody: body,
	}

	// optional HTML alternative
	if html, err := n.render(htmlTpl, data); err == nil {
		msg.HTMLBody = html
	}

	return n.mailer.Send(ctx, msg)
}

// emailContext builds the variables templates can reference. The url is the
// configured link template with {uid} and {token} placeholders filled in.
func (n *Notifier) emailContext(user *User, token, urlTemplate string) map[string]any {
	uid := EncodeUID(user.ID)

	link := strings.NewReplacer(
		"{uid}", uid,
		"{token}", token,
	).Replace(urlTemplate)

	url := n.config.GetProtocol() + "://" + n.config.GetDomain() + "/" + strings.TrimPrefix(link, "/")

	return map[string]any{
		"user":      user,
		"domain":    n.config.GetDomain(),
		"site_name": n.config.GetSiteName(),
		"protocol":  n.config.GetProtocol(),
		"uid":       uid,
		"token":     token,
		"url":       url,
	}
}

func (n *Notifier) render(name string, data map[string]any) (string, error) {
	var out bytes.Buffer

	if err := n.engine.Render(&out, name, data); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": name})
	}

	return out.String(), nil
}
