// Package mailer renders and sends transactional email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"storefront/config"
	"storefront/internal/util"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Template names
const (
	TemplateOTP            = "otp"
	TemplateOrderAdmin     = "order_admin"
	TemplateOrderCustomer  = "order_customer"
	TemplateDeliveryStatus = "delivery_status"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var funcs = map[string]any{
	"money": func(v float64) string { return fmt.Sprintf("₹%.2f", v) },
}

// Credentials override the configured SMTP login.
type Credentials struct {
	Username string
	Password string
}

// CredentialsProvider returns mailbox credentials; ok is false when none are configured.
type CredentialsProvider func(ctx context.Context) (creds Credentials, ok bool, err error)

type Sender struct {
	cfg         config.MailConfig
	html        *htmltemplate.Template
	text        *texttemplate.Template
	credentials CredentialsProvider
	logger      *zap.Logger
	now         func() time.Time
	send        func(d *gomail.Dialer, m ...*gomail.Message) error
}

func NewSender(cfg config.MailConfig) (*Sender, error) {
	html, err := htmltemplate.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	text, err := texttemplate.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}

	return &Sender{
		cfg:    cfg,
		html:   html,
		text:   text,
		logger: util.ComponentLogger("mailer"),
		now:    time.Now,
		send: func(d *gomail.Dialer, m ...*gomail.Message) error {
			return d.DialAndSend(m...)
		},
	}, nil
}

// UseCredentials makes the sender authenticate with credentials from provider
// when it reports any.
func (s *Sender) UseCredentials(provider CredentialsProvider) {
	s.credentials = provider
}

// Render executes the html and plain variants of a template.
func (s *Sender) Render(name string, data map[string]any) (string, string, error) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["StoreName"]; !ok {
		data["StoreName"] = s.cfg.StoreName
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = s.now().Year()
	}

	var html, plain bytes.Buffer
	if err := s.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", fmt.Errorf("render html %s: %w", name, err)
	}
	if err := s.text.ExecuteTemplate(&plain, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("render plain %s: %w", name, err)
	}
	return html.String(), plain.String(), nil
}

// Send renders template with data and delivers it to every recipient.
func (s *Sender) Send(ctx context.Context, to []string, subject, template string, data map[string]any) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients for %s", template)
	}

	htmlBody, plainBody, err := s.Render(template, data)
	if err != nil {
		util.EmailsSentTotal.WithLabelValues(template, "render_error").Inc()
		return err
	}

	username, password := s.cfg.User, s.cfg.Password
	if s.credentials != nil {
		creds, ok, err := s.credentials(ctx)
		if err != nil {
			return fmt.Errorf("failed to load mail credentials: %w", err)
		}
		if ok {
			username, password = creds.Username, creds.Password
		}
	}

	from := s.cfg.From
	if from == "" {
		from = username
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(from, s.cfg.StoreName))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, username, password)
	d.SSL = s.cfg.Port == 465

	if err := s.send(d, m); err != nil {
		util.EmailsSentTotal.WithLabelValues(template, "error").Inc()
		s.logger.Error("Failed to send email", zap.String("template", template), zap.Int("recipients", len(to)), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}

	util.EmailsSentTotal.WithLabelValues(template, "sent").Inc()
	s.logger.Info("Email sent", zap.String("template", template), zap.Int("recipients", len(to)))
	return nil
}
