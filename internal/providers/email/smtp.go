package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrNoRecipients = errors.New("email_no_recipients")

var defaultSubjects = map[string]string{
	"ticket_escalation": "Escalated support ticket",
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	return smtp.SendMail(addr, auth, p.cfg.From, to, buildMessage(p.cfg.From, to, subject, htmlBody))
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}

// Render executes the named template. The subject comes from data["subject"]
// when present, otherwise from the template's default.
func Render(templateName string, data map[string]any) (string, string, error) {
	tmpl := templates.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("email template %q not found", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject, _ := data["subject"].(string)
	if subject == "" {
		subject = defaultSubjects[templateName]
	}
	if subject == "" {
		subject = "Notification from Switchboard"
	}
	return subject, body.String(), nil
}

func buildMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + strings.NewReplacer("\r", "", "\n", "").Replace(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
