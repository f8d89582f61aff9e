package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type RecipientSource interface {
	ListEmails(ctx context.Context) ([]string, error)
}

type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type MailerConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	FrontendURL string
}

// Mailer sends HTML mail over SMTP. Admin recipients are passed only in the
// envelope, so they never see each other's addresses.
type Mailer struct {
	addr        string
	auth        smtp.Auth
	from        string
	frontendURL string
	recipients  RecipientSource
	send        SendFunc
}

func NewMailer(cfg MailerConfig, recipients RecipientSource) *Mailer {
	var a smtp.Auth
	if cfg.User != "" {
		a = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:        a,
		from:        cfg.From,
		frontendURL: cfg.FrontendURL,
		recipients:  recipients,
		send:        smtp.SendMail,
	}
}

var templates = template.Must(template.New("mail").Parse(`
{{define "order.created"}}<h2>New order {{.OrderID}}</h2>
<p><strong>{{.CustomerName}}</strong> ({{.CustomerEmail}}{{if .CustomerPhone}}, {{.CustomerPhone}}{{end}})</p>
<table border="1" cellpadding="4"><tr><th>Item</th><th>Size</th><th>Qty</th><th>Price</th></tr>
{{range .Lines}}<tr><td>{{.Title}}</td><td>{{.Size}}</td><td>{{.Quantity}}</td><td>{{.Price}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{.TotalAmount}}</strong></p>{{end}}
{{define "order.paid"}}<h2>Payment received for {{.OrderID}}</h2>
<p>{{.CustomerName}} ({{.CustomerEmail}}) paid {{.TotalAmount}}.</p>{{end}}
{{define "admin.invited"}}<p>Hello {{.Name}},</p>
<p>You have been added as an administrator. Sign in at <a href="{{.URL}}">{{.URL}}</a>.</p>{{end}}
{{define "upload.report"}}<p>Your image upload finished with status <strong>{{.Status}}</strong>.</p>
{{if .URL}}<p>Report: <a href="{{.URL}}">{{.URL}}</a></p>{{end}}{{end}}
`))

var subjects = map[Kind]string{
	KindOrderCreated: "New order received",
	KindOrderPaid:    "Order payment confirmed",
	KindAdminInvited: "You're invited as an admin",
	KindUploadReport: "Image upload report",
}

func (m *Mailer) Notify(ctx context.Context, e Event) error {
	subject, ok := subjects[e.Kind]
	if !ok {
		return nil
	}

	var to []string
	switch e.Kind {
	case KindOrderCreated, KindOrderPaid:
		emails, err := m.recipients.ListEmails(ctx)
		if err != nil {
			return fmt.Errorf("load recipients: %w", err)
		}
		to = emails
	default:
		if e.Recipient != "" {
			to = []string{e.Recipient}
		}
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}

	if e.Kind == KindAdminInvited && e.URL == "" {
		e.URL = m.frontendURL
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(e.Kind), e); err != nil {
		return fmt.Errorf("render %s: %w", e.Kind, err)
	}

	msg := buildMessage(m.from, subject, body.String(), e.OccurredAt)
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.send(m.addr, m.auth, m.from, to, msg)
}

func buildMessage(from, subject, html string, at time.Time) []byte {
	if at.IsZero() {
		at = time.Now()
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + from + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
