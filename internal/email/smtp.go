package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"smartfinder_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// NewSender returns an SMTPSender when SMTP is configured, a NoopSender otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

func (s *SMTPSender) newMessage(toEmail, subject, htmlContent string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendLeadNotification(ctx context.Context, toEmail string, lead LeadNotification) error {
	subject, content, err := renderLeadNotification(lead)
	if err != nil {
		return err
	}
	msg, err := s.newMessage(toEmail, subject, content)
	if err != nil {
		return err
	}
	// Sales answers the lead directly.
	if err := msg.ReplyTo(lead.Email); err != nil {
		return fmt.Errorf("smtp reply-to: %w", err)
	}
	return s.send(ctx, msg)
}

func renderLeadNotification(lead LeadNotification) (string, string, error) {
	content, err := renderEmailTemplate("lead_notification.html", leadNotificationEmailData{
		baseEmailData: baseEmailData{
			Title:      "Nouveau lead qualifié",
			Heading:    "Nouveau lead qualifié",
			Subheading: "Ce prospect a terminé le Smart Finder et attend votre appel.",
		},
		Lead: lead,
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectLeadNotificationFmt, lead.FullName(), lead.AppInterest), content, nil
}
