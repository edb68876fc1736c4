package email

import "context"

// LeadNotification is what sales needs to call a qualified lead back.
type LeadNotification struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	AppInterest    string
	Category       string
	RestaurantName string
	Interests      []string
}

// FullName joins first and last name.
func (n LeadNotification) FullName() string {
	if n.LastName == "" {
		return n.FirstName
	}
	return n.FirstName + " " + n.LastName
}

type Sender interface {
	SendLeadNotification(ctx context.Context, toEmail string, lead LeadNotification) error
}

// NoopSender drops every message. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendLeadNotification(ctx context.Context, toEmail string, lead LeadNotification) error {
	return nil
}
