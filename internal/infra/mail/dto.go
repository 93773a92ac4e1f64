package mail

import "time"

// HotLeadEmailData feeds the sales alert template.
type HotLeadEmailData struct {
	LeadID    string
	Email     string
	Name      string
	Company   string
	Phone     string
	Source    string
	Score     int
	Role      string
	Location  string
	CreatedAt time.Time
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string

	dialer Dialer
}
