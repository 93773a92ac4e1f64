package mail

import (
	"bytes"
	"fmt"
	"text/template"

	"gopkg.in/gomail.v2"

	"github.com/medjobs/leadmarket/internal/entity"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var hotLeadTemplate = template.Must(template.New("hot_lead").Parse(`<h2>New hot lead (score {{.Score}})</h2>
<ul>
  <li>Email: {{.Email}}</li>
  {{if .Name}}<li>Name: {{.Name}}</li>{{end}}
  {{if .Company}}<li>Company: {{.Company}}</li>{{end}}
  {{if .Phone}}<li>Phone: {{.Phone}}</li>{{end}}
  <li>Source: {{.Source}}</li>
  {{if .Role}}<li>Role: {{.Role}}</li>{{end}}
  {{if .Location}}<li>Location: {{.Location}}</li>{{end}}
  <li>Received: {{.CreatedAt.Format "2006-01-02 15:04 MST"}}</li>
</ul>
<p>Lead id: {{.LeadID}}</p>
`))

func NewEmailSender(host string, port int, user, password, to string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     "no-reply@medjobs.example",
		To:       to,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// WithDialer swaps the SMTP transport.
func (s *EmailSender) WithDialer(d Dialer) *EmailSender {
	s.dialer = d
	return s
}

// NotifyHotLead mails the sales inbox about a freshly created high-score lead.
func (s *EmailSender) NotifyHotLead(lead *entity.Lead) error {
	if s.To == "" {
		return nil
	}

	data := HotLeadEmailData{
		LeadID:    lead.ID,
		Email:     lead.Email,
		Name:      lead.Name,
		Company:   lead.Company,
		Phone:     lead.Phone,
		Source:    lead.Source,
		Score:     lead.Score,
		Location:  lead.Metadata.Location,
		CreatedAt: lead.CreatedAt,
	}
	if calc := lead.CalculationData; calc != nil {
		data.Role = calc.Role
		if data.Location == "" {
			data.Location = calc.Location
		}
	}

	var body bytes.Buffer
	if err := hotLeadTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render hot lead email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("Hot lead: %s (score %d)", lead.Email, lead.Score))
	m.SetBody("text/html", body.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send hot lead email: %w", err)
	}
	return nil
}
