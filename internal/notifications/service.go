package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	send   func(m *gomail.Message) error
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second).SetLogger(logrus.StandardLogger()),
	}
	s.send = s.dialAndSend
	return s
}

// SendReport sends an audit report via configured notification channels
func (s *Service) SendReport(report *models.AuditReport) error {
	subject := fmt.Sprintf("NAS Gateway Audit - %d operations, %d failed", report.TotalRecords, report.FailureCount)

	return s.deliver("report",
		func() error { return s.postToTeams(s.buildTeamsReport(report)) },
		func() error {
			html, err := s.buildEmailHTML(report)
			if err != nil {
				return fmt.Errorf("failed to build email HTML: %w", err)
			}
			return s.sendEmail(subject, s.buildEmailText(report), html)
		},
	)
}

// SendAlert sends an urgent alert notification
func (s *Service) SendAlert(alert *models.Alert) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Type), alert.Title)
	text := fmt.Sprintf("%s\n\n%s\nRaised: %s\n", alert.Title, alert.Message, alert.CreatedAt.Format("2006-01-02 15:04:05 UTC"))

	return s.deliver("alert",
		func() error {
			return s.postToTeams(&TeamsMessage{
				Type:       "MessageCard",
				Context:    "https://schema.org/extensions",
				ThemeColor: "d13438",
				Title:      subject,
				Text:       alert.Message,
			})
		},
		func() error { return s.sendEmail(subject, text, "") },
	)
}

func (s *Service) deliver(kind string, teams, email func() error) error {
	var errors []string

	if s.config.TeamsWebhookURL == "" && s.config.NotificationEmail == "" {
		logrus.Infof("No notification channel configured, %s not sent", kind)
		return nil
	}

	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent %s to Teams", kind)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send email %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent %s via email", kind)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsReport(report *models.AuditReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("NAS Gateway Audit - %s", report.Period),
		Text:    fmt.Sprintf("%d operations recorded, %d failed", report.TotalRecords, report.FailureCount),
	}
	if report.FailureCount > 0 {
		message.ThemeColor = "d13438"
	}

	facts := []TeamsFact{
		{Name: "Total Operations", Value: fmt.Sprintf("%d", report.TotalRecords)},
		{Name: "Failures", Value: fmt.Sprintf("%d", report.FailureCount)},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	if ops, ok := report.Summary["operations"].(map[string]int); ok {
		for _, op := range sortedKeys(ops) {
			facts = append(facts, TeamsFact{Name: fmt.Sprintf("%s Operations", titleCase(op)), Value: fmt.Sprintf("%d", ops[op])})
		}
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	var failures []string
	for _, record := range report.Records {
		if !record.Failed() {
			continue
		}
		if len(failures) == 5 {
			break
		}
		failures = append(failures, fmt.Sprintf("**%s %s** - %s (%s)",
			record.Operation, record.Asset, record.Error, record.At.Format("Jan 2 15:04")))
	}

	if len(failures) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Recent Failures",
			ActivityText:  strings.Join(failures, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	return d.DialAndSend(m)
}

const reportTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>NAS Gateway Audit</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #2b6a4f; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .record { border-left: 4px solid #107c10; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .failed { border-left-color: #d13438; }
        .meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>NAS Gateway Audit</h1>
        <p>{{.Period}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Operations:</strong> {{.TotalRecords}}</p>
        <p><strong>Failures:</strong> {{.FailureCount}}</p>
    </div>

    {{if .Records}}
    <h2>Operations</h2>
    {{range $index, $record := .Records}}
        {{if lt $index 20}}
        <div class="record{{if $record.Error}} failed{{end}}">
            <div><strong>{{$record.Operation | title}}</strong> {{$record.Asset}}</div>
            <div class="meta">
                {{$record.At.Format "Jan 2, 2006 15:04:05"}} | status {{$record.StatusCode}} | {{$record.Duration}}
            </div>
            {{if $record.Error}}<p>{{$record.Error | truncate 200}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the NAS asset gateway.</small></p>
</body>
</html>
`

func (s *Service) buildEmailHTML(report *models.AuditReport) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{
		"title":    titleCase,
		"truncate": truncate,
	}).Parse(reportTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.AuditReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("NAS Gateway Audit - %s\n", report.Period))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Operations: %d\n", report.TotalRecords))
	text.WriteString(fmt.Sprintf("Failures: %d\n", report.FailureCount))

	if ops, ok := report.Summary["operations"].(map[string]int); ok {
		for _, op := range sortedKeys(ops) {
			text.WriteString(fmt.Sprintf("%s Operations: %d\n", titleCase(op), ops[op]))
		}
	}

	var failed []models.AuditRecord
	for _, record := range report.Records {
		if record.Failed() {
			failed = append(failed, record)
		}
	}

	if len(failed) > 0 {
		text.WriteString("\nFAILURES\n")
		text.WriteString("========\n")

		limit := 10
		if len(failed) < limit {
			limit = len(failed)
		}

		for i := 0; i < limit; i++ {
			record := failed[i]
			text.WriteString(fmt.Sprintf("\n%d. %s %s\n", i+1, record.Operation, record.Asset))
			text.WriteString(fmt.Sprintf("   Status: %d | At: %s\n", record.StatusCode, record.At.Format("Jan 2, 2006 15:04:05")))
			text.WriteString(fmt.Sprintf("   Error: %s\n", truncate(200, record.Error)))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the NAS asset gateway.\n")

	return text.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(length int, s string) string {
	if len(s) <= length {
		return s
	}
	return s[:length] + "..."
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
