package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func sampleReport() *models.AuditReport {
	at := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	return &models.AuditReport{
		GeneratedAt:  at,
		Period:       "hourly",
		TotalRecords: 2,
		FailureCount: 1,
		Records: []models.AuditRecord{
			{ID: "1", Operation: models.OperationUpload, Asset: "lobby.jpg", StatusCode: 200, At: at},
			{ID: "2", Operation: models.OperationDelete, Asset: "old.jpg", StatusCode: 500, Error: "nas delete: store returned status 500", At: at},
		},
		Summary: map[string]interface{}{
			"operations": map[string]int{"upload": 1, "delete": 1},
		},
	}
}

func TestSendReport_NoChannels(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendReport(sampleReport()))
}

func TestSendReport_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, service.SendReport(sampleReport()))

	assert.Equal(t, "MessageCard", received.Type)
	assert.Equal(t, "NAS Gateway Audit - hourly", received.Title)
	assert.Equal(t, "d13438", received.ThemeColor)
	require.Len(t, received.Sections, 2)
	assert.Equal(t, "Recent Failures", received.Sections[1].ActivityTitle)
	assert.Contains(t, received.Sections[1].ActivityText, "old.jpg")
}

func TestSendReport_TeamsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad card"))
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := service.SendReport(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams: Teams webhook returned status 400")
}

func TestSendAlert_Email(t *testing.T) {
	service := NewService(&config.Config{
		NotificationEmail: "ops@example.com",
		SMTPUsername:      "gateway@example.com",
	})

	var sent *gomail.Message
	service.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	err := service.SendAlert(&models.Alert{
		Type:      "critical",
		Title:     "NAS unreachable",
		Message:   "ping failed",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"[CRITICAL] NAS unreachable"}, sent.GetHeader("Subject"))
	assert.Equal(t, []string{"ops@example.com"}, sent.GetHeader("To"))
}

func TestSendAlert_EmailError(t *testing.T) {
	service := NewService(&config.Config{NotificationEmail: "ops@example.com"})
	service.send = func(m *gomail.Message) error { return errors.New("connection refused") }

	err := service.SendAlert(&models.Alert{Type: "critical", Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email: failed to send email: connection refused")
}

func TestBuildEmailText(t *testing.T) {
	service := NewService(&config.Config{})
	text := service.buildEmailText(sampleReport())

	assert.Contains(t, text, "Total Operations: 2")
	assert.Contains(t, text, "Failures: 1")
	assert.Contains(t, text, "Delete Operations: 1")
	assert.Contains(t, text, "1. delete old.jpg")
	assert.NotContains(t, text, "lobby.jpg")
}

func TestBuildEmailHTML(t *testing.T) {
	service := NewService(&config.Config{})
	html, err := service.buildEmailHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, html, "lobby.jpg")
	assert.Contains(t, html, `class="record failed"`)
	assert.Contains(t, html, "<strong>Upload</strong>")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate(10, "short"))
	assert.Equal(t, "abc...", truncate(3, "abcdef"))
}
