package notifications

import "github.com/silvercare/nas-gateway/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(report *models.AuditReport) error
	SendAlert(alert *models.Alert) error
}
