package models

import "time"

// Operation names used in results and audit records
const (
	OperationUpload = "upload"
	OperationDelete = "delete"
)

// AssetFile is a file handed to the gateway for upload
type AssetFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
}

// OperationResult is what the remote store answered to a write operation
type OperationResult struct {
	Operation   string `json:"operation"`
	Asset       string `json:"asset"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"` // store payload, verbatim
}

// AuditRecord describes a single gateway write operation
type AuditRecord struct {
	ID         string        `json:"id"`
	Operation  string        `json:"operation"`
	Asset      string        `json:"asset"`
	StatusCode int           `json:"status_code"` // 0 when the store was never reached
	Bytes      int           `json:"bytes,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	At         time.Time     `json:"at"`
}

// Failed reports whether the operation did not complete successfully
func (r AuditRecord) Failed() bool {
	return r.Error != ""
}

// AuditReport summarises a flushed batch of audit records
type AuditReport struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	Period       string                 `json:"period"`
	TotalRecords int                    `json:"total_records"`
	FailureCount int                    `json:"failure_count"`
	Records      []AuditRecord          `json:"records"`
	Summary      map[string]interface{} `json:"summary"`
}

// Alert represents an urgent notification
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "critical", "urgent", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
