package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/silvercare/nas-gateway/internal/gateway"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/silvercare/nas-gateway/internal/notifications"
	"github.com/silvercare/nas-gateway/internal/storage"
	"github.com/sirupsen/logrus"
)

// JournalPrefix is the archive folder audit journals are written to
const JournalPrefix = "audit/"

// Service keeps the audit journal of gateway write operations
type Service struct {
	config              *config.Config
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	gateway             gateway.GatewayInterface

	mu      sync.RWMutex
	journal []models.AuditRecord
	metrics *Metrics
}

// Ensure Service can be attached to the gateway
var _ gateway.Recorder = (*Service)(nil)

// Metrics holds audit metrics
type Metrics struct {
	Recorded        int            `json:"recorded"`
	Failed          int            `json:"failed"`
	Pending         int            `json:"pending"`
	OperationCounts map[string]int `json:"operation_counts"`
	LastFlush       time.Time      `json:"last_flush"`
	LastFlushFile   string         `json:"last_flush_file,omitempty"`
	LastProbe       time.Time      `json:"last_probe"`
	StoreReachable  bool           `json:"store_reachable"`
	Gateway         gateway.Stats  `json:"gateway"`
}

// NewService creates a new audit service
func NewService(cfg *config.Config, storage storage.StorageInterface, notificationService notifications.NotificationInterface, gw gateway.GatewayInterface) *Service {
	return &Service{
		config:              cfg,
		storage:             storage,
		notificationService: notificationService,
		gateway:             gw,
		metrics: &Metrics{
			OperationCounts: make(map[string]int),
		},
	}
}

// Record appends a record to the journal
func (s *Service) Record(record models.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(s.journal, record)
	s.metrics.Recorded++
	s.metrics.OperationCounts[record.Operation]++
	if record.Failed() {
		s.metrics.Failed++
	}
}

// Flush archives the pending journal and reports on it
func (s *Service) Flush(ctx context.Context) error {
	start := time.Now()
	records := s.drain()

	s.mu.RLock()
	lastFlush := s.metrics.LastFlush
	s.mu.RUnlock()

	if len(records) == 0 {
		logrus.Debug("Audit journal empty, nothing to flush")
		return nil
	}

	logrus.Infof("Flushing %d audit records", len(records))

	filename, err := s.storeJournal(ctx, records, start)
	if err != nil {
		s.restore(records)
		logrus.Errorf("Failed to store audit journal: %v", err)
		return err
	}

	s.mu.Lock()
	s.metrics.LastFlush = start
	s.metrics.LastFlushFile = filename
	s.mu.Unlock()

	report := s.generateReport(records, periodSince(lastFlush))
	if report.FailureCount > 0 || s.config.AuditReportAlways {
		if err := s.notificationService.SendReport(report); err != nil {
			logrus.Errorf("Failed to send audit report: %v", err)
			return err
		}
	}

	logrus.Infof("Audit flush completed in %v", time.Since(start))
	return nil
}

// Probe checks that the store is reachable and alerts when it is not
func (s *Service) Probe(ctx context.Context) error {
	err := s.gateway.Ping(ctx)

	s.mu.Lock()
	wasReachable := s.metrics.StoreReachable || s.metrics.LastProbe.IsZero()
	s.metrics.LastProbe = time.Now()
	s.metrics.StoreReachable = err == nil
	s.mu.Unlock()

	if err == nil {
		logrus.Debug("NAS store reachable")
		return nil
	}

	logrus.Errorf("NAS store probe failed: %v", err)

	// Only alert on the transition to unreachable
	if !wasReachable {
		return err
	}

	alert := &models.Alert{
		ID:        uuid.NewString(),
		Type:      "critical",
		Title:     "NAS store unreachable",
		Message:   fmt.Sprintf("The asset gateway could not reach the NAS: %v", err),
		CreatedAt: time.Now(),
	}
	if notifyErr := s.notificationService.SendAlert(alert); notifyErr != nil {
		logrus.Errorf("Failed to send probe alert: %v", notifyErr)
	}

	return err
}

// Pending returns a copy of the unflushed journal
func (s *Service) Pending() []models.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditRecord(nil), s.journal...)
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	metrics := *s.metrics
	metrics.Pending = len(s.journal)
	metrics.OperationCounts = make(map[string]int, len(s.metrics.OperationCounts))
	for op, count := range s.metrics.OperationCounts {
		metrics.OperationCounts[op] = count
	}
	s.mu.RUnlock()

	if s.gateway != nil {
		metrics.Gateway = s.gateway.Stats()
	}

	data, _ := json.MarshalIndent(metrics, "", "  ")
	return string(data)
}

func periodSince(lastFlush time.Time) string {
	if lastFlush.IsZero() {
		return "since startup"
	}
	return "since " + lastFlush.UTC().Format("2006-01-02 15:04 UTC")
}

func (s *Service) drain() []models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.journal
	s.journal = nil
	return records
}

func (s *Service) restore(records []models.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(records, s.journal...)
}

func (s *Service) storeJournal(ctx context.Context, records []models.AuditRecord, at time.Time) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit records: %w", err)
	}

	// Flushes can land in the same second; the id keeps each journal distinct
	filename := fmt.Sprintf("%saudit-%s-%s.json", JournalPrefix, at.UTC().Format("2006-01-02-15-04-05"), uuid.NewString())
	if err := s.storage.Store(ctx, filename, data); err != nil {
		return "", err
	}

	return filename, nil
}

func (s *Service) generateReport(records []models.AuditRecord, period string) *models.AuditReport {
	report := &models.AuditReport{
		GeneratedAt:  time.Now(),
		Period:       period,
		TotalRecords: len(records),
		Records:      records,
		Summary:      make(map[string]interface{}),
	}

	operationCount := make(map[string]int)
	failureCount := make(map[string]int)
	assetCount := make(map[string]int)

	for _, record := range records {
		operationCount[record.Operation]++
		assetCount[record.Asset]++
		if record.Failed() {
			report.FailureCount++
			failureCount[record.Operation]++
		}
	}

	report.Summary["operations"] = operationCount
	report.Summary["failures"] = failureCount
	report.Summary["top_assets"] = s.getTopAssets(assetCount)

	return report
}

func (s *Service) getTopAssets(assetCount map[string]int) []string {
	type assetScore struct {
		asset string
		count int
	}

	var scores []assetScore
	for asset, count := range assetCount {
		scores = append(scores, assetScore{asset, count})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].count != scores[j].count {
			return scores[i].count > scores[j].count
		}
		return scores[i].asset < scores[j].asset
	})

	var topAssets []string
	for i, score := range scores {
		if i >= 5 { // Top 5 assets
			break
		}
		topAssets = append(topAssets, fmt.Sprintf("%s (%d)", score.asset, score.count))
	}

	return topAssets
}
