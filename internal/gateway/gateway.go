package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// StoreConfig describes the remote store. It is built once at process start
// and never changes afterwards.
type StoreConfig struct {
	BaseURL    string
	PathPrefix string
	Username   string
	Password   string
	Timeout    time.Duration // zero leaves the transport default in place
}

func (c StoreConfig) hasCredentials() bool {
	return c.Username != "" || c.Password != ""
}

// Recorder receives an audit record for every upload and delete
type Recorder interface {
	Record(record models.AuditRecord)
}

// Stats holds operation counters since process start
type Stats struct {
	Resolves int64 `json:"resolves"`
	Uploads  int64 `json:"uploads"`
	Deletes  int64 `json:"deletes"`
	Failures int64 `json:"failures"`
}

// Gateway talks to the NAS over HTTP
type Gateway struct {
	store    StoreConfig
	client   *resty.Client
	recorder Recorder

	resolves atomic.Int64
	uploads  atomic.Int64
	deletes  atomic.Int64
	failures atomic.Int64
}

// Ensure Gateway implements GatewayInterface
var _ GatewayInterface = (*Gateway)(nil)

// New creates a gateway for the given store
func New(store StoreConfig) *Gateway {
	client := resty.New().SetLogger(logrus.StandardLogger())
	if store.Timeout > 0 {
		client.SetTimeout(store.Timeout)
	}

	return &Gateway{
		store:  store,
		client: client,
	}
}

// SetRecorder attaches an audit recorder. It must be called before the
// gateway is used concurrently.
func (g *Gateway) SetRecorder(recorder Recorder) {
	g.recorder = recorder
}

// ResolveURL returns the public URL of an asset. It never touches the network
// and never fails; a bad configuration just yields a bad URL.
func (g *Gateway) ResolveURL(name string) string {
	g.resolves.Inc()
	return g.store.BaseURL + g.store.PathPrefix + "/" + escapeName(name)
}

// SafeURL is ResolveURL for names that passed ValidateName
func (g *Gateway) SafeURL(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return g.ResolveURL(name), nil
}

// Upload posts the file to the store as multipart field "file" and returns
// the store's response body unchanged.
func (g *Gateway) Upload(ctx context.Context, file models.AssetFile) (*models.OperationResult, error) {
	if err := ValidateName(file.Name); err != nil {
		logrus.Warnf("Refusing to upload %q: %v", file.Name, err)
		return nil, err
	}
	g.uploads.Inc()

	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Content)
	}

	endpoint := g.store.BaseURL + "/upload"
	start := time.Now()

	resp, err := g.request(ctx).
		SetMultipartField("file", file.Name, contentType, bytes.NewReader(file.Content)).
		Post(endpoint)

	return g.complete(models.OperationUpload, file.Name, endpoint, len(file.Content), start, resp, err)
}

// Delete removes an asset from the store. Deleting a missing asset is left to
// the store's own semantics.
func (g *Gateway) Delete(ctx context.Context, name string) (*models.OperationResult, error) {
	if err := ValidateName(name); err != nil {
		logrus.Warnf("Refusing to delete %q: %v", name, err)
		return nil, err
	}
	g.deletes.Inc()

	endpoint := g.store.BaseURL + "/delete/" + escapeName(name)
	start := time.Now()

	resp, err := g.request(ctx).Delete(endpoint)

	return g.complete(models.OperationDelete, name, endpoint, 0, start, resp, err)
}

// Ping checks that the store answers at its base address
func (g *Gateway) Ping(ctx context.Context) error {
	if g.store.BaseURL == "" {
		return &TransportError{Op: "ping", Err: fmt.Errorf("store base URL is not configured")}
	}

	resp, err := g.request(ctx).Get(g.store.BaseURL)
	if err != nil {
		return &TransportError{Op: "ping", URL: g.store.BaseURL, Err: err}
	}

	if resp.StatusCode() >= http.StatusInternalServerError {
		return &TransportError{Op: "ping", URL: g.store.BaseURL, StatusCode: resp.StatusCode(), Body: resp.Body()}
	}

	return nil
}

// Stats returns a snapshot of the operation counters
func (g *Gateway) Stats() Stats {
	return Stats{
		Resolves: g.resolves.Load(),
		Uploads:  g.uploads.Load(),
		Deletes:  g.deletes.Load(),
		Failures: g.failures.Load(),
	}
}

func (g *Gateway) request(ctx context.Context) *resty.Request {
	req := g.client.R().SetContext(ctx)
	if g.store.hasCredentials() {
		req.SetBasicAuth(g.store.Username, g.store.Password)
	}
	return req
}

func (g *Gateway) complete(op, name, endpoint string, size int, start time.Time, resp *resty.Response, err error) (*models.OperationResult, error) {
	record := models.AuditRecord{
		ID:        uuid.NewString(),
		Operation: op,
		Asset:     name,
		Bytes:     size,
		Duration:  time.Since(start),
		At:        start.UTC(),
	}

	var result *models.OperationResult
	switch {
	case err != nil:
		err = &TransportError{Op: op, URL: endpoint, Err: err}
	case !resp.IsSuccess():
		record.StatusCode = resp.StatusCode()
		err = &TransportError{Op: op, URL: endpoint, StatusCode: resp.StatusCode(), Body: resp.Body()}
	default:
		record.StatusCode = resp.StatusCode()
		result = &models.OperationResult{
			Operation:   op,
			Asset:       name,
			StatusCode:  resp.StatusCode(),
			ContentType: resp.Header().Get("Content-Type"),
			Body:        resp.Body(),
		}
	}

	if err != nil {
		g.failures.Inc()
		record.Error = err.Error()
		logrus.WithFields(logrus.Fields{
			"operation": op,
			"asset":     name,
			"status":    record.StatusCode,
		}).Errorf("Error during NAS %s: %v", op, err)
	} else {
		logrus.Debugf("NAS %s of %s completed with status %d in %v", op, name, record.StatusCode, record.Duration)
	}

	if g.recorder != nil {
		g.recorder.Record(record)
	}

	return result, err
}
