package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/silvercare/nas-gateway/internal/gateway"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// Auditor is the part of the audit service exposed over HTTP
type Auditor interface {
	Flush(ctx context.Context) error
	GetMetrics() string
}

// Handler serves the asset API
type Handler struct {
	gateway        gateway.GatewayInterface
	auditor        Auditor
	maxUploadBytes int64
}

// NewHandler creates the API handler
func NewHandler(gw gateway.GatewayInterface, auditor Auditor, maxUploadBytes int64) *Handler {
	return &Handler{
		gateway:        gw,
		auditor:        auditor,
		maxUploadBytes: maxUploadBytes,
	}
}

// Router returns the routes of the API
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.health).Methods("GET")
	router.HandleFunc("/metrics", h.metrics).Methods("GET")
	router.HandleFunc("/audit/flush", h.flush).Methods("POST")

	router.HandleFunc("/urls/{name:.+}", h.resolve).Methods("GET")

	router.HandleFunc("/assets", h.upload).Methods("POST")
	router.HandleFunc("/assets/{name:.+}", h.redirect).Methods("GET")
	router.HandleFunc("/assets/{name:.+}", h.delete).Methods("DELETE")

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.auditor.GetMetrics()))
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := h.auditor.Flush(ctx); err != nil {
			logrus.Errorf("Manual audit flush failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Audit flush triggered"})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	url, err := h.gateway.SafeURL(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"name": name, "url": url})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	url, err := h.gateway.SafeURL(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	result, err := h.gateway.Upload(r.Context(), models.AssetFile{
		Name:        name,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	writeResult(w, result)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.gateway.Delete(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	writeResult(w, result)
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrInvalidAssetName) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  transportErr.Error(),
			"status": transportErr.StatusCode,
		})
		return
	}

	writeError(w, http.StatusInternalServerError, err)
}

// writeResult passes the store's answer through unchanged
func writeResult(w http.ResponseWriter, result *models.OperationResult) {
	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}
