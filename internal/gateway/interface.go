package gateway

import (
	"context"

	"github.com/silvercare/nas-gateway/internal/models"
)

// GatewayInterface defines the contract for remote asset operations
type GatewayInterface interface {
	ResolveURL(name string) string
	SafeURL(name string) (string, error)
	Upload(ctx context.Context, file models.AssetFile) (*models.OperationResult, error)
	Delete(ctx context.Context, name string) (*models.OperationResult, error)
	Ping(ctx context.Context) error
	Stats() Stats
}
