package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/drishti-ai/drishti/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface for the durable state: the
// certificate hash index and API keys. Analysis payloads and results
// never reach this layer.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateCertificate(ctx context.Context, cert *models.Certificate) error
	GetCertificateByHash(ctx context.Context, hash string) (*models.Certificate, error)
}
