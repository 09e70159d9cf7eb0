package media

import (
	"context"

	"github.com/love-developer/eras/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.MediaRecord) (*models.MediaRecord, error)
	GetByID(ctx context.Context, id string) (*models.MediaRecord, error)
	MarkReady(ctx context.Context, id string) error
	// Delete removes the record and returns it so the caller can clean up
	// the stored object. A missing row yields common.ErrorNotFound.
	Delete(ctx context.Context, id string) (*models.MediaRecord, error)
}
