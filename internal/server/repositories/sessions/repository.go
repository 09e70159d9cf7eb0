package sessions

import (
	"context"

	"github.com/love-developer/eras/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error)
	GetByID(ctx context.Context, id string) (*models.UploadSession, error)
	// UpdateProgress persists the new confirmed offset and the accumulated
	// backend part receipts.
	UpdateProgress(ctx context.Context, id string, offset int64, partETags []string) error
	MarkComplete(ctx context.Context, id string, mediaID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
