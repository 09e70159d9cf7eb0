package capsules

import (
	"context"

	"github.com/love-developer/eras/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Capsule) (*models.Capsule, error)
	LinkMedia(ctx context.Context, capsuleID, mediaID string) error
}
