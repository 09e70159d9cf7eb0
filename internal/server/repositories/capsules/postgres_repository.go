package capsules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/love-developer/eras/internal/dbx"
	"github.com/love-developer/eras/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Capsule) (*models.Capsule, error) {

	recipients, err := json.Marshal(c.Recipients)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}

	query :=
		`INSERT INTO capsules (id, title, message, theme, deliver_at, recipients)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	err = r.db.QueryRowContext(ctx, query,
		c.ID, c.Title, c.Message, c.Theme, c.DeliverAt, recipients).Scan(&c.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) LinkMedia(ctx context.Context, capsuleID, mediaID string) error {
	query := `INSERT INTO capsule_media (capsule_id, media_id) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, capsuleID, mediaID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
