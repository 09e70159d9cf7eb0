package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/dbx"
	"github.com/love-developer/eras/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.MediaRecord) (*models.MediaRecord, error) {

	query :=
		`INSERT INTO media (id, container_id, name, mime_type, size_bytes, storage_key, public_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.ContainerID, m.Name, m.MimeType, m.SizeBytes, m.StorageKey, m.PublicURL, m.Status).Scan(&m.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.MediaRecord, error) {
	query :=
		`SELECT id, container_id, name, mime_type, size_bytes, storage_key, public_url, status, created_at FROM media
		 WHERE id = $1
		 `

	m := &models.MediaRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.ContainerID, &m.Name, &m.MimeType, &m.SizeBytes, &m.StorageKey, &m.PublicURL, &m.Status, &m.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) MarkReady(ctx context.Context, id string) error {
	query := `UPDATE media SET status = 'ready' WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (*models.MediaRecord, error) {
	query :=
		`DELETE FROM media
		 WHERE id = $1
		 RETURNING id, container_id, name, mime_type, size_bytes, storage_key, public_url, status
		 `

	m := &models.MediaRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.ContainerID, &m.Name, &m.MimeType, &m.SizeBytes, &m.StorageKey, &m.PublicURL, &m.Status)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}
