package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error) {

	etags, err := json.Marshal(s.PartETags)
	if err != nil {
		return nil, fmt.Errorf("marshal etags: %w", err)
	}

	query :=
		`INSERT INTO upload_sessions (id, container_id, file_name, file_type, total_bytes, byte_offset, storage_key, s3_upload_id, part_etags, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id
		 `

	err = r.db.QueryRowContext(ctx, query,
		s.ID, s.ContainerID, s.FileName, s.FileType, s.TotalBytes, s.Offset, s.StorageKey, s.S3UploadID, etags, s.ExpiresAt).Scan(&s.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.UploadSession, error) {
	query :=
		`SELECT id, container_id, file_name, file_type, total_bytes, byte_offset, storage_key, s3_upload_id, part_etags, COALESCE(media_id::text, ''), complete, created_at, expires_at
		 FROM upload_sessions
		 WHERE id = $1
		 `

	s := &models.UploadSession{}
	var etags []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ContainerID, &s.FileName, &s.FileType, &s.TotalBytes, &s.Offset,
		&s.StorageKey, &s.S3UploadID, &etags, &s.MediaID, &s.Complete, &s.CreatedAt, &s.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(etags, &s.PartETags); err != nil {
		return nil, fmt.Errorf("unmarshal etags: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) UpdateProgress(ctx context.Context, id string, offset int64, partETags []string) error {
	etags, err := json.Marshal(partETags)
	if err != nil {
		return fmt.Errorf("marshal etags: %w", err)
	}

	query := `UPDATE upload_sessions SET byte_offset = $2, part_etags = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, offset, etags)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkComplete(ctx context.Context, id string, mediaID string) error {
	query := `UPDATE upload_sessions SET complete = TRUE, media_id = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, mediaID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM upload_sessions WHERE expires_at < now() AND NOT complete`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
