// Package draft persists capsule drafts to a local SQLite database so an
// interrupted composing session can be restored later. Only serializable
// metadata is stored; raw media bytes never enter the snapshot.
package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/love-developer/eras/internal/client/draft/migrations"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/dbx"
)

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenStore opens (creating if needed) the draft database at dsn and
// returns a store bound to userID.
func OpenStore(ctx context.Context, dsn string, userID string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return NewStore(db, userID), nil
}

// Store reads and writes one user's draft snapshot.
type Store struct {
	db     dbx.DBTX
	userID string

	// fileExists is swapped in tests.
	fileExists func(path string) bool
}

func NewStore(db dbx.DBTX, userID string) *Store {
	return &Store{
		db:     db,
		userID: userID,
		fileExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Save upserts the snapshot. Media entries are stored as metadata only, so
// saving is cheap regardless of how large the underlying files are.
func (s *Store) Save(ctx context.Context, snap *models.DraftSnapshot) error {
	snap.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (user_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, s.userID, string(payload), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Restore loads the saved snapshot, or common.ErrorNotFound if none exists.
func (s *Store) Restore(ctx context.Context) (*models.DraftSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM drafts WHERE user_id = ?`, s.userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	var snap models.DraftSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &snap, nil
}

// Clear removes the saved draft. Clearing an absent draft is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = ?`, s.userID)
	if err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// Rehydrate turns restored snapshot media back into canonical media items.
// Items whose original bytes are no longer retrievable (a local source file
// that has since vanished, or an interrupted upload with no durable URL)
// come back as non-reuploadable placeholders: they render as already
// uploaded and are never re-enqueued.
func (s *Store) Rehydrate(snap *models.DraftSnapshot) []models.MediaItem {
	items := make([]models.MediaItem, 0, len(snap.Media))
	for _, m := range snap.Media {
		item := models.MediaItem{
			ID:               m.ID,
			Name:             m.Name,
			MimeType:         m.MimeType,
			SizeBytes:        m.SizeBytes,
			URL:              m.URL,
			Thumbnail:        m.Thumbnail,
			Origin:           m.Origin,
			AlreadyPersisted: m.AlreadyPersisted,
			LinkedVaultID:    m.LinkedVaultID,
			LocalPath:        m.LocalPath,
		}
		if !item.AlreadyPersisted && (item.LocalPath == "" || !s.fileExists(item.LocalPath)) {
			item.NonReuploadable = true
			item.LocalPath = ""
		}
		items = append(items, item)
	}
	return items
}
