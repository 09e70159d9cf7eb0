// Package services implements the server-side ingestion logic on top of the
// repositories and the object store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/server/models"
	"github.com/love-developer/eras/internal/server/objectstore"
	"github.com/love-developer/eras/internal/server/repositories/repomanager"

	sc "github.com/love-developer/eras/internal/server/config"
)

type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objectstore.Store
	config      *sc.Config
}

func NewMediaService(db *sql.DB, repomanager repomanager.RepositoryManager, store objectstore.Store, config *sc.Config) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		config:      config,
	}
}

// IngestDirect streams one payload to the object store and records it.
func (s *MediaService) IngestDirect(ctx context.Context, containerID, name, mimeType string, sizeBytes int64, r io.Reader) (*models.MediaRecord, error) {
	key := objectstore.RandomStorageKey()

	if err := s.store.Put(ctx, key, mimeType, r); err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}

	rec := &models.MediaRecord{
		ID:          uuid.NewString(),
		ContainerID: containerID,
		Name:        name,
		MimeType:    mimeType,
		SizeBytes:   sizeBytes,
		StorageKey:  key,
		PublicURL:   s.store.PublicURL(key),
		Status:      models.MediaReady,
	}

	if _, err := s.repomanager.Media(s.db).Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RegisterMetadata records a media object whose bytes were written
// out-of-band (e.g. through a presigned URL).
func (s *MediaService) RegisterMetadata(ctx context.Context, name, mimeType string, sizeBytes int64, storageKey string) (*models.MediaRecord, error) {
	rec := &models.MediaRecord{
		ID:         uuid.NewString(),
		Name:       name,
		MimeType:   mimeType,
		SizeBytes:  sizeBytes,
		StorageKey: storageKey,
		PublicURL:  s.store.PublicURL(storageKey),
		Status:     models.MediaReady,
	}

	if _, err := s.repomanager.Media(s.db).Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Content streams a stored media object back, together with its record.
// The caller closes the reader.
func (s *MediaService) Content(ctx context.Context, id string) (*models.MediaRecord, io.ReadCloser, error) {
	rec, err := s.repomanager.Media(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Get(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read object: %w", err)
	}
	return rec, rc, nil
}

// Delete removes a media record and its stored object. Deleting an unknown
// ID is a success: the caller's goal (the record is gone) is met either way.
func (s *MediaService) Delete(ctx context.Context, id string) error {
	rec, err := s.repomanager.Media(s.db).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	// best effort: an orphaned object is preferable to a dangling record
	_ = s.store.Remove(ctx, rec.StorageKey)
	return nil
}

// CopyOutcome is the result of a server-side copy request.
type CopyOutcome struct {
	Record     *models.MediaRecord
	DurationMs int64

	// Fallback tells the client to transfer the bytes itself.
	Fallback bool
	Reason   string
}

// Copy duplicates an already-stored object into a destination container
// without the bytes leaving the backend. Sources above the copy ceiling get
// a structured fallback answer instead of an error.
func (s *MediaService) Copy(ctx context.Context, sourceID, destContainerID, fileName, fileType string) (CopyOutcome, error) {
	src, err := s.repomanager.Media(s.db).GetByID(ctx, sourceID)
	if err != nil {
		return CopyOutcome{}, err
	}

	if src.SizeBytes > s.config.CopyCeilingBytes {
		return CopyOutcome{
			Fallback: true,
			Reason:   fmt.Sprintf("source is %d bytes, copy ceiling is %d", src.SizeBytes, s.config.CopyCeilingBytes),
		}, nil
	}

	dstKey := objectstore.RandomStorageKey()
	start := time.Now()
	if err := s.store.Copy(ctx, src.StorageKey, dstKey); err != nil {
		return CopyOutcome{}, fmt.Errorf("backend copy: %w", err)
	}

	rec := &models.MediaRecord{
		ID:          uuid.NewString(),
		ContainerID: destContainerID,
		Name:        fileName,
		MimeType:    fileType,
		SizeBytes:   src.SizeBytes,
		StorageKey:  dstKey,
		PublicURL:   s.store.PublicURL(dstKey),
		Status:      models.MediaReady,
	}
	if fileName == "" {
		rec.Name = src.Name
	}
	if fileType == "" {
		rec.MimeType = src.MimeType
	}

	if _, err := s.repomanager.Media(s.db).Create(ctx, rec); err != nil {
		return CopyOutcome{}, err
	}

	return CopyOutcome{Record: rec, DurationMs: time.Since(start).Milliseconds()}, nil
}
