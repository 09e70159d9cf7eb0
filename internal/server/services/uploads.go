package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/dbx"
	"github.com/love-developer/eras/internal/server/models"
	"github.com/love-developer/eras/internal/server/objectstore"
	"github.com/love-developer/eras/internal/server/repositories/repomanager"

	sc "github.com/love-developer/eras/internal/server/config"
)

type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objectstore.Store
	config      *sc.Config
}

func NewUploadService(db *sql.DB, repomanager repomanager.RepositoryManager, store objectstore.Store, config *sc.Config) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		config:      config,
	}
}

// InitInput starts a resumable upload session.
type InitInput struct {
	FileName    string
	FileType    string
	TotalBytes  int64
	ContainerID string
}

// Init opens a backend multipart upload and records the session.
func (s *UploadService) Init(ctx context.Context, in InitInput) (*models.UploadSession, error) {
	key := objectstore.RandomStorageKey()

	s3UploadID, err := s.store.InitMultipart(ctx, key, in.FileType)
	if err != nil {
		return nil, fmt.Errorf("init multipart: %w", err)
	}

	sess := &models.UploadSession{
		ID:          uuid.NewString(),
		ContainerID: in.ContainerID,
		FileName:    in.FileName,
		FileType:    in.FileType,
		TotalBytes:  in.TotalBytes,
		StorageKey:  key,
		S3UploadID:  s3UploadID,
		ExpiresAt:   time.Now().Add(s.config.SessionTTL),
	}

	if _, err := s.repomanager.Sessions(s.db).Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendResult is the server's answer to one appended chunk.
type AppendResult struct {
	// Offset is the confirmed byte cursor after the append. On an offset
	// mismatch it carries the server's current cursor instead.
	Offset   int64
	Complete bool
	Media    *models.MediaRecord
}

// Append lands one chunk at the given offset. The offset must equal the
// session's confirmed cursor; anything else yields common.ErrOffsetMismatch
// with the current cursor in the result, so the client can realign without
// re-transferring confirmed bytes.
func (s *UploadService) Append(ctx context.Context, uploadID string, offset int64, chunk []byte) (AppendResult, error) {
	sess, err := s.repomanager.Sessions(s.db).GetByID(ctx, uploadID)
	if err != nil {
		return AppendResult{}, err
	}

	if sess.Complete {
		// a retried final chunk still gets the media reference back, so a
		// client resuming a committed session can finish without it
		res := AppendResult{Offset: sess.Offset, Complete: true}
		if sess.MediaID != "" {
			if rec, err := s.repomanager.Media(s.db).GetByID(ctx, sess.MediaID); err == nil {
				res.Media = rec
			}
		}
		return res, common.ErrSessionComplete
	}
	if time.Now().After(sess.ExpiresAt) {
		return AppendResult{}, common.ErrSessionExpired
	}
	if offset != sess.Offset {
		return AppendResult{Offset: sess.Offset}, common.ErrOffsetMismatch
	}

	partNumber := int32(len(sess.PartETags) + 1)
	etag, err := s.store.PutPart(ctx, sess.StorageKey, sess.S3UploadID, partNumber, chunk)
	if err != nil {
		return AppendResult{}, fmt.Errorf("store part: %w", err)
	}

	etags := append(sess.PartETags, etag)
	newOffset := offset + int64(len(chunk))

	if newOffset < sess.TotalBytes {
		if err := s.repomanager.Sessions(s.db).UpdateProgress(ctx, sess.ID, newOffset, etags); err != nil {
			return AppendResult{}, err
		}
		return AppendResult{Offset: newOffset}, nil
	}

	// final chunk: seal the backend object, then flip session and record
	// together
	if err := s.store.CompleteMultipart(ctx, sess.StorageKey, sess.S3UploadID, etags); err != nil {
		return AppendResult{}, fmt.Errorf("complete multipart: %w", err)
	}

	rec := &models.MediaRecord{
		ID:          uuid.NewString(),
		ContainerID: sess.ContainerID,
		Name:        sess.FileName,
		MimeType:    sess.FileType,
		SizeBytes:   sess.TotalBytes,
		StorageKey:  sess.StorageKey,
		PublicURL:   s.store.PublicURL(sess.StorageKey),
		Status:      models.MediaReady,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).UpdateProgress(ctx, sess.ID, newOffset, etags); err != nil {
			return err
		}
		if _, err := s.repomanager.Media(tx).Create(ctx, rec); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).MarkComplete(ctx, sess.ID, rec.ID)
	})
	if err != nil {
		return AppendResult{}, err
	}

	return AppendResult{Offset: newOffset, Complete: true, Media: rec}, nil
}

// Offset reports the session's confirmed byte cursor.
func (s *UploadService) Offset(ctx context.Context, uploadID string) (int64, error) {
	sess, err := s.repomanager.Sessions(s.db).GetByID(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	return sess.Offset, nil
}

// PurgeExpired drops sessions past their TTL.
func (s *UploadService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repomanager.Sessions(s.db).DeleteExpired(ctx)
}
