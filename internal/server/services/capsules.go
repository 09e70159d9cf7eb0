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
	"github.com/love-developer/eras/internal/server/repositories/repomanager"
)

type CapsuleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCapsuleService(db *sql.DB, repomanager repomanager.RepositoryManager) *CapsuleService {
	return &CapsuleService{
		db:          db,
		repomanager: repomanager,
	}
}

// CapsuleInput finalizes a capsule.
type CapsuleInput struct {
	Title      string
	Message    string
	Theme      string
	DeliverAt  time.Time
	Recipients []string
	MediaIDs   []string
}

// Create finalizes a capsule. Every referenced media record must exist and
// be ready; a still-pending record rejects the whole capsule so nothing
// ships with missing media.
func (s *CapsuleService) Create(ctx context.Context, in CapsuleInput) (*models.Capsule, error) {
	capsule := &models.Capsule{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Message:    in.Message,
		Theme:      in.Theme,
		DeliverAt:  in.DeliverAt,
		Recipients: in.Recipients,
		MediaIDs:   in.MediaIDs,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mediaRepo := s.repomanager.Media(tx)
		for _, id := range in.MediaIDs {
			rec, err := mediaRepo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("media %s: %w", id, err)
			}
			if rec.Status != models.MediaReady {
				return fmt.Errorf("media %s: %w", id, common.ErrMediaPending)
			}
		}

		capsuleRepo := s.repomanager.Capsules(tx)
		if _, err := capsuleRepo.Create(ctx, capsule); err != nil {
			return err
		}
		for _, id := range in.MediaIDs {
			if err := capsuleRepo.LinkMedia(ctx, capsule.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return capsule, nil
}
