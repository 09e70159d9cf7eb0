package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/server/models"
)

func seedMedia(rm *fakeRepoManager, id string, status models.MediaStatus) {
	rm.media.recs[id] = &models.MediaRecord{
		ID:         id,
		Name:       id + ".jpg",
		StorageKey: "media/seed/" + id,
		Status:     status,
	}
}

func TestCapsuleService_Create(t *testing.T) {
	rm := newFakeRepoManager()
	db, mock := newMockDB(t)
	s := NewCapsuleService(db, rm)

	seedMedia(rm, "m1", models.MediaReady)
	seedMedia(rm, "m2", models.MediaReady)

	mock.ExpectBegin()
	mock.ExpectCommit()

	capsule, err := s.Create(context.Background(), CapsuleInput{
		Title:      "graduation",
		Message:    "see you in ten years",
		Theme:      "gold",
		DeliverAt:  time.Now().Add(24 * time.Hour),
		Recipients: []string{"a@example.com"},
		MediaIDs:   []string{"m1", "m2"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, capsule.ID)
	assert.Len(t, rm.capsules.caps, 1)
	assert.Equal(t, [][2]string{{capsule.ID, "m1"}, {capsule.ID, "m2"}}, rm.capsules.links)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapsuleService_CreateRejectsPendingMedia(t *testing.T) {
	rm := newFakeRepoManager()
	db, mock := newMockDB(t)
	s := NewCapsuleService(db, rm)

	seedMedia(rm, "m1", models.MediaReady)
	seedMedia(rm, "m2", models.MediaPending)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), CapsuleInput{
		Title:    "graduation",
		MediaIDs: []string{"m1", "m2"},
	})
	require.ErrorIs(t, err, common.ErrMediaPending)

	assert.Empty(t, rm.capsules.caps)
	assert.Empty(t, rm.capsules.links)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapsuleService_CreateUnknownMedia(t *testing.T) {
	rm := newFakeRepoManager()
	db, mock := newMockDB(t)
	s := NewCapsuleService(db, rm)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), CapsuleInput{
		Title:    "empty",
		MediaIDs: []string{"ghost"},
	})
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
