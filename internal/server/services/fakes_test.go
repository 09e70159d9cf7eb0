package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/dbx"
	"github.com/love-developer/eras/internal/server/models"
	"github.com/love-developer/eras/internal/server/repositories/capsules"
	"github.com/love-developer/eras/internal/server/repositories/media"
	"github.com/love-developer/eras/internal/server/repositories/sessions"
)

// fakeStore is an in-memory objectstore.Store.
type fakeStore struct {
	objects   map[string][]byte
	parts     map[string][][]byte
	completed []string
	removed   []string
	copies    map[string]string // dst → src

	putErr  error
	copyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		parts:   make(map[string][][]byte),
		copies:  make(map[string]string),
	}
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) InitMultipart(ctx context.Context, key, contentType string) (string, error) {
	return "mp-" + key, nil
}

func (f *fakeStore) PutPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error) {
	f.parts[key] = append(f.parts[key], append([]byte(nil), data...))
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeStore) CompleteMultipart(ctx context.Context, key, uploadID string, etags []string) error {
	var all []byte
	for _, p := range f.parts[key] {
		all = append(all, p...)
	}
	f.objects[key] = all
	f.completed = append(f.completed, key)
	return nil
}

func (f *fakeStore) AbortMultipart(ctx context.Context, key, uploadID string) error { return nil }

func (f *fakeStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copies[dstKey] = srcKey
	f.objects[dstKey] = f.objects[srcKey]
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) SizeOf(ctx context.Context, key string) (int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return int64(len(data)), nil
}

func (f *fakeStore) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

// in-memory repositories

type memMediaRepo struct {
	recs map[string]*models.MediaRecord
}

func (m *memMediaRepo) Create(ctx context.Context, rec *models.MediaRecord) (*models.MediaRecord, error) {
	cp := *rec
	m.recs[rec.ID] = &cp
	return rec, nil
}

func (m *memMediaRepo) GetByID(ctx context.Context, id string) (*models.MediaRecord, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memMediaRepo) MarkReady(ctx context.Context, id string) error {
	rec, ok := m.recs[id]
	if !ok {
		return common.ErrorNotFound
	}
	rec.Status = models.MediaReady
	return nil
}

func (m *memMediaRepo) Delete(ctx context.Context, id string) (*models.MediaRecord, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.recs, id)
	return rec, nil
}

type memSessionRepo struct {
	sess map[string]*models.UploadSession
}

func (m *memSessionRepo) Create(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error) {
	cp := *s
	m.sess[s.ID] = &cp
	return s, nil
}

func (m *memSessionRepo) GetByID(ctx context.Context, id string) (*models.UploadSession, error) {
	s, ok := m.sess[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	cp.PartETags = append([]string(nil), s.PartETags...)
	return &cp, nil
}

func (m *memSessionRepo) UpdateProgress(ctx context.Context, id string, offset int64, partETags []string) error {
	s, ok := m.sess[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.Offset = offset
	s.PartETags = append([]string(nil), partETags...)
	return nil
}

func (m *memSessionRepo) MarkComplete(ctx context.Context, id string, mediaID string) error {
	s, ok := m.sess[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.Complete = true
	s.MediaID = mediaID
	return nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

type memCapsuleRepo struct {
	caps  map[string]*models.Capsule
	links [][2]string
}

func (m *memCapsuleRepo) Create(ctx context.Context, c *models.Capsule) (*models.Capsule, error) {
	cp := *c
	m.caps[c.ID] = &cp
	return c, nil
}

func (m *memCapsuleRepo) LinkMedia(ctx context.Context, capsuleID, mediaID string) error {
	m.links = append(m.links, [2]string{capsuleID, mediaID})
	return nil
}

type fakeRepoManager struct {
	media    *memMediaRepo
	sessions *memSessionRepo
	capsules *memCapsuleRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		media:    &memMediaRepo{recs: make(map[string]*models.MediaRecord)},
		sessions: &memSessionRepo{sess: make(map[string]*models.UploadSession)},
		capsules: &memCapsuleRepo{caps: make(map[string]*models.Capsule)},
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) Media(db dbx.DBTX) media.Repository                  { return f.media }
func (f *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository            { return f.sessions }
func (f *fakeRepoManager) Capsules(db dbx.DBTX) capsules.Repository            { return f.capsules }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
