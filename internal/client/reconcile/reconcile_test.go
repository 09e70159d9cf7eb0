package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeDeleter) Delete(ctx context.Context, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, mediaID)
	return f.err
}

func newEngine(opts ...Option) (*Engine, *fakeDeleter) {
	d := &fakeDeleter{}
	return New(d, nil, opts...), d
}

func completedTask(name, token, mediaID, url string) models.UploadTask {
	return models.UploadTask{
		ID:         "t-" + name,
		Source:     models.FileInfo{Name: name, MimeType: "image/jpeg", SizeBytes: 100, Token: token},
		Status:     models.StatusCompleted,
		TotalBytes: 100,
		Result:     &models.ResultRef{MediaID: mediaID, PublicURL: url},
	}
}

func TestApplyCompletion_ReplacesPlaceholderInPlace(t *testing.T) {
	e, _ := newEngine()

	task := models.UploadTask{
		Source:    models.FileInfo{Name: "pic.jpg", MimeType: "image/jpeg", SizeBytes: 100, Token: "tok-1"},
		Thumbnail: "blob:preview-1",
	}
	placeholder := e.AddPlaceholder(task)
	require.True(t, placeholder.Uploading)

	done := completedTask("pic.jpg", "tok-1", "m-1", "https://cdn/pic.jpg?sig=a")
	done.Thumbnail = "" // result arrived without a preview
	e.ApplyCompletion(done)

	items := e.Items()
	require.Len(t, items, 1, "placeholder replaced, not appended")
	assert.Equal(t, "m-1", items[0].ID)
	assert.True(t, items[0].AlreadyPersisted)
	assert.False(t, items[0].Uploading)
	assert.Equal(t, "blob:preview-1", items[0].Thumbnail, "placeholder thumbnail preserved")
}

func TestApplyCompletion_FallbackMatchByNameSizeMime(t *testing.T) {
	e, _ := newEngine()

	e.AddPlaceholder(models.UploadTask{
		Source: models.FileInfo{Name: "pic.jpg", MimeType: "image/jpeg", SizeBytes: 100},
	})
	e.ApplyCompletion(completedTask("pic.jpg", "", "m-2", "https://cdn/pic.jpg"))

	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "m-2", items[0].ID)
}

func TestApplyCompletion_TokenDistinguishesSameNamedFiles(t *testing.T) {
	e, _ := newEngine()

	e.AddPlaceholder(models.UploadTask{Source: models.FileInfo{Name: "pic.jpg", MimeType: "image/jpeg", SizeBytes: 100, Token: "tok-a"}})
	e.AddPlaceholder(models.UploadTask{Source: models.FileInfo{Name: "pic.jpg", MimeType: "image/jpeg", SizeBytes: 100, Token: "tok-b"}})

	e.ApplyCompletion(completedTask("pic.jpg", "tok-b", "m-b", "https://cdn/b/pic.jpg"))

	items := e.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].Uploading, "tok-a placeholder untouched")
	assert.Equal(t, "m-b", items[1].ID)
}

func TestDedup_ByBaseURLAndByID(t *testing.T) {
	e, _ := newEngine()

	e.ApplyBatch(Batch{Items: []models.MediaItem{
		{ID: "m-1", URL: "https://cdn/a.jpg?X-Expires=900"},
	}})
	// same object under a refreshed signed URL and a different temp id
	e.ApplyBatch(Batch{Items: []models.MediaItem{
		{ID: "tmp-9", URL: "https://cdn/a.jpg?X-Expires=1800&sig=z"},
	}})
	// same durable id, different URL host alias
	e.ApplyBatch(Batch{Items: []models.MediaItem{
		{ID: "m-1", URL: "https://alias/a.jpg"},
	}})

	assert.Len(t, e.Items(), 1)
}

func TestApplyBatch_MergeVsReplace(t *testing.T) {
	t.Run("editing a persisted capsule merges", func(t *testing.T) {
		e, _ := newEngine(WithEditing(true))
		e.SetItems([]models.MediaItem{
			{ID: "m-1", URL: "https://cdn/1.jpg", AlreadyPersisted: true},
			{ID: "m-2", URL: "https://cdn/2.jpg", AlreadyPersisted: true},
			{ID: "m-3", URL: "https://cdn/3.jpg", AlreadyPersisted: true},
		})

		e.ApplyBatch(Batch{
			SelfSufficient: true,
			Items: []models.MediaItem{
				{ID: "v-1", URL: "https://cdn/v1.jpg", Origin: models.OriginVaultCopy},
				{ID: "v-2", URL: "https://cdn/v2.jpg", Origin: models.OriginVaultCopy},
			},
		})

		assert.Len(t, e.Items(), 5, "merge keeps the persisted attachments")
	})

	t.Run("fresh capsule replaces with a self-sufficient batch", func(t *testing.T) {
		e, _ := newEngine()
		e.SetItems([]models.MediaItem{{ID: "tmp-1", URL: "https://cdn/old.jpg"}})

		e.ApplyBatch(Batch{
			SelfSufficient: true,
			Items: []models.MediaItem{
				{ID: "v-1", URL: "https://cdn/v1.jpg"},
				{ID: "v-2", URL: "https://cdn/v2.jpg"},
			},
		})

		items := e.Items()
		require.Len(t, items, 2)
		assert.Equal(t, "v-1", items[0].ID)
	})

	t.Run("fresh capsule additive batch appends", func(t *testing.T) {
		e, _ := newEngine()
		e.SetItems([]models.MediaItem{{ID: "m-1", URL: "https://cdn/1.jpg"}})

		e.ApplyBatch(Batch{Items: []models.MediaItem{{ID: "m-2", URL: "https://cdn/2.jpg"}}})

		assert.Len(t, e.Items(), 2)
	})
}

func TestApplyEnhanced_SwapsOriginal(t *testing.T) {
	e, _ := newEngine()
	e.SetItems([]models.MediaItem{
		{ID: "m-1", URL: "https://cdn/orig.jpg"},
		{ID: "m-2", URL: "https://cdn/other.jpg"},
	})

	e.ApplyEnhanced(models.MediaItem{ID: "m-9", URL: "https://cdn/enhanced.jpg", ReplacesID: "m-1"})

	items := e.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "m-2", items[0].ID)
	assert.Equal(t, "m-9", items[1].ID)
}

func TestRemove_DurableItemDeletesFromStorageFirst(t *testing.T) {
	e, d := newEngine()
	e.SetItems([]models.MediaItem{{ID: "m-1", URL: "https://cdn/1.jpg", AlreadyPersisted: true}})

	require.NoError(t, e.Remove(context.Background(), "m-1"))
	assert.Empty(t, e.Items())
	assert.Equal(t, []string{"m-1"}, d.deleted)
}

func TestRemove_DeleteFailureAbortsLocalRemoval(t *testing.T) {
	e, d := newEngine()
	d.err = errors.New("storage unavailable")
	e.SetItems([]models.MediaItem{{ID: "m-1", URL: "https://cdn/1.jpg", AlreadyPersisted: true}})

	err := e.Remove(context.Background(), "m-1")
	require.Error(t, err)
	assert.Len(t, e.Items(), 1, "local list must not diverge from storage")
}

func TestRemove_PendingItemSkipsStorage(t *testing.T) {
	e, d := newEngine()
	e.SetItems([]models.MediaItem{{ID: "tmp-1", Uploading: true}})

	require.NoError(t, e.Remove(context.Background(), "tmp-1"))
	assert.Empty(t, d.deleted)
	assert.Empty(t, e.Items())
}

func TestRemove_UnknownID(t *testing.T) {
	e, _ := newEngine()
	err := e.Remove(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestVaultLink_IsRelationOnly(t *testing.T) {
	e, _ := newEngine()

	task := models.UploadTask{
		Source:     models.FileInfo{Name: "v.jpg", MimeType: "image/jpeg", SizeBytes: 10, Token: "tk", VaultID: "vault-7"},
		TotalBytes: 10,
		Result:     &models.ResultRef{MediaID: "m-7", PublicURL: "https://cdn/v.jpg"},
	}
	e.AddPlaceholder(task)
	e.ApplyCompletion(task)

	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.OriginVaultCopy, items[0].Origin)
	assert.Equal(t, "vault-7", items[0].LinkedVaultID)
	assert.True(t, items[0].AlreadyPersisted, "copy is independent of the vault source once persisted")
}

func TestChangeNotifier_Debounced(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	e, _ := newEngine(WithChangeNotifier(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}, 20*time.Millisecond))

	for i := 0; i < 5; i++ {
		e.ApplyBatch(Batch{Items: []models.MediaItem{{ID: string(rune('a' + i)), URL: "https://cdn/" + string(rune('a'+i))}}})
	}

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "burst of changes collapses into one notification")
}
