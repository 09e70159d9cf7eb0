// Package reconcile maintains the canonical media list of a capsule draft:
// it folds completed uploads, vault selections, pre-existing attachments and
// user removals into one deduplicated list, resolving identity across
// temporary client IDs, durable server IDs and refreshed signed URLs.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/logging"
)

// Deleter removes a durable media record. Implemented by api.Client.
type Deleter interface {
	Delete(ctx context.Context, mediaID string) error
}

// Engine is the sole mutator of the canonical media list.
type Engine struct {
	deleter Deleter
	logger  logging.Logger

	mu    sync.Mutex
	items []models.MediaItem

	// editing marks that the list belongs to a previously persisted
	// capsule; incoming batches then always merge, never replace.
	editing bool

	notify    func()
	debounce  time.Duration
	timerMu   sync.Mutex
	notifyTmr *time.Timer
}

// Option tweaks Engine construction.
type Option func(*Engine)

// WithChangeNotifier registers a callback fired (debounced) whenever the
// canonical list changes. The draft persistence bridge subscribes here.
func WithChangeNotifier(fn func(), debounce time.Duration) Option {
	return func(e *Engine) {
		e.notify = fn
		e.debounce = debounce
	}
}

// WithEditing marks the engine as editing an already-persisted capsule.
func WithEditing(editing bool) Option {
	return func(e *Engine) { e.editing = editing }
}

// New builds an Engine around a delete endpoint and a logger.
func New(deleter Deleter, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{deleter: deleter, logger: logger, debounce: 300 * time.Millisecond}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Items returns a snapshot of the canonical list.
func (e *Engine) Items() []models.MediaItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.MediaItem, len(e.items))
	copy(out, e.items)
	return out
}

// SetItems seeds the list (restoring a draft or opening an existing
// capsule for editing) without dedup or notification side effects.
func (e *Engine) SetItems(items []models.MediaItem) {
	e.mu.Lock()
	e.items = append([]models.MediaItem(nil), items...)
	e.mu.Unlock()
}

// AddPlaceholder inserts an in-flight placeholder for an enqueued upload
// and returns it. The placeholder carries the correlation token so the
// completed upload can replace it in place later.
func (e *Engine) AddPlaceholder(task models.UploadTask) models.MediaItem {
	item := models.MediaItem{
		ID:        "tmp-" + uuid.NewString(),
		Origin:    models.OriginUploaded,
		Name:      task.Source.Name,
		MimeType:  task.Source.MimeType,
		SizeBytes: task.Source.SizeBytes,
		Thumbnail: task.Thumbnail,
		Token:     task.Source.Token,
		Uploading: true,
	}
	if task.Source.VaultID != "" {
		item.Origin = models.OriginVaultCopy
		item.LinkedVaultID = task.Source.VaultID
	}

	e.mu.Lock()
	e.items = append(e.items, item)
	e.mu.Unlock()

	e.changed()
	return item
}

// ApplyCompletion folds a completed upload task into the list: the matching
// placeholder is replaced in place (keeping any thumbnail it already had);
// without a placeholder the result is appended, subject to dedup.
func (e *Engine) ApplyCompletion(task models.UploadTask) {
	if task.Result == nil {
		return
	}

	item := models.MediaItem{
		ID:               task.Result.MediaID,
		Origin:           models.OriginUploaded,
		URL:              task.Result.PublicURL,
		Name:             task.Source.Name,
		MimeType:         task.Source.MimeType,
		SizeBytes:        task.TotalBytes,
		Thumbnail:        task.Thumbnail,
		Token:            task.Source.Token,
		AlreadyPersisted: true,
	}
	if task.Source.VaultID != "" {
		item.Origin = models.OriginVaultCopy
		item.LinkedVaultID = task.Source.VaultID
	}

	e.mu.Lock()
	if i := e.placeholderIndex(task); i >= 0 {
		if item.Thumbnail == "" {
			item.Thumbnail = e.items[i].Thumbnail
		}
		e.items[i] = item
	} else if !e.isDuplicateLocked(item) {
		e.items = append(e.items, item)
	}
	e.mu.Unlock()

	e.changed()
}

// placeholderIndex finds the in-flight placeholder for a task: by
// correlation token when one was supplied, otherwise by the
// filename+size+mime fallback. Callers hold e.mu.
func (e *Engine) placeholderIndex(task models.UploadTask) int {
	for i, it := range e.items {
		if !it.Uploading {
			continue
		}
		if task.Source.Token != "" {
			if it.Token == task.Source.Token {
				return i
			}
			continue
		}
		if it.Name == task.Source.Name &&
			it.SizeBytes == task.Source.SizeBytes &&
			it.MimeType == task.Source.MimeType {
			return i
		}
	}
	return -1
}

// Batch is a set of incoming media items plus the context needed for the
// merge-vs-replace decision.
type Batch struct {
	Items []models.MediaItem

	// SelfSufficient marks a batch that fully describes the intended
	// media list (e.g. returning from the vault picker).
	SelfSufficient bool
}

// ApplyBatch folds an incoming batch into the list. For a fresh, never
// persisted capsule a self-sufficient batch replaces the list outright;
// while editing a persisted capsule the engine always merges, because
// replacing would silently drop already-durable attachments.
func (e *Engine) ApplyBatch(b Batch) {
	e.mu.Lock()
	if b.SelfSufficient && !e.editing {
		e.items = e.items[:0]
	}
	for _, item := range b.Items {
		if e.isDuplicateLocked(item) {
			continue
		}
		e.items = append(e.items, item)
	}
	e.mu.Unlock()

	e.changed()
}

// ApplyEnhanced inserts a user-edited derivative, removing the item it
// replaces first.
func (e *Engine) ApplyEnhanced(item models.MediaItem) {
	e.mu.Lock()
	if item.ReplacesID != "" {
		for i, it := range e.items {
			if it.ID == item.ReplacesID {
				e.items = append(e.items[:i], e.items[i+1:]...)
				break
			}
		}
	}
	if !e.isDuplicateLocked(item) {
		e.items = append(e.items, item)
	}
	e.mu.Unlock()

	e.changed()
}

// Remove deletes an item. Durable items are deleted from storage first; a
// not-found answer counts as success, any other failure aborts the local
// removal so UI and storage never diverge.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	idx := -1
	for i, it := range e.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return common.ErrorNotFound
	}
	item := e.items[idx]
	e.mu.Unlock()

	if item.AlreadyPersisted {
		if err := e.deleter.Delete(ctx, item.ID); err != nil {
			return fmt.Errorf("delete durable record %s: %w", item.ID, err)
		}
	}

	e.mu.Lock()
	// the list may have shifted while the delete call was in flight
	for i, it := range e.items {
		if it.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	e.changed()
	return nil
}

// isDuplicateLocked applies the dedup rule: an item is a duplicate if its
// base URL or its ID matches an existing entry. Callers hold e.mu.
func (e *Engine) isDuplicateLocked(item models.MediaItem) bool {
	for _, it := range e.items {
		if it.ID != "" && it.ID == item.ID {
			return true
		}
		if models.SameStoredObject(it.URL, item.URL) {
			return true
		}
	}
	return false
}

// changed schedules the (debounced) change notification.
func (e *Engine) changed() {
	if e.notify == nil {
		return
	}
	if e.debounce <= 0 {
		e.notify()
		return
	}

	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.notifyTmr != nil {
		e.notifyTmr.Stop()
	}
	e.notifyTmr = time.AfterFunc(e.debounce, e.notify)
}
