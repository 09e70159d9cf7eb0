package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/client/queue"
)

// finalizeWait bounds how long Finalize blocks on in-flight uploads before
// giving up and telling the user to try again.
const finalizeWait = 30 * time.Second

// Attach enqueues a local file for upload and inserts its in-flight
// placeholder into the media list.
func (a *App) Attach(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		fmt.Println("cannot read file:", err)
		return err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(abs))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	f := models.FileInfo{
		Name:      filepath.Base(abs),
		MimeType:  mimeType,
		SizeBytes: fi.Size(),
		LocalPath: abs,
		Token:     uuid.NewString(),
	}

	tasks := a.uploads.Enqueue(ctx, []models.FileInfo{f}, queue.Options{ContainerID: a.containerID})
	for _, task := range tasks {
		a.media.AddPlaceholder(task)
		fmt.Printf("queued %s (%s, %s) task=%s\n", task.Source.Name, task.Classification.Tier, task.Strategy, task.ID)
	}
	return nil
}

// AttachVault enqueues a vault-stored file: the server copies it without the
// bytes passing through this machine, falling back to a client transfer when
// the copy ceiling forbids it.
func (a *App) AttachVault(ctx context.Context, vaultID, name string, sizeBytes int64) error {
	f := models.FileInfo{
		Name:      name,
		MimeType:  mime.TypeByExtension(filepath.Ext(name)),
		SizeBytes: sizeBytes,
		VaultID:   vaultID,
		Token:     uuid.NewString(),
	}
	if f.MimeType == "" {
		f.MimeType = "application/octet-stream"
	}

	tasks := a.uploads.Enqueue(ctx, []models.FileInfo{f}, queue.Options{ContainerID: a.containerID})
	for _, task := range tasks {
		a.media.AddPlaceholder(task)
		fmt.Printf("queued vault copy %s task=%s\n", name, task.ID)
	}
	return nil
}

// List prints the canonical media list.
func (a *App) List(ctx context.Context) error {
	items := a.media.Items()
	if len(items) == 0 {
		fmt.Println("no media attached")
		return nil
	}
	for _, it := range items {
		state := "ready"
		switch {
		case it.Uploading:
			state = "uploading"
		case it.NonReuploadable:
			state = "unavailable source"
		}
		fmt.Printf("%-38s %-10s %-9s %s\n", it.ID, it.Origin, state, it.Name)
	}
	return nil
}

// Status prints every upload task and its progress.
func (a *App) Status(ctx context.Context) error {
	tasks := a.uploads.Tasks()
	if len(tasks) == 0 {
		fmt.Println("no uploads")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%-38s %-9s %s %d/%d", t.ID, t.Status, t.Source.Name, t.ProgressBytes, t.TotalBytes)
		if t.Status == models.StatusFailed {
			line += fmt.Sprintf(" [%s: %s]", t.FailKind, t.FailMessage)
		}
		fmt.Println(line)
	}
	return nil
}

func (a *App) Pause(ctx context.Context, taskID string) error {
	return report(a.uploads.Pause(taskID), "paused")
}

func (a *App) Resume(ctx context.Context, taskID string) error {
	return report(a.uploads.Resume(taskID), "resumed")
}

func (a *App) RetryTask(ctx context.Context, taskID string) error {
	return report(a.uploads.Retry(taskID), "retrying")
}

func (a *App) CancelTask(ctx context.Context, taskID string) error {
	return report(a.uploads.Cancel(taskID), "canceled")
}

// Remove drops a media item, deleting the durable record first when one
// exists.
func (a *App) Remove(ctx context.Context, id string) error {
	if err := a.media.Remove(ctx, id); err != nil {
		fmt.Println("remove failed:", err)
		return err
	}
	fmt.Println("removed")
	return nil
}

// Set updates one capsule field.
func (a *App) Set(ctx context.Context, field, value string) error {
	switch field {
	case "title":
		a.title = value
	case "message":
		a.message = value
	case "theme":
		a.theme = value
	case "deliver":
		at, err := time.Parse(time.RFC3339, value)
		if err != nil {
			fmt.Println("deliver date must be RFC3339, e.g. 2031-06-01T00:00:00Z")
			return err
		}
		a.deliverAt = at
	case "recipients":
		a.recipients = strings.Split(value, ",")
	default:
		err := fmt.Errorf("unknown field %q", field)
		fmt.Println(err)
		return err
	}
	a.autosave()
	return nil
}

// SaveDraft persists the current composing state explicitly.
func (a *App) SaveDraft(ctx context.Context) error {
	if err := a.drafts.Save(ctx, a.snapshot()); err != nil {
		fmt.Println("save failed:", err)
		return err
	}
	fmt.Println("draft saved")
	return nil
}

// RestoreDraft loads the saved draft and re-enqueues any interrupted uploads
// whose source bytes are still on disk. Items whose bytes are gone come back
// as non-reuploadable placeholders.
func (a *App) RestoreDraft(ctx context.Context) error {
	snap, err := a.drafts.Restore(ctx)
	if err != nil {
		fmt.Println("no draft to restore:", err)
		return err
	}

	a.title = snap.Title
	a.message = snap.Message
	a.theme = snap.Theme
	a.deliverAt = snap.DeliverAt
	a.recipients = snap.Recipients

	items := a.drafts.Rehydrate(snap)

	var resume []models.FileInfo
	for i := range items {
		it := &items[i]
		if it.AlreadyPersisted || it.NonReuploadable || it.LocalPath == "" {
			continue
		}
		it.Uploading = true
		resume = append(resume, models.FileInfo{
			Name:      it.Name,
			MimeType:  it.MimeType,
			SizeBytes: it.SizeBytes,
			LocalPath: it.LocalPath,
		})
	}
	a.media.SetItems(items)

	if len(resume) > 0 {
		a.uploads.Enqueue(ctx, resume, queue.Options{ContainerID: a.containerID})
		fmt.Printf("restored draft %q, resuming %d upload(s)\n", a.title, len(resume))
	} else {
		fmt.Printf("restored draft %q\n", a.title)
	}
	return nil
}

// Finalize creates the capsule on the server. It waits (bounded) for
// in-flight uploads to settle; failed or still-running uploads block the
// finalize so no capsule ships with missing media.
func (a *App) Finalize(ctx context.Context) error {
	if err := a.waitForUploads(ctx); err != nil {
		fmt.Println(err)
		return err
	}

	var mediaIDs []string
	for _, it := range a.media.Items() {
		if it.AlreadyPersisted || it.NonReuploadable {
			mediaIDs = append(mediaIDs, it.ID)
		}
	}

	res, err := a.api.CreateCapsule(ctx, a.capsuleInput(mediaIDs))
	if err != nil {
		fmt.Println("finalize failed:", err)
		return err
	}

	if err := a.drafts.Clear(ctx); err != nil {
		a.logger.Warn(ctx, "clearing draft after finalize", "err", err)
	}
	fmt.Println("capsule created:", res.CapsuleID)
	return nil
}

func (a *App) capsuleInput(mediaIDs []string) api.CapsuleInput {
	return api.CapsuleInput{
		Title:      a.title,
		Message:    a.message,
		Theme:      a.theme,
		DeliverAt:  a.deliverAt,
		Recipients: a.recipients,
		MediaIDs:   mediaIDs,
	}
}

// waitForUploads polls until no task is left non-terminal or the bounded
// wait expires.
func (a *App) waitForUploads(ctx context.Context) error {
	deadline := time.Now().Add(finalizeWait)
	for {
		pending := 0
		failed := 0
		for _, t := range a.uploads.Tasks() {
			switch {
			case t.Status == models.StatusFailed:
				failed++
			case !t.Status.Terminal():
				pending++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d upload(s) failed; retry or cancel them before finalizing", failed)
		}
		if pending == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d upload(s) still in progress; try again once they finish", pending)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func report(err error, ok string) error {
	if err != nil {
		fmt.Println(err)
		return err
	}
	fmt.Println(ok)
	return nil
}

func parseSize(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
