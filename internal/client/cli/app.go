package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/config"
	"github.com/love-developer/eras/internal/client/draft"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/client/queue"
	"github.com/love-developer/eras/internal/client/reconcile"
	"github.com/love-developer/eras/internal/client/transfer"
	"github.com/love-developer/eras/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the client components together behind the REPL.
type App struct {
	config *config.Config
	logger logging.Logger

	api     *api.Client
	uploads *queue.Queue
	media   *reconcile.Engine
	drafts  *draft.Store

	// containerID is the storage namespace of the capsule being composed.
	containerID string

	// capsule fields held in memory until finalize
	title      string
	message    string
	theme      string
	deliverAt  time.Time
	recipients []string

	stopConsume context.CancelFunc
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx := context.Background()

	store, err := draft.OpenStore(ctx, c.DraftDBDsn, currentUser())
	if err != nil {
		logger.Error(ctx, "error initializing draft database", "err", err)
		return nil, err
	}

	apiClient := api.New(c.ServerEndpointAddr, nil, os.Getenv("ERAS_TOKEN"), nil)

	strategies := transfer.Set{
		Direct:     &transfer.Direct{Client: apiClient},
		Chunked:    &transfer.Chunked{Client: apiClient, ChunkSize: c.ChunkSizeBytes},
		ServerCopy: &transfer.ServerCopy{Client: apiClient},
	}

	uploads := queue.New(queue.Deps{
		Strategies: strategies,
		OpenSource: func(f models.FileInfo) (io.ReadCloser, error) {
			// vault attachments have no local file: when the server-side
			// copy falls back, the bytes are fetched from the vault itself
			if f.VaultID != "" {
				return apiClient.Download(context.Background(), f.VaultID)
			}
			return os.Open(f.LocalPath)
		},
		Logger:         logger,
		Concurrency:    c.UploadConcurrency,
		BaseDelay:      c.BaseRetryDelay,
		DirectTimeout:  c.DirectTimeout,
		ChunkedTimeout: c.ChunkedTimeout,
	})

	a := &App{
		config:      c,
		logger:      logger,
		api:         apiClient,
		uploads:     uploads,
		drafts:      store,
		containerID: defaultContainerID(),
	}

	// every change to the canonical list schedules a draft save
	a.media = reconcile.New(apiClient, logger,
		reconcile.WithChangeNotifier(func() { a.autosave() }, 300*time.Millisecond))

	consumeCtx, cancel := context.WithCancel(context.Background())
	a.stopConsume = cancel
	go a.media.Consume(consumeCtx, uploads.Events())

	return a, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close stops the queue and the event consumer.
func (a *App) Close() {
	a.uploads.Close()
	a.stopConsume()
}

// autosave persists the current draft, logging rather than surfacing errors:
// autosaving must never interrupt composing.
func (a *App) autosave() {
	ctx := context.Background()
	if err := a.drafts.Save(ctx, a.snapshot()); err != nil {
		a.logger.Warn(ctx, "draft autosave failed", "err", err)
	}
}

func (a *App) snapshot() *models.DraftSnapshot {
	return &models.DraftSnapshot{
		Title:      a.title,
		Message:    a.message,
		Theme:      a.theme,
		DeliverAt:  a.deliverAt,
		Recipients: append([]string(nil), a.recipients...),
		Media:      models.ToSnapshot(a.media.Items()),
	}
}

func currentUser() string {
	if u := os.Getenv("ERAS_USER"); u != "" {
		return u
	}
	return "default"
}

func defaultContainerID() string {
	if c := os.Getenv("ERAS_CONTAINER"); c != "" {
		return c
	}
	return "draft"
}
