package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/models"
)

// DirectClient is the single-shot ingestion operation of api.Client.
type DirectClient interface {
	IngestDirect(ctx context.Context, containerID, fileName, mimeType string, r io.Reader) (api.IngestResult, error)
}

// Direct uploads the whole payload in one multipart request. Suitable for
// small and medium files only; anything large must go through Chunked.
type Direct struct {
	Client DirectClient
}

func (d *Direct) Kind() Kind { return KindDirect }

func (d *Direct) Attempt(ctx context.Context, up *Upload) (models.ResultRef, error) {
	src, err := up.Open()
	if err != nil {
		return models.ResultRef{}, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	res, err := d.Client.IngestDirect(ctx, up.Task.ContainerID, up.Task.Source.Name, up.Task.Source.MimeType, src)
	if err != nil {
		return models.ResultRef{}, err
	}

	up.report(up.Task.TotalBytes)
	return models.ResultRef{MediaID: res.MediaID, PublicURL: res.PublicURL}, nil
}
