package transfer

import (
	"context"
	"fmt"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/models"
)

// CopyClient is the server-side copy operation of api.Client.
type CopyClient interface {
	Copy(ctx context.Context, in api.CopyInput) (api.CopyResult, error)
}

// ServerCopy asks the storage backend to duplicate an already-stored vault
// object into the capsule's container without moving bytes through the
// client. A structured fallback answer (source too large) and a failed copy
// instruction both hand over to the client-side byte transfer; only a
// canceled context stops the chain.
type ServerCopy struct {
	Client CopyClient
}

func (s *ServerCopy) Kind() Kind { return KindServerCopy }

func (s *ServerCopy) Attempt(ctx context.Context, up *Upload) (models.ResultRef, error) {
	task := up.Task
	if task.Source.VaultID == "" {
		return models.ResultRef{}, fmt.Errorf("%w: no vault source", ErrFallback)
	}

	res, err := s.Client.Copy(ctx, api.CopyInput{
		SourceID:        task.Source.VaultID,
		DestContainerID: task.ContainerID,
		FileName:        task.Source.Name,
		FileType:        task.Source.MimeType,
	})
	if err != nil {
		if ctx.Err() != nil {
			return models.ResultRef{}, err
		}
		// a failed copy instruction also hands over to the byte
		// transfer; the failure kind stays visible through the wrap
		return models.ResultRef{}, fmt.Errorf("copy failed (%w): %w", ErrFallback, err)
	}

	if res.Fallback {
		return models.ResultRef{}, fmt.Errorf("%w: %s", ErrFallback, res.Reason)
	}

	up.report(task.TotalBytes)
	return models.ResultRef{MediaID: res.MediaID, PublicURL: res.PublicURL}, nil
}
