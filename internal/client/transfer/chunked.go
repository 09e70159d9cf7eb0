package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/common"
)

// DefaultChunkSize is used when the server does not dictate one.
const DefaultChunkSize int64 = 8 << 20

// SessionClient is the resumable-protocol surface of api.Client.
type SessionClient interface {
	InitSession(ctx context.Context, in api.InitSessionInput) (api.Session, error)
	AppendChunk(ctx context.Context, uploadID string, offset int64, chunk []byte) (api.ChunkResult, error)
	SessionOffset(ctx context.Context, uploadID string) (int64, error)
}

// Chunked drives the resumable chunk protocol: bytes are split into
// fixed-size chunks uploaded sequentially against a server-tracked offset
// cursor. An interrupted transfer resumes from the last confirmed offset,
// never from byte 0.
type Chunked struct {
	Client    SessionClient
	ChunkSize int64
}

func (c *Chunked) Kind() Kind { return KindChunked }

func (c *Chunked) Attempt(ctx context.Context, up *Upload) (models.ResultRef, error) {
	task := up.Task

	chunkSize := c.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var offset int64
	if task.SessionID == "" {
		sess, err := c.Client.InitSession(ctx, api.InitSessionInput{
			FileName:    task.Source.Name,
			FileType:    task.Source.MimeType,
			TotalBytes:  task.TotalBytes,
			ContainerID: task.ContainerID,
		})
		if err != nil {
			return models.ResultRef{}, fmt.Errorf("init session: %w", err)
		}
		if sess.ChunkSize > 0 {
			chunkSize = sess.ChunkSize
		}
		// the negotiated size must survive pause/retry: resumed parts
		// have to line up with the parts the server already holds
		negotiated := chunkSize
		up.mutate(func(t *models.UploadTask) {
			t.SessionID = sess.UploadID
			t.ChunkSize = negotiated
		})
	} else {
		if task.ChunkSize > 0 {
			chunkSize = task.ChunkSize
		}

		// resuming: trust the server's cursor, not our local counter
		confirmed, err := c.Client.SessionOffset(ctx, task.SessionID)
		if err != nil {
			return models.ResultRef{}, fmt.Errorf("query offset: %w", err)
		}
		offset = confirmed

		// every byte may already be durable: the previous attempt's final
		// chunk can land without its response reaching us. One empty
		// append collects the media ref the server committed.
		if task.TotalBytes > 0 && confirmed >= task.TotalBytes {
			res, err := c.Client.AppendChunk(ctx, task.SessionID, confirmed, nil)
			if err != nil {
				return models.ResultRef{}, fmt.Errorf("confirm completed session: %w", err)
			}
			if !res.Complete {
				return models.ResultRef{}, fmt.Errorf("session at offset %d of %d but not complete", confirmed, task.TotalBytes)
			}
			up.report(confirmed)
			return models.ResultRef{MediaID: res.MediaID, PublicURL: res.PublicURL}, nil
		}
	}

	src, err := up.Open()
	if err != nil {
		return models.ResultRef{}, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if err := skipTo(src, offset); err != nil {
		return models.ResultRef{}, fmt.Errorf("seek to offset %d: %w", offset, err)
	}
	up.report(offset)

	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return models.ResultRef{}, err
		}

		n, readErr := io.ReadFull(src, buf)
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
			return models.ResultRef{}, fmt.Errorf("read chunk: %w", readErr)
		}
		if n == 0 {
			return models.ResultRef{}, fmt.Errorf("source ended at offset %d before declared size %d", offset, task.TotalBytes)
		}

		res, err := c.Client.AppendChunk(ctx, task.SessionID, offset, buf[:n])
		if errors.Is(err, common.ErrOffsetMismatch) {
			// another attempt already confirmed part of this range;
			// realign with the server and continue from there
			confirmed, qerr := c.Client.SessionOffset(ctx, task.SessionID)
			if qerr != nil {
				return models.ResultRef{}, fmt.Errorf("realign offset: %w", qerr)
			}
			if err := rewindTo(src, offset+int64(n), confirmed); err != nil {
				return models.ResultRef{}, err
			}
			offset = confirmed
			up.report(offset)
			continue
		}
		if err != nil {
			return models.ResultRef{}, err
		}

		offset = res.Offset
		up.report(offset)

		if res.Complete {
			return models.ResultRef{MediaID: res.MediaID, PublicURL: res.PublicURL}, nil
		}
	}
}

// skipTo advances r to the given offset, seeking when possible.
func skipTo(r io.Reader, offset int64) error {
	if offset == 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(offset, io.SeekStart)
		return err
	}
	_, err := io.CopyN(io.Discard, r, offset)
	return err
}

// rewindTo moves the reader from its current position to the confirmed
// offset. Non-seekable sources can only move forward.
func rewindTo(r io.Reader, current, confirmed int64) error {
	switch {
	case confirmed == current:
		return nil
	case confirmed > current:
		return skipToDelta(r, confirmed-current)
	default:
		s, ok := r.(io.Seeker)
		if !ok {
			return fmt.Errorf("cannot rewind non-seekable source from %d to %d", current, confirmed)
		}
		_, err := s.Seek(confirmed, io.SeekStart)
		return err
	}
}

func skipToDelta(r io.Reader, delta int64) error {
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(delta, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, delta)
	return err
}
