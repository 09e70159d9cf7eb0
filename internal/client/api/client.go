// Package api implements the HTTP client for the Eras ingestion endpoints:
// direct multipart upload, the resumable chunk protocol, server-side copy,
// metadata registration and media deletion.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/love-developer/eras/internal/common"
)

// UploadOffsetHeader carries the resumable protocol's byte cursor.
const UploadOffsetHeader = "Upload-Offset"

// TokenRefresher renews an expired session token. Implementations belong to
// the session layer, which is outside this package's scope.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Client talks to the Eras API server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
	refresher   TokenRefresher
}

// New creates a Client for the given base URL. refresher may be nil, in
// which case an expired session fails without a retry.
func New(baseURL string, httpClient *http.Client, accessToken string, refresher TokenRefresher) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		accessToken: accessToken,
		refresher:   refresher,
	}
}

// IngestResult is the durable outcome returned by the ingestion endpoints.
type IngestResult struct {
	MediaID   string `json:"media_id"`
	PublicURL string `json:"public_url"`
}

// IngestDirect uploads the payload in one multipart request.
func (c *Client) IngestDirect(ctx context.Context, containerID, fileName, mimeType string, r io.Reader) (IngestResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("container_id", containerID); err != nil {
		return IngestResult{}, fmt.Errorf("write field: %w", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return IngestResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return IngestResult{}, fmt.Errorf("copy payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("close multipart: %w", err)
	}

	var out IngestResult
	err = c.doJSON(ctx, http.MethodPost, "/api/media", body.Bytes(), mw.FormDataContentType(), nil, &out)
	if err != nil {
		return IngestResult{}, err
	}
	return out, nil
}

// InitSessionInput starts a resumable upload session.
type InitSessionInput struct {
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	TotalBytes  int64  `json:"total_bytes"`
	ContainerID string `json:"container_id"`
}

// Session identifies a resumable upload in progress.
type Session struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

// InitSession opens a resumable upload session on the server.
func (c *Client) InitSession(ctx context.Context, in InitSessionInput) (Session, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return Session{}, fmt.Errorf("marshal init: %w", err)
	}

	var out Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/uploads", payload, "application/json", nil, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// ChunkResult is the server's answer to one appended chunk.
type ChunkResult struct {
	// Offset is the server-confirmed byte cursor after the chunk.
	Offset int64 `json:"offset"`
	// Complete is true once the final chunk landed; MediaID and PublicURL
	// are then set.
	Complete  bool   `json:"complete"`
	MediaID   string `json:"media_id,omitempty"`
	PublicURL string `json:"public_url,omitempty"`
}

// AppendChunk sends the next chunk at the given offset. An offset the server
// disagrees with yields common.ErrOffsetMismatch wrapped in a network-kind
// failure; the caller should re-query the offset and continue from there.
func (c *Client) AppendChunk(ctx context.Context, uploadID string, offset int64, chunk []byte) (ChunkResult, error) {
	headers := map[string]string{UploadOffsetHeader: strconv.FormatInt(offset, 10)}

	var out ChunkResult
	err := c.doJSON(ctx, http.MethodPatch, "/api/uploads/"+uploadID, chunk, "application/offset+octet-stream", headers, &out)
	if err != nil {
		return ChunkResult{}, err
	}
	return out, nil
}

// SessionOffset queries the last server-confirmed offset for a session.
func (c *Client) SessionOffset(ctx context.Context, uploadID string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "/api/uploads/"+uploadID, nil, "")
	if err != nil {
		return 0, err
	}

	resp, err := c.send(ctx, req, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	offset, err := strconv.ParseInt(resp.Header.Get(UploadOffsetHeader), 10, 64)
	if err != nil {
		return 0, common.NewUploadError(common.FailNetwork, fmt.Errorf("missing %s header: %w", UploadOffsetHeader, err))
	}
	return offset, nil
}

// CopyInput asks the server to duplicate an already-stored object.
type CopyInput struct {
	SourceID        string `json:"source_id"`
	DestContainerID string `json:"dest_container_id"`
	FileName        string `json:"file_name"`
	FileType        string `json:"file_type"`
}

// CopyResult is the outcome of a server-side copy.
type CopyResult struct {
	MediaID        string `json:"media_id"`
	PublicURL      string `json:"public_url"`
	CopyDurationMs int64  `json:"copy_duration_ms"`

	// Fallback tells the caller to transfer the bytes client-side instead
	// (e.g. the source exceeds the server's copy ceiling).
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Copy requests a server-side copy of a stored object into a destination
// container. A Fallback result is returned without error; the transfer
// layer decides what to do with it.
func (c *Client) Copy(ctx context.Context, in CopyInput) (CopyResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return CopyResult{}, fmt.Errorf("marshal copy: %w", err)
	}

	var out CopyResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/media/copy", payload, "application/json", nil, &out); err != nil {
		return CopyResult{}, err
	}
	return out, nil
}

// MetadataInput persists file metadata for bytes written out-of-band.
type MetadataInput struct {
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StoragePath string `json:"storage_path"`
}

// PutMetadata registers metadata for a stored object and returns its media ID.
func (c *Client) PutMetadata(ctx context.Context, in MetadataInput) (IngestResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return IngestResult{}, fmt.Errorf("marshal metadata: %w", err)
	}

	var out IngestResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/media/metadata", payload, "application/json", nil, &out); err != nil {
		return IngestResult{}, err
	}
	return out, nil
}

// CapsuleInput finalizes a capsule from its draft state. MediaIDs must all
// reference durable records; the server rejects a capsule whose media is
// still pending.
type CapsuleInput struct {
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Theme      string    `json:"theme"`
	DeliverAt  time.Time `json:"deliver_at"`
	Recipients []string  `json:"recipients"`
	MediaIDs   []string  `json:"media_ids"`
}

// CapsuleResult identifies a finalized capsule.
type CapsuleResult struct {
	CapsuleID string `json:"capsule_id"`
}

// CreateCapsule finalizes a capsule on the server.
func (c *Client) CreateCapsule(ctx context.Context, in CapsuleInput) (CapsuleResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return CapsuleResult{}, fmt.Errorf("marshal capsule: %w", err)
	}

	var out CapsuleResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/capsules", payload, "application/json", nil, &out); err != nil {
		return CapsuleResult{}, err
	}
	return out, nil
}

// Delete removes a durable media record. Deleting an unknown or already
// deleted ID is not an error.
func (c *Client) Delete(ctx context.Context, mediaID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/media/"+mediaID, nil, "")
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, req, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Download streams the stored bytes of a durable media record. The caller
// closes the reader.
func (c *Client) Download(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/media/"+mediaID+"/content", nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/api/media/"+mediaID+"/content", nil, "")
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, contentType string) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, contentType string, headers map[string]string, out any) error {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.send(ctx, req, func() (*http.Request, error) {
		retry, err := c.newRequest(ctx, method, path, body, contentType)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			retry.Header.Set(k, v)
		}
		return retry, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return common.NewUploadError(common.FailNetwork, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// send executes the request and maps the response status onto the failure
// taxonomy. A 401 triggers one token refresh followed by a single retry
// (rebuild rebuilds the request, since bodies are not rewindable).
func (c *Client) send(ctx context.Context, req *http.Request, rebuild func() (*http.Request, error)) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.NewUploadError(common.FailNetwork, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.refresher != nil && rebuild != nil {
		resp.Body.Close()

		token, rerr := c.refresher.Refresh(ctx)
		if rerr != nil {
			return nil, common.NewUploadError(common.FailAuthExpired, rerr)
		}
		c.accessToken = token

		retry, rerr := rebuild()
		if rerr != nil {
			return nil, rerr
		}
		resp, err = c.httpClient.Do(retry)
		if err != nil {
			return nil, common.NewUploadError(common.FailNetwork, err)
		}
	}

	if err := errorFromStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// maxErrorBody bounds how much of an error response is kept for display.
const maxErrorBody = 512

func errorFromStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return common.NewUploadError(common.FailAuthExpired, fmt.Errorf("%s: %w", msg, common.ErrTokenExpired))
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return common.NewUploadError(common.FailPayloadTooLarge, fmt.Errorf("%s: %w", msg, common.ErrPayloadTooLarge))
	case resp.StatusCode == http.StatusConflict:
		return common.NewUploadError(common.FailNetwork, fmt.Errorf("%s: %w", msg, common.ErrOffsetMismatch))
	case resp.StatusCode >= 500:
		return common.NewUploadError(common.FailNetwork, fmt.Errorf("server error: %s", msg))
	default:
		return common.NewUploadError(common.FailServerRejected, fmt.Errorf("rejected: %s", msg))
	}
}
