package models

import "time"

// UploadSession is one resumable upload in progress. The server tracks the
// confirmed byte offset; clients append chunks strictly at that cursor.
type UploadSession struct {
	ID          string
	ContainerID string
	FileName    string
	FileType    string
	TotalBytes  int64
	Offset      int64

	StorageKey string
	// S3UploadID identifies the backend multipart upload.
	S3UploadID string
	// PartETags accumulates backend part receipts in order.
	PartETags []string

	// MediaID is set once the final chunk lands.
	MediaID  string
	Complete bool

	CreatedAt time.Time
	ExpiresAt time.Time
}
