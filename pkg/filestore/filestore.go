// Package filestore abstracts the blob store holding raw trade logs and
// generated reports. Backends return stable file ids; the ledger uses
// those ids as source identities.
package filestore

import (
	"context"
	"time"
)

// FileMeta describes a file in the store.
type FileMeta struct {
	ID           string
	Name         string
	MIMEType     string
	ModifiedTime *time.Time
}

// FileStore lists, downloads, and uploads named blobs in folders.
type FileStore interface {
	// List returns metadata for all files under the folder, descending
	// into nested folders.
	List(ctx context.Context, folderID string) ([]FileMeta, error)

	// Download returns the file's contents.
	Download(ctx context.Context, fileID string) ([]byte, error)

	// Upload stores content under the folder and returns the new file's id.
	Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error)
}
