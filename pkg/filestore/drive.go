package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMIME = "application/vnd.google-apps.folder"

// DriveStore implements FileStore on Google Drive.
type DriveStore struct {
	svc *drive.Service
}

// NewDrive creates a DriveStore authenticated with a service-account
// credentials file.
func NewDrive(ctx context.Context, credentialsFile string) (*DriveStore, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, eris.Wrap(err, "drive: new service")
	}
	return &DriveStore{svc: svc}, nil
}

// List walks the folder and all nested folders, returning file metadata.
func (s *DriveStore) List(ctx context.Context, folderID string) ([]FileMeta, error) {
	var files []FileMeta
	stack := []string{folderID}
	visited := map[string]bool{}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		entries, err := s.listFolder(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, f := range entries {
			if f.MimeType == folderMIME {
				stack = append(stack, f.Id)
				continue
			}
			meta := FileMeta{ID: f.Id, Name: f.Name, MIMEType: f.MimeType}
			if f.ModifiedTime != "" {
				if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
					meta.ModifiedTime = &t
				}
			}
			files = append(files, meta)
		}
	}

	zap.L().Debug("drive: listed folder",
		zap.String("folder_id", folderID),
		zap.Int("files", len(files)),
	)
	return files, nil
}

func (s *DriveStore) listFolder(ctx context.Context, folderID string) ([]*drive.File, error) {
	var entries []*drive.File
	pageToken := ""
	for {
		call := s.svc.Files.List().
			Q(folderQuery(folderID)).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, eris.Wrapf(err, "drive: list folder %s", folderID)
		}
		entries = append(entries, resp.Files...)
		if resp.NextPageToken == "" {
			return entries, nil
		}
		pageToken = resp.NextPageToken
	}
}

// folderQuery builds the Drive query selecting non-trashed children of a folder.
func folderQuery(folderID string) string {
	return fmt.Sprintf("'%s' in parents and trashed = false", folderID)
}

func (s *DriveStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, eris.Wrapf(err, "drive: download %s", fileID)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "drive: read %s", fileID)
	}
	return data, nil
}

func (s *DriveStore) Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	meta := &drive.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: mimeType,
	}
	f, err := s.svc.Files.Create(meta).
		Media(bytes.NewReader(content)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", eris.Wrapf(err, "drive: upload %s", name)
	}
	zap.L().Debug("drive: uploaded file", zap.String("name", name), zap.String("id", f.Id))
	return f.Id, nil
}
