package filestore

import (
	"bytes"
	"context"
	"io"
	"net"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP store.
type FTPOptions struct {
	Host     string // host or host:port; port defaults to 21
	Username string
	Password string
	Timeout  time.Duration
}

// FTPStore implements FileStore against an FTP server. File ids are the
// files' absolute remote paths. Each operation dials a fresh connection.
type FTPStore struct {
	opts FTPOptions
}

// NewFTP creates an FTPStore with the given options.
func NewFTP(opts FTPOptions) *FTPStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Username == "" {
		opts.Username = "anonymous"
		opts.Password = "anonymous@"
	}
	if _, _, err := net.SplitHostPort(opts.Host); err != nil {
		opts.Host = net.JoinHostPort(opts.Host, "21")
	}
	return &FTPStore{opts: opts}
}

func (s *FTPStore) dial(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.opts.Host,
		ftp.DialWithTimeout(s.opts.Timeout),
		ftp.DialWithContext(ctx),
	)
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}
	if err := conn.Login(s.opts.Username, s.opts.Password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp: login")
	}
	return conn, nil
}

// List walks the folder and nested directories.
func (s *FTPStore) List(ctx context.Context, folderID string) ([]FileMeta, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

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

		entries, err := conn.List(current)
		if err != nil {
			return nil, eris.Wrapf(err, "ftp: list %s", current)
		}
		for _, e := range entries {
			full := path.Join(current, e.Name)
			switch e.Type {
			case ftp.EntryTypeFolder:
				if e.Name != "." && e.Name != ".." {
					stack = append(stack, full)
				}
			case ftp.EntryTypeFile:
				modified := e.Time
				files = append(files, FileMeta{
					ID:           full,
					Name:         e.Name,
					ModifiedTime: &modified,
				})
			}
		}
	}

	zap.L().Debug("ftp: listed folder",
		zap.String("folder", folderID),
		zap.Int("files", len(files)),
	)
	return files, nil
}

func (s *FTPStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	resp, err := conn.Retr(fileID)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: retrieve %s", fileID)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: read %s", fileID)
	}
	return data, nil
}

// Upload stores content under the folder. The returned id is the remote
// path, which stays stable for the file's lifetime.
func (s *FTPStore) Upload(ctx context.Context, folderID, name, _ string, content []byte) (string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit() //nolint:errcheck

	full := path.Join(folderID, name)
	if err := conn.Stor(full, bytes.NewReader(content)); err != nil {
		return "", eris.Wrapf(err, "ftp: store %s", full)
	}
	return full, nil
}
