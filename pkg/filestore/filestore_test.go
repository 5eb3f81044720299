package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderQuery(t *testing.T) {
	assert.Equal(t, "'abc123' in parents and trashed = false", folderQuery("abc123"))
}

func TestNewFTP_Defaults(t *testing.T) {
	s := NewFTP(FTPOptions{Host: "ftp.example.com"})
	assert.Equal(t, "ftp.example.com:21", s.opts.Host)
	assert.Equal(t, "anonymous", s.opts.Username)
	assert.NotZero(t, s.opts.Timeout)

	s = NewFTP(FTPOptions{Host: "ftp.example.com:2121", Username: "trader", Password: "secret"})
	assert.Equal(t, "ftp.example.com:2121", s.opts.Host)
	assert.Equal(t, "trader", s.opts.Username)
}
