package rollup

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/trade-pulse/pkg/filestore"
	"github.com/sells-group/trade-pulse/pkg/mailer"
)

func fileMeta(id, name string) filestore.FileMeta {
	return filestore.FileMeta{ID: id, Name: name}
}

func fileMetas(ms ...filestore.FileMeta) []filestore.FileMeta {
	return append([]filestore.FileMeta{}, ms...)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type mockFileStore struct {
	mock.Mock
}

func (m *mockFileStore) List(ctx context.Context, folderID string) ([]filestore.FileMeta, error) {
	args := m.Called(ctx, folderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]filestore.FileMeta), args.Error(1)
}

func (m *mockFileStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockFileStore) Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	args := m.Called(ctx, folderID, name, mimeType, content)
	return args.String(0), args.Error(1)
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Daily(ctx context.Context, tradeDate time.Time, tradeDigest string) (string, error) {
	args := m.Called(ctx, tradeDate, tradeDigest)
	return args.String(0), args.Error(1)
}

func (m *mockSummarizer) Weekly(ctx context.Context, weekStart, weekEnd time.Time, dailyTexts []string) (string, error) {
	args := m.Called(ctx, weekStart, weekEnd, dailyTexts)
	return args.String(0), args.Error(1)
}

func (m *mockSummarizer) Monthly(ctx context.Context, monthStart, monthEnd time.Time, weeklyTexts []string) (string, error) {
	args := m.Called(ctx, monthStart, monthEnd, weeklyTexts)
	return args.String(0), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, subject, textBody, htmlBody string, attachments []mailer.Attachment) error {
	args := m.Called(ctx, subject, textBody, htmlBody, attachments)
	return args.Error(0)
}
