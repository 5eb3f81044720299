package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/summarize"
	anthropicpkg "github.com/sells-group/trade-pulse/pkg/anthropic"
	"github.com/sells-group/trade-pulse/pkg/filestore"
	"github.com/sells-group/trade-pulse/pkg/mailer"
)

// stageEnv holds the initialized ledger and clients needed by the rollup
// commands.
type stageEnv struct {
	Ledger     ledger.Ledger
	Files      filestore.FileStore
	Summarizer summarize.Summarizer
	Mailer     mailer.Mailer
}

// Close releases resources held by the stage environment.
func (e *stageEnv) Close() {
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}

// initLedger opens the configured ledger backend. Callers own Close.
func initLedger(ctx context.Context) (ledger.Ledger, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return ledger.NewSQLite(cfg.Store.Path)
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initFileStore builds the configured file-store client.
func initFileStore(ctx context.Context) (filestore.FileStore, error) {
	switch cfg.Source.Driver {
	case "drive":
		return filestore.NewDrive(ctx, cfg.Source.CredentialsFile)
	case "ftp":
		return filestore.NewFTP(filestore.FTPOptions{
			Host:     cfg.Source.FTP.Host,
			Username: cfg.Source.FTP.Username,
			Password: cfg.Source.FTP.Password,
			Timeout:  time.Duration(cfg.Source.FTP.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, eris.Errorf("unknown source driver %q", cfg.Source.Driver)
	}
}

// initEnv sets up the ledger, file store, summarizer, and mailer for the
// rollup commands. Callers should defer env.Close().
func initEnv(ctx context.Context) (*stageEnv, error) {
	if err := cfg.Validate("rollup"); err != nil {
		return nil, err
	}

	l, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		_ = l.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}

	fs, err := initFileStore(ctx)
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	gen := summarize.New(anthropicpkg.NewClient(cfg.Anthropic.Key), summarize.Options{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
	})

	// Email delivery is optional; briefs are still uploaded without it.
	var m mailer.Mailer
	if cfg.Mail.Host != "" {
		m = mailer.NewSMTP(mailer.SMTPOptions{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
		})
	} else {
		zap.L().Debug("mail.host not set, email delivery disabled")
	}

	return &stageEnv{
		Ledger:     l,
		Files:      fs,
		Summarizer: gen,
		Mailer:     m,
	}, nil
}
