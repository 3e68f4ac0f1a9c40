package logsink

import (
	"context"
	"fmt"

	"report-desk/internal/config"
	"report-desk/internal/repository"
	"report-desk/pkg/database"
	"report-desk/pkg/sheets"
)

// SheetsOpener 返回打开 Google 电子表格的 Opener。没有凭证时 sink 被禁用。
func SheetsOpener(cfg config.SheetsConfig) Opener {
	return func(ctx context.Context, credentials []byte) (Workbook, error) {
		if len(credentials) == 0 {
			return nil, fmt.Errorf("%w: Google Sheets credentials not found", ErrDisabled)
		}
		wb, err := sheets.Open(ctx, credentials, cfg.SpreadsheetID, cfg.Title)
		if err != nil {
			return nil, err
		}
		return wb, nil
	}
}

// MySQLOpener 返回以 MySQL 为后端的 Opener，凭证参数不使用。
func MySQLOpener(cfg config.MySQLConfig) Opener {
	return func(_ context.Context, _ []byte) (Workbook, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: mysql dsn not configured", ErrDisabled)
		}
		db, err := database.OpenMySQL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		repo, err := repository.NewLogRepository(db)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

// NewFromConfig 根据 sink.backend 构造 Sink。
func NewFromConfig(cfg *config.Config) (*Sink, error) {
	opts := Options{
		Credentials:       []byte(cfg.Sheets.Credentials),
		CredentialsSource: cfg.Sheets.CredentialsSource,
	}
	switch cfg.Sink.Backend {
	case "", "sheets":
		opts.Open = SheetsOpener(cfg.Sheets)
	case "mysql":
		opts.CredentialsSource = ""
		opts.Open = MySQLOpener(cfg.MySQL)
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Sink.Backend)
	}
	return New(opts), nil
}
