package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"report-desk/internal/model"
)

// LogRepository 用 MySQL 模拟只追加的电子表格：log_sheets 保存表头，log_records 保存行。
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository 创建 LogRepository 并迁移两张表。
func NewLogRepository(db *gorm.DB) (*LogRepository, error) {
	if err := db.AutoMigrate(&model.LogSheet{}, &model.LogRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate log tables: %w", err)
	}
	return &LogRepository{db: db}, nil
}

func (r *LogRepository) ID() string  { return "mysql" }
func (r *LogRepository) URL() string { return "" }

// SheetTitles 返回所有已创建的表名。
func (r *LogRepository) SheetTitles(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.LogSheet{}).Order("created_at").Pluck("name", &names).Error
	return names, err
}

// AddSheet 登记一张表及其表头。表已存在时保持原表头不变。
func (r *LogRepository) AddSheet(ctx context.Context, title string, header []string) error {
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	sheet := model.LogSheet{Name: title, Header: string(raw)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&sheet).Error
}

// AppendRow 追加一行。
func (r *LogRepository) AppendRow(ctx context.Context, title string, cells []string) error {
	raw, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model.LogRecord{Sheet: title, Cells: string(raw)}).Error
}
