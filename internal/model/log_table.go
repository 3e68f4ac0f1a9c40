package model

import "time"

// LogSheet 是 MySQL 后端中与电子表格工作表对应的记录，Header 为 JSON 数组。
type LogSheet struct {
	Name      string    `gorm:"primaryKey;type:varchar(64)" json:"name"`
	Header    string    `gorm:"type:text;not null" json:"header"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (LogSheet) TableName() string {
	return "log_sheets"
}

// LogRecord 是追加到某个工作表的一行，Cells 为 JSON 数组。只追加，不更新。
type LogRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sheet     string    `gorm:"type:varchar(64);index;not null" json:"sheet"`
	Cells     string    `gorm:"type:text;not null" json:"cells"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (LogRecord) TableName() string {
	return "log_records"
}
