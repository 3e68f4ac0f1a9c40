package model

import (
	"strconv"
	"time"
)

// 两张日志表的名称与固定表头。
const (
	RequestLogTable  = "Logs"
	FeedbackLogTable = "Feedback"
)

var (
	RequestLogHeader = []string{
		"Timestamp",
		"User Input",
		"Report Type",
		"Output Format",
		"Author",
		"Start Date",
		"End Date",
		"Response Time (s)",
		"Status",
		"Error Message",
		"Session ID",
	}
	FeedbackLogHeader = []string{
		"Timestamp",
		"Session ID",
		"Rating",
		"Feedback Text",
		"Report Type",
		"User Input",
	}
)

const rowTimestamp = "2006-01-02T15:04:05.000000"

// RequestLogRow 是 Logs 表中的一行。
type RequestLogRow struct {
	Timestamp    time.Time     `json:"timestamp"`
	UserInput    string        `json:"user_input"`
	ReportType   ReportType    `json:"report_type"`
	OutputFormat OutputFormat  `json:"output_format"`
	Author       string        `json:"author"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	ResponseTime time.Duration `json:"response_time"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	SessionID    string        `json:"session_id"`
}

// Cells 按表头顺序返回单元格。
func (r RequestLogRow) Cells() []string {
	return []string{
		r.Timestamp.Format(rowTimestamp),
		r.UserInput,
		string(r.ReportType),
		string(r.OutputFormat),
		r.Author,
		r.StartDate,
		r.EndDate,
		strconv.FormatFloat(r.ResponseTime.Seconds(), 'f', 2, 64),
		r.Status,
		r.ErrorMessage,
		r.SessionID,
	}
}

// FeedbackLogRow 是 Feedback 表中的一行。
type FeedbackLogRow struct {
	Timestamp    time.Time  `json:"timestamp"`
	SessionID    string     `json:"session_id"`
	Rating       int        `json:"rating"`
	FeedbackText string     `json:"feedback_text"`
	ReportType   ReportType `json:"report_type"`
	UserInput    string     `json:"user_input"`
}

// Cells 按表头顺序返回单元格。
func (r FeedbackLogRow) Cells() []string {
	return []string{
		r.Timestamp.Format(rowTimestamp),
		r.SessionID,
		strconv.Itoa(r.Rating),
		r.FeedbackText,
		string(r.ReportType),
		r.UserInput,
	}
}
