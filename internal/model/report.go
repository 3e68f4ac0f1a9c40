package model

import (
	"fmt"
	"time"
)

// ReportType 是报告生成服务支持的报告类型。
type ReportType string

const (
	ReportTypeWeekly    ReportType = "weekly"
	ReportTypeExecutive ReportType = "executive"
)

// Valid 判断报告类型是否受支持。
func (t ReportType) Valid() bool {
	return t == ReportTypeWeekly || t == ReportTypeExecutive
}

// OutputFormat 是生成文档的输出格式。
type OutputFormat string

const (
	OutputFormatPDF  OutputFormat = "pdf"
	OutputFormatDOCX OutputFormat = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Valid 判断输出格式是否受支持。
func (f OutputFormat) Valid() bool {
	return f == OutputFormatPDF || f == OutputFormatDOCX
}

// MIMEType 由输出格式确定性地推导出 MIME 类型。
func (f OutputFormat) MIMEType() string {
	if f == OutputFormatPDF {
		return mimePDF
	}
	return mimeDOCX
}

// ISODate 是日期过滤使用的格式 (YYYY-MM-DD)。
const ISODate = "2006-01-02"

const filenameStamp = "20060102_150405"

// ReportFilename 生成 {report_type}_report_{YYYYMMDD_HHMMSS}.{format} 形式的文件名。
func ReportFilename(t ReportType, f OutputFormat, at time.Time) string {
	return fmt.Sprintf("%s_report_%s.%s", t, at.Format(filenameStamp), f)
}

// Artifact 是生成的文档，只属于一条 assistant 消息，不会在会话之外持久化。
type Artifact struct {
	Data     []byte `json:"data"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
}

// NewArtifact 根据报告参数和文档字节构造 Artifact。
func NewArtifact(data []byte, t ReportType, f OutputFormat, at time.Time) *Artifact {
	return &Artifact{
		Data:     data,
		Filename: ReportFilename(t, f, at),
		MIMEType: f.MIMEType(),
	}
}

// ArtifactInfo 是不含字节内容的 Artifact 摘要，用于对话记录接口。
type ArtifactInfo struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// Info 返回 Artifact 的摘要。
func (a *Artifact) Info() *ArtifactInfo {
	if a == nil {
		return nil
	}
	return &ArtifactInfo{Filename: a.Filename, MIMEType: a.MIMEType, Size: len(a.Data)}
}
