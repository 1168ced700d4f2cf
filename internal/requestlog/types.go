package requestlog

import "time"

// 请求状态常量
const (
	StatusPending   = "pending"   // 已收到请求，等待上游响应
	StatusCompleted = "completed" // 成功返回
	StatusError     = "error"     // 请求失败
	StatusTimeout   = "timeout"   // 超时（stale pending）
)

// RequestLog 单次迁移请求的记录
type RequestLog struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"` // pending, completed, error, timeout
	InitialTime    time.Time `json:"initialTime"`
	CompleteTime   time.Time `json:"completeTime"`
	DurationMs     int64     `json:"durationMs"`
	Endpoint       string    `json:"endpoint"` // /api/migrate 或 /api/migrate/fix
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Model          string    `json:"model"` // 实际满足请求的模型
	ClientIP       string    `json:"clientIp,omitempty"`
	CodeChars      int       `json:"codeChars"`   // 提交的源代码长度
	ResultChars    int       `json:"resultChars"` // 译文长度
	Parsed         bool      `json:"parsed"`      // 结构化提取是否成功
	HTTPStatus     int       `json:"httpStatus"`
	Error          string    `json:"error,omitempty"`
	UpstreamError  string    `json:"upstreamError,omitempty"` // 上游原始错误信息
	CreatedAt      time.Time `json:"createdAt"`
}

// Stats 请求统计汇总
type Stats struct {
	Total       int64            `json:"total"`
	Completed   int64            `json:"completed"`
	Errors      int64            `json:"errors"`
	Pending     int64            `json:"pending"`
	AvgDuration float64          `json:"avgDurationMs"`
	ByModel     map[string]int64 `json:"byModel"`
}
