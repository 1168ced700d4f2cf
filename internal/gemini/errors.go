package gemini

import (
	"errors"
	"regexp"
	"strconv"
)

// 上游限流错误的文本特征（大小写不敏感）
var quotaPattern = regexp.MustCompile(`(?i)quota|too many requests|rate.?limit|429`)

// "retry in 7.5s" 形式的重试提示
// 上游改动消息格式时这里会静默失配，RetryAfterSec 不再填充（无兜底估算）
var retryHintPattern = regexp.MustCompile(`(?i)retry in\s*([0-9.]+)s`)

// QuotaError 上游配额/限流错误
// 在模型回退循环中携带，出现成功或终止性失败后即丢弃
type QuotaError struct {
	Message       string
	RetryAfterSec float64
	HasRetryHint  bool
}

// Error 实现 error 接口
func (e *QuotaError) Error() string {
	return e.Message
}

// IsQuotaMessage 判断错误消息是否匹配配额/限流特征
func IsQuotaMessage(message string) bool {
	return quotaPattern.MatchString(message)
}

// NewQuotaError 从上游错误消息构造 QuotaError，解析可选的重试提示
func NewQuotaError(message string) *QuotaError {
	qe := &QuotaError{Message: message}
	if m := retryHintPattern.FindStringSubmatch(message); m != nil {
		if sec, err := strconv.ParseFloat(m[1], 64); err == nil {
			qe.RetryAfterSec = sec
			qe.HasRetryHint = true
		}
	}
	return qe
}

// ClassifyError 对上游错误分类
// 配额/限流错误返回 *QuotaError（调用方继续尝试下一个候选模型），
// 其他错误原样返回（终止性，直接中止整个操作）
func ClassifyError(statusCode int, message string, err error) error {
	if statusCode == 429 || IsQuotaMessage(message) {
		return NewQuotaError(message)
	}
	if err != nil {
		return err
	}
	return errors.New(message)
}

// AsQuotaError 提取错误链中的 QuotaError
func AsQuotaError(err error) (*QuotaError, bool) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
