package migrate

import (
	"context"
	"errors"
	"log"

	"github.com/JillVernus/migrate-bridge/internal/gemini"
	"github.com/JillVernus/migrate-bridge/internal/parser"
	"github.com/JillVernus/migrate-bridge/internal/prompt"
)

// Provider 补全提供方接口
// 一个接口加一个有序列表就够了，不需要继承层次：
// 调用方按声明顺序迭代候选，配额错误换下一个，其他错误立即中止
type Provider interface {
	// Complete 对指定模型发起一次同步补全请求
	// 配额/限流失败返回 *gemini.QuotaError
	Complete(ctx context.Context, model, promptText string) (string, error)
}

// Request 一次迁移请求，仅在单个 HTTP 请求期间存在，不持久化
type Request struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Code           string `json:"code"`
	Notes          string `json:"notes,omitempty"`
}

// Result 迁移结果
type Result struct {
	Code           string `json:"code"`
	Rationale      string `json:"rationale"`
	TargetLanguage string `json:"targetLanguage"`
	Model          string `json:"-"` // 满足请求的模型，单独放在响应顶层
	Parsed         bool   `json:"-"` // 结构化提取是否成功（降级时为 false）
}

// ExhaustedError 所有候选模型都因配额受限而失败
// 携带最后一次记录的配额错误
type ExhaustedError struct {
	Last *gemini.QuotaError
}

// Error 实现 error 接口
func (e *ExhaustedError) Error() string {
	return "所有候选模型都配额受限: " + e.Last.Message
}

// Unwrap 暴露底层配额错误
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// AsExhausted 提取错误链中的 ExhaustedError
func AsExhausted(err error) (*ExhaustedError, bool) {
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// Service 迁移流水线：提示词组装 → 模型回退循环 → 结构化提取
type Service struct {
	provider Provider
}

// NewService 创建迁移服务
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Translate 依次尝试候选模型，返回第一个成功的补全结果
// 候选严格按声明顺序尝试，不做随机化或基于成本/延迟的选择；
// 一旦某个候选成功，循环立即结束，后续候选不再尝试
func (s *Service) Translate(ctx context.Context, models []string, req Request) (*Result, error) {
	if len(models) == 0 {
		return nil, errors.New("候选模型列表为空")
	}

	promptText := prompt.Compose(req.SourceLanguage, req.TargetLanguage, req.Code, req.Notes)

	var lastQuotaErr *gemini.QuotaError

	for i, model := range models {
		log.Printf("🎯 尝试候选模型: %s (%d/%d)", model, i+1, len(models))

		text, err := s.provider.Complete(ctx, model, promptText)
		if err != nil {
			if qe, ok := gemini.AsQuotaError(err); ok {
				// 配额受限：记录并尝试下一个候选
				lastQuotaErr = qe
				log.Printf("⚠️ 模型 %s 配额受限，尝试下一个候选", model)
				continue
			}
			// 其他错误是终止性的，不再尝试剩余候选
			// 原样返回，错误消息会直接进入响应的 error 字段
			log.Printf("💥 模型 %s 调用失败 (终止): %v", model, err)
			return nil, err
		}

		outcome := parser.Extract(text)
		return &Result{
			Code:           outcome.Code,
			Rationale:      outcome.Rationale,
			TargetLanguage: req.TargetLanguage,
			Model:          model,
			Parsed:         outcome.Parsed,
		}, nil
	}

	// 所有候选都因配额耗尽
	log.Printf("💥 所有候选模型都配额受限")
	return nil, &ExhaustedError{Last: lastQuotaErr}
}
