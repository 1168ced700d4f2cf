package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JillVernus/migrate-bridge/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultBaseURL Gemini generateContent REST 端点默认地址
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// 所有伤害类别阈值放宽为 BLOCK_NONE（与上游请求参数一致，不做内容拦截）
const safetySettingsJSON = `[
	{"category":"HARM_CATEGORY_HATE_SPEECH","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","threshold":"BLOCK_NONE"},
	{"category":"HARM_CATEGORY_CIVIC_INTEGRITY","threshold":"BLOCK_NONE"}
]`

// Client Gemini generateContent 客户端
// 每次调用是一次同步请求，取消通过 ctx 传递给底层 HTTP 客户端
type Client struct {
	apiKey     string
	httpClient *http.Client

	// 配置热重载会在请求进行中更新这些字段，读写都要持锁
	mu      sync.RWMutex
	baseURL string
	gen     config.GenerationConfig
}

// NewClient 创建 Gemini 客户端
func NewClient(apiKey string, gen config.GenerationConfig, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		gen:     gen,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBaseURL 覆盖上游地址（测试用）
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	c.mu.Unlock()
}

// SetGenerationConfig 更新生成参数（配置热重载时调用）
func (c *Client) SetGenerationConfig(gen config.GenerationConfig) {
	c.mu.Lock()
	c.gen = gen
	c.mu.Unlock()
}

// buildRequestBody 构造 generateContent 请求体
func (c *Client) buildRequestBody(promptText string) (string, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	body := `{"contents":[{"role":"user","parts":[{"text":""}]}]}`

	body, err := sjson.Set(body, "contents.0.parts.0.text", promptText)
	if err != nil {
		return "", err
	}
	body, _ = sjson.Set(body, "generationConfig.temperature", gen.Temperature)
	body, _ = sjson.Set(body, "generationConfig.topK", gen.TopK)
	body, _ = sjson.Set(body, "generationConfig.topP", gen.TopP)
	body, _ = sjson.Set(body, "generationConfig.maxOutputTokens", gen.MaxOutputTokens)
	body, err = sjson.SetRaw(body, "safetySettings", safetySettingsJSON)
	if err != nil {
		return "", err
	}
	return body, nil
}

// Complete 调用指定模型生成补全，返回原始文本输出
// 配额/限流失败返回 *QuotaError，其他失败为终止性错误
func (c *Client) Complete(ctx context.Context, model, promptText string) (string, error) {
	reqBody, err := c.buildRequestBody(promptText)
	if err != nil {
		return "", fmt.Errorf("构造请求体失败: %w", err)
	}

	c.mu.RLock()
	baseURL := c.baseURL
	c.mu.RUnlock()

	targetURL := baseURL + "/v1beta/models/" + model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader([]byte(reqBody)))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	// 密钥走请求头，避免出现在 URL 里
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ClassifyError(0, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取上游响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := gjson.GetBytes(respBody, "error.message").String()
		if message == "" {
			message = strings.TrimSpace(string(respBody))
		}
		if message == "" {
			message = fmt.Sprintf("上游返回状态码 %d", resp.StatusCode)
		}
		return "", ClassifyError(resp.StatusCode, message, nil)
	}

	return extractText(respBody)
}

// extractText 从 generateContent 响应中提取首个候选的全部文本片段
func extractText(respBody []byte) (string, error) {
	parts := gjson.GetBytes(respBody, "candidates.0.content.parts")
	if !parts.Exists() {
		// 没有候选内容（如被整体拦截），携带 finishReason 方便排查
		reason := gjson.GetBytes(respBody, "candidates.0.finishReason").String()
		if reason != "" {
			return "", errors.New("上游未返回内容 (finishReason: " + reason + ")")
		}
		return "", errors.New("上游未返回任何候选内容")
	}

	var sb strings.Builder
	for _, part := range parts.Array() {
		sb.WriteString(part.Get("text").String())
	}
	return sb.String(), nil
}
