package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JillVernus/migrate-bridge/internal/analysis"
	"github.com/JillVernus/migrate-bridge/internal/config"
	"github.com/JillVernus/migrate-bridge/internal/gemini"
	"github.com/JillVernus/migrate-bridge/internal/migrate"
	"github.com/JillVernus/migrate-bridge/internal/prompt"
	"github.com/JillVernus/migrate-bridge/internal/requestlog"
	"github.com/JillVernus/migrate-bridge/internal/usage"
	"github.com/gin-gonic/gin"
)

// UsageRemainingHeader 每次迁移响应都携带的剩余额度头
const UsageRemainingHeader = "X-Usage-Remaining"

// 所有候选模型都配额受限时的提示文案
const quotaExhaustedHint = "All candidate models are currently quota-limited. Try again later or increase API quota."

// migrateRequest POST /api/migrate 请求体
type migrateRequest struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Code           string `json:"code"`
	Notes          string `json:"notes"`
}

// fixRequest POST /api/migrate/fix 请求体
type fixRequest struct {
	TargetLanguage string `json:"targetLanguage"`
	Code           string `json:"code"`
	Notes          string `json:"notes"`
}

// MigrateHandler 迁移端点处理器
func MigrateHandler(envCfg *config.EnvConfig, cfgManager *config.Manager, tracker *usage.Tracker, svc *migrate.Service, reqLogManager *requestlog.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body migrateRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "Missing required fields: sourceLanguage, targetLanguage, code",
			})
			return
		}

		sourceLanguage := strings.TrimSpace(body.SourceLanguage)
		targetLanguage := strings.TrimSpace(body.TargetLanguage)
		if sourceLanguage == "" || targetLanguage == "" || body.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "Missing required fields: sourceLanguage, targetLanguage, code",
			})
			return
		}

		req := migrate.Request{
			SourceLanguage: sourceLanguage,
			TargetLanguage: targetLanguage,
			Code:           body.Code,
			Notes:          body.Notes,
		}
		runMigration(c, envCfg, cfgManager, tracker, svc, reqLogManager, "/api/migrate", req)
	}
}

// FixHandler 语法修复端点处理器
// 复用迁移流水线：源语言 = 目标语言，备注追加"只修语法不改逻辑"指令
// 与普通迁移一样计入每日额度
func FixHandler(envCfg *config.EnvConfig, cfgManager *config.Manager, tracker *usage.Tracker, svc *migrate.Service, reqLogManager *requestlog.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body fixRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "Missing required fields: targetLanguage, code",
			})
			return
		}

		targetLanguage := strings.TrimSpace(body.TargetLanguage)
		if targetLanguage == "" || body.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "Missing required fields: targetLanguage, code",
			})
			return
		}

		req := migrate.Request{
			SourceLanguage: targetLanguage,
			TargetLanguage: targetLanguage,
			Code:           body.Code,
			Notes:          prompt.FixNotes(targetLanguage, body.Notes),
		}
		runMigration(c, envCfg, cfgManager, tracker, svc, reqLogManager, "/api/migrate/fix", req)
	}
}

// runMigration 迁移请求的主流程
// 用量门禁 → 模型回退循环 → 结构化提取 → 启发式诊断
func runMigration(
	c *gin.Context,
	envCfg *config.EnvConfig,
	cfgManager *config.Manager,
	tracker *usage.Tracker,
	svc *migrate.Service,
	reqLogManager *requestlog.Manager,
	endpoint string,
	req migrate.Request,
) {
	startTime := time.Now()

	// 凭证缺失是硬性配置错误，在调用上游前报告
	if envCfg.GoogleAPIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "Server is not configured: missing GOOGLE_API_KEY",
		})
		return
	}

	cfg := cfgManager.GetConfig()
	limit := cfg.Usage.Limit

	// strict 策略：额度用尽直接拒绝，不调用上游也不再递增
	if cfg.Usage.Policy == config.UsagePolicyStrict && tracker.Exhausted(c, limit) {
		c.Header(UsageRemainingHeader, "0")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"ok":    false,
			"error": "Daily usage limit reached. Try again tomorrow.",
		})
		return
	}

	// 递增计数并写回存储；lenient 策略下超限请求照常处理，remaining 报告为 0
	_, remaining, err := tracker.Consume(c, limit)
	if err != nil {
		log.Printf("⚠️ 写回用量记录失败: %v", err)
	}
	c.Header(UsageRemainingHeader, strconv.Itoa(remaining))

	// 创建 pending 请求日志记录
	var requestLogID string
	if reqLogManager != nil && envCfg.EnableRequestLogs {
		pendingLog := &requestlog.RequestLog{
			Status:         requestlog.StatusPending,
			InitialTime:    startTime,
			Endpoint:       endpoint,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			ClientIP:       c.ClientIP(),
			CodeChars:      len(req.Code),
		}
		if err := reqLogManager.Add(pendingLog); err != nil {
			log.Printf("⚠️ 创建 pending 请求日志失败: %v", err)
		} else {
			requestLogID = pendingLog.ID
		}
	}

	if envCfg.ShouldLog("info") {
		log.Printf("📥 迁移请求: %s → %s (%d 字符)", req.SourceLanguage, req.TargetLanguage, len(req.Code))
	}

	result, err := svc.Translate(c.Request.Context(), cfg.CandidateModels, req)
	if err != nil {
		handleMigrationError(c, reqLogManager, requestLogID, startTime, err)
		return
	}

	// 启发式诊断：纯信息性，从不阻断结果返回
	report := analysis.Analyze(result.Code, req.TargetLanguage)

	if envCfg.EnableResponseLogs {
		log.Printf("⏱️ 迁移完成: %dms, 模型: %s, 译文 %d 字符",
			time.Since(startTime).Milliseconds(), result.Model, len(result.Code))
	}

	if reqLogManager != nil && requestLogID != "" {
		_ = reqLogManager.Update(requestLogID, &requestlog.RequestLog{
			Status:       requestlog.StatusCompleted,
			CompleteTime: time.Now(),
			DurationMs:   time.Since(startTime).Milliseconds(),
			Model:        result.Model,
			ResultChars:  len(result.Code),
			Parsed:       result.Parsed,
			HTTPStatus:   200,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"result":   result,
		"model":    result.Model,
		"analysis": report,
	})
}

// handleMigrationError 迁移失败时的统一错误响应
func handleMigrationError(c *gin.Context, reqLogManager *requestlog.Manager, requestLogID string, startTime time.Time, err error) {
	var status int
	var payload gin.H
	upstreamErr := ""

	if ee, ok := migrate.AsExhausted(err); ok {
		// 所有候选模型都配额受限
		status = http.StatusTooManyRequests
		payload = gin.H{
			"ok":      false,
			"error":   quotaExhaustedHint,
			"details": ee.Last.Message,
		}
		if ee.Last.HasRetryHint {
			payload["retryAfterSec"] = ee.Last.RetryAfterSec
		}
		upstreamErr = ee.Last.Message
	} else {
		// 终止性上游错误；消息本身匹配限流特征时仍按 429 返回
		status = http.StatusInternalServerError
		if gemini.IsQuotaMessage(err.Error()) {
			status = http.StatusTooManyRequests
		}
		payload = gin.H{
			"ok":    false,
			"error": err.Error(),
		}
	}

	if reqLogManager != nil && requestLogID != "" {
		_ = reqLogManager.Update(requestLogID, &requestlog.RequestLog{
			Status:        requestlog.StatusError,
			CompleteTime:  time.Now(),
			DurationMs:    time.Since(startTime).Milliseconds(),
			HTTPStatus:    status,
			Error:         err.Error(),
			UpstreamError: upstreamErr,
		})
	}

	c.JSON(status, payload)
}
