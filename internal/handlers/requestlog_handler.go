package handlers

import (
	"net/http"
	"strconv"

	"github.com/JillVernus/migrate-bridge/internal/requestlog"
	"github.com/gin-gonic/gin"
)

// RequestLogHandler 请求日志处理器
type RequestLogHandler struct {
	manager *requestlog.Manager
}

// NewRequestLogHandler 创建请求日志处理器
func NewRequestLogHandler(manager *requestlog.Manager) *RequestLogHandler {
	return &RequestLogHandler{manager: manager}
}

// GetLogs 获取最近的请求日志列表
func (h *RequestLogHandler) GetLogs(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	logs, err := h.manager.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Return empty array instead of null
	if logs == nil {
		logs = []*requestlog.RequestLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetStats 获取统计信息
func (h *RequestLogHandler) GetStats(c *gin.Context) {
	stats, err := h.manager.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CleanupLogs 清理指定天数之前的日志
func (h *RequestLogHandler) CleanupLogs(c *gin.Context) {
	daysStr := c.Query("days")
	if daysStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days parameter is required"})
		return
	}

	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	deleted, err := h.manager.Cleanup(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Cleanup completed",
		"deletedCount":  deleted,
		"retentionDays": days,
	})
}
