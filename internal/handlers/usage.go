package handlers

import (
	"net/http"

	"github.com/JillVernus/migrate-bridge/internal/config"
	"github.com/JillVernus/migrate-bridge/internal/usage"
	"github.com/gin-gonic/gin"
)

// GetUsage 查询当前客户端的剩余额度，不递增计数
func GetUsage(cfgManager *config.Manager, tracker *usage.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := cfgManager.GetConfig().Usage.Limit
		rec, remaining := tracker.Peek(c, limit)

		c.JSON(http.StatusOK, gin.H{
			"limit":     limit,
			"used":      rec.Count,
			"remaining": remaining,
			"date":      rec.Date,
		})
	}
}
