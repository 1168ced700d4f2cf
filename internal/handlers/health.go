package handlers

import (
	"time"

	"github.com/JillVernus/migrate-bridge/internal/config"
	"github.com/gin-gonic/gin"
)

// HealthCheck 健康检查处理器（最小化响应，无需认证）
// 🔒 只返回基本状态，不暴露系统信息
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
		})
	}
}

// HealthCheckDetailed 详细健康检查处理器
// 返回完整的系统信息，仅供管理员使用
func HealthCheckDetailed(envCfg *config.EnvConfig, cfgManager *config.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := cfgManager.GetConfig()

		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).Seconds(),
			"mode":      envCfg.Env,
			"version":   getVersion(),
			"config": gin.H{
				"candidateModels": cfg.CandidateModels,
				"usageLimit":      cfg.Usage.Limit,
				"usagePolicy":     cfg.Usage.Policy,
				"usageStore":      cfg.Usage.Store,
			},
			"environment": gin.H{
				"enableWebUI":       envCfg.EnableWebUI,
				"enableCORS":        envCfg.EnableCORS,
				"enableRequestLogs": envCfg.EnableRequestLogs,
				"logLevel":          envCfg.LogLevel,
			},
		})
	}
}

// getVersion 获取版本信息
func getVersion() gin.H {
	// 这些变量在编译时通过 -ldflags 注入
	return gin.H{
		"version":   versionString,
		"buildTime": buildTime,
		"gitCommit": gitCommit,
	}
}

var (
	versionString = "v0.0.0-dev"
	buildTime     = "unknown"
	gitCommit     = "unknown"
)

// SetVersionInfo 设置版本信息（从 main 调用）
func SetVersionInfo(version, build, commit string) {
	versionString = version
	buildTime = build
	gitCommit = commit
}

// ReloadConfig 配置重载处理器
func ReloadConfig(cfgManager *config.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cfgManager.Reload(); err != nil {
			c.JSON(500, gin.H{
				"status":    "error",
				"message":   "Config reload failed",
				"error":     err.Error(),
				"timestamp": time.Now().Format(time.RFC3339),
			})
			return
		}

		cfg := cfgManager.GetConfig()
		c.JSON(200, gin.H{
			"status":    "success",
			"message":   "Config reloaded",
			"timestamp": time.Now().Format(time.RFC3339),
			"config": gin.H{
				"candidateModels": cfg.CandidateModels,
				"usageLimit":      cfg.Usage.Limit,
			},
		})
	}
}

var startTime = time.Now()
