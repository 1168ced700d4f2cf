package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvConfig 环境变量配置
type EnvConfig struct {
	Port               int
	Env                string
	EnableWebUI        bool
	GoogleAPIKey       string
	LogLevel           string
	EnableRequestLogs  bool
	EnableResponseLogs bool
	RequestTimeout     int // 上游请求超时 (毫秒)
	EnableCORS         bool
	CORSOrigin         string
	HealthCheckPath    string
	TrustedProxies     []string
	// 日志文件相关配置
	LogDir        string
	LogFile       string
	LogRotate     string // 轮转模式: daily / size
	LogMaxSize    int    // size 模式下单个日志文件最大大小 (MB)
	LogMaxBackups int    // 保留的旧日志文件最大数量
	LogMaxAge     int    // 保留的旧日志文件最大天数
	LogCompress   bool   // size 模式下是否压缩旧日志文件
	LogToConsole  bool   // 是否同时输出到控制台
}

// NewEnvConfig 创建环境配置
func NewEnvConfig() *EnvConfig {
	env := getEnv("ENV", "")
	if env == "" {
		env = getEnv("NODE_ENV", "development")
	}

	return &EnvConfig{
		Port:               getEnvAsInt("PORT", 3000),
		Env:                env,
		EnableWebUI:        getEnv("ENABLE_WEB_UI", "true") != "false",
		GoogleAPIKey:       getEnv("GOOGLE_API_KEY", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EnableRequestLogs:  getEnv("ENABLE_REQUEST_LOGS", "true") != "false",
		EnableResponseLogs: getEnv("ENABLE_RESPONSE_LOGS", "true") != "false",
		RequestTimeout:     getEnvAsInt("REQUEST_TIMEOUT", 120000),
		EnableCORS:         getEnv("ENABLE_CORS", "true") != "false",
		CORSOrigin:         getEnv("CORS_ORIGIN", "*"),
		HealthCheckPath:    getEnv("HEALTH_CHECK_PATH", "/health"),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES"),
		// 日志文件配置
		LogDir:        getEnv("LOG_DIR", "logs"),
		LogFile:       getEnv("LOG_FILE", "app.log"),
		LogRotate:     getEnv("LOG_ROTATE", "daily"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 10),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnv("LOG_COMPRESS", "true") != "false",
		LogToConsole:  getEnv("LOG_TO_CONSOLE", "true") != "false",
	}
}

// IsDevelopment 是否为开发环境
func (c *EnvConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction 是否为生产环境
func (c *EnvConfig) IsProduction() bool {
	return c.Env == "production"
}

// ShouldLog 是否应该记录日志
func (c *EnvConfig) ShouldLog(level string) bool {
	levels := map[string]int{
		"error": 0,
		"warn":  1,
		"info":  2,
		"debug": 3,
	}

	currentLevel, ok := levels[c.LogLevel]
	if !ok {
		currentLevel = 2 // 默认 info
	}

	requestLevel, ok := levels[level]
	if !ok {
		return false
	}

	return requestLevel <= currentLevel
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 获取环境变量并转换为整数
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsList 获取逗号分隔的环境变量列表
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
