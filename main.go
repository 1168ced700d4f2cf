package main

import (
	"embed"
	"fmt"
	"log"
	"time"

	"github.com/JillVernus/migrate-bridge/internal/config"
	"github.com/JillVernus/migrate-bridge/internal/gemini"
	"github.com/JillVernus/migrate-bridge/internal/handlers"
	"github.com/JillVernus/migrate-bridge/internal/logger"
	"github.com/JillVernus/migrate-bridge/internal/middleware"
	"github.com/JillVernus/migrate-bridge/internal/migrate"
	"github.com/JillVernus/migrate-bridge/internal/requestlog"
	"github.com/JillVernus/migrate-bridge/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

//go:embed all:web/dist
var frontendFS embed.FS

// 编译时通过 -ldflags 注入
var (
	Version   = "v1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("没有找到 .env 文件，使用环境变量或默认值")
	}

	// 设置版本信息到 handlers 包
	handlers.SetVersionInfo(Version, BuildTime, GitCommit)

	envCfg := config.NewEnvConfig()

	// 初始化日志系统（必须在其他初始化之前）
	logCfg := &logger.Config{
		LogDir:     envCfg.LogDir,
		LogFile:    envCfg.LogFile,
		Rotate:     envCfg.LogRotate,
		MaxSize:    envCfg.LogMaxSize,
		MaxBackups: envCfg.LogMaxBackups,
		MaxAge:     envCfg.LogMaxAge,
		Compress:   envCfg.LogCompress,
		Console:    envCfg.LogToConsole,
	}
	if err := logger.Setup(logCfg); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}

	if envCfg.GoogleAPIKey == "" {
		log.Println("⚠️ 警告: 未设置 GOOGLE_API_KEY，迁移请求将返回 500")
	}

	// 初始化配置管理器（支持 config.json 热重载）
	cfgManager, err := config.NewManager(".config/config.json")
	if err != nil {
		log.Fatalf("初始化配置管理器失败: %v", err)
	}
	appCfg := cfgManager.GetConfig()

	// 初始化 Gemini 客户端
	geminiClient := gemini.NewClient(envCfg.GoogleAPIKey, appCfg.Generation,
		time.Duration(envCfg.RequestTimeout)*time.Millisecond)

	// 初始化速率限制器（配置可热重载）
	apiRateLimiter := middleware.NewRateLimiter(appCfg.RateLimit.Enabled, appCfg.RateLimit.RequestsPerMinute)
	if appCfg.RateLimit.Enabled {
		log.Printf("✅ 速率限制器已初始化 (%d rpm)", appCfg.RateLimit.RequestsPerMinute)
	}

	// 配置热重载回调：更新生成参数和速率限制
	cfgManager.SetOnChangeCallback(func(newCfg config.AppConfig) {
		geminiClient.SetGenerationConfig(newCfg.Generation)
		apiRateLimiter.UpdateConfig(newCfg.RateLimit.Enabled, newCfg.RateLimit.RequestsPerMinute)
		log.Printf("✅ 配置已热重载 (候选模型: %d, 每日限额: %d, 速率限制: %d rpm)",
			len(newCfg.CandidateModels), newCfg.Usage.Limit, newCfg.RateLimit.RequestsPerMinute)
	})

	migrateService := migrate.NewService(geminiClient)
	log.Printf("✅ 迁移服务已初始化 (候选模型: %v)", cfgManager.CandidateModels())

	// 初始化用量存储（cookie 或 sqlite）
	var usageStore usage.Store
	var sqliteUsageStore *usage.SQLiteStore
	switch appCfg.Usage.Store {
	case config.UsageStoreSQLite:
		sqliteUsageStore, err = usage.NewSQLiteStore(".config/usage.db")
		if err != nil {
			log.Printf("⚠️ SQLite 用量存储初始化失败: %v (回退到 cookie 存储)", err)
			usageStore = usage.NewCookieStore(envCfg.IsProduction())
		} else {
			log.Printf("✅ SQLite 用量存储已初始化")
			usageStore = sqliteUsageStore

			// 每日清理过期的用量记录
			go func() {
				ticker := time.NewTicker(1 * time.Hour)
				defer ticker.Stop()
				for range ticker.C {
					if _, err := sqliteUsageStore.Cleanup(); err != nil {
						log.Printf("⚠️ 清理过期用量记录失败: %v", err)
					}
				}
			}()
		}
	default:
		usageStore = usage.NewCookieStore(envCfg.IsProduction())
	}
	tracker := usage.NewTracker(usageStore)

	// 初始化请求日志管理器
	reqLogManager, err := requestlog.NewManager(".config/request_logs.db")
	if err != nil {
		log.Printf("⚠️ 请求日志管理器初始化失败: %v (日志功能将被禁用)", err)
		reqLogManager = nil
	} else {
		log.Printf("✅ 请求日志管理器已初始化")

		// 启动定期清理 stale pending 请求的 goroutine
		go func() {
			// 立即执行一次清理（处理服务重启前遗留的 pending 请求）
			if updated, err := reqLogManager.CleanupStalePending(300); err != nil {
				log.Printf("⚠️ 清理 stale pending 请求失败: %v", err)
			} else if updated > 0 {
				log.Printf("✅ 启动时清理了 %d 个 stale pending 请求", updated)
			}

			// 每 60 秒检查一次
			ticker := time.NewTicker(60 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if _, err := reqLogManager.CleanupStalePending(300); err != nil {
					log.Printf("⚠️ 清理 stale pending 请求失败: %v", err)
				}
			}
		}()
	}

	// 设置 Gin 模式
	if envCfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由器（不使用 gin.Default() 以避免默认的 Logger 中间件产生大量日志）
	r := gin.New()
	r.Use(gin.Recovery())

	// 🔒 配置可信代理（防止 IP 欺骗攻击）
	// 如果设置了 TRUSTED_PROXIES 环境变量，只信任指定的代理 IP
	// 如果未设置，在生产环境默认不信任任何代理（使用直连 IP）
	if len(envCfg.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(envCfg.TrustedProxies); err != nil {
			log.Printf("⚠️ 设置可信代理失败: %v", err)
		} else {
			log.Printf("✅ 已配置可信代理: %v", envCfg.TrustedProxies)
		}
	} else if envCfg.IsProduction() {
		if err := r.SetTrustedProxies(nil); err != nil {
			log.Printf("⚠️ 禁用可信代理失败: %v", err)
		} else {
			log.Printf("✅ 生产环境: 已禁用代理信任 (使用直连 IP)")
		}
	}
	// 开发环境保持 Gin 默认行为（信任所有代理）

	// 配置安全响应头
	r.Use(middleware.SecurityHeadersMiddleware())

	// 配置 CORS
	if envCfg.EnableCORS {
		r.Use(middleware.CORSMiddleware(envCfg))
	}

	// 🔒 健康检查端点（最小化响应，无需认证）
	r.GET(envCfg.HealthCheckPath, handlers.HealthCheck())

	// 配置重载端点
	r.POST("/admin/config/reload", handlers.ReloadConfig(cfgManager))

	// 详细健康检查端点
	r.GET("/api/health/details", handlers.HealthCheckDetailed(envCfg, cfgManager))

	// 迁移 API 路由（带速率限制）
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.APIRateLimitMiddleware(apiRateLimiter))
	{
		apiGroup.POST("/migrate", handlers.MigrateHandler(envCfg, cfgManager, tracker, migrateService, reqLogManager))
		apiGroup.POST("/migrate/fix", handlers.FixHandler(envCfg, cfgManager, tracker, migrateService, reqLogManager))
		apiGroup.GET("/usage", handlers.GetUsage(cfgManager, tracker))

		// 请求日志 API
		if reqLogManager != nil {
			reqLogHandler := handlers.NewRequestLogHandler(reqLogManager)
			apiGroup.GET("/logs", reqLogHandler.GetLogs)
			apiGroup.GET("/logs/stats", reqLogHandler.GetStats)
			apiGroup.POST("/logs/cleanup", reqLogHandler.CleanupLogs)
		}
	}

	// 静态文件服务 (嵌入的前端)
	if envCfg.EnableWebUI {
		handlers.ServeFrontend(r, frontendFS)
	} else {
		// 纯 API 模式
		r.GET("/", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"name":    "Migrate-Bridge",
				"mode":    "API Only",
				"version": Version,
				"endpoints": gin.H{
					"health":  envCfg.HealthCheckPath,
					"migrate": "/api/migrate",
					"usage":   "/api/usage",
				},
				"message": "Web界面已禁用，此服务器运行在纯API模式下",
			})
		})
	}

	// 启动服务器
	addr := fmt.Sprintf(":%d", envCfg.Port)
	fmt.Printf("\n🚀 Migrate-Bridge 服务器已启动\n")
	fmt.Printf("📌 版本: %s\n", Version)
	if BuildTime != "unknown" {
		fmt.Printf("🕐 构建时间: %s\n", BuildTime)
	}
	if GitCommit != "unknown" {
		fmt.Printf("🔖 Git提交: %s\n", GitCommit)
	}
	fmt.Printf("🌐 入口: http://localhost:%d\n", envCfg.Port)
	fmt.Printf("📋 代码迁移: POST /api/migrate\n")
	fmt.Printf("📋 修复迭代: POST /api/migrate/fix\n")
	fmt.Printf("📊 用量查询: GET /api/usage\n")
	fmt.Printf("💚 健康检查: GET %s\n", envCfg.HealthCheckPath)
	fmt.Printf("📊 环境: %s\n", envCfg.Env)
	fmt.Printf("\n")

	if err := r.Run(addr); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
