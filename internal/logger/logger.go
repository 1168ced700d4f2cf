package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	// 日志目录
	LogDir string
	// 日志文件名（daily 模式下作为后缀: app.log → 20260901-app.log）
	LogFile string
	// 轮转模式: "daily" 按日期轮转, "size" 按大小轮转 (lumberjack)
	Rotate string
	// size 模式下单个日志文件最大大小 (MB)
	MaxSize int
	// size 模式下保留的旧日志文件最大数量
	MaxBackups int
	// 保留的旧日志文件最大天数
	MaxAge int
	// size 模式下是否压缩旧日志文件
	Compress bool
	// 是否同时输出到控制台
	Console bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LogDir:     "logs",
		LogFile:    "app.log",
		Rotate:     "daily",
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
		Console:    true,
	}
}

// DailyWriter 按日期轮转的日志写入器
type DailyWriter struct {
	mu          sync.Mutex
	logDir      string
	logSuffix   string // 文件名后缀，如 "app.log"
	maxAge      int    // 保留天数
	currentDate string // 当前日期 YYYYMMDD
	file        *os.File
}

// NewDailyWriter 创建按日期轮转的日志写入器
func NewDailyWriter(logDir, logSuffix string, maxAge int) *DailyWriter {
	return &DailyWriter{
		logDir:    logDir,
		logSuffix: logSuffix,
		maxAge:    maxAge,
	}
}

// getDateString 获取当前日期字符串 YYYYMMDD
func getDateString() string {
	return time.Now().Format("20060102")
}

// getFilename 根据日期生成文件名
func (w *DailyWriter) getFilename(date string) string {
	return filepath.Join(w.logDir, fmt.Sprintf("%s-%s", date, w.logSuffix))
}

// Write 实现 io.Writer 接口
func (w *DailyWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	currentDate := getDateString()

	// 日期变化或文件未打开时轮转
	if w.file == nil || w.currentDate != currentDate {
		if err := w.rotate(currentDate); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

// rotate 轮转到新的日志文件
func (w *DailyWriter) rotate(newDate string) error {
	if w.file != nil {
		w.file.Close()
	}

	filename := w.getFilename(newDate)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.file = file
	w.currentDate = newDate
	return nil
}

// Close 关闭日志文件
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Cleanup 清理过期的日志文件
func (w *DailyWriter) Cleanup() error {
	if w.maxAge <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	cutoffDate := cutoff.Format("20060102")

	entries, err := os.ReadDir(w.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	var deleted int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		// 匹配格式: YYYYMMDD-suffix
		if !strings.HasSuffix(name, "-"+w.logSuffix) {
			continue
		}

		dateStr := strings.TrimSuffix(name, "-"+w.logSuffix)
		if len(dateStr) != 8 {
			continue
		}

		if dateStr < cutoffDate {
			path := filepath.Join(w.logDir, name)
			if err := os.Remove(path); err != nil {
				log.Printf("⚠️ 删除过期日志失败: %s: %v", path, err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		log.Printf("🗑️ 已清理 %d 个过期日志文件", deleted)
	}

	return nil
}

// Setup 初始化日志系统
func Setup(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// 确保日志目录存在
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var fileWriter io.Writer
	var currentFile string

	if cfg.Rotate == "size" {
		// 按大小轮转（lumberjack）
		currentFile = filepath.Join(cfg.LogDir, cfg.LogFile)
		fileWriter = &lumberjack.Logger{
			Filename:   currentFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	} else {
		// 按日期轮转（默认）
		dailyWriter := NewDailyWriter(cfg.LogDir, cfg.LogFile, cfg.MaxAge)
		currentFile = dailyWriter.getFilename(getDateString())
		fileWriter = dailyWriter

		// 启动后台清理协程
		go func() {
			// 启动时立即清理一次
			if err := dailyWriter.Cleanup(); err != nil {
				log.Printf("⚠️ 日志清理失败: %v", err)
			}

			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()

			for range ticker.C {
				if err := dailyWriter.Cleanup(); err != nil {
					log.Printf("⚠️ 日志清理失败: %v", err)
				}
			}
		}()
	}

	var writer io.Writer
	if cfg.Console {
		writer = io.MultiWriter(os.Stdout, fileWriter)
	} else {
		writer = fileWriter
	}

	// 设置标准库 log 的输出
	log.SetOutput(writer)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("📝 日志系统已初始化")
	log.Printf("📂 日志文件: %s", currentFile)
	if cfg.Rotate == "size" {
		log.Printf("📊 轮转配置: 按大小轮转, 单文件 %dMB, 保留 %d 个备份", cfg.MaxSize, cfg.MaxBackups)
	} else {
		log.Printf("📊 轮转配置: 按日期轮转, 保留 %d 天", cfg.MaxAge)
	}

	return nil
}
