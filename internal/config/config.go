package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// 用量策略常量
const (
	UsagePolicyStrict  = "strict"  // 达到限额后直接拒绝，不再调用上游
	UsagePolicyLenient = "lenient" // 达到限额后仍然处理请求，remaining 报告为 0
)

// 用量存储类型常量
const (
	UsageStoreCookie = "cookie" // 客户端 Cookie 存储（默认，无服务端状态）
	UsageStoreSQLite = "sqlite" // 服务端 SQLite 存储（按客户端 IP 计数）
)

// GenerationConfig 上游生成参数
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// UsageConfig 每日用量限制配置
type UsageConfig struct {
	Limit  int    `json:"limit"`  // 每日请求限额
	Policy string `json:"policy"` // strict / lenient
	Store  string `json:"store"`  // cookie / sqlite
}

// RateLimitConfig 每分钟请求数限制配置（与每日用量配额相互独立）
type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requestsPerMinute"`
}

// AppConfig 应用配置（支持热重载）
type AppConfig struct {
	// 候选模型列表，按声明顺序依次尝试，不做重排
	CandidateModels []string         `json:"candidateModels"`
	Generation      GenerationConfig `json:"generation"`
	Usage           UsageConfig      `json:"usage"`
	RateLimit       RateLimitConfig  `json:"rateLimit"`
}

// DefaultConfig 返回默认应用配置
func DefaultConfig() AppConfig {
	return AppConfig{
		CandidateModels: []string{
			"gemini-1.5-pro",
			"gemini-1.5-flash",
			"gemini-1.5-flash-8b",
		},
		Generation: GenerationConfig{
			Temperature:     0.2,
			TopK:            32,
			TopP:            0.95,
			MaxOutputTokens: 4096,
		},
		Usage: UsageConfig{
			Limit:  5,
			Policy: UsagePolicyStrict,
			Store:  UsageStoreCookie,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
	}
}

// Manager 管理应用配置，支持文件热重载
type Manager struct {
	mu         sync.RWMutex
	config     AppConfig
	configFile string
	watcher    *fsnotify.Watcher
	onChange   func(AppConfig)
}

// NewManager 创建配置管理器并加载配置文件
// 配置文件不存在时写入默认配置
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{
		configFile: configFile,
	}

	if err := m.loadConfig(); err != nil {
		log.Printf("⚠️ 配置文件不存在或无效，使用默认配置: %v", err)
		m.mu.Lock()
		m.config = DefaultConfig()
		m.mu.Unlock()
		if err := m.saveConfig(); err != nil {
			log.Printf("⚠️ 保存默认配置失败: %v", err)
		}
	}

	if err := m.startWatcher(); err != nil {
		log.Printf("⚠️ 启动配置文件监听失败: %v", err)
	}

	return m, nil
}

// GetConfig 获取当前配置的副本
func (m *Manager) GetConfig() AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneConfig(m.config)
}

// CandidateModels 获取候选模型列表（副本）
func (m *Manager) CandidateModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	models := make([]string, len(m.config.CandidateModels))
	copy(models, m.config.CandidateModels)
	return models
}

// SetOnChangeCallback 设置配置变更回调
func (m *Manager) SetOnChangeCallback(fn func(AppConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Reload 重新加载配置文件
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Close 停止文件监听
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

// loadConfig 从文件加载配置
func (m *Manager) loadConfig() error {
	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return err
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cloneConfig(cfg)
	onChange := m.onChange
	m.mu.Unlock()

	log.Printf("✅ 配置已加载: %d 个候选模型, 每日限额 %d (%s)",
		len(cfg.CandidateModels), cfg.Usage.Limit, cfg.Usage.Policy)

	if onChange != nil {
		onChange(cloneConfig(cfg))
	}
	return nil
}

// saveConfig 保存配置到文件
func (m *Manager) saveConfig() error {
	dir := filepath.Dir(m.configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	m.mu.RLock()
	cfg := cloneConfig(m.config)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.configFile, data, 0644)
}

// startWatcher 启动配置文件变更监听
func (m *Manager) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	m.watcher = watcher
	configBase := filepath.Base(m.configFile)

	go func() {
		// 去抖动：编辑器保存往往触发多个事件
		var lastReload time.Time

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != configBase {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if time.Since(lastReload) < 500*time.Millisecond {
					continue
				}
				lastReload = time.Now()

				if err := m.loadConfig(); err != nil {
					log.Printf("⚠️ 配置热重载失败: %v", err)
				} else {
					log.Printf("🔄 配置已热重载: %s", m.configFile)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ 配置文件监听错误: %v", err)
			}
		}
	}()

	return watcher.Add(filepath.Dir(m.configFile))
}

// validateConfig 校验配置
func validateConfig(cfg AppConfig) error {
	if len(cfg.CandidateModels) == 0 {
		return fmt.Errorf("candidateModels 不能为空")
	}
	for _, model := range cfg.CandidateModels {
		if model == "" {
			return fmt.Errorf("candidateModels 包含空模型名")
		}
	}
	if cfg.Usage.Limit < 0 {
		return fmt.Errorf("usage.limit 不能为负数: %d", cfg.Usage.Limit)
	}
	switch cfg.Usage.Policy {
	case UsagePolicyStrict, UsagePolicyLenient:
	default:
		return fmt.Errorf("usage.policy 无效: %q (可选: strict, lenient)", cfg.Usage.Policy)
	}
	switch cfg.Usage.Store {
	case UsageStoreCookie, UsageStoreSQLite:
	default:
		return fmt.Errorf("usage.store 无效: %q (可选: cookie, sqlite)", cfg.Usage.Store)
	}
	if cfg.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("generation.maxOutputTokens 必须大于 0")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rateLimit.requestsPerMinute 不能为负数: %d", cfg.RateLimit.RequestsPerMinute)
	}
	return nil
}

// cloneConfig 深拷贝配置，避免外部修改内部状态
func cloneConfig(cfg AppConfig) AppConfig {
	out := cfg
	out.CandidateModels = make([]string, len(cfg.CandidateModels))
	copy(out.CandidateModels, cfg.CandidateModels)
	return out
}
