package requestlog

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Manager 基于 SQLite 的请求日志存储
type Manager struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewManager 创建请求日志管理器
func NewManager(dbPath string) (*Manager, error) {
	if dbPath == "" {
		dbPath = ".config/request_logs.db"
	}

	// _busy_timeout=5000 - 数据库被锁定时最多等待 5 秒
	// _txlock=immediate - 事务立即获取写锁
	connStr := dbPath + "?_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite 写操作不受益于多连接，限制为单连接避免锁竞争
	db.SetMaxOpenConns(1)

	// WAL 模式提升并发读写性能
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("⚠️ Failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		log.Printf("⚠️ Failed to set busy timeout: %v", err)
	}

	m := &Manager{
		db:     db,
		dbPath: dbPath,
	}

	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("📊 请求日志管理器已初始化: %s", dbPath)
	return m, nil
}

// initSchema 创建表和索引
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_logs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		initial_time DATETIME,
		complete_time DATETIME,
		duration_ms INTEGER DEFAULT 0,
		endpoint TEXT,
		source_language TEXT,
		target_language TEXT,
		model TEXT,
		client_ip TEXT,
		code_chars INTEGER DEFAULT 0,
		result_chars INTEGER DEFAULT 0,
		parsed INTEGER DEFAULT 0,
		http_status INTEGER DEFAULT 0,
		error TEXT,
		upstream_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_request_logs_created ON request_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_request_logs_status ON request_logs(status);
	CREATE INDEX IF NOT EXISTS idx_request_logs_model ON request_logs(model);
	`
	if _, err := m.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create request_logs table: %w", err)
	}
	return nil
}

// generateID 生成唯一请求 ID
func generateID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// Add 插入一条新的请求日志记录
func (m *Manager) Add(record *RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = generateID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Status == "" {
		record.Status = StatusCompleted
	}

	query := `
	INSERT INTO request_logs (
		id, status, initial_time, complete_time, duration_ms,
		endpoint, source_language, target_language, model, client_ip,
		code_chars, result_chars, parsed, http_status, error, upstream_error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.ID,
		record.Status,
		record.InitialTime,
		record.CompleteTime,
		record.DurationMs,
		record.Endpoint,
		record.SourceLanguage,
		record.TargetLanguage,
		record.Model,
		record.ClientIP,
		record.CodeChars,
		record.ResultChars,
		record.Parsed,
		record.HTTPStatus,
		record.Error,
		record.UpstreamError,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

// Update 更新已存在的记录（用于完成 pending 请求）
func (m *Manager) Update(id string, record *RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := `
	UPDATE request_logs SET
		status = ?, complete_time = ?, duration_ms = ?,
		model = ?, result_chars = ?, parsed = ?,
		http_status = ?, error = ?, upstream_error = ?
	WHERE id = ?
	`

	result, err := m.db.Exec(query,
		record.Status,
		record.CompleteTime,
		record.DurationMs,
		record.Model,
		record.ResultChars,
		record.Parsed,
		record.HTTPStatus,
		record.Error,
		record.UpstreamError,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update request log: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("request log not found: %s", id)
	}
	return nil
}

// List 按时间倒序返回最近的记录
func (m *Manager) List(limit int) ([]*RequestLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := m.db.Query(`
		SELECT id, status, initial_time, complete_time, duration_ms,
			endpoint, source_language, target_language, model, client_ip,
			code_chars, result_chars, parsed, http_status,
			COALESCE(error, ''), COALESCE(upstream_error, ''), created_at
		FROM request_logs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request logs: %w", err)
	}
	defer rows.Close()

	var logs []*RequestLog
	for rows.Next() {
		var rec RequestLog
		var initialTime, completeTime, createdAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.Status, &initialTime, &completeTime, &rec.DurationMs,
			&rec.Endpoint, &rec.SourceLanguage, &rec.TargetLanguage, &rec.Model, &rec.ClientIP,
			&rec.CodeChars, &rec.ResultChars, &rec.Parsed, &rec.HTTPStatus,
			&rec.Error, &rec.UpstreamError, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		rec.InitialTime = initialTime.Time
		rec.CompleteTime = completeTime.Time
		rec.CreatedAt = createdAt.Time
		logs = append(logs, &rec)
	}
	return logs, rows.Err()
}

// GetStats 返回请求统计汇总
func (m *Manager) GetStats() (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{ByModel: make(map[string]int64)}

	err := m.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'completed' THEN duration_ms END), 0)
		FROM request_logs
	`).Scan(&stats.Total, &stats.Completed, &stats.Errors, &stats.Pending, &stats.AvgDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	rows, err := m.db.Query(`
		SELECT model, COUNT(*) FROM request_logs
		WHERE status = 'completed' AND model != ''
		GROUP BY model
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var count int64
		if err := rows.Scan(&model, &count); err != nil {
			return nil, err
		}
		stats.ByModel[model] = count
	}
	return stats, rows.Err()
}

// CleanupStalePending 把超过 maxAgeSeconds 仍处于 pending 的记录标记为 timeout
// 处理服务重启前遗留的 pending 请求
func (m *Manager) CleanupStalePending(maxAgeSeconds int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(maxAgeSeconds) * time.Second)
	result, err := m.db.Exec(`
		UPDATE request_logs SET status = ?, complete_time = ?
		WHERE status = ? AND initial_time < ?
	`, StatusTimeout, time.Now(), StatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale pending: %w", err)
	}
	return result.RowsAffected()
}

// Cleanup 删除超过保留期的记录
func (m *Manager) Cleanup(maxAgeDays int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxAgeDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	result, err := m.db.Exec("DELETE FROM request_logs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup request logs: %w", err)
	}
	return result.RowsAffected()
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	return m.db.Close()
}
