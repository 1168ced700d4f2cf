package usage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

// SQLiteStore 服务端用量存储，按客户端 IP 计数
// 可替换 CookieStore 使用，配额不再受客户端控制
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 创建 SQLite 用量存储
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ".config/usage.db"
	}

	// _busy_timeout=5000 - 数据库被锁定时最多等待 5 秒
	connStr := dbPath + "?_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// SQLite 写操作不受益于多连接，限制为单连接避免锁竞争
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("⚠️ Failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		log.Printf("⚠️ Failed to set busy timeout: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS daily_usage (
		client_key TEXT NOT NULL,
		date TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (client_key, date)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// clientKey 返回客户端标识（按 IP 计数）
func clientKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// Load 读取当前客户端今天的用量记录
func (s *SQLiteStore) Load(c *gin.Context) Record {
	today := Today()

	var count int
	err := s.db.QueryRow(
		"SELECT count FROM daily_usage WHERE client_key = ? AND date = ?",
		clientKey(c), today,
	).Scan(&count)
	if err != nil {
		// 无记录或查询失败都视为当日零计数
		return Record{}
	}

	return Record{Count: count, Date: today}
}

// Save 写回用量记录
func (s *SQLiteStore) Save(c *gin.Context, rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_usage (client_key, date, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_key, date) DO UPDATE SET
			count = excluded.count,
			updated_at = excluded.updated_at
	`, clientKey(c), rec.Date, rec.Count, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	return nil
}

// Cleanup 删除非当日的历史记录
func (s *SQLiteStore) Cleanup() (int64, error) {
	result, err := s.db.Exec("DELETE FROM daily_usage WHERE date != ?", Today())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
