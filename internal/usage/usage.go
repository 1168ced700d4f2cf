package usage

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie 相关常量
const (
	CookieName   = "migrate_usage"
	CookieMaxAge = 24 * 60 * 60 // 24 小时
)

// Record 每日用量记录
// 存储在客户端 Cookie（或服务端存储）中，日期变化时隐式重置
type Record struct {
	Count int    `json:"count"`
	Date  string `json:"date"` // YYYY-MM-DD
}

// Today 返回当前日期字符串 YYYY-MM-DD
func Today() string {
	return time.Now().Format("2006-01-02")
}

// Store 用量存储接口
// 配额状态的信任边界在这里显式化：默认实现把计数器放在客户端 Cookie 里
// （清除 Cookie 即可绕过，这是有意的简化），可替换为服务端存储
type Store interface {
	// Load 读取当前记录；缺失或损坏的记录视为零值
	Load(c *gin.Context) Record
	// Save 写回更新后的记录
	Save(c *gin.Context, rec Record) error
}

// Tracker 每日用量跟踪器
type Tracker struct {
	store Store
}

// NewTracker 创建用量跟踪器
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// normalize 归一化记录：日期不是今天（含缺失/损坏）时重置为当日零计数
func normalize(rec Record) Record {
	today := Today()
	if rec.Date != today || rec.Count < 0 {
		return Record{Count: 0, Date: today}
	}
	return rec
}

// Remaining 计算剩余额度 max(0, limit-count)
func Remaining(rec Record, limit int) int {
	remaining := limit - rec.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Peek 读取当前记录和剩余额度，不做递增
func (t *Tracker) Peek(c *gin.Context, limit int) (Record, int) {
	rec := normalize(t.store.Load(c))
	return rec, Remaining(rec, limit)
}

// Exhausted 判断当前记录是否已用尽额度（strict 策略在调用上游前检查）
func (t *Tracker) Exhausted(c *gin.Context, limit int) bool {
	rec := normalize(t.store.Load(c))
	return rec.Count >= limit
}

// Consume 递增当日计数并写回存储，返回更新后的记录和剩余额度
// 同一客户端的并发请求可能竞争越过限额，Cookie 存储不提供原子性保证
func (t *Tracker) Consume(c *gin.Context, limit int) (Record, int, error) {
	rec := normalize(t.store.Load(c))
	rec.Count++
	err := t.store.Save(c, rec)
	return rec, Remaining(rec, limit), err
}

// CookieStore 基于客户端 Cookie 的用量存储（默认实现）
type CookieStore struct {
	secure bool
}

// NewCookieStore 创建 Cookie 用量存储
// secure 为 true 时 Cookie 仅通过 HTTPS 传输
func NewCookieStore(secure bool) *CookieStore {
	return &CookieStore{secure: secure}
}

// Load 从 Cookie 读取用量记录
func (s *CookieStore) Load(c *gin.Context) Record {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return Record{}
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// 损坏的 Cookie 视为无记录
		return Record{}
	}
	return rec
}

// Save 把用量记录写回 Cookie
// HTTP-only + SameSite=Lax，作用域整站，有效期 24 小时
func (s *CookieStore) Save(c *gin.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, string(data), CookieMaxAge, "/", "", s.secure, true)
	return nil
}
