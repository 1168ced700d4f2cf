package usage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		count int
		limit int
		want  int
	}{
		{name: "fresh record", count: 0, limit: 5, want: 5},
		{name: "partially used", count: 3, limit: 5, want: 2},
		{name: "exactly at limit", count: 5, limit: 5, want: 0},
		{name: "over limit clamps to zero", count: 7, limit: 5, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Remaining(Record{Count: tt.count, Date: Today()}, tt.limit)
			if got != tt.want {
				t.Fatalf("Remaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalizeResetsStaleDate(t *testing.T) {
	t.Parallel()

	rec := normalize(Record{Count: 5, Date: "2020-01-01"})
	if rec.Count != 0 {
		t.Fatalf("count = %d, want 0 after day rollover", rec.Count)
	}
	if rec.Date != Today() {
		t.Fatalf("date = %q, want %q", rec.Date, Today())
	}
}

func TestNormalizeKeepsTodayRecord(t *testing.T) {
	t.Parallel()

	rec := normalize(Record{Count: 3, Date: Today()})
	if rec.Count != 3 {
		t.Fatalf("count = %d, want 3", rec.Count)
	}
}

func newTestContext(cookie string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/migrate", nil)
	if cookie != "" {
		c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: url.QueryEscape(cookie)})
	}
	return c, w
}

func TestCookieStoreLoad(t *testing.T) {
	tests := []struct {
		name      string
		cookie    string
		wantCount int
		wantDate  string
	}{
		{name: "missing cookie", cookie: "", wantCount: 0, wantDate: ""},
		{name: "malformed cookie", cookie: "not-json", wantCount: 0, wantDate: ""},
		{name: "valid cookie", cookie: `{"count":2,"date":"2026-09-01"}`, wantCount: 2, wantDate: "2026-09-01"},
	}

	store := NewCookieStore(false)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(tt.cookie)
			rec := store.Load(c)
			if rec.Count != tt.wantCount || rec.Date != tt.wantDate {
				t.Fatalf("Load = %+v, want count=%d date=%q", rec, tt.wantCount, tt.wantDate)
			}
		})
	}
}

func TestCookieStoreSaveRoundTrip(t *testing.T) {
	store := NewCookieStore(false)
	c, w := newTestContext("")

	rec := Record{Count: 4, Date: Today()}
	if err := store.Save(c, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	setCookie := w.Header().Get("Set-Cookie")
	if setCookie == "" {
		t.Fatal("no Set-Cookie header written")
	}
	if !strings.Contains(setCookie, CookieName+"=") {
		t.Fatalf("Set-Cookie missing %s: %q", CookieName, setCookie)
	}
	if !strings.Contains(setCookie, "HttpOnly") {
		t.Fatalf("Set-Cookie missing HttpOnly: %q", setCookie)
	}
	if !strings.Contains(setCookie, "SameSite=Lax") {
		t.Fatalf("Set-Cookie missing SameSite=Lax: %q", setCookie)
	}
	if !strings.Contains(setCookie, fmt.Sprintf("Max-Age=%d", CookieMaxAge)) {
		t.Fatalf("Set-Cookie missing Max-Age=%d: %q", CookieMaxAge, setCookie)
	}

	// 验证值可以被重新解析回 Record（gin 会对值做 URL 编码）
	value := strings.TrimPrefix(strings.Split(setCookie, ";")[0], CookieName+"=")
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		t.Fatalf("cookie value unescape failed: %v", err)
	}
	var got Record
	if err := json.Unmarshal([]byte(decoded), &got); err != nil {
		t.Fatalf("cookie value is not valid JSON: %v", err)
	}
	if got != rec {
		t.Fatalf("round-trip = %+v, want %+v", got, rec)
	}
}

func TestTrackerConsume(t *testing.T) {
	store := NewCookieStore(false)
	tracker := NewTracker(store)

	// 第一次请求：空 Cookie → count 1
	c, _ := newTestContext("")
	rec, remaining, err := tracker.Consume(c, 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if rec.Count != 1 || remaining != 4 {
		t.Fatalf("first consume = count %d remaining %d, want 1/4", rec.Count, remaining)
	}

	// 已有计数的 Cookie → 递增
	c2, _ := newTestContext(`{"count":4,"date":"` + Today() + `"}`)
	rec2, remaining2, err := tracker.Consume(c2, 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if rec2.Count != 5 || remaining2 != 0 {
		t.Fatalf("second consume = count %d remaining %d, want 5/0", rec2.Count, remaining2)
	}
}

func TestTrackerExhausted(t *testing.T) {
	tracker := NewTracker(NewCookieStore(false))

	c, _ := newTestContext(`{"count":5,"date":"` + Today() + `"}`)
	if !tracker.Exhausted(c, 5) {
		t.Fatal("expected exhausted at count=limit")
	}

	// 过期日期的记录被重置，不算用尽
	c2, _ := newTestContext(`{"count":5,"date":"2020-01-01"}`)
	if tracker.Exhausted(c2, 5) {
		t.Fatal("stale record should reset, not count as exhausted")
	}
}

func TestTrackerPeekDoesNotIncrement(t *testing.T) {
	tracker := NewTracker(NewCookieStore(false))

	c, w := newTestContext(`{"count":2,"date":"` + Today() + `"}`)
	rec, remaining := tracker.Peek(c, 5)
	if rec.Count != 2 || remaining != 3 {
		t.Fatalf("Peek = count %d remaining %d, want 2/3", rec.Count, remaining)
	}
	if w.Header().Get("Set-Cookie") != "" {
		t.Fatal("Peek must not write cookies")
	}
}
