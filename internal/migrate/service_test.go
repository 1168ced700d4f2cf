package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JillVernus/migrate-bridge/internal/gemini"
)

// fakeProvider 按模型名返回预设结果，记录调用顺序
type fakeProvider struct {
	responses map[string]string
	errors    map[string]error
	calls     []string
}

func (f *fakeProvider) Complete(ctx context.Context, model, promptText string) (string, error) {
	f.calls = append(f.calls, model)
	if err, ok := f.errors[model]; ok {
		return "", err
	}
	return f.responses[model], nil
}

var testModels = []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.5-flash-8b"}

func testRequest() Request {
	return Request{
		SourceLanguage: "JavaScript",
		TargetLanguage: "Go",
		Code:           "console.log(1)",
	}
}

func TestTranslateFirstModelSucceeds(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		responses: map[string]string{
			"gemini-1.5-pro": `{"code":"fmt.Println(1)","rationale":"direct port"}`,
		},
	}
	svc := NewService(p)

	result, err := svc.Translate(context.Background(), testModels, testRequest())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if result.Code != "fmt.Println(1)" {
		t.Fatalf("code = %q", result.Code)
	}
	if result.Rationale != "direct port" {
		t.Fatalf("rationale = %q", result.Rationale)
	}
	if result.Model != "gemini-1.5-pro" {
		t.Fatalf("model = %q, want first candidate", result.Model)
	}
	if !result.Parsed {
		t.Fatal("expected parsed result")
	}
	if len(p.calls) != 1 {
		t.Fatalf("calls = %v, later candidates must not be tried after success", p.calls)
	}
}

func TestTranslateQuotaFallback(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		errors: map[string]error{
			"gemini-1.5-pro": gemini.NewQuotaError("quota exceeded, retry in 5s"),
		},
		responses: map[string]string{
			"gemini-1.5-flash": `{"code":"ok","rationale":"r"}`,
		},
	}
	svc := NewService(p)

	result, err := svc.Translate(context.Background(), testModels, testRequest())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if result.Model != "gemini-1.5-flash" {
		t.Fatalf("model = %q, want second candidate after quota fallback", result.Model)
	}
	if len(p.calls) != 2 {
		t.Fatalf("calls = %v, want exactly two attempts", p.calls)
	}
}

func TestTranslateOrderIsFixed(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		errors: map[string]error{
			"gemini-1.5-pro":   gemini.NewQuotaError("quota"),
			"gemini-1.5-flash": gemini.NewQuotaError("quota"),
		},
		responses: map[string]string{
			"gemini-1.5-flash-8b": `{"code":"c","rationale":"r"}`,
		},
	}
	svc := NewService(p)

	if _, err := svc.Translate(context.Background(), testModels, testRequest()); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	want := []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.5-flash-8b"}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", p.calls, want)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("call order = %v, want declaration order %v", p.calls, want)
		}
	}
}

func TestTranslateFatalErrorAborts(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		errors: map[string]error{
			"gemini-1.5-pro": errors.New("invalid argument"),
		},
	}
	svc := NewService(p)

	_, err := svc.Translate(context.Background(), testModels, testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := AsExhausted(err); ok {
		t.Fatal("fatal error must not report as exhausted")
	}
	if len(p.calls) != 1 {
		t.Fatalf("calls = %v, fatal error must abort remaining candidates", p.calls)
	}
	// 上游错误原样透传，不加包装前缀
	if err.Error() != "invalid argument" {
		t.Fatalf("error = %q, want raw upstream message", err.Error())
	}
}

func TestTranslateAllQuotaLimited(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		errors: map[string]error{
			"gemini-1.5-pro":      gemini.NewQuotaError("quota on pro"),
			"gemini-1.5-flash":    gemini.NewQuotaError("quota on flash"),
			"gemini-1.5-flash-8b": gemini.NewQuotaError("quota on 8b, retry in 9s"),
		},
	}
	svc := NewService(p)

	_, err := svc.Translate(context.Background(), testModels, testRequest())
	ee, ok := AsExhausted(err)
	if !ok {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	// 携带的是最后一次配额错误
	if !strings.Contains(ee.Last.Message, "quota on 8b") {
		t.Fatalf("last quota error = %q, want the final candidate's error", ee.Last.Message)
	}
	if !ee.Last.HasRetryHint || ee.Last.RetryAfterSec != 9 {
		t.Fatalf("retry hint = %v/%v, want true/9", ee.Last.HasRetryHint, ee.Last.RetryAfterSec)
	}
}

func TestTranslateUnparsableOutputDegrades(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		responses: map[string]string{
			"gemini-1.5-pro": "Here is the translated code without JSON",
		},
	}
	svc := NewService(p)

	result, err := svc.Translate(context.Background(), testModels, testRequest())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if result.Parsed {
		t.Fatal("unparsable output must degrade, not error")
	}
	if result.Rationale != "Here is the translated code without JSON" {
		t.Fatalf("rationale = %q, want raw output preserved", result.Rationale)
	}
	if result.Code != "" {
		t.Fatalf("code = %q, want empty on degraded result", result.Code)
	}
}

func TestTranslateEmptyModelList(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeProvider{})
	if _, err := svc.Translate(context.Background(), nil, testRequest()); err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}
