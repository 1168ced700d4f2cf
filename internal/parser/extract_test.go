package parser

import "testing"

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		raw           string
		wantParsed    bool
		wantCode      string
		wantRationale string
	}{
		{
			name:          "clean json object",
			raw:           `{"code":"fmt.Println(1)","rationale":"direct port"}`,
			wantParsed:    true,
			wantCode:      "fmt.Println(1)",
			wantRationale: "direct port",
		},
		{
			name:          "json wrapped in prose",
			raw:           "Here is the result:\n{\"code\":\"x := 1\",\"rationale\":\"simple\"}\nHope this helps!",
			wantParsed:    true,
			wantCode:      "x := 1",
			wantRationale: "simple",
		},
		{
			name:          "json inside markdown fences",
			raw:           "```json\n{\"code\":\"y\",\"rationale\":\"r\"}\n```",
			wantParsed:    true,
			wantCode:      "y",
			wantRationale: "r",
		},
		{
			name:          "no braces degrades to rationale",
			raw:           "I could not produce JSON output",
			wantParsed:    false,
			wantCode:      "",
			wantRationale: "I could not produce JSON output",
		},
		{
			name:          "invalid json degrades",
			raw:           `{"code": "unterminated`,
			wantParsed:    false,
			wantCode:      "",
			wantRationale: `{"code": "unterminated`,
		},
		{
			name:          "missing fields normalize to empty",
			raw:           `{"something":"else"}`,
			wantParsed:    true,
			wantCode:      "",
			wantRationale: "",
		},
		{
			name:          "empty input",
			raw:           "",
			wantParsed:    false,
			wantCode:      "",
			wantRationale: "",
		},
		{
			name:          "closing brace before opening degrades",
			raw:           "} not json {",
			wantParsed:    false,
			wantCode:      "",
			wantRationale: "} not json {",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Extract(tt.raw)
			if got.Parsed != tt.wantParsed {
				t.Fatalf("Parsed = %v, want %v", got.Parsed, tt.wantParsed)
			}
			if got.Code != tt.wantCode {
				t.Fatalf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Rationale != tt.wantRationale {
				t.Fatalf("Rationale = %q, want %q", got.Rationale, tt.wantRationale)
			}
		})
	}
}

func TestExtractCodeWithNestedBraces(t *testing.T) {
	t.Parallel()

	// code 字段自身包含花括号时，首 '{' 到末 '}' 的贪婪切片仍覆盖完整对象
	raw := "Result: {\"code\":\"func main() { fmt.Println(1) }\",\"rationale\":\"kept braces\"}"
	got := Extract(raw)
	if !got.Parsed {
		t.Fatal("expected parse success")
	}
	if got.Code != "func main() { fmt.Println(1) }" {
		t.Fatalf("Code = %q", got.Code)
	}
}
