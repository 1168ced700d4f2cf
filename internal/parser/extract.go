package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Outcome 模型输出的结构化提取结果
// Parsed 为 false 时 Code 恒为空串，Rationale 为完整原始文本——
// 调用方总能拿到 rationale，但绝不凭空编造 code
type Outcome struct {
	Parsed    bool
	Code      string
	Rationale string
}

// Extract 从模型的自由文本输出中尽力恢复 {code, rationale} 对象
// 取首个 '{' 到末个 '}' 之间的子串（含边界）尝试解析；
// 解析失败或找不到花括号时整段文本降级为 rationale
func Extract(raw string) Outcome {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return Outcome{Parsed: false, Rationale: raw}
	}

	candidate := raw[start : end+1]
	if !gjson.Valid(candidate) {
		return Outcome{Parsed: false, Rationale: raw}
	}

	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return Outcome{Parsed: false, Rationale: raw}
	}

	// 缺失字段归一为空串
	return Outcome{
		Parsed:    true,
		Code:      parsed.Get("code").String(),
		Rationale: parsed.Get("rationale").String(),
	}
}
