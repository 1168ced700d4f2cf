package analysis

import (
	"strings"

	lua "github.com/Shopify/go-lua"
)

// PartialAdvisory 检测到未完成迁移标记时的固定提示文案
// 无论匹配到哪个或多少个标记，都只返回这一条
const PartialAdvisory = "The assistant indicates some parts may require manual completion."

// 未完成迁移的启发式标记词汇（大小写不敏感子串匹配）
var partialMarkers = []string{
	"todo", "fixme", "not implemented", "stub", "pseudo", "placeholder",
	"manually", "manual step", "cannot", "not supported", "omitted",
}

// Report 启发式诊断结果，纯信息性，从不阻断结果展示
type Report struct {
	Issues         []string `json:"issues"`
	PartialWarning string   `json:"partialWarning,omitempty"`
}

// CheckBalance 括号/方括号/花括号配对检查（基于栈的扫描）
// 闭合符与最近的开启符不匹配、或扫描结束仍有未闭合的开启符时返回 false
func CheckBalance(s string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune

	for _, ch := range s {
		switch ch {
		case '(', '[', '{':
			stack = append(stack, ch)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// HasPartialMarkers 判断文本是否包含未完成迁移标记
func HasPartialMarkers(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range partialMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// probeLua 用 Lua 编译器试编译文本，返回语法错误消息（空串表示通过）
// 只编译不执行
func probeLua(text string) string {
	l := lua.NewState()
	if err := lua.LoadString(l, text); err != nil {
		return err.Error()
	}
	return ""
}

// Analyze 对翻译结果做启发式诊断
// 语言特定的解析探测仅在目标语言恰好为 "Lua" 时执行，其他语言跳过
func Analyze(text, targetLanguage string) Report {
	var report Report

	if !CheckBalance(text) {
		report.Issues = append(report.Issues, "Unbalanced brackets/braces/parentheses detected.")
	}

	if targetLanguage == "Lua" {
		if msg := probeLua(text); msg != "" {
			report.Issues = append(report.Issues, "Lua parser error: "+msg)
		}
	}

	if HasPartialMarkers(text) {
		report.PartialWarning = PartialAdvisory
	}

	return report
}
