package prompt

import "strings"

// SystemInstruction 固定系统指令，描述助手角色和输出约束
const SystemInstruction = `You are an expert AI Code Migration Assistant. You translate source code from one language/framework to another while preserving functionality, behavior, and performance. You follow the best practices and idioms of the target ecosystem. Avoid pseudo code. Where APIs don't have direct equivalents, provide practical alternatives. Maintain edge cases, error handling, types, and comments where helpful.`

// Build 组装单次请求的用户提示词
// 纯函数：任务描述 + 可选备注 + 固定要求列表 + 原样附加的源代码
func Build(sourceLanguage, targetLanguage, code, notes string) string {
	if notes == "" {
		notes = "(none)"
	}

	lines := []string{
		"TASK: Translate the following code from " + sourceLanguage + " to " + targetLanguage + ".",
		"NOTES (optional): " + notes,
		"REQUIREMENTS:",
		"- Preserve functionality, behavior, and performance characteristics.",
		"- Use idiomatic patterns and best practices of the target language/framework.",
		"- Keep important edge cases, error handling, and types.",
		"- If a direct equivalent doesn't exist, implement a practical alternative and document it briefly.",
		"- Return ONLY a JSON object with fields: { code: string, rationale: string }.",
		"- Put no markdown fences in the JSON and no additional keys.",
		"SOURCE CODE:\n" + code,
	}
	return strings.Join(lines, "\n")
}

// Compose 拼接系统指令和用户提示词为单条上游输入
func Compose(sourceLanguage, targetLanguage, code, notes string) string {
	return SystemInstruction + "\n\n" + Build(sourceLanguage, targetLanguage, code, notes)
}

// FixNotes 构造"只修语法不改逻辑"的修复备注
// 用于 fix 流程：源语言 = 目标语言 = 原目标语言，输入为上一次的译文
func FixNotes(targetLanguage, notes string) string {
	instruction := "Please fix any syntax errors, missing imports, or obvious typos in the provided " +
		targetLanguage + " code. Do not change logic. Return ONLY corrected code and a short explanation."
	if notes == "" {
		return instruction
	}
	return notes + "\n\n" + instruction
}
