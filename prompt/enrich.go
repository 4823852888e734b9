// Package prompt 将用户原始输入转换为发送给模型的文本。
package prompt

import (
	"regexp"
	"strings"
)

const (
	// ThinkOpen / ThinkClose 推理脚手架标记
	ThinkOpen  = "<Thinking>"
	ThinkClose = "</Thinking>"

	// MathInstruction 数学类问题追加的指令
	MathInstruction = "Please reason step by step, and put your final answer within \\boxed{}."
)

var (
	mathSymbols = regexp.MustCompile(`[\d+\-*/=$]`)
	// 关键词仅覆盖阿拉伯语和英语，其它语言可能漏判
	mathKeywords = regexp.MustCompile(`(?i)رياضي|حساب|معادلة|math|calculate|solve|equation`)
)

// IsMath 粗略判断是否为数学问题，误判可以接受
func IsMath(content string) bool {
	return mathSymbols.MatchString(content) || mathKeywords.MatchString(content)
}

// Enrich 先追加数学指令，再按需包裹推理脚手架
func Enrich(content string, deepThink bool) string {
	enriched := content
	if IsMath(content) {
		enriched = enriched + "\n\n" + MathInstruction
	}
	if deepThink {
		enriched = ThinkOpen + "\n\n" + ThinkClose + "\n\n" + enriched
	}
	return enriched
}

// SplitReasoning 拆出第一段 <Thinking>...</Thinking>，返回可见回复与推理内容。
// 去掉推理后为空时，可见回复退回原文。
func SplitReasoning(text string) (visible, reasoning string) {
	open := strings.Index(text, ThinkOpen)
	if open < 0 {
		return text, ""
	}
	rest := text[open+len(ThinkOpen):]
	closeIdx := strings.Index(rest, ThinkClose)
	if closeIdx < 0 {
		return text, ""
	}

	reasoning = strings.TrimSpace(rest[:closeIdx])
	visible = strings.TrimSpace(text[:open] + rest[closeIdx+len(ThinkClose):])
	if visible == "" {
		visible = text
	}
	return visible, reasoning
}
