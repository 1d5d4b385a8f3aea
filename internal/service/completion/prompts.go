package completion

import (
	"fmt"
	"strings"
)

// 消息草拟类型
const (
	MessageReply       = "reply"
	MessageQuestion    = "question"
	MessageElaboration = "elaboration"
	MessageSummary     = "summary"
)

var typePrompts = map[string]string{
	MessageReply:       "You are a helpful assistant. Based on the conversation context provided, generate a natural and relevant reply. The reply should be contextually appropriate and engaging.",
	MessageQuestion:    "You are a curious assistant. Based on the conversation context provided, generate an insightful question that would continue the conversation naturally and show genuine interest.",
	MessageElaboration: "You are an articulate assistant. Based on the conversation context provided, generate a message that elaborates on the previous topic, adding valuable insights or additional information.",
	MessageSummary:     "You are an organized assistant. Based on the conversation context provided, generate a message that summarizes the key points discussed so far.",
}

const fallbackPrompt = "You are a helpful assistant. Based on the conversation context provided, generate a natural and relevant message."

var stylePrompts = map[string]string{
	"formal":   " Use a professional and formal tone.",
	"casual":   " Use a friendly and casual tone.",
	"humorous": " Add some humor and wit to make it entertaining.",
}

// draftPrompt 按类型和语气拼出系统提示
func draftPrompt(messageType, style, personality string) string {
	var b strings.Builder
	if p, ok := typePrompts[messageType]; ok {
		b.WriteString(p)
	} else {
		b.WriteString(fallbackPrompt)
	}
	b.WriteString(stylePrompts[style])
	if p := strings.TrimSpace(personality); p != "" {
		b.WriteString(" Consider this personality/context: ")
		b.WriteString(p)
	}
	return b.String()
}

// botPrompt bot 的系统提示加上设定资料
func botPrompt(sysPmt string, lore []string) string {
	if len(lore) == 0 {
		return sysPmt
	}
	var b strings.Builder
	b.WriteString(sysPmt)
	b.WriteString("\n\n=== LOREBOOK INFORMATION ===\n")
	for i, text := range lore {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Lorebook Source %d ---\n", i+1)
		b.WriteString(text)
	}
	b.WriteString("\n=== END LOREBOOK ===")
	return b.String()
}
