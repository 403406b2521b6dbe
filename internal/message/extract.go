package message

import (
	"strings"
)

// Internal diagnostic notices the server injects as visible assistant turns.
// They must not leak into conversation fingerprints or rebuilt context, or a
// transient notice would re-route an otherwise stable conversation.
const (
	noticeEmptyUpstream = "⚠️ 上游返回为空"
	noticeNoContent     = "上游未返回文本/图片"
)

// IsInternalNotice reports whether a text is a server-injected diagnostic
// notice rather than real conversation content.
func IsInternalNotice(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, noticeEmptyUpstream) || strings.Contains(t, noticeNoContent)
}

// ExtractText reduces a content to its textual component. Multimodal parts
// contribute only their text segments.
func ExtractText(c Content) string {
	if !c.Multimodal() {
		return c.text
	}
	var b strings.Builder
	for _, part := range c.PartList() {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// BuildContextText flattens a message history into a plain transcript for
// the upstream. System turns read as the user; diagnostic notices are
// dropped; multimodal turns get one placeholder per attachment so the
// upstream knows images existed even though only the current turn's
// attachments are re-sent.
func BuildContextText(msgs []Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		text := ExtractText(msg.Content)
		if msg.Role == "assistant" && IsInternalNotice(text) {
			continue
		}
		if msg.Content.Multimodal() {
			for _, part := range msg.Content.PartList() {
				if part.Type == "image_url" {
					text += "[图片]"
				}
			}
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}
