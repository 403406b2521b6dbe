// Package routing maps conversations to accounts with best-effort affinity.
package routing

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/soyeahso/chatpool/internal/message"
)

// fingerprintTurns is how many leading turns identify a conversation.
// Later turns change on every exchange; the opening turns stay stable, so
// hashing only these keeps follow-up requests on the same account.
const fingerprintTurns = 3

// Fingerprint derives a stable conversation key from the leading turns and
// a caller-supplied client identifier. Two requests with identical leading
// turns and identifier always produce the same fingerprint; routing
// correctness depends on that, not just cache friendliness.
//
// Each turn contributes "role:text" with the text reduced to its textual
// component, trimmed, and lower-cased. Assistant turns that are injected
// diagnostic notices are skipped so a transient notice cannot destabilize
// affinity.
func Fingerprint(msgs []message.Message, clientID string) string {
	if len(msgs) == 0 {
		if clientID != "" {
			return clientID + ":empty"
		}
		return "empty"
	}

	limit := len(msgs)
	if limit > fingerprintTurns {
		limit = fingerprintTurns
	}

	turns := make([]string, 0, limit)
	for _, msg := range msgs[:limit] {
		text := message.ExtractText(msg.Content)
		if msg.Role == "assistant" && message.IsInternalNotice(text) {
			continue
		}
		text = strings.ToLower(strings.TrimSpace(text))
		turns = append(turns, msg.Role+":"+text)
	}

	prefix := strings.Join(turns, "|")
	if clientID != "" {
		prefix = clientID + "|" + prefix
	}

	sum := md5.Sum([]byte(prefix))
	return hex.EncodeToString(sum[:])
}
