// Package telegram isolates every Telegram-specific concern of the pipeline:
// decoding webhook updates, normalizing them into domain.NormalizedMessage, and
// delivering replies through the Bot API. Nothing downstream of this package
// reads Telegram field names.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// TruncationMarker is appended to message text cut at the rune limit.
const TruncationMarker = "..."

// DefaultMaxRunes is the text length limit used when none is configured.
const DefaultMaxRunes = 2000

// Update is a raw Telegram update. It is decoded with json.Number so that
// 64-bit identifiers survive untouched.
type Update map[string]any

// messageKeys lists the update fields that may carry a message, in priority order.
var messageKeys = []string{"message", "channel_post", "edited_message", "edited_channel_post"}

// DecodeUpdate parses a webhook body into an Update.
func DecodeUpdate(body []byte) (Update, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var u Update
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode telegram update: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("decode telegram update: body is not an object")
	}
	return u, nil
}

// UpdateID returns the update_id of u, if present.
func (u Update) UpdateID() (int64, bool) {
	return asInt64(u["update_id"])
}

// payload returns the first non-null message-bearing object of u.
func (u Update) payload() map[string]any {
	for _, k := range messageKeys {
		if m, ok := u[k].(map[string]any); ok && m != nil {
			return m
		}
	}
	return nil
}

// SalvageChatID digs a chat id out of the raw update without any other
// validation. It is used when normalization produced no message but a reply
// can still be routed.
func SalvageChatID(u Update) (int64, bool) {
	for _, k := range messageKeys {
		m, ok := u[k].(map[string]any)
		if !ok {
			continue
		}
		if chat, ok := m["chat"].(map[string]any); ok {
			if id, ok := asInt64(chat["id"]); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// Normalizer converts Telegram updates into platform-agnostic messages.
// The zero value is usable and applies DefaultMaxRunes.
type Normalizer struct {
	// MaxRunes caps message text; longer text is cut and TruncationMarker appended.
	MaxRunes int
	// Now supplies the fallback timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Normalize returns the normalized message carried by u. ok is false when the
// update holds no usable text message (non-text content, empty text, missing
// identifiers); callers must not generate a reply in that case. Internal
// failures are logged and also reported as ok=false.
func (n *Normalizer) Normalize(ctx context.Context, u Update) (msg domain.NormalizedMessage, ok bool) {
	lg := zerolog.Ctx(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			lg.Warn().Interface("panic", rec).Msg("telegram normalization failed")
			msg, ok = domain.NormalizedMessage{}, false
		}
	}()

	m := u.payload()
	if m == nil {
		return domain.NormalizedMessage{}, false
	}

	text, isString := m["text"].(string)
	if !isString || strings.TrimSpace(text) == "" {
		return domain.NormalizedMessage{}, false
	}

	chat, _ := m["chat"].(map[string]any)
	chatID, hasChat := asInt64(chat["id"])

	var userID int64
	var hasUser bool
	if from, ok := m["from"].(map[string]any); ok {
		userID, hasUser = asInt64(from["id"])
	}
	if !hasUser {
		userID, hasUser = chatID, hasChat
	}
	if !hasUser {
		return domain.NormalizedMessage{}, false
	}

	limit := n.MaxRunes
	if limit <= 0 {
		limit = DefaultMaxRunes
	}
	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit]) + TruncationMarker
	}

	md := map[string]string{}
	if id, ok := u.UpdateID(); ok {
		md[domain.MetaUpdateID] = strconv.FormatInt(id, 10)
	}
	if hasChat {
		md[domain.MetaChatID] = strconv.FormatInt(chatID, 10)
	}
	if id, ok := asInt64(m["message_id"]); ok {
		md[domain.MetaMessageID] = strconv.FormatInt(id, 10)
	}
	if t, ok := chat["type"].(string); ok && t != "" {
		md[domain.MetaChatType] = t
	}
	if reply, ok := m["reply_to_message"].(map[string]any); ok {
		if id, ok := asInt64(reply["message_id"]); ok {
			md[domain.MetaReplyToMessageID] = strconv.FormatInt(id, 10)
		}
	}
	if fwd, ok := m["forward_from"].(map[string]any); ok {
		if id, ok := asInt64(fwd["id"]); ok {
			md[domain.MetaForwardFromID] = strconv.FormatInt(id, 10)
		}
	}

	var lang string
	if from, ok := m["from"].(map[string]any); ok {
		lang, _ = from["language_code"].(string)
	}

	return domain.NormalizedMessage{
		Channel:   domain.ChannelTelegram,
		UserID:    strconv.FormatInt(userID, 10),
		Text:      strings.TrimSpace(text),
		Timestamp: n.timestamp(m["date"]),
		Language:  lang,
		Metadata:  md,
	}, true
}

func (n *Normalizer) timestamp(v any) time.Time {
	if secs, ok := asInt64(v); ok && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().UTC()
}

// asInt64 accepts the numeric shapes produced by encoding/json (json.Number,
// float64) plus native integers used in tests.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}
