package telegram

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

func mustDecode(t *testing.T, body string) Update {
	t.Helper()
	u, err := DecodeUpdate([]byte(body))
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	return u
}

func TestDecodeUpdate_Errors(t *testing.T) {
	if _, err := DecodeUpdate([]byte("{not json")); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	if _, err := DecodeUpdate([]byte("null")); err == nil {
		t.Fatalf("expected error for null body")
	}
}

func TestNormalize_PrivateMessage(t *testing.T) {
	u := mustDecode(t, `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"language_code":"en"},"chat":{"id":42,"type":"private"},"date":1700000000,"text":"hi"}}`)
	n := &Normalizer{}

	msg, ok := n.Normalize(context.Background(), u)
	if !ok {
		t.Fatalf("expected a message")
	}
	if msg.Channel != domain.ChannelTelegram || msg.UserID != "42" || msg.Text != "hi" || msg.Language != "en" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Unix(1700000000, 0)) || msg.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp = %v", msg.Timestamp)
	}
	want := map[string]string{
		domain.MetaUpdateID:  "1",
		domain.MetaChatID:    "42",
		domain.MetaMessageID: "5",
		domain.MetaChatType:  "private",
	}
	for k, v := range want {
		if msg.Metadata[k] != v {
			t.Fatalf("metadata[%s] = %q; want %q", k, msg.Metadata[k], v)
		}
	}
}

func TestNormalize_PriorityOrder(t *testing.T) {
	u := mustDecode(t, `{"update_id":2,
		"edited_message":{"from":{"id":1},"chat":{"id":1},"text":"edited"},
		"channel_post":{"chat":{"id":-100,"type":"channel"},"text":"post"}}`)
	msg, ok := (&Normalizer{}).Normalize(context.Background(), u)
	if !ok || msg.Text != "post" {
		t.Fatalf("channel_post should win over edited_message, got %+v ok=%v", msg, ok)
	}
	// Channel posts have no sender: the chat id stands in.
	if msg.UserID != "-100" {
		t.Fatalf("user id fallback = %q", msg.UserID)
	}
}

func TestNormalize_NoMessageCases(t *testing.T) {
	cases := map[string]string{
		"empty update":   `{"update_id":3}`,
		"no text":        `{"update_id":3,"message":{"from":{"id":1},"chat":{"id":1},"photo":[]}}`,
		"non-string":     `{"update_id":3,"message":{"from":{"id":1},"chat":{"id":1},"text":12}}`,
		"whitespace":     `{"update_id":3,"message":{"from":{"id":1},"chat":{"id":1},"text":"   "}}`,
		"no identifiers": `{"update_id":3,"message":{"text":"hello"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := (&Normalizer{}).Normalize(context.Background(), mustDecode(t, body)); ok {
				t.Fatalf("expected no message")
			}
		})
	}
}

func TestNormalize_BadTimestampUsesNow(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := &Normalizer{Now: func() time.Time { return fixed }}
	u := mustDecode(t, `{"message":{"from":{"id":1},"chat":{"id":1},"date":"yesterday","text":"hello"}}`)
	msg, ok := n.Normalize(context.Background(), u)
	if !ok || !msg.Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v ok=%v", msg.Timestamp, ok)
	}
}

func TestNormalize_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("é", 30)
	u := Update{"message": map[string]any{
		"from": map[string]any{"id": 7},
		"chat": map[string]any{"id": 7},
		"text": long,
	}}
	msg, ok := (&Normalizer{MaxRunes: 10}).Normalize(context.Background(), u)
	if !ok {
		t.Fatalf("long messages must still normalize")
	}
	if !strings.HasSuffix(msg.Text, TruncationMarker) {
		t.Fatalf("missing truncation marker: %q", msg.Text)
	}
	if got := utf8.RuneCountInString(msg.Text); got != 10+len(TruncationMarker) {
		t.Fatalf("rune count = %d", got)
	}
}

func TestNormalize_ReplyAndForwardLinkage(t *testing.T) {
	u := mustDecode(t, `{"update_id":9,"message":{"message_id":11,"from":{"id":5},"chat":{"id":6,"type":"group"},
		"text":"  see above  ","reply_to_message":{"message_id":10},"forward_from":{"id":77}}}`)
	msg, ok := (&Normalizer{}).Normalize(context.Background(), u)
	if !ok {
		t.Fatalf("expected message")
	}
	if msg.Text != "see above" {
		t.Fatalf("text not trimmed: %q", msg.Text)
	}
	if msg.Meta(domain.MetaReplyToMessageID) != "10" || msg.Meta(domain.MetaForwardFromID) != "77" {
		t.Fatalf("linkage metadata missing: %+v", msg.Metadata)
	}
	if msg.ChatID() != "6" || msg.UserID != "5" {
		t.Fatalf("ids wrong: %+v", msg)
	}
}

func TestSalvageChatID(t *testing.T) {
	u := mustDecode(t, `{"update_id":1,"message":{"chat":{"id":123},"sticker":{}}}`)
	if id, ok := SalvageChatID(u); !ok || id != 123 {
		t.Fatalf("SalvageChatID = %d, %v", id, ok)
	}
	u = mustDecode(t, `{"update_id":1,"channel_post":{"chat":{"id":-5}}}`)
	if id, ok := SalvageChatID(u); !ok || id != -5 {
		t.Fatalf("SalvageChatID channel_post = %d, %v", id, ok)
	}
	if _, ok := SalvageChatID(mustDecode(t, `{"update_id":1}`)); ok {
		t.Fatalf("expected no chat id")
	}
}

func TestUpdateID_And_asInt64(t *testing.T) {
	if id, ok := mustDecode(t, `{"update_id":9007199254740993}`).UpdateID(); !ok || id != 9007199254740993 {
		t.Fatalf("large update id lost precision: %d", id)
	}
	if _, ok := asInt64(1.5); ok {
		t.Fatalf("fractional float must not convert")
	}
	if v, ok := asInt64(float64(3)); !ok || v != 3 {
		t.Fatalf("float64 3 -> %d, %v", v, ok)
	}
	if _, ok := asInt64("3"); ok {
		t.Fatalf("strings must not convert")
	}
}
