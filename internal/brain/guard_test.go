package brain

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type staticSpam struct {
	spam bool
	hits int
}

func (s *staticSpam) CheckSpam(string) (bool, string) {
	s.hits++
	return s.spam, "too many messages"
}

type panicSpam struct{}

func (panicSpam) CheckSpam(string) (bool, string) { panic("boom") }

func TestGuard_Order(t *testing.T) {
	spam := &staticSpam{spam: true}
	g := &Guard{Spam: spam, MaxRunes: 5}
	v := g.Inspect(context.Background(), "k", "💯💯💯💯💯💯 upload")
	assert.True(t, v.Triggered)
	assert.Equal(t, CheckSpam, v.Check)

	spam.spam = false
	v = g.Inspect(context.Background(), "k", "way too long to pass")
	assert.Equal(t, CheckLength, v.Check)
	assert.Equal(t, replyTooLong, v.Reply)

	v = g.Inspect(context.Background(), "k", "?!")
	assert.Equal(t, CheckEmoji, v.Check)
}

func TestGuard_LengthCountsRunes(t *testing.T) {
	g := &Guard{MaxRunes: 3}
	assert.False(t, g.Inspect(context.Background(), "k", "héé").Triggered)
	assert.True(t, g.Inspect(context.Background(), "k", "héé!").Triggered)
}

func TestGuard_EmojiCheck(t *testing.T) {
	g := &Guard{}
	for _, in := range []string{"💯🔥😂", " !!! ", "👍 👍"} {
		assert.Equal(t, CheckEmoji, g.Inspect(context.Background(), "k", in).Check, in)
	}
	for _, in := range []string{"👍 ok", "2", "привет", "   "} {
		assert.False(t, g.Inspect(context.Background(), "k", in).Triggered, in)
	}
}

func TestGuard_UnsupportedActions(t *testing.T) {
	cases := map[string]Action{
		"Can I ATTACH a pdf":          ActionFileUpload,
		"let's do a video call":       ActionVideoCall,
		"where is my invoice":         ActionPayment,
		"how do I sign up":            ActionAccountCreation,
		"please remove user bob":      ActionAdmin,
		"upload a video":              ActionFileUpload,
		"I want to talk to moderator": ActionAdmin,
	}
	g := &Guard{}
	for in, want := range cases {
		v := g.Inspect(context.Background(), "k", in)
		assert.True(t, v.Triggered, in)
		assert.Equal(t, want, v.Action, in)
		assert.Equal(t, ActionReply(want), v.Reply, in)
	}
	assert.Equal(t, replyActionDefault, ActionReply(ActionAdmin))
	assert.False(t, g.Inspect(context.Background(), "k", "what are your hours").Triggered)
}

func TestGuard_FailingCheckIsSkipped(t *testing.T) {
	before := testutil.ToFloat64(stepFailures.WithLabelValues(string(StepSpam)))
	g := &Guard{Spam: panicSpam{}, MaxRunes: 2000}

	v := g.Inspect(context.Background(), "k", "upload")
	assert.Equal(t, CheckUnsupported, v.Check)
	assert.False(t, g.Inspect(context.Background(), "k", "hello").Triggered)
	assert.Equal(t, before+2, testutil.ToFloat64(stepFailures.WithLabelValues(string(StepSpam))))
}

func TestGuard_CustomPatterns(t *testing.T) {
	g := &Guard{Patterns: []ActionPattern{{Action: "refund", Keywords: []string{"refund"}}}}
	v := g.Inspect(context.Background(), "k", strings.ToUpper("refund me"))
	assert.Equal(t, Action("refund"), v.Action)
	assert.Equal(t, replyActionDefault, v.Reply)
	assert.False(t, g.Inspect(context.Background(), "k", "upload").Triggered)
}
