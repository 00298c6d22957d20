package brain

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// Check identifies one edge-case guard check.
type Check string

const (
	CheckSpam        Check = "spam"
	CheckLength      Check = "length"
	CheckEmoji       Check = "emoji"
	CheckUnsupported Check = "unsupported"
)

// Action is an unsupported-action category.
type Action string

const (
	ActionFileUpload      Action = "file_upload"
	ActionVideoCall       Action = "video_call"
	ActionPayment         Action = "payment"
	ActionAccountCreation Action = "account_creation"
	ActionAdmin           Action = "admin_action"
)

// ActionPattern lists the substrings that select an unsupported action.
type ActionPattern struct {
	Action   Action
	Keywords []string
}

// DefaultActionPatterns is evaluated top to bottom; first match wins.
var DefaultActionPatterns = []ActionPattern{
	{ActionFileUpload, []string{"upload", "send file", "attach", "share file"}},
	{ActionVideoCall, []string{"video call", "video chat", "face time", "video"}},
	{ActionPayment, []string{"pay", "payment", "credit card", "billing", "invoice", "charge"}},
	{ActionAccountCreation, []string{"create account", "sign up", "register", "new account"}},
	{ActionAdmin, []string{"delete", "remove user", "ban", "admin", "moderator"}},
}

const (
	replySpam = "I notice you're sending messages very quickly. " +
		"Please slow down a bit so I can help you better! How can I assist you?"
	replyTooLong = "Your message is quite long! Could you break it down into smaller questions? " +
		"I'm here to help with specific topics like pricing, features, or getting started. " +
		"What would you like to know?"
	replyEmoji = "I see you sent emojis! 😊 While I love emojis, I work best with text. " +
		"Could you tell me in words how I can help you today?"
)

var actionReplies = map[Action]string{
	ActionFileUpload: "I can't receive files right now, but I can help answer questions! " +
		"What information are you looking for?",
	ActionVideoCall: "I'm a text-based assistant, so I can't do video calls. " +
		"But I'm here to help with any questions you have! What can I assist you with?",
	ActionPayment: "I can provide information about our pricing plans, but I can't process payments. " +
		"For payment questions, please visit our website or contact support. " +
		"Would you like to know more about our pricing?",
	ActionAccountCreation: "I can help you get started! For account creation, please visit our website. " +
		"I'm here to answer questions about our service. What would you like to know?",
}

const replyActionDefault = "I understand you're looking for help, but I can't perform that action. " +
	"I can assist with questions about pricing, features, getting started, or support. " +
	"What would be most helpful?"

// ActionReply returns the canned decline message for a.
func ActionReply(a Action) string {
	if r, ok := actionReplies[a]; ok {
		return r
	}
	return replyActionDefault
}

// SpamChecker records a message for key and reports whether it is spam.
type SpamChecker interface {
	CheckSpam(key string) (bool, string)
}

// Verdict is the outcome of Guard.Inspect. Reply is set only when Triggered.
type Verdict struct {
	Triggered bool
	Check     Check
	Action    Action
	Reason    string
	Reply     string
}

// Guard runs the edge-case checks that short-circuit the brain.
type Guard struct {
	// Spam is optional; nil disables the spam check.
	Spam     SpamChecker
	MaxRunes int
	Patterns []ActionPattern
}

// Inspect runs spam, length, emoji and unsupported-action checks in that
// order. A failing check is logged and treated as passed.
func (g *Guard) Inspect(ctx context.Context, key, text string) Verdict {
	checks := []struct {
		step Step
		fn   func() (Verdict, error)
	}{
		{StepSpam, func() (Verdict, error) { return g.checkSpam(key) }},
		{StepLength, func() (Verdict, error) { return g.checkLength(text) }},
		{StepEmoji, func() (Verdict, error) { return checkEmoji(text) }},
		{StepUnsupported, func() (Verdict, error) { return g.checkUnsupported(text) }},
	}
	for _, c := range checks {
		res := attempt(c.step, c.fn)
		if !res.OK() {
			zerolog.Ctx(ctx).Warn().Err(res.Err).Str("step", string(c.step)).Msg("guard check failed, continuing")
			stepFailures.WithLabelValues(string(c.step)).Inc()
			continue
		}
		if res.Value.Triggered {
			guardTriggers.WithLabelValues(string(res.Value.Check)).Inc()
			return res.Value
		}
	}
	return Verdict{}
}

func (g *Guard) checkSpam(key string) (Verdict, error) {
	if g.Spam == nil {
		return Verdict{}, nil
	}
	spam, reason := g.Spam.CheckSpam(key)
	if !spam {
		return Verdict{}, nil
	}
	return Verdict{Triggered: true, Check: CheckSpam, Reason: reason, Reply: replySpam}, nil
}

func (g *Guard) checkLength(text string) (Verdict, error) {
	limit := g.MaxRunes
	if limit <= 0 {
		return Verdict{}, nil
	}
	n := utf8.RuneCountInString(text)
	if n <= limit {
		return Verdict{}, nil
	}
	return Verdict{
		Triggered: true,
		Check:     CheckLength,
		Reason:    fmt.Sprintf("message too long (%d characters, max %d)", n, limit),
		Reply:     replyTooLong,
	}, nil
}

func checkEmoji(text string) (Verdict, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Verdict{}, nil
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return Verdict{}, nil
		}
	}
	return Verdict{Triggered: true, Check: CheckEmoji, Reason: "no alphanumeric characters", Reply: replyEmoji}, nil
}

func (g *Guard) checkUnsupported(text string) (Verdict, error) {
	patterns := g.Patterns
	if patterns == nil {
		patterns = DefaultActionPatterns
	}
	s := strings.TrimSpace(cases.Fold().String(text))
	if s == "" {
		return Verdict{}, nil
	}
	for _, p := range patterns {
		for _, k := range p.Keywords {
			if strings.Contains(s, k) {
				return Verdict{
					Triggered: true,
					Check:     CheckUnsupported,
					Action:    p.Action,
					Reason:    "matched " + k,
					Reply:     ActionReply(p.Action),
				}, nil
			}
		}
	}
	return Verdict{}, nil
}
