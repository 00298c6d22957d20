package brain

import (
	"strings"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// SafeDefault is the reply used whenever nothing better can be produced.
const SafeDefault = "I'm here to help! How can I assist you today?"

// DefaultUnknownStreakThreshold is the streak at which the topic menu replaces
// the generic unknown reply.
const DefaultUnknownStreakThreshold = 3

var templates = map[domain.Intent]string{
	domain.IntentGreeting: "Hello! 👋 Welcome! I'm here to help you. How can I assist you today?",
	domain.IntentHelp:     "I'm here to help! I can assist you with information about our services, pricing, and more. What would you like to know?",
	domain.IntentPricing:  "I'd be happy to help you with pricing information! We offer flexible plans to suit different needs. Would you like to know more about our features and which plan might work best for you?",
	domain.IntentHuman:    "I understand you'd like to speak with a human agent. Let me connect you with our support team. Someone will be with you shortly!",
	domain.IntentUnknown:  "Thanks for reaching out! I'm here to help. Could you tell me a bit more about what you're looking for? I want to make sure I can assist you in the best way possible.",
}

const (
	replyGreetingAgain = "Hello again! 👋 How can I help you today?"
	replyPricingAgain  = "Still thinking about pricing? I'm here to help! Would you like more details about our plans?"
	replyHelpAgain     = "I'm still here to help! What specific information can I provide?"
	replyPricingToHelp = "I'd be happy to help! Since you were asking about pricing, would you like to know more about our features or have other questions?"
	replyHelpToPricing = "Great! Let's talk about pricing. We offer flexible plans to suit different needs. What would you like to know?"
	replyWelcomeBack   = "Welcome back! 👋 I remember we've chatted before. How can I assist you today?"
	replyUnknownTopics = "I'm having trouble understanding what you're looking for. Could you try rephrasing your question? I can help with: pricing information, getting started, features, or connecting you with support. What would be most helpful?"
)

// Template returns the base reply for intent.
func Template(intent domain.Intent) string {
	if t, ok := templates[intent]; ok {
		return t
	}
	return templates[domain.IntentUnknown]
}

// ReplyContext is the input of the response generator.
type ReplyContext struct {
	Intent        domain.Intent
	LastIntent    domain.Intent // empty when the user has no history
	MessageCount  int
	UnknownStreak int
}

// Generator builds templated replies adjusted by conversation context.
type Generator struct {
	// UnknownStreakThreshold defaults to DefaultUnknownStreakThreshold.
	UnknownStreakThreshold int
}

// Generate returns the reply for c. Later rules override earlier ones:
// continuation variants, then the returning-user greeting, then the topic
// menu for a long unknown streak. A panic yields the intent template.
func (g Generator) Generate(c ReplyContext) (reply string) {
	defer func() {
		if recover() != nil || strings.TrimSpace(reply) == "" {
			reply = Template(c.Intent)
		}
	}()

	reply = Template(c.Intent)

	if c.LastIntent != "" {
		switch {
		case c.Intent == domain.IntentGreeting && c.LastIntent == domain.IntentGreeting:
			reply = replyGreetingAgain
		case c.Intent == c.LastIntent && c.Intent == domain.IntentPricing:
			reply = replyPricingAgain
		case c.Intent == c.LastIntent && c.Intent == domain.IntentHelp:
			reply = replyHelpAgain
		case c.LastIntent == domain.IntentPricing && c.Intent == domain.IntentHelp:
			reply = replyPricingToHelp
		case c.LastIntent == domain.IntentHelp && c.Intent == domain.IntentPricing:
			reply = replyHelpToPricing
		}
	}

	if c.MessageCount > 1 && c.Intent == domain.IntentGreeting {
		reply = replyWelcomeBack
	}

	threshold := g.UnknownStreakThreshold
	if threshold <= 0 {
		threshold = DefaultUnknownStreakThreshold
	}
	if c.Intent == domain.IntentUnknown && c.UnknownStreak >= threshold {
		reply = replyUnknownTopics
	}
	return reply
}
