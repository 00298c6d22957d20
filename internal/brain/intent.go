package brain

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

// intentRule maps one intent to the substrings that select it.
type intentRule struct {
	intent   domain.Intent
	keywords []string
}

// intentRules is evaluated top to bottom; the order is the intent priority.
var intentRules = []intentRule{
	{domain.IntentHuman, []string{
		"agent", "human", "talk to someone", "speak to someone",
		"real person", "representative", "support agent", "customer service",
	}},
	{domain.IntentHelp, []string{
		"help", "support", "what can you do", "what do you do",
		"how can you help", "assist", "guide", "instructions",
	}},
	{domain.IntentPricing, []string{
		"price", "cost", "pricing", "how much", "fee", "charge",
		"subscription", "plan", "pricing plans", "costs",
	}},
	{domain.IntentGreeting, []string{
		"hi", "hello", "hey", "greetings", "good morning",
		"good afternoon", "good evening", "hi there", "hello there",
	}},
}

// DetectIntent classifies text by keyword. It is pure and deterministic:
// the first rule with any substring match wins, otherwise unknown.
func DetectIntent(text string) domain.Intent {
	s := strings.TrimSpace(cases.Fold().String(text))
	if s == "" {
		return domain.IntentUnknown
	}
	for _, r := range intentRules {
		for _, k := range r.keywords {
			if strings.Contains(s, k) {
				return r.intent
			}
		}
	}
	return domain.IntentUnknown
}
