// Package brain turns a normalized message into a reply: edge-case guard,
// knowledge lookup, conversation memory, intent detection and templated
// responses. Every step fails open so Process always returns a usable reply.
package brain

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/state"
)

// Source says which stage produced a reply.
type Source string

const (
	SourceDefault   Source = "default"
	SourceGuard     Source = "guard"
	SourceKnowledge Source = "knowledge"
	SourceIntent    Source = "intent"
)

var (
	errEmptyAnswer = errors.New("brain: empty knowledge answer")
	errNoMatch     = errors.New("brain: no knowledge match")
)

// Knowledge is the lookup contract the brain needs.
type Knowledge interface {
	FindAnswer(text string) (string, bool)
}

// State is the per-user conversation state the brain reads and writes.
type State interface {
	SpamChecker
	Get(ctx context.Context, key string) (state.Memory, error)
	Update(ctx context.Context, key string, intent domain.Intent) (state.Memory, error)
	TrackUnknown(key string, intent domain.Intent) int
	UnknownStreak(key string) int
}

// Reply is the result of processing one message.
type Reply struct {
	Text   string
	Intent domain.Intent
	Source Source
	// Verdict is set when the guard short-circuited.
	Verdict *Verdict
}

// Brain orchestrates the per-message pipeline.
type Brain struct {
	guard     *Guard
	knowledge Knowledge
	state     State
	generator Generator
}

// Options configures a Brain.
type Options struct {
	// Knowledge may be nil; lookups then always miss.
	Knowledge              Knowledge
	State                  State
	MaxRunes               int
	UnknownStreakThreshold int
	Patterns               []ActionPattern
}

// New builds a Brain. State is required.
func New(opts Options) *Brain {
	g := &Guard{MaxRunes: opts.MaxRunes, Patterns: opts.Patterns}
	if opts.State != nil {
		g.Spam = opts.State
	}
	return &Brain{
		guard:     g,
		knowledge: opts.Knowledge,
		state:     opts.State,
		generator: Generator{UnknownStreakThreshold: opts.UnknownStreakThreshold},
	}
}

// Process runs msg through the pipeline. It never returns an empty reply.
func (b *Brain) Process(ctx context.Context, msg domain.NormalizedMessage) Reply {
	ctx, span := otel.Tracer("brain").Start(ctx, "Process",
		trace.WithAttributes(attribute.String("channel", string(msg.Channel))))
	defer span.End()

	reply := b.process(ctx, msg)
	if strings.TrimSpace(reply.Text) == "" {
		reply = Reply{Text: SafeDefault, Intent: domain.IntentUnknown, Source: SourceDefault}
	}
	span.SetAttributes(
		attribute.String("reply.source", string(reply.Source)),
		attribute.String("intent", string(reply.Intent)),
	)
	replies.WithLabelValues(string(reply.Source)).Inc()
	return reply
}

func (b *Brain) process(ctx context.Context, msg domain.NormalizedMessage) (out Reply) {
	log := zerolog.Ctx(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("brain panic, using safe default")
			span := trace.SpanFromContext(ctx)
			span.SetStatus(codes.Error, "panic")
			out = Reply{Text: SafeDefault, Intent: domain.IntentUnknown, Source: SourceDefault}
		}
	}()

	if strings.TrimSpace(msg.Text) == "" || msg.UserID == "" {
		log.Warn().Str("step", string(StepValidate)).Msg("invalid message, using safe default")
		return Reply{Text: SafeDefault, Intent: domain.IntentUnknown, Source: SourceDefault}
	}
	key := msg.StateKey()
	log = withUser(log, msg.UserID)

	if v := b.guard.Inspect(ctx, key, msg.Text); v.Triggered {
		log.Info().Str("check", string(v.Check)).Str("action", string(v.Action)).Str("reason", v.Reason).Msg("guard triggered")
		return Reply{Text: v.Reply, Intent: domain.IntentUnknown, Source: SourceGuard, Verdict: &v}
	}

	if ans := b.lookup(msg.Text); ans.OK() {
		log.Info().Str("decision_path", "knowledge_base").Msg("knowledge match")
		intent := attempt(StepIntent, func() (domain.Intent, error) { return DetectIntent(msg.Text), nil }).Or(domain.IntentUnknown)
		b.writeMemory(ctx, log, key, intent)
		return Reply{Text: ans.Value, Intent: intent, Source: SourceKnowledge}
	} else if !errors.Is(ans.Err, errNoMatch) {
		b.fail(log, ans.Step, ans.Err)
	}

	mem := attempt(StepMemoryRead, func() (state.Memory, error) { return b.state.Get(ctx, key) })
	if !mem.OK() {
		b.fail(log, mem.Step, mem.Err)
	}
	memory := mem.Or(state.Memory{})

	det := attempt(StepIntent, func() (domain.Intent, error) { return DetectIntent(msg.Text), nil })
	if !det.OK() {
		b.fail(log, det.Step, det.Err)
	}
	intent := det.Or(domain.IntentUnknown)
	intents.WithLabelValues(string(intent)).Inc()
	log.Info().Str("intent", string(intent)).Str("decision_path", "rule_based").Msg("intent detected")

	track := attempt(StepUnknownTrack, func() (int, error) { return b.state.TrackUnknown(key, intent), nil })
	if !track.OK() {
		b.fail(log, track.Step, track.Err)
	}
	streak := track.Or(memory.UnknownIntentCount)
	if !track.OK() {
		streak = attempt(StepUnknownTrack, func() (int, error) { return b.state.UnknownStreak(key), nil }).Or(streak)
	}

	gen := attempt(StepResponse, func() (string, error) {
		return b.generator.Generate(ReplyContext{
			Intent:        intent,
			LastIntent:    memory.LastIntent,
			MessageCount:  memory.MessageCount,
			UnknownStreak: streak,
		}), nil
	})
	text := gen.Or(SafeDefault)
	if !gen.OK() {
		b.fail(log, gen.Step, gen.Err)
	}
	if strings.TrimSpace(text) == "" {
		text = SafeDefault
	}

	b.writeMemory(ctx, log, key, intent)
	return Reply{Text: text, Intent: intent, Source: SourceIntent}
}

// lookup returns the trimmed knowledge answer, or errNoMatch on a miss.
func (b *Brain) lookup(text string) Result[string] {
	return attempt(StepKnowledge, func() (string, error) {
		if b.knowledge == nil {
			return "", errNoMatch
		}
		ans, ok := b.knowledge.FindAnswer(text)
		if !ok {
			return "", errNoMatch
		}
		ans = strings.TrimSpace(ans)
		if ans == "" {
			return "", errEmptyAnswer
		}
		return ans, nil
	})
}

func (b *Brain) writeMemory(ctx context.Context, log *zerolog.Logger, key string, intent domain.Intent) {
	res := attempt(StepMemoryWrite, func() (state.Memory, error) { return b.state.Update(ctx, key, intent) })
	if !res.OK() {
		b.fail(log, res.Step, res.Err)
	}
}

func (b *Brain) fail(log *zerolog.Logger, step Step, err error) {
	log.Warn().Err(err).Str("step", string(step)).Msg("step failed, using default")
	stepFailures.WithLabelValues(string(step)).Inc()
}

func withUser(l *zerolog.Logger, userID string) *zerolog.Logger {
	ll := l.With().Str("user_id", userID).Logger()
	return &ll
}
