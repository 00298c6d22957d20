package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/knowledge"
	"github.com/tbourn/go-bizbot-backend/internal/state"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	brain *Brain
	state *state.ConversationState
	clock *fakeClock
}

func newHarness(t *testing.T, kb Knowledge) *harness {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	st := state.New(state.Options{TTL: time.Hour, MaxEntries: 100, Spam: state.DefaultSpamPolicy, Now: clk.Now})
	b := New(Options{Knowledge: kb, State: st, MaxRunes: 2000})
	return &harness{brain: b, state: st, clock: clk}
}

// send processes text for user and advances the clock past the spam gap.
func (h *harness) send(user, text string) Reply {
	r := h.brain.Process(context.Background(), domain.NormalizedMessage{
		Channel: domain.ChannelTelegram, UserID: user, Text: text,
	})
	h.clock.Advance(3 * time.Second)
	return r
}

func TestProcess_FirstGreeting(t *testing.T) {
	h := newHarness(t, nil)
	r := h.send("42", "hi")
	assert.Equal(t, domain.IntentGreeting, r.Intent)
	assert.Equal(t, SourceIntent, r.Source)
	assert.Contains(t, r.Text, "Hello")
	assert.Contains(t, r.Text, "👋")
}

func TestProcess_GreetingAgainThenWelcomeBack(t *testing.T) {
	h := newHarness(t, nil)
	h.send("42", "hi")

	r := h.send("42", "hi")
	assert.Equal(t, replyGreetingAgain, r.Text)

	r = h.send("42", "hello")
	assert.Equal(t, replyWelcomeBack, r.Text)

	mem, err := h.state.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 3, mem.MessageCount)
}

func TestProcess_EmojiOnlyLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, nil)
	r := h.send("7", "💯🔥😂")
	assert.Equal(t, SourceGuard, r.Source)
	require.NotNil(t, r.Verdict)
	assert.Equal(t, CheckEmoji, r.Verdict.Check)
	assert.Contains(t, r.Text, "in words")

	mem, err := h.state.Get(context.Background(), "7")
	require.NoError(t, err)
	assert.Zero(t, mem.MessageCount)
	assert.Zero(t, h.state.UnknownStreak("7"))
}

func TestProcess_UnsupportedUpload(t *testing.T) {
	h := newHarness(t, nil)
	r := h.send("7", "can I upload my resume")
	require.NotNil(t, r.Verdict)
	assert.Equal(t, ActionFileUpload, r.Verdict.Action)
	assert.Equal(t, ActionReply(ActionFileUpload), r.Text)
	assert.Contains(t, r.Text, "can't receive files")
}

func TestProcess_KnowledgePrecedence(t *testing.T) {
	kb := knowledge.New()
	_, err := kb.Load(strings.NewReader(`[{"question":"what are your hours","answer":"  We are open 9-5  ","keywords":["hours","open"]}]`))
	require.NoError(t, err)
	h := newHarness(t, kb)

	r := h.send("9", "what time are you open")
	assert.Equal(t, "We are open 9-5", r.Text)
	assert.Equal(t, SourceKnowledge, r.Source)

	// Matches a greeting keyword too; knowledge still wins and memory is updated.
	r = h.send("9", "hello, your hours?")
	assert.Equal(t, "We are open 9-5", r.Text)
	assert.Equal(t, domain.IntentGreeting, r.Intent)

	mem, err := h.state.Get(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, 2, mem.MessageCount)
	assert.Equal(t, domain.IntentGreeting, mem.LastIntent)
}

func TestProcess_IntentPriority(t *testing.T) {
	h := newHarness(t, nil)
	r := h.send("1", "help me with the price")
	assert.Equal(t, domain.IntentHelp, r.Intent)
}

func TestProcess_UnknownStreakResetAndMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.send("5", "blorp")
	h.send("5", "flurb")
	assert.Equal(t, 2, h.state.UnknownStreak("5"))

	r := h.send("5", "pricing")
	assert.Equal(t, domain.IntentPricing, r.Intent)
	assert.Zero(t, h.state.UnknownStreak("5"))

	r = h.send("5", "blorp")
	assert.Equal(t, Template(domain.IntentUnknown), r.Text)
	r = h.send("5", "flurb")
	assert.Equal(t, Template(domain.IntentUnknown), r.Text)
	r = h.send("5", "gronk")
	assert.Equal(t, replyUnknownTopics, r.Text)
}

func TestProcess_SpamWindow(t *testing.T) {
	h := newHarness(t, nil)
	msg := domain.NormalizedMessage{Channel: domain.ChannelTelegram, UserID: "s", Text: "hello"}
	for i := 0; i < 4; i++ {
		r := h.brain.Process(context.Background(), msg)
		assert.NotEqual(t, SourceGuard, r.Source, "message %d", i+1)
		h.clock.Advance(2 * time.Second)
	}
	r := h.brain.Process(context.Background(), msg)
	assert.Equal(t, SourceGuard, r.Source)
	assert.Equal(t, CheckSpam, r.Verdict.Check)

	h.clock.Advance(11 * time.Second)
	r = h.brain.Process(context.Background(), msg)
	assert.NotEqual(t, SourceGuard, r.Source)
}

func TestProcess_RapidMessageIsSpam(t *testing.T) {
	h := newHarness(t, nil)
	msg := domain.NormalizedMessage{Channel: domain.ChannelTelegram, UserID: "r", Text: "hello"}
	h.brain.Process(context.Background(), msg)
	r := h.brain.Process(context.Background(), msg)
	assert.Equal(t, replySpam, r.Text)
}

func TestProcess_TenantScopedState(t *testing.T) {
	h := newHarness(t, nil)
	msg := domain.NormalizedMessage{Channel: domain.ChannelTelegram, UserID: "42", Text: "hi"}
	h.brain.Process(context.Background(), msg.WithMeta(domain.MetaTenantID, "acme"))
	r := h.brain.Process(context.Background(), msg.WithMeta(domain.MetaTenantID, "globex"))
	assert.Equal(t, Template(domain.IntentGreeting), r.Text)
}

func TestProcess_InvalidMessageUsesSafeDefault(t *testing.T) {
	h := newHarness(t, nil)
	for _, m := range []domain.NormalizedMessage{
		{UserID: "1", Text: "   "},
		{UserID: "", Text: "hello"},
	} {
		r := h.brain.Process(context.Background(), m)
		assert.Equal(t, SafeDefault, r.Text)
		assert.Equal(t, SourceDefault, r.Source)
	}
}

type brokenState struct{ panicTrack bool }

func (brokenState) CheckSpam(string) (bool, string) { panic("spam tracker down") }
func (brokenState) Get(context.Context, string) (state.Memory, error) {
	return state.Memory{}, errors.New("store down")
}
func (brokenState) Update(context.Context, string, domain.Intent) (state.Memory, error) {
	return state.Memory{}, errors.New("store down")
}
func (s brokenState) TrackUnknown(string, domain.Intent) int {
	if s.panicTrack {
		panic("tracker down")
	}
	return 0
}
func (brokenState) UnknownStreak(string) int { return 0 }

type panickingKnowledge struct{}

func (panickingKnowledge) FindAnswer(string) (string, bool) { panic("index corrupted") }

func TestProcess_FailsOpen(t *testing.T) {
	before := testutil.ToFloat64(stepFailures.WithLabelValues(string(StepMemoryRead)))

	b := New(Options{Knowledge: panickingKnowledge{}, State: brokenState{panicTrack: true}, MaxRunes: 2000})
	r := b.Process(context.Background(), domain.NormalizedMessage{UserID: "1", Text: "what does the pricing look like"})
	assert.Equal(t, domain.IntentPricing, r.Intent)
	assert.Equal(t, Template(domain.IntentPricing), r.Text)

	assert.Equal(t, before+1, testutil.ToFloat64(stepFailures.WithLabelValues(string(StepMemoryRead))))
}

type emptyKnowledge struct{}

func (emptyKnowledge) FindAnswer(string) (string, bool) { return "   ", true }

func TestProcess_BlankKnowledgeAnswerFallsThrough(t *testing.T) {
	b := New(Options{Knowledge: emptyKnowledge{}, State: state.New(state.Options{})})
	r := b.Process(context.Background(), domain.NormalizedMessage{UserID: "1", Text: "human please"})
	assert.Equal(t, SourceIntent, r.Source)
	assert.Equal(t, domain.IntentHuman, r.Intent)
}

func TestProcess_NeverEmpty(t *testing.T) {
	h := newHarness(t, nil)
	inputs := []string{"hi", "?!?", "💯", "blorp", strings.Repeat("a", 2100), "upload", "", "   \n"}
	for _, in := range inputs {
		r := h.send("p1", in)
		assert.NotEmpty(t, strings.TrimSpace(r.Text), "input %q", in)
	}
}
