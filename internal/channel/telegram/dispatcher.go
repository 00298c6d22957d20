package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoCredential means no usable bot credential was available.
	ErrNoCredential = errors.New("telegram: no bot credential configured")
	// ErrSendFailed means every attempted credential was rejected or unreachable.
	ErrSendFailed = errors.New("telegram: send failed")
)

// DefaultSendTimeout bounds a single Bot API call.
const DefaultSendTimeout = 10 * time.Second

// Credential is a resolved bot token together with the tenant owning it.
type Credential struct {
	TenantID string
	Name     string
	Token    string
}

// Dispatcher delivers replies through the Telegram Bot API. Bot clients are
// created lazily per token and reused. Safe for concurrent use.
type Dispatcher struct {
	apiURL  string
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*bot.Bot
}

// NewDispatcher returns a Dispatcher talking to apiURL (empty means the public
// Bot API) with a per-call timeout (<= 0 means DefaultSendTimeout).
func NewDispatcher(apiURL string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{
		apiURL:  strings.TrimRight(apiURL, "/"),
		timeout: timeout,
		clients: make(map[string]*bot.Bot),
	}
}

func (d *Dispatcher) client(token string) (*bot.Bot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.clients[token]; ok {
		return b, nil
	}
	opts := []bot.Option{bot.WithSkipGetMe()}
	if d.apiURL != "" {
		opts = append(opts, bot.WithServerURL(d.apiURL))
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	d.clients[token] = b
	return b, nil
}

// Send delivers text to chatID with a single credential.
func (d *Dispatcher) Send(ctx context.Context, cred Credential, chatID int64, text string) (*models.Message, error) {
	if strings.TrimSpace(cred.Token) == "" {
		return nil, ErrNoCredential
	}
	ctx, span := otel.Tracer("channel/telegram").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("tenant.id", cred.TenantID),
			attribute.Int64("chat.id", chatID),
		))
	defer span.End()

	b, err := d.client(cred.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "client")
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return msg, nil
}

// Deliver tries creds in order and stops at the first accepted send, returning
// the credential that delivered. With zero usable credentials it returns
// ErrNoCredential; when every attempt fails the error wraps ErrSendFailed and
// joins the individual failures.
func (d *Dispatcher) Deliver(ctx context.Context, creds []Credential, chatID int64, text string) (Credential, error) {
	lg := zerolog.Ctx(ctx)
	var errs []error
	tried := 0
	for _, c := range creds {
		if strings.TrimSpace(c.Token) == "" {
			continue
		}
		tried++
		if _, err := d.Send(ctx, c, chatID, text); err != nil {
			lg.Debug().Err(err).Str("tenant_id", c.TenantID).Str("credential", c.Name).Msg("telegram send attempt failed")
			errs = append(errs, err)
			continue
		}
		return c, nil
	}
	if tried == 0 {
		return Credential{}, ErrNoCredential
	}
	return Credential{}, errors.Join(errs...)
}

// SetWebhook points the bot's webhook at url, registering secret as the
// X-Telegram-Bot-Api-Secret-Token value Telegram will send back.
func (d *Dispatcher) SetWebhook(ctx context.Context, token, url, secret string) error {
	b, err := d.client(token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{URL: url, SecretToken: secret}); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the bot's webhook registration.
func (d *Dispatcher) DeleteWebhook(ctx context.Context, token string) error {
	b, err := d.client(token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("telegram: delete webhook: %w", err)
	}
	return nil
}
