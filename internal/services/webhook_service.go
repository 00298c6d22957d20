// Package services – WebhookService
//
// WebhookService runs the top-level flow for one inbound Telegram update:
// decode, tenant resolution, de-duplication, normalization, brain, dispatch,
// then best-effort persistence. Handle never returns an error; the outcome
// it reports is informational and the HTTP layer always acknowledges the
// platform with 200.
package services

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/brain"
	"github.com/tbourn/go-bizbot-backend/internal/channel/telegram"
	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
)

// Outcome statuses reported by Handle.
const (
	StatusReplied     = "replied"
	StatusUndelivered = "undelivered"
	StatusNoMessage   = "no_message"
	StatusIgnored     = "ignored"
	StatusDuplicate   = "duplicate"
	StatusRejected    = "rejected"
	StatusFailed      = "failed"
)

// dedupScopeChannel scopes update ids when no tenant was resolved.
const dedupScopeChannel = string(domain.ChannelTelegram)

// Processor turns a normalized message into a reply.
type Processor interface {
	Process(ctx context.Context, msg domain.NormalizedMessage) brain.Reply
}

// Sender delivers a reply with the first accepting credential.
type Sender interface {
	Deliver(ctx context.Context, creds []telegram.Credential, chatID int64, text string) (telegram.Credential, error)
}

// Resolver resolves the tenant and credentials of an inbound webhook.
type Resolver interface {
	Resolve(ctx context.Context, route WebhookRoute) (Resolution, error)
}

// Recorder persists a conversation record.
type Recorder interface {
	Record(ctx context.Context, c *domain.Conversation) error
}

// UpdateRepo claims update ids for de-duplication.
type UpdateRepo interface {
	ClaimUpdate(ctx context.Context, db *gorm.DB, scope string, updateID int64, ttl time.Duration, now time.Time) (*domain.ProcessedUpdate, error)
}

// WebhookOutcome summarizes what Handle did with an update.
type WebhookOutcome struct {
	Status        string
	UpdateID      int64
	TenantID      string
	Mode          ResolveMode
	Intent        domain.Intent
	Source        brain.Source
	Delivered     bool
	DeliveryError error
}

// WebhookService wires the pipeline stages for inbound updates.
type WebhookService struct {
	Normalizer *telegram.Normalizer
	Brain      Processor
	Resolver   Resolver
	Sender     Sender
	Recorder   Recorder

	// DB and Updates enable update de-duplication when both are set.
	DB       *gorm.DB
	Updates  UpdateRepo
	DedupTTL time.Duration

	// PersistTimeout bounds each background write; <= 0 means 10s.
	PersistTimeout time.Duration
	Now            func() time.Time

	wg sync.WaitGroup
}

// Handle processes one raw update body. A started update runs to completion
// even when ctx is cancelled; only the per-step timeouts bound it.
func (s *WebhookService) Handle(ctx context.Context, route WebhookRoute, body []byte) (out WebhookOutcome) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("services/WebhookService").Start(ctx, "Handle",
		trace.WithAttributes(attribute.String("route.tenant", route.TenantID)))
	defer span.End()
	log := zerolog.Ctx(ctx)

	var (
		upd     telegram.Update
		res     Resolution
		decoded bool
		// dispatched is set once a reply was handed to the Sender.
		dispatched bool
		err        error
	)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("webhook flow panicked")
			span.SetStatus(codes.Error, "panic")
			out.Status = StatusFailed
			if decoded && !dispatched {
				s.replySafeDefault(ctx, res, upd, &out)
			}
		}
		webhookUpdates.WithLabelValues(out.Status).Inc()
		span.SetAttributes(attribute.String("outcome", out.Status))
	}()

	upd, err = telegram.DecodeUpdate(body)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable update ignored")
		out.Status = StatusIgnored
		return out
	}
	decoded = true
	updateID, hasUpdateID := upd.UpdateID()
	out.UpdateID = updateID

	res, err = s.Resolver.Resolve(ctx, route)
	out.Mode, out.TenantID = res.Mode, res.TenantID
	switch {
	case errors.Is(err, ErrSecretMismatch):
		log.Warn().Str("tenant_id", res.TenantID).Msg("webhook secret mismatch, update ignored")
		out.Status = StatusRejected
		return out
	case err != nil:
		log.Warn().Err(err).Str("mode", string(res.Mode)).Msg("tenant resolution failed, continuing")
	}

	if hasUpdateID && s.isDuplicate(ctx, res.TenantID, updateID) {
		log.Info().Int64("update_id", updateID).Msg("duplicate update acknowledged")
		out.Status = StatusDuplicate
		return out
	}

	msg, ok := s.normalizer().Normalize(ctx, upd)
	if !ok {
		out.Status = StatusNoMessage
		chatID, found := telegram.SalvageChatID(upd)
		if !found {
			log.Info().Msg("update without message text ignored")
			return out
		}
		log.Info().Int64("chat_id", chatID).Msg("update without message text, sending safe default")
		dispatched = true
		_, derr := s.deliver(ctx, res, chatID, brain.SafeDefault)
		out.Delivered = derr == nil
		out.DeliveryError = derr
		return out
	}
	if res.TenantID != "" {
		msg = msg.WithMeta(domain.MetaTenantID, res.TenantID)
	}

	reply := s.Brain.Process(ctx, msg)
	out.Intent, out.Source = reply.Intent, reply.Source

	chatID, found := parseChatID(msg.ChatID())
	if !found {
		chatID, found = telegram.SalvageChatID(upd)
	}

	var used telegram.Credential
	if found {
		dispatched = true
		used, err = s.deliver(ctx, res, chatID, reply.Text)
	} else {
		err = errors.New("no chat id in update")
		log.Error().Msg("reply not dispatched: no chat id")
	}
	out.Delivered = err == nil
	out.DeliveryError = err
	if out.TenantID == "" && out.Delivered {
		out.TenantID = used.TenantID
	}
	out.Status = StatusReplied
	if !out.Delivered {
		out.Status = StatusUndelivered
	}

	s.persist(ctx, &domain.Conversation{
		TenantID:    out.TenantID,
		Channel:     msg.Channel,
		UserID:      msg.UserID,
		ChatID:      msg.ChatID(),
		UserMessage: msg.Text,
		BotReply:    reply.Text,
		Intent:      reply.Intent,
		Delivered:   out.Delivered,
		ReceivedAt:  msg.Timestamp,
	})
	return out
}

// TestSendResult is the outcome of a diagnostic send.
type TestSendResult struct {
	TenantID   string      `json:"tenant_id,omitempty"`
	Mode       ResolveMode `json:"mode"`
	Credential string      `json:"credential,omitempty"`
}

// TestSend delivers text to chatID through the credentials resolved for
// route, bypassing the brain.
func (s *WebhookService) TestSend(ctx context.Context, route WebhookRoute, chatID int64, text string) (TestSendResult, error) {
	res, err := s.Resolver.Resolve(ctx, route)
	out := TestSendResult{TenantID: res.TenantID, Mode: res.Mode}
	if err != nil {
		return out, err
	}
	used, err := s.deliver(ctx, res, chatID, text)
	if err != nil {
		return out, err
	}
	out.TenantID = used.TenantID
	out.Credential = used.Name
	return out, nil
}

// Drain waits for background persistence to finish or ctx to end.
func (s *WebhookService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replySafeDefault answers a chat whose update broke the pipeline, so the
// user is never left without a reply.
func (s *WebhookService) replySafeDefault(ctx context.Context, res Resolution, upd telegram.Update, out *WebhookOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", rec).Msg("safe default dispatch panicked")
		}
	}()
	chatID, ok := telegram.SalvageChatID(upd)
	if !ok || s.Sender == nil {
		return
	}
	_, err := s.deliver(ctx, res, chatID, brain.SafeDefault)
	out.Delivered = err == nil
	out.DeliveryError = err
}

func (s *WebhookService) deliver(ctx context.Context, res Resolution, chatID int64, text string) (telegram.Credential, error) {
	log := zerolog.Ctx(ctx)
	used, err := s.Sender.Deliver(ctx, res.Credentials, chatID, text)
	switch {
	case err == nil:
		dispatches.WithLabelValues("sent", string(res.Mode)).Inc()
	case errors.Is(err, telegram.ErrNoCredential):
		dispatches.WithLabelValues("no_credential", string(res.Mode)).Inc()
		log.Error().Str("tenant_id", res.TenantID).Str("mode", string(res.Mode)).Msg("bot credential not configured")
	default:
		dispatches.WithLabelValues("failed", string(res.Mode)).Inc()
		log.Error().Err(err).Str("tenant_id", res.TenantID).Int64("chat_id", chatID).Msg("reply dispatch failed")
	}
	return used, err
}

// isDuplicate claims the update; any error other than a duplicate fails open.
func (s *WebhookService) isDuplicate(ctx context.Context, tenantID string, updateID int64) bool {
	if s.DB == nil || s.Updates == nil {
		return false
	}
	scope := tenantID
	if scope == "" {
		scope = dedupScopeChannel
	}
	ttl := s.DedupTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := s.Updates.ClaimUpdate(ctx, s.DB, scope, updateID, ttl, s.now())
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrDuplicate):
		return true
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Msg("update claim failed, processing anyway")
		return false
	}
}

// persist writes c in the background with its own timeout. The write
// outlives the request context but is tracked for Drain.
func (s *WebhookService) persist(ctx context.Context, c *domain.Conversation) {
	if s.Recorder == nil {
		return
	}
	timeout := s.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := zerolog.Ctx(ctx)
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				persistFailures.Inc()
				log.Error().Interface("panic", rec).Msg("conversation persistence panicked")
			}
		}()
		pctx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()
		if err := s.Recorder.Record(pctx, c); err != nil {
			persistFailures.Inc()
			log.Warn().Err(err).Str("user_id", c.UserID).Msg("conversation not persisted")
		}
	}()
}

// defaultNormalizer serves services built without a Normalizer. It is only
// read, so concurrent Handle calls may share it.
var defaultNormalizer telegram.Normalizer

func (s *WebhookService) normalizer() *telegram.Normalizer {
	if s.Normalizer != nil {
		return s.Normalizer
	}
	return &defaultNormalizer
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func parseChatID(v string) (int64, bool) {
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil
}
