// Package services – CredentialService
//
// CredentialService owns channel credentials: seeding from configuration,
// registration through the admin API, status reporting and, most
// importantly, tenant resolution for inbound webhooks.
//
// Resolution order for an inbound update:
//  1. tenant in the webhook path (POST /telegram/webhook/:tenant)
//  2. X-Telegram-Bot-Api-Secret-Token matching a credential's webhook secret
//  3. the configured default tenant
//  4. every active credential, in creation order, when probing is enabled
//
// Steps 1 and 3 enforce the tenant's webhook secret when one is configured.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/channel/telegram"
	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
)

// SeedCredentialName names the credential created from configuration.
const SeedCredentialName = "env"

// CredentialRepo defines the repository contract required by CredentialService.
type CredentialRepo interface {
	EnsureTenant(ctx context.Context, db *gorm.DB, id, name string) (*domain.Tenant, error)
	GetTenant(ctx context.Context, db *gorm.DB, id string) (*domain.Tenant, error)
	UpsertCredential(ctx context.Context, db *gorm.DB, c *domain.ChannelCredential) (*domain.ChannelCredential, error)
	ListActiveCredentials(ctx context.Context, db *gorm.DB, channel domain.Channel) ([]domain.ChannelCredential, error)
	ListTenantCredentials(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel) ([]domain.ChannelCredential, error)
	FindCredentialBySecret(ctx context.Context, db *gorm.DB, channel domain.Channel, secret string) (*domain.ChannelCredential, error)
	DeactivateCredential(ctx context.Context, db *gorm.DB, tenantID string, channel domain.Channel, name string) error
}

// WebhookRegistrar registers a bot webhook with the platform.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, token, url, secret string) error
}

// ResolveMode records how a webhook's tenant was determined.
type ResolveMode string

const (
	ResolvePath    ResolveMode = "path"
	ResolveSecret  ResolveMode = "secret"
	ResolveDefault ResolveMode = "default"
	ResolveProbe   ResolveMode = "probe"
	ResolveNone    ResolveMode = "none"
)

// WebhookRoute carries the routing hints of an inbound webhook call.
type WebhookRoute struct {
	TenantID    string
	SecretToken string
}

// Resolution is the outcome of tenant resolution. TenantID is empty in probe
// mode until a credential accepts the reply.
type Resolution struct {
	TenantID    string
	Mode        ResolveMode
	Credentials []telegram.Credential
}

// RegisterCredentialInput is the payload of a credential registration.
type RegisterCredentialInput struct {
	TenantID      string `json:"tenant_id"      validate:"required,max=64,slug"`
	TenantName    string `json:"tenant_name"    validate:"omitempty,max=255"`
	Name          string `json:"name"           validate:"omitempty,max=128,slug"`
	BotToken      string `json:"bot_token"      validate:"required,max=256,bottoken"`
	WebhookSecret string `json:"webhook_secret" validate:"omitempty,max=256,secrettoken"`
}

// Registration is the result of a credential registration. WebhookURL is set
// when the webhook was registered with Telegram; WebhookError reports a failed
// registration, in which case the credential is still stored.
type Registration struct {
	Credential   *domain.ChannelCredential `json:"credential"`
	WebhookURL   string                    `json:"webhook_url,omitempty"`
	WebhookError string                    `json:"webhook_error,omitempty"`
}

// CredentialSummary describes one credential without exposing secrets.
type CredentialSummary struct {
	Name             string         `json:"name"`
	Channel          domain.Channel `json:"channel"`
	BotID            string         `json:"bot_id"`
	HasWebhookSecret bool           `json:"has_webhook_secret"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CredentialStatus reports whether a tenant can receive replies.
type CredentialStatus struct {
	TenantID    string              `json:"tenant_id"`
	Configured  bool                `json:"configured"`
	Credentials []CredentialSummary `json:"credentials"`
}

var (
	slugRe        = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	botTokenRe    = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)
	secretTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// NewCredentialValidator returns a validator with the slug, bottoken and
// secrettoken rules registered.
func NewCredentialValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, re := range map[string]*regexp.Regexp{
		"slug":        slugRe,
		"bottoken":    botTokenRe,
		"secrettoken": secretTokenRe,
	} {
		re := re
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	return v
}

// CredentialService manages channel credentials and resolves webhook tenants.
type CredentialService struct {
	DB       *gorm.DB
	Repo     CredentialRepo
	Validate *validator.Validate

	// Webhooks, when set together with WebhookBaseURL, registers the tenant
	// webhook on every successful registration.
	Webhooks       WebhookRegistrar
	WebhookBaseURL string

	// DefaultTenant is used when the route carries no tenant and no secret matched.
	DefaultTenant string
	// Probe enables the legacy fallback over every active credential.
	Probe bool
}

// NewCredentialService constructs a CredentialService with a registration validator.
func NewCredentialService(db *gorm.DB, r CredentialRepo, defaultTenant string) *CredentialService {
	return &CredentialService{
		DB:            db,
		Repo:          r,
		Validate:      NewCredentialValidator(),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Seed stores token as the configuration credential of tenantID. A blank
// token is a no-op and returns (nil, nil).
func (s *CredentialService) Seed(ctx context.Context, tenantID, token, secret string) (*domain.ChannelCredential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrTenantRequired
	}
	return s.Repo.UpsertCredential(ctx, s.DB, &domain.ChannelCredential{
		TenantID:      tenantID,
		Channel:       domain.ChannelTelegram,
		Name:          SeedCredentialName,
		BotToken:      token,
		WebhookSecret: strings.TrimSpace(secret),
	})
}

// Register validates in, stores the credential and, when configured,
// registers the tenant webhook with Telegram.
func (s *CredentialService) Register(ctx context.Context, in RegisterCredentialInput) (*Registration, error) {
	ctx, span := otel.Tracer("services/CredentialService").Start(ctx, "Register",
		trace.WithAttributes(attribute.String("tenant.id", in.TenantID)))
	defer span.End()

	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Name = strings.TrimSpace(in.Name)
	in.BotToken = strings.TrimSpace(in.BotToken)
	in.WebhookSecret = strings.TrimSpace(in.WebhookSecret)
	if err := s.validator().Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, describeValidation(err))
	}

	if _, err := s.Repo.EnsureTenant(ctx, s.DB, in.TenantID, strings.TrimSpace(in.TenantName)); err != nil {
		return nil, err
	}
	cred, err := s.Repo.UpsertCredential(ctx, s.DB, &domain.ChannelCredential{
		TenantID:      in.TenantID,
		Channel:       domain.ChannelTelegram,
		Name:          in.Name,
		BotToken:      in.BotToken,
		WebhookSecret: in.WebhookSecret,
	})
	if err != nil {
		return nil, err
	}

	out := &Registration{Credential: cred}
	if s.Webhooks != nil && s.WebhookBaseURL != "" {
		hook := s.WebhookURL(in.TenantID)
		if err := s.Webhooks.SetWebhook(ctx, in.BotToken, hook, in.WebhookSecret); err != nil {
			span.RecordError(err)
			out.WebhookError = err.Error()
		} else {
			out.WebhookURL = hook
		}
	}
	return out, nil
}

// WebhookURL returns the tenant-scoped webhook URL under WebhookBaseURL.
func (s *CredentialService) WebhookURL(tenantID string) string {
	return strings.TrimRight(s.WebhookBaseURL, "/") + "/telegram/webhook/" + url.PathEscape(tenantID)
}

// Status reports the active Telegram credentials of tenantID.
func (s *CredentialService) Status(ctx context.Context, tenantID string) (*CredentialStatus, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if _, err := s.Repo.GetTenant(ctx, s.DB, tenantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	creds, err := s.Repo.ListTenantCredentials(ctx, s.DB, tenantID, domain.ChannelTelegram)
	if err != nil {
		return nil, err
	}
	out := &CredentialStatus{TenantID: tenantID, Credentials: make([]CredentialSummary, 0, len(creds))}
	for _, c := range creds {
		out.Credentials = append(out.Credentials, CredentialSummary{
			Name:             c.Name,
			Channel:          c.Channel,
			BotID:            botID(c.BotToken),
			HasWebhookSecret: c.WebhookSecret != "",
			UpdatedAt:        c.UpdatedAt,
		})
	}
	out.Configured = len(out.Credentials) > 0
	return out, nil
}

// Deactivate stops a tenant credential from being used for replies or
// resolution. The row is kept; registering the same name reactivates it.
func (s *CredentialService) Deactivate(ctx context.Context, tenantID, name string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrTenantRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	err := s.Repo.DeactivateCredential(ctx, s.DB, tenantID, domain.ChannelTelegram, name)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrCredentialNotFound
	}
	return err
}

// Resolve determines the tenant and candidate credentials for an inbound
// webhook. On a repository error the partial resolution is returned with
// the error so callers can fail open.
func (s *CredentialService) Resolve(ctx context.Context, route WebhookRoute) (Resolution, error) {
	ctx, span := otel.Tracer("services/CredentialService").Start(ctx, "Resolve")
	defer span.End()

	tenant := strings.TrimSpace(route.TenantID)
	secret := strings.TrimSpace(route.SecretToken)

	if tenant != "" {
		return s.resolveTenant(ctx, tenant, ResolvePath, secret)
	}

	if secret != "" {
		matched, err := s.Repo.FindCredentialBySecret(ctx, s.DB, domain.ChannelTelegram, secret)
		switch {
		case err == nil:
			creds, lerr := s.Repo.ListTenantCredentials(ctx, s.DB, matched.TenantID, domain.ChannelTelegram)
			res := Resolution{TenantID: matched.TenantID, Mode: ResolveSecret}
			res.Credentials = toTelegram(prefer(creds, matched.ID))
			if lerr != nil {
				res.Credentials = toTelegram([]domain.ChannelCredential{*matched})
			}
			span.SetAttributes(attribute.String("resolve.mode", string(res.Mode)))
			return res, nil
		case !errors.Is(err, repo.ErrNotFound):
			return Resolution{Mode: ResolveNone}, err
		}
	}

	if s.DefaultTenant != "" {
		res, err := s.resolveTenant(ctx, s.DefaultTenant, ResolveDefault, secret)
		if err != nil || len(res.Credentials) > 0 || !s.Probe {
			return res, err
		}
	}

	if s.Probe {
		creds, err := s.Repo.ListActiveCredentials(ctx, s.DB, domain.ChannelTelegram)
		span.SetAttributes(attribute.String("resolve.mode", string(ResolveProbe)))
		return Resolution{Mode: ResolveProbe, Credentials: toTelegram(creds)}, err
	}
	return Resolution{Mode: ResolveNone}, nil
}

func (s *CredentialService) resolveTenant(ctx context.Context, tenant string, mode ResolveMode, secret string) (Resolution, error) {
	res := Resolution{TenantID: tenant, Mode: mode}
	creds, err := s.Repo.ListTenantCredentials(ctx, s.DB, tenant, domain.ChannelTelegram)
	if err != nil {
		return res, err
	}
	if !secretAccepted(creds, secret) {
		return res, ErrSecretMismatch
	}
	res.Credentials = toTelegram(creds)
	return res, nil
}

func (s *CredentialService) validator() *validator.Validate {
	if s.Validate == nil {
		s.Validate = NewCredentialValidator()
	}
	return s.Validate
}

// secretAccepted reports whether secret satisfies creds: either no credential
// requires a secret, or one of them carries exactly this secret.
func secretAccepted(creds []domain.ChannelCredential, secret string) bool {
	required := false
	for _, c := range creds {
		if c.WebhookSecret == "" {
			continue
		}
		required = true
		if subtle.ConstantTimeCompare([]byte(c.WebhookSecret), []byte(secret)) == 1 {
			return true
		}
	}
	return !required
}

// prefer moves the credential with id to the front.
func prefer(creds []domain.ChannelCredential, id string) []domain.ChannelCredential {
	out := make([]domain.ChannelCredential, 0, len(creds))
	for _, c := range creds {
		if c.ID == id {
			out = append([]domain.ChannelCredential{c}, out...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func toTelegram(creds []domain.ChannelCredential) []telegram.Credential {
	out := make([]telegram.Credential, 0, len(creds))
	for _, c := range creds {
		out = append(out, telegram.Credential{TenantID: c.TenantID, Name: c.Name, Token: c.BotToken})
	}
	return out
}

// botID returns the public bot id prefix of a token.
func botID(token string) string {
	if i := strings.IndexByte(token, ':'); i > 0 {
		return token[:i]
	}
	return ""
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
