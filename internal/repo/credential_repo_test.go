package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

func newCredentialDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t, &domain.Tenant{}, &domain.ChannelCredential{})
}

func TestEnsureTenant_Idempotent(t *testing.T) {
	db := newCredentialDB(t)
	ctx := context.Background()

	if _, err := EnsureTenant(ctx, db, "acme", ""); err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}
	got, err := EnsureTenant(ctx, db, "acme", "Acme Inc")
	if err != nil {
		t.Fatalf("EnsureTenant again: %v", err)
	}
	if got.Name != "Acme Inc" {
		t.Fatalf("expected blank name to be filled, got %q", got.Name)
	}
	got, err = EnsureTenant(ctx, db, "acme", "Other")
	if err != nil || got.Name != "Acme Inc" {
		t.Fatalf("expected existing name kept, got %+v err=%v", got, err)
	}

	if _, err := GetTenant(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertCredential_CreateUpdateReactivate(t *testing.T) {
	db := newCredentialDB(t)
	ctx := context.Background()

	c, err := UpsertCredential(ctx, db, &domain.ChannelCredential{
		TenantID: "acme", Channel: domain.ChannelTelegram, BotToken: "t1", WebhookSecret: "s1",
	})
	if err != nil {
		t.Fatalf("UpsertCredential: %v", err)
	}
	if c.ID == "" || c.Name != "default" || !c.IsActive {
		t.Fatalf("unexpected credential: %+v", c)
	}
	if _, err := GetTenant(ctx, db, "acme"); err != nil {
		t.Fatalf("tenant should have been created: %v", err)
	}

	if err := DeactivateCredential(ctx, db, "acme", domain.ChannelTelegram, "default"); err != nil {
		t.Fatalf("DeactivateCredential: %v", err)
	}
	active, _ := ListActiveCredentials(ctx, db, domain.ChannelTelegram)
	if len(active) != 0 {
		t.Fatalf("expected no active credentials, got %d", len(active))
	}

	c2, err := UpsertCredential(ctx, db, &domain.ChannelCredential{
		TenantID: "acme", Channel: domain.ChannelTelegram, BotToken: "t2",
	})
	if err != nil {
		t.Fatalf("UpsertCredential update: %v", err)
	}
	if c2.ID != c.ID || c2.BotToken != "t2" || c2.WebhookSecret != "" || !c2.IsActive {
		t.Fatalf("expected same row updated and reactivated, got %+v", c2)
	}

	if err := DeactivateCredential(ctx, db, "acme", domain.ChannelTelegram, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialLookups(t *testing.T) {
	db := newCredentialDB(t)
	ctx := context.Background()

	for _, c := range []domain.ChannelCredential{
		{TenantID: "acme", Channel: domain.ChannelTelegram, BotToken: "a", WebhookSecret: "sa"},
		{TenantID: "globex", Channel: domain.ChannelTelegram, BotToken: "g"},
		{TenantID: "globex", Channel: domain.ChannelWhatsApp, BotToken: "w"},
	} {
		c := c
		if _, err := UpsertCredential(ctx, db, &c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := ListActiveCredentials(ctx, db, domain.ChannelTelegram)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListActiveCredentials = %d, %v; want 2", len(all), err)
	}

	mine, err := ListTenantCredentials(ctx, db, "globex", domain.ChannelTelegram)
	if err != nil || len(mine) != 1 || mine[0].BotToken != "g" {
		t.Fatalf("ListTenantCredentials unexpected: %+v, %v", mine, err)
	}

	got, err := FindCredentialBySecret(ctx, db, domain.ChannelTelegram, "sa")
	if err != nil || got.TenantID != "acme" {
		t.Fatalf("FindCredentialBySecret unexpected: %+v, %v", got, err)
	}
	if _, err := FindCredentialBySecret(ctx, db, domain.ChannelTelegram, " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank secret must not match, got %v", err)
	}
	if _, err := FindCredentialBySecret(ctx, db, domain.ChannelTelegram, "wrong"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
