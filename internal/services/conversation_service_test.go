package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
)

type fakeConversationRepo struct {
	created []*domain.Conversation

	countTenant, countUser string
	countTotal             int64
	countErr               error

	pageOffset, pageLimit int
	pageItems             []domain.Conversation
}

func (r *fakeConversationRepo) CreateConversation(_ context.Context, _ *gorm.DB, c *domain.Conversation) error {
	r.created = append(r.created, c)
	return nil
}

func (r *fakeConversationRepo) CountConversations(_ context.Context, _ *gorm.DB, tenantID, userID string) (int64, error) {
	r.countTenant, r.countUser = tenantID, userID
	return r.countTotal, r.countErr
}

func (r *fakeConversationRepo) ListConversationsPage(_ context.Context, _ *gorm.DB, _, _ string, offset, limit int) ([]domain.Conversation, error) {
	r.pageOffset, r.pageLimit = offset, limit
	return r.pageItems, nil
}

func (r *fakeConversationRepo) ConversationsStats(context.Context, *gorm.DB, string, string) (int64, *time.Time, error) {
	return r.countTotal, nil, r.countErr
}

func TestConversationService_ListPage_ClampsAndTrims(t *testing.T) {
	fr := &fakeConversationRepo{countTotal: 42, pageItems: []domain.Conversation{{ID: "c1"}}}
	s := NewConversationService(nil, fr)
	s.MaxPageSize = 50

	items, total, err := s.ListPage(context.Background(), " acme ", " u1 ", 0, 500)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 42 || len(items) != 1 {
		t.Fatalf("unexpected result: %d %+v", total, items)
	}
	if fr.countTenant != "acme" || fr.countUser != "u1" {
		t.Fatalf("expected trimmed ids, got %q %q", fr.countTenant, fr.countUser)
	}
	if fr.pageOffset != 0 || fr.pageLimit != 50 {
		t.Fatalf("expected page 1 size 50, got offset=%d limit=%d", fr.pageOffset, fr.pageLimit)
	}

	if _, _, err := s.ListPage(context.Background(), "acme", "", 3, 0); err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if fr.pageOffset != 40 || fr.pageLimit != 20 {
		t.Fatalf("expected default size 20 at page 3, got offset=%d limit=%d", fr.pageOffset, fr.pageLimit)
	}
}

func TestConversationService_ListPage_EmptyAndErrors(t *testing.T) {
	fr := &fakeConversationRepo{}
	s := NewConversationService(nil, fr)

	items, total, err := s.ListPage(context.Background(), "acme", "", 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil page, got %v %d %v", items, total, err)
	}

	if _, _, err := s.ListPage(context.Background(), "  ", "", 1, 10); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
	if _, _, err := s.Stats(context.Background(), "", ""); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired from Stats, got %v", err)
	}

	fr.countErr = errors.New("db down")
	if _, _, err := s.ListPage(context.Background(), "acme", "", 1, 10); err == nil {
		t.Fatalf("expected repo error")
	}
}

func TestConversationService_RecordAndList_SQLite(t *testing.T) {
	db := newServiceDB(t)
	s := NewConversationService(db, repo.Store{})
	ctx := context.Background()

	for i, text := range []string{"hi", "pricing", "thanks"} {
		c := &domain.Conversation{
			TenantID: "acme", Channel: domain.ChannelTelegram, UserID: "42", ChatID: "42",
			UserMessage: text, BotReply: "reply", Intent: domain.IntentGreeting, Delivered: i != 1,
		}
		if err := s.Record(ctx, c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	items, total, err := s.ListPage(ctx, "acme", "42", 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}

	count, maxAt, err := s.Stats(ctx, "acme", "42")
	if err != nil || count != 3 || maxAt == nil {
		t.Fatalf("unexpected stats: %d %v %v", count, maxAt, err)
	}
}
