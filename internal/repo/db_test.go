package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

func openTempSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "bizbot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	return db
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "bizbot.db")
	db, err := OpenSQLite(missing)
	if db != nil || err == nil {
		t.Fatalf("want error for %s, got db=%v err=%v", missing, db, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want wrapped os.ErrNotExist, got %v", err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	db := openTempSQLite(t)

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil || !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q (%v)", mode, err)
	}
	for pragma, want := range map[string]int{
		"synchronous":  1, // NORMAL
		"foreign_keys": 1,
		"busy_timeout": 5000,
	} {
		var got int
		if err := db.Raw("PRAGMA " + pragma).Scan(&got).Error; err != nil {
			t.Fatalf("%s: %v", pragma, err)
		}
		if got != want {
			t.Errorf("%s = %d, want %d", pragma, got, want)
		}
	}

	sqlDB, _ := db.DB()
	if n := sqlDB.Stats().MaxOpenConnections; n != sqlitePool.maxOpen {
		t.Fatalf("MaxOpenConnections = %d, want %d", n, sqlitePool.maxOpen)
	}
}

func TestAutoMigrate_SchemaUsable(t *testing.T) {
	db := openTempSQLite(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Running twice must be a no-op.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate again: %v", err)
	}
	for _, model := range []any{&domain.Tenant{}, &domain.ChannelCredential{}, &domain.Conversation{}, &domain.ProcessedUpdate{}} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("missing table for %T", model)
		}
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if _, err := EnsureTenant(ctx, db, "acme", "Acme"); err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}
	conv := &domain.Conversation{
		TenantID: "acme", Channel: domain.ChannelTelegram, UserID: "u1",
		UserMessage: "hi", BotReply: "hello", ReceivedAt: now,
	}
	if err := CreateConversation(ctx, db, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := ClaimUpdate(ctx, db, "acme", 1, time.Hour, now); err != nil {
		t.Fatalf("ClaimUpdate: %v", err)
	}
	n, err := CountConversations(ctx, db, "acme", "u1")
	if err != nil || n != 1 {
		t.Fatalf("CountConversations = %d, %v", n, err)
	}
}

func TestOpen_Drivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizbot.db")

	for _, driver := range []string{"", "sqlite", " SQLite "} {
		db, err := Open(driver, path)
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if _, err := Open("mysql", path); err == nil || !strings.Contains(err.Error(), `unsupported driver "mysql"`) {
		t.Fatalf("want unsupported driver error, got %v", err)
	}
	if _, err := Open(DriverPostgres, "  "); err == nil || !strings.Contains(err.Error(), "empty postgres dsn") {
		t.Fatalf("want empty dsn error, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{errors.New("UNIQUE constraint failed: processed_updates.scope"), true},
		{errors.New("constraint failed: UNIQUE constraint failed (2067)"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux_scope_update" (SQLSTATE 23505)`), true},
		{errors.New("no such table: processed_updates"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
