package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/account-auth/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestFlagRepository_MissingFlagIsNil(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewFlagRepository(client, "auth:flag")

	flag, err := repo.GetFlag(context.Background(), domain.FlagNewUsers)
	if err != nil {
		t.Fatalf("GetFlag returned error: %v", err)
	}
	if flag != nil {
		t.Fatalf("expected nil flag, got %+v", flag)
	}
}

func TestFlagRepository_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewFlagRepository(client, "auth:flag")
	ctx := context.Background()

	if err := repo.SetFlag(ctx, domain.Flag{Tag: domain.FlagNewUsers, Setting: 0, Data: "token"}); err != nil {
		t.Fatalf("SetFlag returned error: %v", err)
	}

	if got := server.HGet("auth:flag:new-users", "data"); got != "token" {
		t.Fatalf("expected data field token, got %q", got)
	}

	flag, err := repo.GetFlag(ctx, domain.FlagNewUsers)
	if err != nil {
		t.Fatalf("GetFlag returned error: %v", err)
	}
	if flag.RegistrationMode() != domain.RegistrationTicketGated {
		t.Fatalf("expected ticket-gated registration, got %v", flag.RegistrationMode())
	}
}

func TestFlagRepository_PolledOnEveryRead(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewFlagRepository(client, "")
	ctx := context.Background()

	server.HSet("flag:user-login", "setting", "0", "data", "")
	flag, err := repo.GetFlag(ctx, domain.FlagUserLogin)
	if err != nil {
		t.Fatalf("GetFlag returned error: %v", err)
	}
	if flag.LoginEnabled() {
		t.Fatal("expected login disabled")
	}

	server.HSet("flag:user-login", "setting", "1")
	flag, err = repo.GetFlag(ctx, domain.FlagUserLogin)
	if err != nil {
		t.Fatalf("GetFlag returned error: %v", err)
	}
	if !flag.LoginEnabled() {
		t.Fatal("expected login re-enabled without restart")
	}

	if err := repo.DeleteFlag(ctx, domain.FlagUserLogin); err != nil {
		t.Fatalf("DeleteFlag returned error: %v", err)
	}
	if server.Exists("flag:user-login") {
		t.Fatal("expected flag key removed")
	}
}

func TestFlagRepository_RejectsCorruptSetting(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewFlagRepository(client, "flag")

	server.HSet("flag:new-users", "setting", "yes")
	if _, err := repo.GetFlag(context.Background(), domain.FlagNewUsers); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFlagRepository_EmptyTag(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewFlagRepository(client, "flag")

	if _, err := repo.GetFlag(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty tag")
	}
}
