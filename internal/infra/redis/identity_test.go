package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestEphemeralIdentityExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	store := NewEphemeralIdentityStore(client, time.Minute)

	if err := store.Put(ctx, "tab-1", "team-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, err := store.Get(ctx, "tab-1"); err != nil || got != "team-1" {
		t.Fatalf("get: %q %v", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if got, err := store.Get(ctx, "tab-1"); err != nil || got != "" {
		t.Fatalf("expected expired pointer, got %q %v", got, err)
	}
}

func TestDurableIdentityPersists(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	store := NewDurableIdentityStore(client)

	if err := store.Put(ctx, "client-1", "team-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(24 * time.Hour)
	if got, err := store.Get(ctx, "client-1"); err != nil || got != "team-1" {
		t.Fatalf("marker must not expire, got %q %v", got, err)
	}

	if err := store.Delete(ctx, "client-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := store.Get(ctx, "client-1"); got != "" {
		t.Fatalf("expected cleared marker, got %q", got)
	}
}

func TestIdentityScopesDoNotCollide(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	ephemeral := NewEphemeralIdentityStore(client, time.Minute)
	durable := NewDurableIdentityStore(client)

	_ = ephemeral.Put(ctx, "tok", "team-live")
	_ = durable.Put(ctx, "tok", "team-dq")

	if got, _ := ephemeral.Get(ctx, "tok"); got != "team-live" {
		t.Fatalf("ephemeral read: %q", got)
	}
	if got, _ := durable.Get(ctx, "tok"); got != "team-dq" {
		t.Fatalf("durable read: %q", got)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
