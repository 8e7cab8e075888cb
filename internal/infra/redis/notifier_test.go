package redis

import (
	"context"
	"testing"
	"time"

	"proctored-quiz-service/internal/domain"
	"proctored-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNotifyingTeamStorePublishesChanges(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	client := newClient(mr)
	store := NewNotifyingTeamStore(memory.NewTeamStore(), client)

	events, cancel := SubscribeChanges(ctx, client)
	defer cancel()

	created, err := store.CreateTeam(ctx, domain.Team{TeamName: "Team A", StartTime: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.TeamID != created.ID || ev.Kind != "created" {
		t.Fatalf("unexpected create event %+v", ev)
	}

	score := 3
	if err := store.UpdateTeam(ctx, created.ID, domain.TeamUpdate{Score: &score}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev = waitEvent(t, events)
	if ev.TeamID != created.ID || ev.Kind != "updated" {
		t.Fatalf("unexpected update event %+v", ev)
	}
}

func TestNotifierSkipsFailedWrites(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	client := newClient(mr)
	store := NewNotifyingTeamStore(memory.NewTeamStore(), client)

	events, cancel := SubscribeChanges(ctx, client)
	defer cancel()

	score := 1
	if err := store.UpdateTeam(ctx, "missing", domain.TeamUpdate{Score: &score}); err == nil {
		t.Fatalf("expected store error")
	}
	select {
	case ev := <-events:
		t.Fatalf("no event expected for failed write, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitEvent(t *testing.T, events <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change event")
		return ChangeEvent{}
	}
}
