package redis

import (
	"context"
	"encoding/json"
	"log"

	"proctored-quiz-service/internal/app"
	"proctored-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const teamChangesChannel = "quiz:teams:changes"

// ChangeEvent is one team-record change published on the feed the ranking
// dashboard subscribes to.
type ChangeEvent struct {
	TeamID string `json:"teamId"`
	Kind   string `json:"kind"` // "created" or "updated"
}

// NotifyingTeamStore decorates a TeamStore with a Redis pub/sub change feed.
// Publishing is best-effort: a dropped notification only delays the dashboard
// until its next poll, so store errors are the only ones propagated.
type NotifyingTeamStore struct {
	app.TeamStore
	client *redis.Client
}

func NewNotifyingTeamStore(inner app.TeamStore, client *redis.Client) *NotifyingTeamStore {
	return &NotifyingTeamStore{TeamStore: inner, client: client}
}

func (s *NotifyingTeamStore) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	created, err := s.TeamStore.CreateTeam(ctx, team)
	if err != nil {
		return domain.Team{}, err
	}
	s.publish(ctx, ChangeEvent{TeamID: created.ID, Kind: "created"})
	return created, nil
}

func (s *NotifyingTeamStore) UpdateTeam(ctx context.Context, id string, update domain.TeamUpdate) error {
	if err := s.TeamStore.UpdateTeam(ctx, id, update); err != nil {
		return err
	}
	s.publish(ctx, ChangeEvent{TeamID: id, Kind: "updated"})
	return nil
}

func (s *NotifyingTeamStore) publish(ctx context.Context, ev ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, teamChangesChannel, data).Err(); err != nil {
		log.Printf("publish team change %s: %v", ev.TeamID, err)
	}
}

// SubscribeChanges delivers team-change events until cancel is called.
func SubscribeChanges(ctx context.Context, client *redis.Client) (<-chan ChangeEvent, func()) {
	pubsub := client.Subscribe(ctx, teamChangesChannel)
	// Wait for the subscription to be confirmed so no early publish is lost.
	_, _ = pubsub.Receive(ctx)
	out := make(chan ChangeEvent, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel
}
