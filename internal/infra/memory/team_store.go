package memory

import (
	"context"
	"fmt"
	"sync"

	"proctored-quiz-service/internal/domain"
)

// TeamStore is an in-memory implementation of app.TeamStore, used in tests
// and when running without Postgres.
type TeamStore struct {
	mu     sync.RWMutex
	nextID int
	teams  map[string]domain.Team
	byName map[string]string
}

func NewTeamStore() *TeamStore {
	return &TeamStore{
		teams:  make(map[string]domain.Team),
		byName: make(map[string]string),
	}
}

func (s *TeamStore) CreateTeam(_ context.Context, team domain.Team) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[team.TeamName]; ok {
		return domain.Team{}, domain.ErrNameConflict
	}

	s.nextID++
	team.ID = fmt.Sprintf("team-%d", s.nextID)
	s.teams[team.ID] = cloneTeam(team)
	s.byName[team.TeamName] = team.ID
	return team, nil
}

func (s *TeamStore) GetTeam(_ context.Context, id string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return cloneTeam(team), nil
}

func (s *TeamStore) FindByName(_ context.Context, name string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return cloneTeam(s.teams[id]), nil
}

func (s *TeamStore) UpdateTeam(_ context.Context, id string, update domain.TeamUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[id]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if update.CurrentQuestion != nil {
		team.CurrentQuestion = *update.CurrentQuestion
	}
	if update.Answers != nil {
		team.Answers = append([]string(nil), update.Answers...)
	}
	if update.Score != nil {
		team.Score = *update.Score
	}
	if update.Warnings != nil {
		team.Warnings = *update.Warnings
	}
	if update.IsDisqualified != nil {
		team.IsDisqualified = *update.IsDisqualified
	}
	if update.IsCompleted != nil {
		team.IsCompleted = *update.IsCompleted
	}
	if update.EndTime != nil {
		end := *update.EndTime
		team.EndTime = &end
	}
	if update.TotalTimeSeconds != nil {
		total := *update.TotalTimeSeconds
		team.TotalTimeSeconds = &total
	}
	s.teams[id] = team
	return nil
}

// ListTeams returns all teams ranked the way the dashboard presents them:
// completed first, then score descending, then fastest completion.
func (s *TeamStore) ListTeams(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]domain.Team, 0, len(s.teams))
	for _, team := range s.teams {
		teams = append(teams, cloneTeam(team))
	}
	domain.RankTeams(teams)
	return teams, nil
}

func cloneTeam(t domain.Team) domain.Team {
	t.QuestionOrder = append([]string(nil), t.QuestionOrder...)
	t.Answers = append([]string(nil), t.Answers...)
	if t.EndTime != nil {
		end := *t.EndTime
		t.EndTime = &end
	}
	if t.TotalTimeSeconds != nil {
		total := *t.TotalTimeSeconds
		t.TotalTimeSeconds = &total
	}
	return t
}
