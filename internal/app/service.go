package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"proctored-quiz-service/internal/domain"
)

const (
	// QuestionCount is how many questions a session draws from the pool.
	QuestionCount = 20
	// WarningLimit is the warning count at which a team is disqualified.
	WarningLimit = 4
	// PassThreshold is the minimum score strictly above which a completed
	// attempt counts as passing.
	PassThreshold = 12
)

// TeamStore abstracts the durable team record store (Postgres, in-memory, ...).
type TeamStore interface {
	CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error)
	GetTeam(ctx context.Context, id string) (domain.Team, error)
	FindByName(ctx context.Context, name string) (domain.Team, error)
	UpdateTeam(ctx context.Context, id string, update domain.TeamUpdate) error
}

// QuestionSource loads the shared question pool.
type QuestionSource interface {
	ListAllQuestions(ctx context.Context) ([]domain.Question, error)
}

// IdentityStore maps a client-held token to a team id. Two backends are
// injected with different scopes: an ephemeral one pointing at an in-progress
// session, and a durable one remembering a disqualification.
type IdentityStore interface {
	Put(ctx context.Context, token, teamID string) error
	// Get returns ("", nil) when the token has no mapping.
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// Service owns the collaborators shared by all quiz sessions.
type Service struct {
	teams     TeamStore
	questions QuestionSource
	ephemeral IdentityStore
	durable   IdentityStore
	now       func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewService(teams TeamStore, questions QuestionSource, ephemeral, durable IdentityStore) *Service {
	return NewServiceWithClock(teams, questions, ephemeral, durable, time.Now)
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(teams TeamStore, questions QuestionSource, ephemeral, durable IdentityStore, now func() time.Time) *Service {
	return &Service{
		teams:     teams,
		questions: questions,
		ephemeral: ephemeral,
		durable:   durable,
		now:       now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSession creates a fresh, not-yet-started session bound to the caller's
// identity tokens. Call Restore before accepting any user intent.
func (s *Service) NewSession(tabToken, clientToken string) *Session {
	return &Session{
		svc:         s,
		tabToken:    tabToken,
		clientToken: clientToken,
		state:       domain.StateNotStarted,
	}
}

// drawOrder returns a uniform random permutation of the pool truncated to
// QuestionCount questions.
func (s *Service) drawOrder(pool []domain.Question) []domain.Question {
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)

	s.rndMu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.rndMu.Unlock()

	if len(shuffled) > QuestionCount {
		shuffled = shuffled[:QuestionCount]
	}
	return shuffled
}
