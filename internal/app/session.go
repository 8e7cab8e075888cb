package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"proctored-quiz-service/internal/domain"
)

// Session is the canonical in-memory state of one team's attempt. All
// transitions run under the mutex and mutate local state first; remote
// persistence trails behind on the per-session write queue.
type Session struct {
	svc         *Service
	tabToken    string
	clientToken string

	mu        sync.Mutex
	state     domain.SessionState
	team      domain.Team
	questions []domain.Question
	selected  string
	writes    *writeQueue
}

// View is the read-only projection handed to the presentation layer.
type View struct {
	TeamID           string              `json:"teamId"`
	TeamName         string              `json:"teamName"`
	State            domain.SessionState `json:"state"`
	Questions        []domain.Question   `json:"questions"`
	CurrentQuestion  int                 `json:"currentQuestion"`
	SelectedAnswer   string              `json:"selectedAnswer,omitempty"`
	Answers          []string            `json:"answers"`
	Score            int                 `json:"score"`
	Warnings         int                 `json:"warnings"`
	StartTime        time.Time           `json:"startTime"`
	EndTime          *time.Time          `json:"endTime,omitempty"`
	TotalTimeSeconds *int                `json:"totalTimeSeconds,omitempty"`
	Passed           bool                `json:"passed"`
}

// WarningOutcome tells the presentation layer what it owes the team after a
// violation: a blocking warning dialog, or the disqualification screen.
type WarningOutcome struct {
	Accepted     bool `json:"accepted"`
	Warnings     int  `json:"warnings"`
	Disqualified bool `json:"disqualified"`
	DialogOwed   bool `json:"dialogOwed"`
}

// Start creates the durable team record and begins the attempt.
func (s *Session) Start(ctx context.Context, teamName string) (View, error) {
	name := strings.TrimSpace(teamName)
	if name == "" {
		return View{}, domain.ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateNotStarted {
		return View{}, domain.ErrAlreadyStarted
	}

	if _, err := s.svc.teams.FindByName(ctx, name); err == nil {
		return View{}, domain.ErrNameConflict
	} else if !errors.Is(err, domain.ErrTeamNotFound) {
		return View{}, &domain.PersistenceError{Op: "find team", Err: err}
	}

	pool, err := s.svc.questions.ListAllQuestions(ctx)
	if err != nil {
		return View{}, &domain.PersistenceError{Op: "load questions", Err: err}
	}
	if len(pool) == 0 {
		return View{}, domain.ErrEmptyPool
	}

	drawn := s.svc.drawOrder(pool)
	order := make([]string, len(drawn))
	for i, q := range drawn {
		order[i] = q.ID
	}

	team := domain.Team{
		TeamName:      name,
		QuestionOrder: order,
		Answers:       []string{},
		StartTime:     s.svc.now(),
	}
	created, err := s.svc.teams.CreateTeam(ctx, team)
	if err != nil {
		if errors.Is(err, domain.ErrNameConflict) {
			return View{}, domain.ErrNameConflict
		}
		return View{}, &domain.PersistenceError{Op: "create team", Err: err}
	}

	if err := s.svc.ephemeral.Put(ctx, s.tabToken, created.ID); err != nil {
		log.Printf("cache session pointer for team %s: %v", created.ID, err)
	}

	s.team = created
	s.questions = drawn
	s.selected = ""
	s.state = domain.StateInProgress
	s.writes = newWriteQueue()
	return s.viewLocked(), nil
}

// SelectAnswer records the ephemeral selection for the current question.
// It is a no-op once the session is terminal.
func (s *Session) SelectAnswer(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil
	}
	if s.state != domain.StateInProgress {
		return domain.ErrSessionNotStarted
	}
	if !validLabel(label) {
		return domain.ErrInvalidAnswer
	}
	s.selected = label
	return nil
}

// Advance scores the selected answer, moves to the next question, and queues
// the incremental update. It never transitions state; the caller invokes
// Submit instead of Advance on the final question.
func (s *Session) Advance(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAnswerableLocked(); err != nil {
		return View{}, err
	}

	s.applyAnswerLocked()

	idx := s.team.CurrentQuestion
	score := s.team.Score
	answers := append([]string(nil), s.team.Answers...)
	s.persistLocked(domain.TeamUpdate{
		CurrentQuestion: &idx,
		Answers:         answers,
		Score:           &score,
	})
	return s.viewLocked(), nil
}

// Submit scores the final answer, stamps completion, and persists the full
// terminal record as a single update. It waits for the write queue to drain
// so completion is durable before the result screen renders.
func (s *Session) Submit(ctx context.Context) (View, error) {
	s.mu.Lock()

	if err := s.requireAnswerableLocked(); err != nil {
		s.mu.Unlock()
		return View{}, err
	}

	s.applyAnswerLocked()

	end := s.svc.now()
	total := int(end.Sub(s.team.StartTime) / time.Second)
	if total < 0 {
		total = 0
	}
	s.team.EndTime = &end
	s.team.TotalTimeSeconds = &total
	s.team.IsCompleted = true
	s.state = domain.StateCompleted

	completed := true
	idx := s.team.CurrentQuestion
	score := s.team.Score
	answers := append([]string(nil), s.team.Answers...)
	s.persistLocked(domain.TeamUpdate{
		CurrentQuestion:  &idx,
		Answers:          answers,
		Score:            &score,
		EndTime:          &end,
		TotalTimeSeconds: &total,
		IsCompleted:      &completed,
	})

	teamID := s.team.ID
	queue := s.writes
	view := s.viewLocked()
	s.mu.Unlock()

	if err := s.svc.ephemeral.Delete(ctx, s.tabToken); err != nil {
		log.Printf("clear session pointer for team %s: %v", teamID, err)
	}
	queue.flush()
	return view, nil
}

// RecordWarning counts one accepted violation. The fourth warning latches the
// session into Disqualified; any later call is a no-op.
func (s *Session) RecordWarning(ctx context.Context) WarningOutcome {
	s.mu.Lock()

	if s.state != domain.StateInProgress {
		outcome := WarningOutcome{Warnings: s.team.Warnings, Disqualified: s.state == domain.StateDisqualified}
		s.mu.Unlock()
		return outcome
	}

	s.team.Warnings++
	if s.team.Warnings < WarningLimit {
		count := s.team.Warnings
		s.persistLocked(domain.TeamUpdate{Warnings: &count})
		s.mu.Unlock()
		return WarningOutcome{Accepted: true, Warnings: count, DialogOwed: true}
	}

	s.team.Warnings = WarningLimit
	s.team.IsDisqualified = true
	s.state = domain.StateDisqualified

	count := WarningLimit
	disqualified := true
	s.persistLocked(domain.TeamUpdate{Warnings: &count, IsDisqualified: &disqualified})
	teamID := s.team.ID
	s.mu.Unlock()

	// The durable marker outlives reloads and fresh tabs; the tab pointer is
	// cleared so a reload cannot resume as in-progress.
	if err := s.svc.durable.Put(ctx, s.clientToken, teamID); err != nil {
		log.Printf("persist disqualification marker for team %s: %v", teamID, err)
	}
	if err := s.svc.ephemeral.Delete(ctx, s.tabToken); err != nil {
		log.Printf("clear session pointer for team %s: %v", teamID, err)
	}
	return WarningOutcome{Accepted: true, Warnings: count, Disqualified: true}
}

// Restore runs once at attach, before any user interaction. The durable
// disqualification marker takes precedence over the tab-scoped pointer.
func (s *Session) Restore(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateNotStarted {
		return s.viewLocked(), nil
	}

	teamID, err := s.svc.durable.Get(ctx, s.clientToken)
	if err != nil {
		log.Printf("read disqualification marker: %v", err)
	}
	if teamID == "" {
		teamID, err = s.svc.ephemeral.Get(ctx, s.tabToken)
		if err != nil {
			log.Printf("read session pointer: %v", err)
		}
	}
	if teamID == "" {
		return s.viewLocked(), nil
	}

	team, err := s.svc.teams.GetTeam(ctx, teamID)
	if errors.Is(err, domain.ErrTeamNotFound) {
		return s.viewLocked(), nil
	}
	if err != nil {
		return View{}, &domain.PersistenceError{Op: "get team", Err: err}
	}

	pool, err := s.svc.questions.ListAllQuestions(ctx)
	if err != nil {
		return View{}, &domain.PersistenceError{Op: "load questions", Err: err}
	}
	byID := make(map[string]domain.Question, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}
	ordered := make([]domain.Question, 0, len(team.QuestionOrder))
	for _, id := range team.QuestionOrder {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}

	s.team = team
	s.questions = ordered
	s.selected = ""
	s.state = team.State()
	if s.state == domain.StateInProgress {
		s.writes = newWriteQueue()
	}
	return s.viewLocked(), nil
}

// View returns the current projection without mutating anything.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the write queue after draining it. Safe to call in any state.
func (s *Session) Close() {
	s.mu.Lock()
	queue := s.writes
	s.mu.Unlock()
	if queue != nil {
		queue.close()
	}
}

// Flush waits for all queued persistence calls to land. Test hook.
func (s *Session) Flush() {
	s.mu.Lock()
	queue := s.writes
	s.mu.Unlock()
	if queue != nil {
		queue.flush()
	}
}

func (s *Session) requireAnswerableLocked() error {
	switch {
	case s.state.Terminal():
		return domain.ErrSessionTerminal
	case s.state != domain.StateInProgress:
		return domain.ErrSessionNotStarted
	case s.selected == "":
		return domain.ErrNoAnswerSelected
	case s.team.CurrentQuestion >= len(s.questions):
		return domain.ErrQuestionNotFound
	}
	return nil
}

// applyAnswerLocked appends the selection, scores it against the stored
// correct-answer label, and advances the index.
func (s *Session) applyAnswerLocked() {
	question := s.questions[s.team.CurrentQuestion]
	s.team.Answers = append(s.team.Answers, s.selected)
	if s.selected == question.CorrectAnswer {
		s.team.Score++
	}
	s.team.CurrentQuestion++
	s.selected = ""
}

// persistLocked queues one update for the team record. Failures are logged,
// never surfaced: local state is authoritative mid-session and the stale
// durable record is an accepted weakness.
func (s *Session) persistLocked(update domain.TeamUpdate) {
	teamID := s.team.ID
	s.writes.enqueue(func(ctx context.Context) {
		if err := s.svc.teams.UpdateTeam(ctx, teamID, update); err != nil {
			log.Printf("persist team %s: %v", teamID, err)
		}
	})
}

func (s *Session) viewLocked() View {
	return View{
		TeamID:           s.team.ID,
		TeamName:         s.team.TeamName,
		State:            s.state,
		Questions:        s.questions,
		CurrentQuestion:  s.team.CurrentQuestion,
		SelectedAnswer:   s.selected,
		Answers:          append([]string(nil), s.team.Answers...),
		Score:            s.team.Score,
		Warnings:         s.team.Warnings,
		StartTime:        s.team.StartTime,
		EndTime:          s.team.EndTime,
		TotalTimeSeconds: s.team.TotalTimeSeconds,
		Passed:           s.team.IsCompleted && s.team.Score > PassThreshold,
	}
}

func validLabel(label string) bool {
	for _, l := range domain.AnswerLabels {
		if label == l {
			return true
		}
	}
	return false
}
