package domain

import (
	"sort"
	"time"
)

// SessionState is the lifecycle state of one team's attempt.
type SessionState string

const (
	StateNotStarted   SessionState = "not_started"
	StateInProgress   SessionState = "in_progress"
	StateCompleted    SessionState = "completed"
	StateDisqualified SessionState = "disqualified"
)

// Terminal reports whether no further transition can leave the state.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateDisqualified
}

// Team is the durable record of one team's quiz attempt.
type Team struct {
	ID               string     `json:"id"`
	TeamName         string     `json:"teamName"`
	QuestionOrder    []string   `json:"questionOrder"`
	CurrentQuestion  int        `json:"currentQuestion"`
	Answers          []string   `json:"answers"`
	Score            int        `json:"score"`
	Warnings         int        `json:"warnings"`
	IsDisqualified   bool       `json:"isDisqualified"`
	IsCompleted      bool       `json:"isCompleted"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	TotalTimeSeconds *int       `json:"totalTimeSeconds,omitempty"`
}

// State derives the lifecycle state implied by the record's latches.
func (t Team) State() SessionState {
	switch {
	case t.IsDisqualified:
		return StateDisqualified
	case t.IsCompleted:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// TeamUpdate is a partial update applied to a stored Team. Nil fields are
// left untouched by the store.
type TeamUpdate struct {
	CurrentQuestion  *int       `json:"currentQuestion,omitempty"`
	Answers          []string   `json:"answers,omitempty"`
	Score            *int       `json:"score,omitempty"`
	Warnings         *int       `json:"warnings,omitempty"`
	IsDisqualified   *bool      `json:"isDisqualified,omitempty"`
	IsCompleted      *bool      `json:"isCompleted,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	TotalTimeSeconds *int       `json:"totalTimeSeconds,omitempty"`
}

// RankTeams sorts teams in dashboard order: completed attempts first, then
// score descending, then fastest completion, then name for stability.
func RankTeams(teams []Team) {
	sort.SliceStable(teams, func(i, j int) bool {
		a, b := teams[i], teams[j]
		if a.IsCompleted != b.IsCompleted {
			return a.IsCompleted
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		at, bt := totalOrMax(a), totalOrMax(b)
		if at != bt {
			return at < bt
		}
		return a.TeamName < b.TeamName
	})
}

func totalOrMax(t Team) int {
	if t.TotalTimeSeconds == nil {
		return int(^uint(0) >> 1)
	}
	return *t.TotalTimeSeconds
}

// AnswerLabels are the four option labels every question carries.
var AnswerLabels = []string{"A", "B", "C", "D"}

// Question is an immutable entry from the shared pool. Correctness is always
// evaluated against the CorrectAnswer label, never against display position.
type Question struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectAnswer string `json:"correctAnswer"`
}

// Option returns the text for a label, or "" for an unknown label.
func (q Question) Option(label string) string {
	switch label {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return ""
}
