package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"proctored-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const teamColumns = `id::text, team_name, question_order, current_question, answers,
score, warnings, is_disqualified, is_completed, start_time, end_time, total_time_seconds`

// TeamStore persists team records in Postgres. Name uniqueness is
// check-then-insert at the application level, with the unique index on
// team_name as the real guard against the race.
type TeamStore struct {
	pool *pgxpool.Pool
}

func NewTeamStore(pool *pgxpool.Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

func (s *TeamStore) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	order, err := json.Marshal(team.QuestionOrder)
	if err != nil {
		return domain.Team{}, fmt.Errorf("marshal question order: %w", err)
	}
	answers, err := json.Marshal(team.Answers)
	if err != nil {
		return domain.Team{}, fmt.Errorf("marshal answers: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO teams (team_name, question_order, current_question, answers, score, warnings, is_disqualified, is_completed, start_time)
		VALUES ($1, $2::jsonb, $3, $4::jsonb, $5, $6, $7, $8, $9)
		RETURNING id::text`,
		team.TeamName, order, team.CurrentQuestion, answers, team.Score,
		team.Warnings, team.IsDisqualified, team.IsCompleted, team.StartTime,
	).Scan(&team.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Team{}, domain.ErrNameConflict
		}
		return domain.Team{}, fmt.Errorf("insert team: %w", err)
	}
	return team, nil
}

func (s *TeamStore) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id=$1`, id)
	return scanTeam(row)
}

func (s *TeamStore) FindByName(ctx context.Context, name string) (domain.Team, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE team_name=$1`, name)
	return scanTeam(row)
}

func (s *TeamStore) UpdateTeam(ctx context.Context, id string, update domain.TeamUpdate) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.CurrentQuestion != nil {
		add("current_question", *update.CurrentQuestion)
	}
	if update.Answers != nil {
		answers, err := json.Marshal(update.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		args = append(args, answers)
		sets = append(sets, fmt.Sprintf("answers=$%d::jsonb", len(args)))
	}
	if update.Score != nil {
		add("score", *update.Score)
	}
	if update.Warnings != nil {
		add("warnings", *update.Warnings)
	}
	if update.IsDisqualified != nil {
		add("is_disqualified", *update.IsDisqualified)
	}
	if update.IsCompleted != nil {
		add("is_completed", *update.IsCompleted)
	}
	if update.EndTime != nil {
		add("end_time", *update.EndTime)
	}
	if update.TotalTimeSeconds != nil {
		add("total_time_seconds", *update.TotalTimeSeconds)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE teams SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

// ListTeams returns every team in dashboard ranking order.
func (s *TeamStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		ORDER BY is_completed DESC, score DESC, total_time_seconds ASC NULLS LAST, team_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func scanTeam(row pgx.Row) (domain.Team, error) {
	var (
		team       domain.Team
		orderRaw   []byte
		answersRaw []byte
	)
	err := row.Scan(
		&team.ID, &team.TeamName, &orderRaw, &team.CurrentQuestion, &answersRaw,
		&team.Score, &team.Warnings, &team.IsDisqualified, &team.IsCompleted,
		&team.StartTime, &team.EndTime, &team.TotalTimeSeconds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	if err != nil {
		return domain.Team{}, fmt.Errorf("scan team: %w", err)
	}
	if err := json.Unmarshal(orderRaw, &team.QuestionOrder); err != nil {
		return domain.Team{}, fmt.Errorf("unmarshal question order: %w", err)
	}
	if err := json.Unmarshal(answersRaw, &team.Answers); err != nil {
		return domain.Team{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return team, nil
}
