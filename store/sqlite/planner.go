package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/planner"
)

// =============================================================================
// HABITS (planner.Store interface)
// =============================================================================

func (s *Store) CreateHabit(ctx context.Context, h planner.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, h.ID, h.OwnerID, h.Name, nullString(h.Description), h.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) GetHabit(ctx context.Context, owner generic.OwnerID, id planner.HabitID) (*planner.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	habits, err := s.queryHabits(ctx, "WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return nil, generic.ErrHabitNotFound
	}
	return &habits[0], nil
}

func (s *Store) ListHabits(ctx context.Context, owner generic.OwnerID) ([]planner.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHabits(ctx, "WHERE owner_id = ?", owner)
}

func (s *Store) DeleteHabit(ctx context.Context, owner generic.OwnerID, id planner.HabitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrHabitNotFound)
}

func (s *Store) SetHabitCompletion(ctx context.Context, owner generic.OwnerID, id planner.HabitID, day generic.Day, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM habits WHERE id = ? AND owner_id = ?`, id, owner).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ErrHabitNotFound
	}
	if err != nil {
		return err
	}

	if done {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO habit_completions (habit_id, day) VALUES (?, ?)
			ON CONFLICT(habit_id, day) DO NOTHING
		`, id, day.String())
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM habit_completions WHERE habit_id = ? AND day = ?`, id, day.String())
	}
	return err
}

func (s *Store) queryHabits(ctx context.Context, where string, args ...any) ([]planner.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, description, created_at
		FROM habits `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}

	var habits []planner.Habit
	for rows.Next() {
		var (
			h         planner.Habit
			desc      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Name, &desc, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		h.Description = desc.String
		h.CreatedAt = parseTime(createdAt)
		habits = append(habits, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range habits {
		days, err := s.habitDays(ctx, habits[i].ID)
		if err != nil {
			return nil, err
		}
		habits[i].Completions = days
	}
	return habits, nil
}

func (s *Store) habitDays(ctx context.Context, id planner.HabitID) ([]generic.Day, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day FROM habit_completions WHERE habit_id = ? ORDER BY day`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []generic.Day
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		day, err := generic.ParseDay(d)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// =============================================================================
// TASKS
// =============================================================================

func (s *Store) CreateTask(ctx context.Context, t planner.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewardValue, rewardCurrency := nullAmount(t.Reward)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, priority, due_date, goal_id,
			reward_value, reward_currency, completed, completed_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OwnerID, t.Title, nullString(t.Description), t.Priority, nullDay(t.DueDate),
		nullString(string(t.GoalID)), rewardValue, rewardCurrency, t.Completed, nullDay(t.CompletedOn),
		t.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) GetTask(ctx context.Context, owner generic.OwnerID, id planner.TaskID) (*planner.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.queryTasks(ctx, "WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, generic.ErrTaskNotFound
	}
	return &tasks[0], nil
}

func (s *Store) ListTasks(ctx context.Context, owner generic.OwnerID) ([]planner.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTasks(ctx, "WHERE owner_id = ?", owner)
}

func (s *Store) UpdateTask(ctx context.Context, t planner.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewardValue, rewardCurrency := nullAmount(t.Reward)
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, due_date = ?, goal_id = ?,
			reward_value = ?, reward_currency = ?, completed = ?, completed_on = ?
		WHERE id = ? AND owner_id = ?
	`, t.Title, nullString(t.Description), t.Priority, nullDay(t.DueDate), nullString(string(t.GoalID)),
		rewardValue, rewardCurrency, t.Completed, nullDay(t.CompletedOn), t.ID, t.OwnerID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrTaskNotFound)
}

func (s *Store) DeleteTask(ctx context.Context, owner generic.OwnerID, id planner.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrTaskNotFound)
}

func (s *Store) queryTasks(ctx context.Context, where string, args ...any) ([]planner.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, description, priority, due_date, goal_id,
			reward_value, reward_currency, completed, completed_on, created_at
		FROM tasks `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []planner.Task
	for rows.Next() {
		var (
			t                                  planner.Task
			desc, dueDate, goalID, completedOn sql.NullString
			rewardValue, rewardCurrency        sql.NullString
			createdAt                          string
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &desc, &t.Priority, &dueDate, &goalID,
			&rewardValue, &rewardCurrency, &t.Completed, &completedOn, &createdAt); err != nil {
			return nil, err
		}
		t.Description = desc.String
		t.DueDate = scanDay(dueDate)
		t.GoalID = planner.GoalID(goalID.String)
		if rewardValue.Valid {
			a, err := parseAmount(rewardValue.String, rewardCurrency.String)
			if err != nil {
				return nil, fmt.Errorf("task %s: reward: %w", t.ID, err)
			}
			t.Reward = &a
		}
		t.CompletedOn = scanDay(completedOn)
		t.CreatedAt = parseTime(createdAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// =============================================================================
// GOALS
// =============================================================================

func (s *Store) CreateGoal(ctx context.Context, g planner.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, owner_id, title, description, target_date, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.OwnerID, g.Title, nullString(g.Description), nullDay(g.TargetDate), g.Progress,
		g.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) GetGoal(ctx context.Context, owner generic.OwnerID, id planner.GoalID) (*planner.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goals, err := s.queryGoals(ctx, "WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, generic.ErrGoalNotFound
	}
	return &goals[0], nil
}

func (s *Store) ListGoals(ctx context.Context, owner generic.OwnerID) ([]planner.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryGoals(ctx, "WHERE owner_id = ?", owner)
}

func (s *Store) UpdateGoal(ctx context.Context, g planner.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE goals SET title = ?, description = ?, target_date = ?, progress = ?
		WHERE id = ? AND owner_id = ?
	`, g.Title, nullString(g.Description), nullDay(g.TargetDate), g.Progress, g.ID, g.OwnerID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrGoalNotFound)
}

func (s *Store) DeleteGoal(ctx context.Context, owner generic.OwnerID, id planner.GoalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, generic.ErrGoalNotFound)
}

func (s *Store) queryGoals(ctx context.Context, where string, args ...any) ([]planner.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, description, target_date, progress, created_at
		FROM goals `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []planner.Goal
	for rows.Next() {
		var (
			g                planner.Goal
			desc, targetDate sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &desc, &targetDate, &g.Progress, &createdAt); err != nil {
			return nil, err
		}
		g.Description = desc.String
		g.TargetDate = scanDay(targetDate)
		g.CreatedAt = parseTime(createdAt)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func nullAmount(a *generic.Amount) (sql.NullString, sql.NullString) {
	if a == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: a.Value.String(), Valid: true},
		sql.NullString{String: string(a.Currency), Valid: true}
}
