package repo

import (
	"context"
	"database/sql"
	"strings"

	"tasktalk/internal/domain"
)

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var description sql.NullString
	err := scan(&t.ID, &t.UserID, &t.Title, &description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	return t, nil
}

const taskColumns = `id,user_id,title,description,completed,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Title, nullable(t.Description), t.Completed, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND user_id=?`, id, ownerID)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND user_id=?`, id, ownerID)
	return scanTask(row.Scan)
}

// ListTasks returns the owner's tasks, newest first. A nil completed filter
// returns everything; true/false narrow to that completion state.
func (r Repo) ListTasks(ctx context.Context, ownerID string, completed *bool) ([]domain.Task, error) {
	clauses := []string{"user_id=?"}
	args := []any{ownerID}
	if completed != nil {
		clauses = append(clauses, "completed=?")
		args = append(args, *completed)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, completed=?, updated_at=? WHERE id=? AND user_id=?`,
		t.Title, nullable(t.Description), t.Completed, t.UpdatedAt, t.ID, t.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, ownerID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND user_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
