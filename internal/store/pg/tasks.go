package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"craftdesk.org/internal/ids"
	"craftdesk.org/internal/pm"
)

const taskColumns = `id, project_id, title, description, status, priority,
	creator_id, assignee_id, due_date, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (pm.Task, error) {
	var (
		t           pm.Task
		description sql.NullString
		assigneeID  sql.NullString
		dueDate     sql.NullTime
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &t.Priority,
		&t.CreatorID, &assigneeID, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Task{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Task{}, err
	}
	t.Description = description.String
	t.AssigneeID = assigneeID.String
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t pm.Task) (pm.Task, error) {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.ProjectID) == "" {
		return pm.Task{}, pm.ErrInvalidInput
	}
	if t.Status == "" {
		t.Status = pm.TaskPending
	}
	if !pm.ValidTaskStatus(t.Status) {
		return pm.Task{}, pm.ErrInvalidStatus
	}
	if t.Priority == "" {
		t.Priority = pm.PriorityNormal
	}
	t.ID = ids.New()

	row := s.db.QueryRowContext(ctx, `
		insert into tasks (id, project_id, title, description, status, priority, creator_id, assignee_id, due_date)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning `+taskColumns+`
	`, t.ID, t.ProjectID, t.Title, nullIfEmpty(t.Description), string(t.Status), t.Priority,
		t.CreatorID, nullIfEmpty(t.AssigneeID), nullIfZero(t.DueDate))
	created, err := scanTask(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return pm.Task{}, pm.ErrNotFound
		}
		return pm.Task{}, err
	}
	return created, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (pm.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `select `+taskColumns+` from tasks where id = $1`, id))
}

func (s *Store) ListTasks(ctx context.Context, f pm.TaskFilter) ([]pm.Task, pm.Page, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if f.ProjectID != "" {
		where = append(where, fmt.Sprintf("project_id = $%d", idx))
		args = append(args, f.ProjectID)
		idx++
	}
	if f.AssigneeID != "" {
		where = append(where, fmt.Sprintf("assignee_id = $%d", idx))
		args = append(args, f.AssigneeID)
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from tasks`+clause, args...).Scan(&total); err != nil {
		return nil, pm.Page{}, err
	}

	page, size := normalizePaging(f.Page, f.PageSize)
	query := fmt.Sprintf(`select %s from tasks%s order by created_at desc offset $%d limit $%d`,
		taskColumns, clause, idx, idx+1)
	rows, err := s.db.QueryContext(ctx, query, append(args, (page-1)*size, size)...)
	if err != nil {
		return nil, pm.Page{}, err
	}
	defer rows.Close()

	items := []pm.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, pm.Page{}, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pm.Page{}, err
	}
	return items, pm.NewPage(page, size, total), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd pm.TaskUpdate) (pm.Task, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	set := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return pm.Task{}, pm.ErrInvalidInput
		}
		set("title", *upd.Title)
	}
	if upd.Description != nil {
		set("description", nullIfEmpty(*upd.Description))
	}
	if upd.Priority != nil {
		set("priority", *upd.Priority)
	}
	if upd.AssigneeID != nil {
		set("assignee_id", nullIfEmpty(*upd.AssigneeID))
	}
	if upd.DueDate != nil {
		set("due_date", *upd.DueDate)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update tasks set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return pm.Task{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return pm.Task{}, err
		}
		if aff == 0 {
			return pm.Task{}, pm.ErrNotFound
		}
	}
	return s.GetTask(ctx, id)
}

func (s *Store) ChangeTaskStatus(ctx context.Context, id string, to pm.TaskStatus) (pm.Task, error) {
	if !pm.ValidTaskStatus(to) {
		return pm.Task{}, pm.ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx, `
		update tasks set status = $2, updated_at = now() where id = $1
	`, id, string(to))
	if err != nil {
		return pm.Task{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return pm.Task{}, err
	}
	if aff == 0 {
		return pm.Task{}, pm.ErrNotFound
	}
	return s.GetTask(ctx, id)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return pm.ErrNotFound
	}
	return nil
}
