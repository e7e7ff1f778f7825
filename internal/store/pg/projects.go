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

const projectColumns = `id, number, name, description, customer_name, status, priority,
	quoted_price, final_price, cost_price, creator_id, designer_id, sales_id, notes,
	deadline, created_at, updated_at, completed_at`

func scanProject(row interface{ Scan(...any) error }) (pm.Project, error) {
	var (
		p           pm.Project
		description sql.NullString
		designerID  sql.NullString
		salesID     sql.NullString
		notes       sql.NullString
		deadline    sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Number, &p.Name, &description, &p.CustomerName, &p.Status, &p.Priority,
		&p.QuotedPrice, &p.FinalPrice, &p.CostPrice, &p.CreatorID, &designerID, &salesID, &notes,
		&deadline, &p.CreatedAt, &p.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Project{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Project{}, err
	}
	p.Description = description.String
	p.DesignerID = designerID.String
	p.SalesID = salesID.String
	p.Notes = notes.String
	if deadline.Valid {
		t := deadline.Time
		p.Deadline = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, p pm.Project) (pm.Project, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.CustomerName) == "" {
		return pm.Project{}, pm.ErrInvalidInput
	}
	if p.Status == "" {
		p.Status = pm.StatusPendingQuote
	}
	if !pm.ValidProjectStatus(p.Status) {
		return pm.Project{}, pm.ErrInvalidStatus
	}
	if p.Priority == "" {
		p.Priority = pm.PriorityNormal
	}
	p.ID = ids.New()
	if p.Number == "" {
		p.Number = "P-" + p.ID[len(p.ID)-8:]
	}

	row := s.db.QueryRowContext(ctx, `
		insert into projects (id, number, name, description, customer_name, status, priority,
			quoted_price, final_price, cost_price, creator_id, designer_id, sales_id, notes, deadline)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		returning `+projectColumns+`
	`, p.ID, p.Number, p.Name, nullIfEmpty(p.Description), p.CustomerName, string(p.Status), p.Priority,
		p.QuotedPrice, p.FinalPrice, p.CostPrice, p.CreatorID, nullIfEmpty(p.DesignerID), nullIfEmpty(p.SalesID),
		nullIfEmpty(p.Notes), nullIfZero(p.Deadline))
	created, err := scanProject(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return pm.Project{}, fmt.Errorf("%w: duplicate project number", pm.ErrInvalidInput)
		}
		return pm.Project{}, err
	}
	return created, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (pm.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id = $1`, id))
}

func (s *Store) ListProjects(ctx context.Context, f pm.ProjectFilter) ([]pm.Project, pm.Page, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.CustomerName != "" {
		where = append(where, fmt.Sprintf("customer_name ilike $%d", idx))
		args = append(args, "%"+f.CustomerName+"%")
		idx++
	}
	if f.DesignerID != "" {
		where = append(where, fmt.Sprintf("designer_id = $%d", idx))
		args = append(args, f.DesignerID)
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from projects`+clause, args...).Scan(&total); err != nil {
		return nil, pm.Page{}, err
	}

	page, size := normalizePaging(f.Page, f.PageSize)
	query := fmt.Sprintf(`select %s from projects%s order by created_at desc offset $%d limit $%d`,
		projectColumns, clause, idx, idx+1)
	rows, err := s.db.QueryContext(ctx, query, append(args, (page-1)*size, size)...)
	if err != nil {
		return nil, pm.Page{}, err
	}
	defer rows.Close()

	items := []pm.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, pm.Page{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pm.Page{}, err
	}
	return items, pm.NewPage(page, size, total), nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, upd pm.ProjectUpdate) (pm.Project, error) {
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
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return pm.Project{}, pm.ErrInvalidInput
		}
		set("name", *upd.Name)
	}
	if upd.Description != nil {
		set("description", nullIfEmpty(*upd.Description))
	}
	if upd.CustomerName != nil {
		if strings.TrimSpace(*upd.CustomerName) == "" {
			return pm.Project{}, pm.ErrInvalidInput
		}
		set("customer_name", *upd.CustomerName)
	}
	if upd.Priority != nil {
		set("priority", *upd.Priority)
	}
	if upd.QuotedPrice != nil {
		set("quoted_price", *upd.QuotedPrice)
	}
	if upd.FinalPrice != nil {
		set("final_price", *upd.FinalPrice)
	}
	if upd.CostPrice != nil {
		set("cost_price", *upd.CostPrice)
	}
	if upd.DesignerID != nil {
		set("designer_id", nullIfEmpty(*upd.DesignerID))
	}
	if upd.SalesID != nil {
		set("sales_id", nullIfEmpty(*upd.SalesID))
	}
	if upd.Notes != nil {
		set("notes", nullIfEmpty(*upd.Notes))
	}
	if upd.Deadline != nil {
		set("deadline", *upd.Deadline)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update projects set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return pm.Project{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return pm.Project{}, err
		}
		if aff == 0 {
			return pm.Project{}, pm.ErrNotFound
		}
	}
	return s.GetProject(ctx, id)
}

func (s *Store) ChangeProjectStatus(ctx context.Context, id string, to pm.ProjectStatus) (pm.Project, error) {
	if !pm.ValidProjectStatus(to) {
		return pm.Project{}, pm.ErrInvalidStatus
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pm.Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current pm.ProjectStatus
	err = tx.QueryRowContext(ctx, `select status from projects where id = $1 for update`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Project{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Project{}, err
	}
	if !pm.CanTransition(current, to) {
		return pm.Project{}, pm.ErrInvalidTransition
	}

	completed := "completed_at"
	if to == pm.StatusCompleted {
		completed = "now()"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		update projects set status = $2, completed_at = %s, updated_at = now() where id = $1
	`, completed), id, string(to)); err != nil {
		return pm.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return pm.Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status pm.ProjectStatus
	err = tx.QueryRowContext(ctx, `select status from projects where id = $1 for update`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != pm.StatusPendingQuote && status != pm.StatusCancelled {
		return pm.ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `delete from tasks where project_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from projects where id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Statistics(ctx context.Context) (pm.Statistics, error) {
	stats := pm.Statistics{ByStatus: make(map[pm.ProjectStatus]int)}

	rows, err := s.db.QueryContext(ctx, `
		select status, count(*), coalesce(sum(final_price),0), coalesce(sum(cost_price),0)
		from projects
		group by status
	`)
	if err != nil {
		return pm.Statistics{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status        pm.ProjectStatus
			count         int
			revenue, cost int64
		)
		if err := rows.Scan(&status, &count, &revenue, &cost); err != nil {
			return pm.Statistics{}, err
		}
		stats.ByStatus[status] = count
		stats.TotalProjects += count
		stats.TotalRevenue += revenue
		stats.TotalCost += cost
	}
	if err := rows.Err(); err != nil {
		return pm.Statistics{}, err
	}
	return stats, nil
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
