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

const supplierColumns = `id, name, contact_name, phone, email, category, rating, active, notes, created_at, updated_at`

func scanSupplier(row interface{ Scan(...any) error }) (pm.Supplier, error) {
	var (
		sup         pm.Supplier
		contactName sql.NullString
		phone       sql.NullString
		email       sql.NullString
		category    sql.NullString
		notes       sql.NullString
	)
	err := row.Scan(&sup.ID, &sup.Name, &contactName, &phone, &email, &category, &sup.Rating, &sup.Active, &notes, &sup.CreatedAt, &sup.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Supplier{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Supplier{}, err
	}
	sup.ContactName = contactName.String
	sup.Phone = phone.String
	sup.Email = email.String
	sup.Category = category.String
	sup.Notes = notes.String
	return sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, sup pm.Supplier) (pm.Supplier, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return pm.Supplier{}, pm.ErrInvalidInput
	}
	if sup.Rating < 0 || sup.Rating > 5 {
		return pm.Supplier{}, pm.ErrInvalidInput
	}
	sup.ID = ids.New()
	sup.Active = true

	row := s.db.QueryRowContext(ctx, `
		insert into suppliers (id, name, contact_name, phone, email, category, rating, active, notes)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning `+supplierColumns+`
	`, sup.ID, sup.Name, nullIfEmpty(sup.ContactName), nullIfEmpty(sup.Phone), nullIfEmpty(sup.Email),
		nullIfEmpty(sup.Category), sup.Rating, sup.Active, nullIfEmpty(sup.Notes))
	return scanSupplier(row)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (pm.Supplier, error) {
	return scanSupplier(s.db.QueryRowContext(ctx, `select `+supplierColumns+` from suppliers where id = $1`, id))
}

func (s *Store) ListSuppliers(ctx context.Context, f pm.SupplierFilter) ([]pm.Supplier, pm.Page, error) {
	var (
		clause string
		args   []any
		idx    = 1
	)
	if f.Category != "" {
		clause = fmt.Sprintf(" where lower(category) = lower($%d)", idx)
		args = append(args, f.Category)
		idx++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from suppliers`+clause, args...).Scan(&total); err != nil {
		return nil, pm.Page{}, err
	}

	page, size := normalizePaging(f.Page, f.PageSize)
	query := fmt.Sprintf(`select %s from suppliers%s order by created_at desc offset $%d limit $%d`,
		supplierColumns, clause, idx, idx+1)
	rows, err := s.db.QueryContext(ctx, query, append(args, (page-1)*size, size)...)
	if err != nil {
		return nil, pm.Page{}, err
	}
	defer rows.Close()

	items := []pm.Supplier{}
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, pm.Page{}, err
		}
		items = append(items, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, pm.Page{}, err
	}
	return items, pm.NewPage(page, size, total), nil
}

func (s *Store) UpdateSupplier(ctx context.Context, id string, upd pm.SupplierUpdate) (pm.Supplier, error) {
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
			return pm.Supplier{}, pm.ErrInvalidInput
		}
		set("name", *upd.Name)
	}
	if upd.ContactName != nil {
		set("contact_name", nullIfEmpty(*upd.ContactName))
	}
	if upd.Phone != nil {
		set("phone", nullIfEmpty(*upd.Phone))
	}
	if upd.Email != nil {
		set("email", nullIfEmpty(*upd.Email))
	}
	if upd.Category != nil {
		set("category", nullIfEmpty(*upd.Category))
	}
	if upd.Rating != nil {
		if *upd.Rating < 0 || *upd.Rating > 5 {
			return pm.Supplier{}, pm.ErrInvalidInput
		}
		set("rating", *upd.Rating)
	}
	if upd.Active != nil {
		set("active", *upd.Active)
	}
	if upd.Notes != nil {
		set("notes", nullIfEmpty(*upd.Notes))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update suppliers set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return pm.Supplier{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return pm.Supplier{}, err
		}
		if aff == 0 {
			return pm.Supplier{}, pm.ErrNotFound
		}
	}
	return s.GetSupplier(ctx, id)
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from suppliers where id = $1`, id)
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
