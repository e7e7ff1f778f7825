package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"craftdesk.org/internal/ids"
	"craftdesk.org/internal/pm"
)

const fileMetaColumns = `id, project_id, filename, content_type, size, uploader_id, created_at`

func scanFileMeta(row interface{ Scan(...any) error }) (pm.ProjectFile, error) {
	var (
		f           pm.ProjectFile
		contentType sql.NullString
		uploaderID  sql.NullString
	)
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &contentType, &f.Size,
		&uploaderID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.ProjectFile{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.ProjectFile{}, err
	}
	f.ContentType = contentType.String
	f.UploaderID = uploaderID.String
	return f, nil
}

func (s *Store) AddProjectFile(ctx context.Context, f pm.ProjectFile) (pm.ProjectFile, error) {
	if strings.TrimSpace(f.Filename) == "" || len(f.Content) == 0 {
		return pm.ProjectFile{}, pm.ErrInvalidInput
	}
	if int64(len(f.Content)) > pm.MaxFileBytes {
		return pm.ProjectFile{}, pm.ErrFileTooLarge
	}
	f.ID = ids.New()
	f.Size = int64(len(f.Content))

	row := s.db.QueryRowContext(ctx, `
		insert into project_files (id, project_id, filename, content_type, size, uploader_id, content)
		values ($1,$2,$3,$4,$5,$6,$7)
		returning `+fileMetaColumns+`
	`, f.ID, f.ProjectID, f.Filename, nullIfEmpty(f.ContentType), f.Size,
		nullIfEmpty(f.UploaderID), f.Content)
	created, err := scanFileMeta(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return pm.ProjectFile{}, pm.ErrNotFound
		}
		return pm.ProjectFile{}, err
	}
	created.Content = f.Content
	return created, nil
}

func (s *Store) ListProjectFiles(ctx context.Context, projectID string) ([]pm.ProjectFile, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists (select 1 from projects where id = $1)`, projectID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pm.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		select `+fileMetaColumns+` from project_files
		where project_id = $1
		order by created_at desc, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.ProjectFile{}
	for rows.Next() {
		f, err := scanFileMeta(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetProjectFile(ctx context.Context, projectID, fileID string) (pm.ProjectFile, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+fileMetaColumns+`, content from project_files
		where id = $1 and project_id = $2
	`, fileID, projectID)

	var (
		f           pm.ProjectFile
		contentType sql.NullString
		uploaderID  sql.NullString
	)
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &contentType, &f.Size,
		&uploaderID, &f.CreatedAt, &f.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.ProjectFile{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.ProjectFile{}, err
	}
	f.ContentType = contentType.String
	f.UploaderID = uploaderID.String
	return f, nil
}

func (s *Store) DeleteProjectFile(ctx context.Context, projectID, fileID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from project_files where id = $1 and project_id = $2`, fileID, projectID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pm.ErrNotFound
	}
	return nil
}
