package pg

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"craftdesk.org/internal/pm"
)

func fileRowColumns() []string {
	return []string{"id", "project_id", "filename", "content_type", "size", "uploader_id", "created_at"}
}

func TestAddProjectFileStoresContent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	content := []byte("pdf bytes")

	mock.ExpectQuery("insert into project_files").
		WithArgs(sqlmock.AnyArg(), "p1", "quote.pdf", "application/pdf", int64(len(content)), "u1", content).
		WillReturnRows(sqlmock.NewRows(fileRowColumns()).
			AddRow("f1", "p1", "quote.pdf", "application/pdf", int64(len(content)), "u1", now))

	created, err := store.AddProjectFile(context.Background(), pm.ProjectFile{
		ProjectID:   "p1",
		Filename:    "quote.pdf",
		ContentType: "application/pdf",
		UploaderID:  "u1",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("AddProjectFile: %v", err)
	}
	if created.ID != "f1" || created.Size != int64(len(content)) {
		t.Fatalf("created = %+v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAddProjectFileMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into project_files").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := store.AddProjectFile(context.Background(), pm.ProjectFile{
		ProjectID: "missing",
		Filename:  "a.pdf",
		Content:   []byte("x"),
	})
	if !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAddProjectFileValidatesBeforeQuerying(t *testing.T) {
	store, mock := newMockStore(t)

	if _, err := store.AddProjectFile(context.Background(), pm.ProjectFile{ProjectID: "p1", Filename: " "}); !errors.Is(err, pm.ErrInvalidInput) {
		t.Fatalf("blank filename: got %v", err)
	}
	oversized := pm.ProjectFile{ProjectID: "p1", Filename: "huge.bin", Content: make([]byte, pm.MaxFileBytes+1)}
	if _, err := store.AddProjectFile(context.Background(), oversized); !errors.Is(err, pm.ErrFileTooLarge) {
		t.Fatalf("oversized: got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListProjectFilesRequiresProject(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select exists").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if _, err := store.ListProjectFiles(context.Background(), "missing"); !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListProjectFilesOmitsContent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select exists").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("from project_files").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(fileRowColumns()).
			AddRow("f1", "p1", "quote.pdf", nil, int64(9), nil, now).
			AddRow("f2", "p1", "sketch.png", "image/png", int64(4), "u1", now))

	files, err := store.ListProjectFiles(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListProjectFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files", len(files))
	}
	if files[0].ContentType != "" || files[0].UploaderID != "" {
		t.Fatalf("nullable columns not zeroed: %+v", files[0])
	}
	if files[0].Content != nil || files[1].Content != nil {
		t.Fatalf("listing must not carry content")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetProjectFileReturnsContent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	content := []byte("raw bytes")

	mock.ExpectQuery("select id, project_id, filename").
		WithArgs("f1", "p1").
		WillReturnRows(sqlmock.NewRows(append(fileRowColumns(), "content")).
			AddRow("f1", "p1", "quote.pdf", "application/pdf", int64(len(content)), "u1", now, content))

	f, err := store.GetProjectFile(context.Background(), "p1", "f1")
	if err != nil {
		t.Fatalf("GetProjectFile: %v", err)
	}
	if !bytes.Equal(f.Content, content) {
		t.Fatalf("content = %q", f.Content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteProjectFileNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from project_files").
		WithArgs("f1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteProjectFile(context.Background(), "p1", "f1"); !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
