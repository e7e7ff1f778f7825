package pm

import "context"

// Service defines project-management operations.
type Service interface {
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]Project, Page, error)
	UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (Project, error)
	ChangeProjectStatus(ctx context.Context, id string, to ProjectStatus) (Project, error)
	DeleteProject(ctx context.Context, id string) error
	Statistics(ctx context.Context) (Statistics, error)

	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, Page, error)
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error)
	ChangeTaskStatus(ctx context.Context, id string, to TaskStatus) (Task, error)
	DeleteTask(ctx context.Context, id string) error

	AddProjectFile(ctx context.Context, f ProjectFile) (ProjectFile, error)
	ListProjectFiles(ctx context.Context, projectID string) ([]ProjectFile, error)
	GetProjectFile(ctx context.Context, projectID, fileID string) (ProjectFile, error)
	DeleteProjectFile(ctx context.Context, projectID, fileID string) error

	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	ListSuppliers(ctx context.Context, f SupplierFilter) ([]Supplier, Page, error)
	UpdateSupplier(ctx context.Context, id string, upd SupplierUpdate) (Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error
}
