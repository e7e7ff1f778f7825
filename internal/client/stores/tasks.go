package stores

import (
	"context"
	"net/url"
	"time"

	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

// TaskInput is the creation payload.
type TaskInput struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskPatch is the partial update payload.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskStore caches the current task page.
type TaskStore struct {
	gw    *gateway.Client
	cache *cache[pm.Task]
}

func NewTaskStore(gw *gateway.Client) *TaskStore {
	return &TaskStore{
		gw:    gw,
		cache: newCache(func(t pm.Task) string { return t.ID }),
	}
}

func (s *TaskStore) List(ctx context.Context, f pm.TaskFilter) ([]pm.Task, pm.Page, error) {
	q := url.Values{}
	if f.ProjectID != "" {
		q.Set("project_id", f.ProjectID)
	}
	if f.AssigneeID != "" {
		q.Set("assignee_id", f.AssigneeID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	setPaging(q, f.Page, f.PageSize)

	var payload listPayload[pm.Task]
	if err := s.gw.Get(ctx, "/api/v1/tasks"+query(q), &payload); err != nil {
		return nil, pm.Page{}, err
	}
	s.cache.replaceAll(payload.Items, payload.Page)
	items, page := s.cache.snapshot()
	return items, page, nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (pm.Task, error) {
	if t, ok := s.cache.find(id); ok {
		return t, nil
	}
	var t pm.Task
	if err := s.gw.Get(ctx, "/api/v1/tasks/"+id, &t); err != nil {
		return pm.Task{}, err
	}
	return t, nil
}

func (s *TaskStore) Create(ctx context.Context, in TaskInput) (pm.Task, error) {
	var t pm.Task
	if err := s.gw.Post(ctx, "/api/v1/tasks", in, &t); err != nil {
		return pm.Task{}, err
	}
	s.cache.prepend(t)
	return t, nil
}

func (s *TaskStore) Update(ctx context.Context, id string, patch TaskPatch) (pm.Task, error) {
	var t pm.Task
	if err := s.gw.Put(ctx, "/api/v1/tasks/"+id, patch, &t); err != nil {
		return pm.Task{}, err
	}
	s.cache.replace(t)
	return t, nil
}

func (s *TaskStore) PatchStatus(ctx context.Context, id string, to pm.TaskStatus) (pm.Task, error) {
	var t pm.Task
	if err := s.gw.Patch(ctx, "/api/v1/tasks/"+id+"/status", map[string]string{"status": string(to)}, &t); err != nil {
		return pm.Task{}, err
	}
	s.cache.replace(t)
	return t, nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, "/api/v1/tasks/"+id); err != nil {
		return err
	}
	s.cache.remove(id)
	return nil
}

func (s *TaskStore) Cached() ([]pm.Task, pm.Page) {
	return s.cache.snapshot()
}
