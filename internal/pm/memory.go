package pm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"craftdesk.org/internal/ids"
)

// InMemory implements Service with in-process concurrency safety.
// Used by tests and single-node development mode; production deployments
// use the pg store.
type InMemory struct {
	mu        sync.RWMutex
	projects  map[string]*Project
	tasks     map[string]*Task
	files     map[string]*ProjectFile
	suppliers map[string]*Supplier
}

// NewInMemory creates an empty service.
func NewInMemory() *InMemory {
	return &InMemory{
		projects:  make(map[string]*Project),
		tasks:     make(map[string]*Task),
		files:     make(map[string]*ProjectFile),
		suppliers: make(map[string]*Supplier),
	}
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func paginate[T any](items []*T, page, size int) ([]T, Page) {
	page, size = normalizePaging(page, size)
	total := len(items)
	start := (page - 1) * size
	out := []T{}
	if start < total {
		end := start + size
		if end > total {
			end = total
		}
		for _, item := range items[start:end] {
			out = append(out, *item)
		}
	}
	return out, NewPage(page, size, total)
}

// --- Projects ---

func (s *InMemory) CreateProject(ctx context.Context, p Project) (Project, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.CustomerName) == "" {
		return Project{}, ErrInvalidInput
	}
	if p.Status == "" {
		p.Status = StatusPendingQuote
	}
	if !ValidProjectStatus(p.Status) {
		return Project{}, ErrInvalidStatus
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p.ID = ids.New()
	if p.Number == "" {
		p.Number = "P-" + p.ID[len(p.ID)-8:]
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := p
	s.projects[p.ID] = &cp
	return p, nil
}

func (s *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) ListProjects(ctx context.Context, f ProjectFilter) ([]Project, Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.CustomerName != "" && !strings.Contains(strings.ToLower(p.CustomerName), strings.ToLower(f.CustomerName)) {
			continue
		}
		if f.DesignerID != "" && p.DesignerID != f.DesignerID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	items, page := paginate(matched, f.Page, f.PageSize)
	return items, page, nil
}

func (s *InMemory) UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return Project{}, ErrInvalidInput
		}
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.CustomerName != nil {
		if strings.TrimSpace(*upd.CustomerName) == "" {
			return Project{}, ErrInvalidInput
		}
		p.CustomerName = *upd.CustomerName
	}
	if upd.Priority != nil {
		p.Priority = *upd.Priority
	}
	if upd.QuotedPrice != nil {
		p.QuotedPrice = *upd.QuotedPrice
	}
	if upd.FinalPrice != nil {
		p.FinalPrice = *upd.FinalPrice
	}
	if upd.CostPrice != nil {
		p.CostPrice = *upd.CostPrice
	}
	if upd.DesignerID != nil {
		p.DesignerID = *upd.DesignerID
	}
	if upd.SalesID != nil {
		p.SalesID = *upd.SalesID
	}
	if upd.Notes != nil {
		p.Notes = *upd.Notes
	}
	if upd.Deadline != nil {
		deadline := *upd.Deadline
		p.Deadline = &deadline
	}
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

func (s *InMemory) ChangeProjectStatus(ctx context.Context, id string, to ProjectStatus) (Project, error) {
	if !ValidProjectStatus(to) {
		return Project{}, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	if !CanTransition(p.Status, to) {
		return Project{}, ErrInvalidTransition
	}
	p.Status = to
	now := time.Now().UTC()
	p.UpdatedAt = now
	if to == StatusCompleted {
		p.CompletedAt = &now
	}
	return *p, nil
}

func (s *InMemory) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusPendingQuote && p.Status != StatusCancelled {
		return ErrInvalidTransition
	}
	delete(s.projects, id)
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
		}
	}
	for fid, f := range s.files {
		if f.ProjectID == id {
			delete(s.files, fid)
		}
	}
	return nil
}

func (s *InMemory) Statistics(ctx context.Context) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Statistics{ByStatus: make(map[ProjectStatus]int)}
	for _, p := range s.projects {
		stats.TotalProjects++
		stats.ByStatus[p.Status]++
		stats.TotalRevenue += p.FinalPrice
		stats.TotalCost += p.CostPrice
	}
	return stats, nil
}

// --- Tasks ---

func (s *InMemory) CreateTask(ctx context.Context, t Task) (Task, error) {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.ProjectID) == "" {
		return Task{}, ErrInvalidInput
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if !ValidTaskStatus(t.Status) {
		return Task{}, ErrInvalidStatus
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[t.ProjectID]; !ok {
		return Task{}, ErrNotFound
	}
	now := time.Now().UTC()
	t.ID = ids.New()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := t
	s.tasks[t.ID] = &cp
	return t, nil
}

func (s *InMemory) GetTask(ctx context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

func (s *InMemory) ListTasks(ctx context.Context, f TaskFilter) ([]Task, Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	items, page := paginate(matched, f.Page, f.PageSize)
	return items, page, nil
}

func (s *InMemory) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return Task{}, ErrInvalidInput
		}
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssigneeID != nil {
		t.AssigneeID = *upd.AssigneeID
	}
	if upd.DueDate != nil {
		due := *upd.DueDate
		t.DueDate = &due
	}
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

func (s *InMemory) ChangeTaskStatus(ctx context.Context, id string, to TaskStatus) (Task, error) {
	if !ValidTaskStatus(to) {
		return Task{}, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

func (s *InMemory) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// --- Project files ---

func (s *InMemory) AddProjectFile(ctx context.Context, f ProjectFile) (ProjectFile, error) {
	if strings.TrimSpace(f.Filename) == "" || len(f.Content) == 0 {
		return ProjectFile{}, ErrInvalidInput
	}
	if int64(len(f.Content)) > MaxFileBytes {
		return ProjectFile{}, ErrFileTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[f.ProjectID]; !ok {
		return ProjectFile{}, ErrNotFound
	}
	f.ID = ids.New()
	f.Size = int64(len(f.Content))
	f.CreatedAt = time.Now().UTC()
	stored := f
	s.files[f.ID] = &stored
	return f, nil
}

func (s *InMemory) ListProjectFiles(ctx context.Context, projectID string) ([]ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	out := []ProjectFile{}
	for _, f := range s.files {
		if f.ProjectID != projectID {
			continue
		}
		meta := *f
		meta.Content = nil
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) GetProjectFile(ctx context.Context, projectID, fileID string) (ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok || f.ProjectID != projectID {
		return ProjectFile{}, ErrNotFound
	}
	out := *f
	out.Content = append([]byte(nil), f.Content...)
	return out, nil
}

func (s *InMemory) DeleteProjectFile(ctx context.Context, projectID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok || f.ProjectID != projectID {
		return ErrNotFound
	}
	delete(s.files, fileID)
	return nil
}

// --- Suppliers ---

func (s *InMemory) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return Supplier{}, ErrInvalidInput
	}
	if sup.Rating < 0 || sup.Rating > 5 {
		return Supplier{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sup.ID = ids.New()
	sup.Active = true
	sup.CreatedAt = now
	sup.UpdatedAt = now
	cp := sup
	s.suppliers[sup.ID] = &cp
	return sup, nil
}

func (s *InMemory) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return *sup, nil
}

func (s *InMemory) ListSuppliers(ctx context.Context, f SupplierFilter) ([]Supplier, Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		if f.Category != "" && !strings.EqualFold(sup.Category, f.Category) {
			continue
		}
		matched = append(matched, sup)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	items, page := paginate(matched, f.Page, f.PageSize)
	return items, page, nil
}

func (s *InMemory) UpdateSupplier(ctx context.Context, id string, upd SupplierUpdate) (Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return Supplier{}, ErrInvalidInput
		}
		sup.Name = *upd.Name
	}
	if upd.ContactName != nil {
		sup.ContactName = *upd.ContactName
	}
	if upd.Phone != nil {
		sup.Phone = *upd.Phone
	}
	if upd.Email != nil {
		sup.Email = *upd.Email
	}
	if upd.Category != nil {
		sup.Category = *upd.Category
	}
	if upd.Rating != nil {
		if *upd.Rating < 0 || *upd.Rating > 5 {
			return Supplier{}, ErrInvalidInput
		}
		sup.Rating = *upd.Rating
	}
	if upd.Active != nil {
		sup.Active = *upd.Active
	}
	if upd.Notes != nil {
		sup.Notes = *upd.Notes
	}
	sup.UpdatedAt = time.Now().UTC()
	return *sup, nil
}

func (s *InMemory) DeleteSupplier(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[id]; !ok {
		return ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}
