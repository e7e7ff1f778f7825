package stores

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

// ProjectInput is the creation payload.
type ProjectInput struct {
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	CustomerName string     `json:"customer_name"`
	Priority     string     `json:"priority,omitempty"`
	QuotedPrice  int64      `json:"quoted_price,omitempty"`
	DesignerID   string     `json:"designer_id,omitempty"`
	SalesID      string     `json:"sales_id,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// ProjectPatch is the partial update payload; nil fields are untouched.
type ProjectPatch struct {
	Name         *string    `json:"name,omitempty"`
	Description  *string    `json:"description,omitempty"`
	CustomerName *string    `json:"customer_name,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	QuotedPrice  *int64     `json:"quoted_price,omitempty"`
	FinalPrice   *int64     `json:"final_price,omitempty"`
	CostPrice    *int64     `json:"cost_price,omitempty"`
	DesignerID   *string    `json:"designer_id,omitempty"`
	SalesID      *string    `json:"sales_id,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// ProjectStore caches the current project page.
type ProjectStore struct {
	gw    *gateway.Client
	cache *cache[pm.Project]
}

func NewProjectStore(gw *gateway.Client) *ProjectStore {
	return &ProjectStore{
		gw:    gw,
		cache: newCache(func(p pm.Project) string { return p.ID }),
	}
}

// List fetches a page and replaces the cached collection with it.
func (s *ProjectStore) List(ctx context.Context, f pm.ProjectFilter) ([]pm.Project, pm.Page, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.CustomerName != "" {
		q.Set("customer", f.CustomerName)
	}
	if f.DesignerID != "" {
		q.Set("designer_id", f.DesignerID)
	}
	setPaging(q, f.Page, f.PageSize)

	var payload listPayload[pm.Project]
	if err := s.gw.Get(ctx, "/api/v1/projects"+query(q), &payload); err != nil {
		return nil, pm.Page{}, err
	}
	s.cache.replaceAll(payload.Items, payload.Page)
	items, page := s.cache.snapshot()
	return items, page, nil
}

// Get returns the cached record when present, otherwise fetches it.
func (s *ProjectStore) Get(ctx context.Context, id string) (pm.Project, error) {
	if p, ok := s.cache.find(id); ok {
		return p, nil
	}
	var p pm.Project
	if err := s.gw.Get(ctx, "/api/v1/projects/"+id, &p); err != nil {
		return pm.Project{}, err
	}
	return p, nil
}

// Create posts the payload and prepends the confirmed record.
func (s *ProjectStore) Create(ctx context.Context, in ProjectInput) (pm.Project, error) {
	var p pm.Project
	if err := s.gw.Post(ctx, "/api/v1/projects", in, &p); err != nil {
		return pm.Project{}, err
	}
	s.cache.prepend(p)
	return p, nil
}

// Update puts the patch and replaces the cached record in place.
func (s *ProjectStore) Update(ctx context.Context, id string, patch ProjectPatch) (pm.Project, error) {
	var p pm.Project
	if err := s.gw.Put(ctx, "/api/v1/projects/"+id, patch, &p); err != nil {
		return pm.Project{}, err
	}
	s.cache.replace(p)
	return p, nil
}

// PatchStatus transitions the project and merges the confirmed record.
func (s *ProjectStore) PatchStatus(ctx context.Context, id string, to pm.ProjectStatus) (pm.Project, error) {
	var p pm.Project
	if err := s.gw.Patch(ctx, "/api/v1/projects/"+id+"/status", map[string]string{"status": string(to)}, &p); err != nil {
		return pm.Project{}, err
	}
	s.cache.replace(p)
	return p, nil
}

// Delete removes the record server-side, then drops it from cache.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, "/api/v1/projects/"+id); err != nil {
		return err
	}
	s.cache.remove(id)
	return nil
}

// Statistics fetches the portfolio summary; it is not cached.
func (s *ProjectStore) Statistics(ctx context.Context) (pm.Statistics, error) {
	var stats pm.Statistics
	if err := s.gw.Get(ctx, "/api/v1/projects/statistics", &stats); err != nil {
		return pm.Statistics{}, err
	}
	return stats, nil
}

// Cached returns the current collection without a network call.
func (s *ProjectStore) Cached() ([]pm.Project, pm.Page) {
	return s.cache.snapshot()
}

func setPaging(q url.Values, page, size int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("page_size", strconv.Itoa(size))
	}
}

func query(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
