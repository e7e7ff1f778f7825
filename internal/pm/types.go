package pm

import (
	"errors"
	"time"
)

// ProjectStatus is the closed set of project lifecycle states.
type ProjectStatus string

const (
	StatusPendingQuote   ProjectStatus = "pending_quote"
	StatusQuoting        ProjectStatus = "quoting"
	StatusDesigning      ProjectStatus = "designing"
	StatusInProduction   ProjectStatus = "in_production"
	StatusPendingPayment ProjectStatus = "pending_payment"
	StatusCompleted      ProjectStatus = "completed"
	StatusArchived       ProjectStatus = "archived"
	StatusCancelled      ProjectStatus = "cancelled"
)

// TaskStatus is the closed set of task states.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskOverdue    TaskStatus = "overdue"
)

// Priority levels shared by projects and tasks.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Project is the core business record. Monetary amounts are minor units
// (cents); no floats.
type Project struct {
	ID           string        `json:"id"`
	Number       string        `json:"number"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	CustomerName string        `json:"customer_name"`
	Status       ProjectStatus `json:"status"`
	Priority     string        `json:"priority"`
	QuotedPrice  int64         `json:"quoted_price"`
	FinalPrice   int64         `json:"final_price"`
	CostPrice    int64         `json:"cost_price"`
	CreatorID    string        `json:"creator_id"`
	DesignerID   string        `json:"designer_id,omitempty"`
	SalesID      string        `json:"sales_id,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Deadline     *time.Time    `json:"deadline,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Task belongs to a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    string     `json:"priority"`
	CreatorID   string     `json:"creator_id"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Supplier is an external production partner.
type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Category    string    `json:"category,omitempty"`
	Rating      int       `json:"rating"`
	Active      bool      `json:"active"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Page carries pagination metadata alongside a listed collection.
type Page struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPage normalizes paging inputs and computes the page count.
func NewPage(page, pageSize, total int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Page{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status       ProjectStatus
	CustomerName string
	DesignerID   string
	Page         int
	PageSize     int
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ProjectID  string
	AssigneeID string
	Status     TaskStatus
	Page       int
	PageSize   int
}

// SupplierFilter narrows supplier listings.
type SupplierFilter struct {
	Category string
	Page     int
	PageSize int
}

// ProjectUpdate is a partial project mutation; nil fields are left untouched.
type ProjectUpdate struct {
	Name         *string
	Description  *string
	CustomerName *string
	Priority     *string
	QuotedPrice  *int64
	FinalPrice   *int64
	CostPrice    *int64
	DesignerID   *string
	SalesID      *string
	Notes        *string
	Deadline     *time.Time
}

// TaskUpdate is a partial task mutation; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	AssigneeID  *string
	DueDate     *time.Time
}

// SupplierUpdate is a partial supplier mutation; nil fields are left untouched.
type SupplierUpdate struct {
	Name        *string
	ContactName *string
	Phone       *string
	Email       *string
	Category    *string
	Rating      *int
	Active      *bool
	Notes       *string
}

// ProjectFile is a document attached to a project: a sketch, a proof, a
// signed quote. Content is held inline and omitted from listings.
type ProjectFile struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	UploaderID  string    `json:"uploader_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Content     []byte    `json:"-"`
}

// MaxFileBytes bounds a single uploaded file.
const MaxFileBytes = 10 << 20

// Statistics summarizes the project portfolio.
type Statistics struct {
	TotalProjects int                   `json:"total_projects"`
	ByStatus      map[ProjectStatus]int `json:"by_status"`
	TotalRevenue  int64                 `json:"total_revenue"`
	TotalCost     int64                 `json:"total_cost"`
}

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrFileTooLarge      = errors.New("file too large")
)
