package stores

import (
	"context"
	"io"
	"sync"

	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

// FileStore holds the file listing of one project at a time. Like the
// other stores it only caches what the server confirmed: a successful
// upload prepends the returned record, a failed call changes nothing.
type FileStore struct {
	gw *gateway.Client

	mu        sync.Mutex
	projectID string
	files     []pm.ProjectFile
}

func NewFileStore(gw *gateway.Client) *FileStore {
	return &FileStore{gw: gw}
}

func (s *FileStore) List(ctx context.Context, projectID string) ([]pm.ProjectFile, error) {
	var files []pm.ProjectFile
	if err := s.gw.Get(ctx, "/api/v1/projects/"+projectID+"/files", &files); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.projectID = projectID
	s.files = files
	s.mu.Unlock()
	return append([]pm.ProjectFile(nil), files...), nil
}

func (s *FileStore) Upload(ctx context.Context, projectID, filename string, r io.Reader) (pm.ProjectFile, error) {
	var created pm.ProjectFile
	err := s.gw.Upload(ctx, "/api/v1/projects/"+projectID+"/files", "file", filename, r, &created)
	if err != nil {
		return pm.ProjectFile{}, err
	}

	s.mu.Lock()
	if s.projectID == projectID {
		s.files = append([]pm.ProjectFile{created}, s.files...)
	}
	s.mu.Unlock()
	return created, nil
}

// Download streams the file bytes into w without touching the cache.
func (s *FileStore) Download(ctx context.Context, projectID, fileID string, w io.Writer) error {
	return s.gw.Download(ctx, "/api/v1/projects/"+projectID+"/files/"+fileID, w)
}

func (s *FileStore) Delete(ctx context.Context, projectID, fileID string) error {
	if err := s.gw.Delete(ctx, "/api/v1/projects/"+projectID+"/files/"+fileID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.projectID == projectID {
		kept := s.files[:0]
		for _, f := range s.files {
			if f.ID != fileID {
				kept = append(kept, f)
			}
		}
		s.files = kept
	}
	s.mu.Unlock()
	return nil
}

// Cached returns a copy of the last confirmed listing.
func (s *FileStore) Cached() (string, []pm.ProjectFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID, append([]pm.ProjectFile(nil), s.files...)
}
