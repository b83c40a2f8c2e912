package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/reset980reset980/write0917/internal/models"
)

// MemoryStore keeps essays and comments in process. It backs the memory
// database driver and the tests, and deletes comments with their essay.
type MemoryStore struct {
	mu       sync.RWMutex
	essays   []models.Essay
	comments []models.Comment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Essays() EssayRepository {
	return &memoryEssays{store: s}
}

func (s *MemoryStore) Comments() CommentRepository {
	return &memoryComments{store: s}
}

func (s *MemoryStore) indexByID(id string) int {
	for i := range s.essays {
		if s.essays[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) indexByCode(code string) int {
	for i := range s.essays {
		if s.essays[i].EditCode == code {
			return i
		}
	}
	return -1
}

// removeAt deletes the essay at i together with its comments.
func (s *MemoryStore) removeAt(i int) string {
	id := s.essays[i].ID
	s.essays = append(s.essays[:i], s.essays[i+1:]...)

	kept := s.comments[:0]
	for _, c := range s.comments {
		if c.EssayID != id {
			kept = append(kept, c)
		}
	}
	s.comments = kept
	return id
}

type memoryEssays struct {
	store *MemoryStore
}

func (r *memoryEssays) Create(_ context.Context, essay *models.Essay) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexByCode(essay.EditCode) >= 0 {
		return ErrDuplicateEditCode
	}
	s.essays = append(s.essays, essay.Clone())
	return nil
}

func (r *memoryEssays) GetByID(_ context.Context, id string) (*models.Essay, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexByID(id)
	if i < 0 {
		return nil, nil
	}
	essay := s.essays[i].Clone()
	return &essay, nil
}

func (r *memoryEssays) GetByEditCode(_ context.Context, code string) (*models.Essay, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexByCode(code)
	if i < 0 {
		return nil, nil
	}
	essay := s.essays[i].Clone()
	return &essay, nil
}

// List returns newest first; essays created at the same instant keep
// reverse insertion order.
func (r *memoryEssays) List(_ context.Context) ([]models.Essay, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	essays := make([]models.Essay, 0, len(s.essays))
	for i := len(s.essays) - 1; i >= 0; i-- {
		essays = append(essays, s.essays[i].Clone())
	}
	sort.SliceStable(essays, func(i, j int) bool {
		return essays[i].CreatedAt.After(essays[j].CreatedAt)
	})
	return essays, nil
}

func (r *memoryEssays) UpdateByEditCode(_ context.Context, code string, data models.EssayData) (*models.Essay, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByCode(code)
	if i < 0 {
		return nil, nil
	}
	data.Body = append([]models.BodyPart(nil), data.Body...)
	s.essays[i].EssayData = data
	essay := s.essays[i].Clone()
	return &essay, nil
}

func (r *memoryEssays) Delete(_ context.Context, id string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByID(id)
	if i < 0 {
		return false, nil
	}
	s.removeAt(i)
	return true, nil
}

func (r *memoryEssays) DeleteByEditCode(_ context.Context, code string) (string, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByCode(code)
	if i < 0 {
		return "", nil
	}
	return s.removeAt(i), nil
}

func (r *memoryEssays) IncrementLikes(_ context.Context, id string) (*models.Essay, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByID(id)
	if i < 0 {
		return nil, nil
	}
	s.essays[i].Likes++
	essay := s.essays[i].Clone()
	return &essay, nil
}

type memoryComments struct {
	store *MemoryStore
}

func (r *memoryComments) Create(_ context.Context, comment *models.Comment) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *comment
	if c.Author != nil {
		author := *c.Author
		c.Author = &author
	}
	s.comments = append(s.comments, c)
	return nil
}

func (r *memoryComments) ListByEssayID(_ context.Context, essayID string) ([]models.Comment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := []models.Comment{}
	for _, c := range s.comments {
		if c.EssayID == essayID {
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}
