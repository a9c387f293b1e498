package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/student-records/pkg/students"
)

// Repository implements students.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	nextID    int64
	students  map[int64]*students.Student
	byContact map[string]int64 // contact -> student id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		students:  make(map[int64]*students.Student),
		byContact: make(map[string]int64),
	}
}

func (r *Repository) ListStudents(ctx context.Context) ([]*students.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*students.Student, 0, len(r.students))
	for _, s := range r.students {
		sCopy := *s
		list = append(list, &sCopy)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list, nil
}

func (r *Repository) GetStudent(ctx context.Context, id int64) (*students.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.students[id]
	if !exists {
		return nil, students.ErrStudentNotFound
	}
	// Return a copy to prevent external modifications
	sCopy := *s
	return &sCopy, nil
}

func (r *Repository) ExistsByContact(ctx context.Context, contact string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byContact[contact]
	return exists, nil
}

func (r *Repository) CreateStudent(ctx context.Context, s *students.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byContact[s.Contact]; exists {
		return students.ErrContactExists
	}

	r.nextID++
	now := time.Now().UTC()
	s.ID = r.nextID
	s.CreatedAt = now
	s.UpdatedAt = now

	sCopy := *s
	r.students[s.ID] = &sCopy
	r.byContact[s.Contact] = s.ID

	return nil
}

func (r *Repository) UpdateStudent(ctx context.Context, s *students.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.students[s.ID]
	if !exists {
		return students.ErrStudentNotFound
	}
	if owner, taken := r.byContact[s.Contact]; taken && owner != s.ID {
		return students.ErrContactExists
	}

	delete(r.byContact, current.Contact)
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = time.Now().UTC()

	sCopy := *s
	r.students[s.ID] = &sCopy
	r.byContact[s.Contact] = s.ID

	return nil
}

func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.students[id]
	if !exists {
		return students.ErrStudentNotFound
	}
	delete(r.byContact, s.Contact)
	delete(r.students, id)

	return nil
}
