// Package memory is an in-process studio.Store for development and tests.
// It is not transactional: attendance writes and counter changes are separate.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"artwink/internal/studio"
)

// Store keeps every collection in maps guarded by one lock.
type Store struct {
	mu          sync.RWMutex
	parents     map[string]studio.Parent
	students    map[string]studio.Student
	attendance  map[string]studio.AttendanceRecord
	artworks    map[string]studio.Artwork
	credentials map[string]studio.Credential

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		parents:     make(map[string]studio.Parent),
		students:    make(map[string]studio.Student),
		attendance:  make(map[string]studio.AttendanceRecord),
		artworks:    make(map[string]studio.Artwork),
		credentials: make(map[string]studio.Credential),
		now:         time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) GetParent(ctx context.Context, id string) (studio.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[id]
	if !ok {
		return studio.Parent{}, studio.NotFound("parent", id)
	}
	return cloneParent(p), nil
}

func (s *Store) ListParents(ctx context.Context) ([]studio.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]studio.Parent, 0, len(s.parents))
	for _, p := range s.parents {
		out = append(out, cloneParent(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

func (s *Store) CreateParent(ctx context.Context, p studio.Parent) (studio.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	p.LastModified = s.now().UTC()
	s.parents[p.ID] = cloneParent(p)
	return p, nil
}

func (s *Store) UpdateParent(ctx context.Context, id string, u studio.ParentUpdate) (studio.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parents[id]
	if !ok {
		return studio.Parent{}, studio.NotFound("parent", id)
	}
	if u.ParentName != nil {
		p.ParentName = *u.ParentName
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	p.LastModified = s.now().UTC()
	s.parents[id] = p
	return cloneParent(p), nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (studio.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return studio.Student{}, studio.NotFound("student", id)
	}
	return st, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]studio.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]studio.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateStudent(ctx context.Context, st studio.Student) (studio.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := s.now().UTC()
	st.LastModified = now
	s.students[st.ID] = st
	if st.ParentID != "" {
		if p, ok := s.parents[st.ParentID]; ok && !p.HasStudent(st.ID) {
			p.StudentIDs = append(append([]string{}, p.StudentIDs...), st.ID)
			p.LastModified = now
			s.parents[p.ID] = p
		}
	}
	return st, nil
}

func (s *Store) UpdateStudent(ctx context.Context, id string, u studio.StudentUpdate) (studio.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return studio.Student{}, studio.NotFound("student", id)
	}
	if u.StudentName != nil {
		st.StudentName = *u.StudentName
	}
	if u.RemainingClasses != nil {
		st.RemainingClasses = *u.RemainingClasses
	}
	if u.IsActive != nil {
		st.IsActive = *u.IsActive
	}
	st.LastModified = s.now().UTC()
	s.students[id] = st
	return st, nil
}

func (s *Store) AdjustRemainingClasses(ctx context.Context, studentID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return studio.NotFound("student", studentID)
	}
	st.RemainingClasses += delta
	st.LastModified = s.now().UTC()
	s.students[studentID] = st
	return nil
}

func (s *Store) GetAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[id]
	if !ok {
		return studio.AttendanceRecord{}, studio.NotFound("attendance", id)
	}
	return rec, nil
}

func (s *Store) ListAttendance(ctx context.Context, q studio.AttendanceQuery) ([]studio.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]studio.AttendanceRecord, 0, len(s.attendance))
	for _, rec := range s.attendance {
		if q.StudentID != "" && rec.StudentID != q.StudentID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttendanceDate.After(out[j].AttendanceDate) })
	return limit(out, q.Limit), nil
}

func (s *Store) CreateAttendance(ctx context.Context, rec studio.AttendanceRecord) (studio.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.attendance[rec.ID] = rec
	return rec, nil
}

func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendance[id]; !ok {
		return studio.NotFound("attendance", id)
	}
	delete(s.attendance, id)
	return nil
}

func (s *Store) CreateArtwork(ctx context.Context, a studio.Artwork) (studio.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.StudentIDs = append([]string{}, a.StudentIDs...)
	a.CreatedAt = s.now().UTC()
	s.artworks[a.ID] = a
	return a, nil
}

func (s *Store) ListArtworks(ctx context.Context, studentID string, n int) ([]studio.Artwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []studio.Artwork
	for _, a := range s.artworks {
		for _, id := range a.StudentIDs {
			if id == studentID {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, n), nil
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (studio.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[normalize(email)]
	if !ok {
		return studio.Credential{}, studio.NotFound("credential", email)
	}
	return c, nil
}

func (s *Store) CreateCredential(ctx context.Context, c studio.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(c.Email)
	if _, ok := s.credentials[key]; ok {
		return studio.NewAuthError(studio.AuthEmailInUse, nil)
	}
	c.Email = key
	s.credentials[key] = c
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneParent(p studio.Parent) studio.Parent {
	p.StudentIDs = append([]string{}, p.StudentIDs...)
	return p
}

func limit[T any](items []T, n int) []T {
	if n <= 0 {
		n = studio.DefaultLimit
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
