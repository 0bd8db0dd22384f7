package artwork

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"artwink/internal/studio"
)

// Item is one watermarked file held in a batch, addressed by its preview id.
type Item struct {
	PreviewID string
	File      Processed
}

// Batch is an admin's in-progress upload: files plus the tagged students.
type Batch struct {
	ID         string
	Items      []Item
	StudentIDs []string
	Created    time.Time
	Touched    time.Time
}

// ItemView describes an item without its bytes.
type ItemView struct {
	PreviewID   string `json:"previewId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// BatchView is the JSON shape of a batch.
type BatchView struct {
	ID         string     `json:"id"`
	Items      []ItemView `json:"items"`
	StudentIDs []string   `json:"studentIds"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// Batches keeps upload batches in memory. Batches untouched for ttl expire.
type Batches struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	batches map[string]*Batch
}

// NewBatches creates an empty batch store.
func NewBatches(ttl time.Duration) *Batches {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Batches{ttl: ttl, now: time.Now, batches: make(map[string]*Batch)}
}

func (s *Batches) view(b *Batch) BatchView {
	v := BatchView{
		ID:         b.ID,
		Items:      make([]ItemView, 0, len(b.Items)),
		StudentIDs: append([]string{}, b.StudentIDs...),
		ExpiresAt:  b.Touched.Add(s.ttl),
	}
	for _, it := range b.Items {
		v.Items = append(v.Items, ItemView{
			PreviewID:   it.PreviewID,
			FileName:    it.File.Name,
			ContentType: it.File.ContentType,
			Size:        len(it.File.Data),
			Width:       it.File.Width,
			Height:      it.File.Height,
		})
	}
	return v
}

// get returns a live batch and refreshes its expiry. Caller holds mu.
func (s *Batches) get(id string) (*Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, studio.NotFound("batch", id)
	}
	now := s.now()
	if now.Sub(b.Touched) > s.ttl {
		delete(s.batches, id)
		return nil, studio.NotFound("batch", id)
	}
	b.Touched = now
	return b, nil
}

// Open starts an empty batch.
func (s *Batches) Open() BatchView {
	now := s.now()
	b := &Batch{ID: uuid.NewString(), Created: now, Touched: now}
	s.mu.Lock()
	s.batches[b.ID] = b
	s.mu.Unlock()
	return s.view(b)
}

// Get returns the batch view.
func (s *Batches) Get(id string) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return BatchView{}, err
	}
	return s.view(b), nil
}

// Add appends processed files, each under a new preview id.
func (s *Batches) Add(id string, files []Processed) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return BatchView{}, err
	}
	for _, f := range files {
		b.Items = append(b.Items, Item{PreviewID: uuid.NewString(), File: f})
	}
	return s.view(b), nil
}

// Remove drops one item and releases its preview.
func (s *Batches) Remove(id, previewID string) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return BatchView{}, err
	}
	for i, it := range b.Items {
		if it.PreviewID == previewID {
			b.Items = append(b.Items[:i:i], b.Items[i+1:]...)
			return s.view(b), nil
		}
	}
	return BatchView{}, studio.NotFound("preview", previewID)
}

// Preview returns the bytes behind a preview id.
func (s *Batches) Preview(id, previewID string) (Processed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return Processed{}, err
	}
	for _, it := range b.Items {
		if it.PreviewID == previewID {
			return it.File, nil
		}
	}
	return Processed{}, studio.NotFound("preview", previewID)
}

// Toggle adds studentID to the tag set, or removes it if present.
func (s *Batches) Toggle(id, studentID string) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return BatchView{}, err
	}
	for i, sid := range b.StudentIDs {
		if sid == studentID {
			b.StudentIDs = append(b.StudentIDs[:i:i], b.StudentIDs[i+1:]...)
			return s.view(b), nil
		}
	}
	b.StudentIDs = append(b.StudentIDs, studentID)
	return s.view(b), nil
}

// Take removes the batch and hands it to the caller.
func (s *Batches) Take(id string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	delete(s.batches, id)
	return b, nil
}

// TakeReady removes the batch only if it has files and tagged students.
// Otherwise it returns ErrNothingToUpload and leaves the batch in place.
func (s *Batches) TakeReady(id string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if len(b.Items) == 0 || len(b.StudentIDs) == 0 {
		return nil, ErrNothingToUpload
	}
	delete(s.batches, id)
	return b, nil
}

// Discard drops the batch and reports how many previews it released.
func (s *Batches) Discard(id string) (int, error) {
	b, err := s.Take(id)
	if err != nil {
		return 0, err
	}
	return len(b.Items), nil
}

// Sweep removes expired batches and returns how many were dropped.
func (s *Batches) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, b := range s.batches {
		if now.Sub(b.Touched) > s.ttl {
			delete(s.batches, id)
			n++
		}
	}
	return n
}

// Janitor sweeps every interval until ctx is done.
func (s *Batches) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
