package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artwink/internal/debounce"
	"artwink/internal/studio"
)

// Source lists the three collections a Dataset joins.
type Source interface {
	ListStudents(ctx context.Context) ([]studio.Student, error)
	ListParents(ctx context.Context) ([]studio.Parent, error)
	ListAttendance(ctx context.Context, q studio.AttendanceQuery) ([]studio.AttendanceRecord, error)
}

// LoadErrors holds one failure per collection key ("students", "parents",
// "attendances"). Collections that loaded are unaffected.
type LoadErrors map[string]error

func (e LoadErrors) Error() string {
	msg := "load dataset:"
	for _, k := range []string{"students", "parents", "attendances"} {
		if err, ok := e[k]; ok {
			msg += fmt.Sprintf(" %s: %v;", k, err)
		}
	}
	return msg
}

// Load fetches the three collections concurrently. Each key fails on its own;
// the returned error, if any, is a LoadErrors.
func Load(ctx context.Context, src Source) (Dataset, error) {
	var (
		ds                     Dataset
		errStu, errPar, errAtt error
		g                      errgroup.Group
	)
	g.Go(func() error {
		ds.Students, errStu = src.ListStudents(ctx)
		return nil
	})
	g.Go(func() error {
		ds.Parents, errPar = src.ListParents(ctx)
		return nil
	})
	g.Go(func() error {
		ds.Attendance, errAtt = src.ListAttendance(ctx, studio.AttendanceQuery{})
		return nil
	})
	_ = g.Wait()

	errs := LoadErrors{}
	for k, err := range map[string]error{"students": errStu, "parents": errPar, "attendances": errAtt} {
		if err != nil {
			errs[k] = err
		}
	}
	if len(errs) > 0 {
		return ds, errs
	}
	return ds, nil
}

// Cache keeps the last loaded Dataset. Writes call Invalidate, which drops
// the cached copy and schedules a debounced background rebuild. A load that
// finishes after a newer invalidation is discarded.
type Cache struct {
	src     Source
	log     *zap.Logger
	timeout time.Duration
	warm    *debounce.Debouncer

	mu   sync.Mutex
	gen  uint64
	data *Dataset

	// OnDiscard, when set, is called for every late result thrown away.
	OnDiscard func()
}

// NewCache builds a cache whose rebuild runs wait after the last invalidation.
func NewCache(src Source, wait time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{src: src, log: log, timeout: 30 * time.Second}
	c.warm = debounce.New(wait, c.rebuild)
	return c
}

// Get returns the cached dataset, loading it when the cache is cold.
func (c *Cache) Get(ctx context.Context) (Dataset, error) {
	c.mu.Lock()
	if c.data != nil {
		ds := *c.data
		c.mu.Unlock()
		return ds, nil
	}
	gen := c.gen
	c.mu.Unlock()

	ds, err := Load(ctx, c.src)
	if err != nil {
		return Dataset{}, err
	}
	c.store(gen, ds)
	return ds, nil
}

// Invalidate marks the cache stale and schedules a rebuild.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.data = nil
	c.mu.Unlock()
	c.warm.Call()
}

// Close cancels a pending rebuild.
func (c *Cache) Close() {
	c.warm.Stop()
}

func (c *Cache) rebuild() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	ds, err := Load(ctx, c.src)
	if err != nil {
		var le LoadErrors
		if errors.As(err, &le) {
			c.log.Warn("roster rebuild failed", zap.Int("failed_keys", len(le)), zap.Error(err))
		}
		return
	}
	c.store(gen, ds)
}

// store keeps ds only if no invalidation happened since gen was read.
func (c *Cache) store(gen uint64, ds Dataset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("discarding stale roster dataset", zap.Uint64("gen", gen), zap.Uint64("current", c.gen))
		if c.OnDiscard != nil {
			c.OnDiscard()
		}
		return false
	}
	c.data = &ds
	return true
}
