package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artwink/internal/queue"
	"artwink/internal/store/memory"
	"artwink/internal/studio"
)

var pacific, _ = time.LoadLocation("America/Los_Angeles")

func seed(t *testing.T, remaining int) *memory.Store {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	_, err := st.CreateParent(ctx, studio.Parent{ID: "p1", ParentName: "Maria"})
	require.NoError(t, err)
	_, err = st.CreateStudent(ctx, studio.Student{ID: "s1", StudentName: "Anna", ParentID: "p1", RemainingClasses: remaining})
	require.NoError(t, err)
	return st
}

func remaining(t *testing.T, st studio.Store) int {
	t.Helper()
	s, err := st.GetStudent(context.Background(), "s1")
	require.NoError(t, err)
	return s.RemainingClasses
}

func form(present bool) Input {
	return Input{StudentID: "s1", ClassName: studio.ClassTraditional, Present: present, Date: "2025-03-31", Time: "16:30"}
}

func TestRecordPresentDecrements(t *testing.T) {
	for _, r := range []int{3, 0, -2} {
		st := seed(t, r)
		svc := NewService(st, nil, pacific, nil)

		res, err := svc.Record(context.Background(), form(true))
		require.NoError(t, err)
		assert.Empty(t, res.Warning)
		assert.Equal(t, r-1, remaining(t, st))
		assert.Equal(t, "p1", res.Record.ParentID)
		assert.Equal(t, time.Date(2025, 3, 31, 16, 30, 0, 0, pacific), res.Record.AttendanceDate)
	}
}

func TestRecordAbsentLeavesCounter(t *testing.T) {
	st := seed(t, 4)
	svc := NewService(st, nil, pacific, nil)
	_, err := svc.Record(context.Background(), form(false))
	require.NoError(t, err)
	assert.Equal(t, 4, remaining(t, st))
}

func TestRecordValidation(t *testing.T) {
	svc := NewService(seed(t, 1), nil, pacific, nil)
	cases := map[string]Input{
		"missing student": {ClassName: studio.ClassDigital, Date: "2025-03-31", Time: "10:00"},
		"unknown student": {StudentID: "ghost", ClassName: studio.ClassDigital, Date: "2025-03-31", Time: "10:00"},
		"bad class":       {StudentID: "s1", ClassName: "Pottery", Date: "2025-03-31", Time: "10:00"},
		"bad date":        {StudentID: "s1", ClassName: studio.ClassDigital, Date: "31/03/2025", Time: "10:00"},
		"bad time":        {StudentID: "s1", ClassName: studio.ClassDigital, Date: "2025-03-31", Time: "4pm"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), in)
			var v *studio.ValidationError
			require.True(t, errors.As(err, &v), "got %v", err)
		})
	}

	_, err := svc.Record(context.Background(), cases["unknown student"])
	var v *studio.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "Please select a student", v.Message)
}

func TestDeleteRestoresPresentOnly(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 5)
	svc := NewService(st, nil, pacific, nil)

	present, err := svc.Record(ctx, form(true))
	require.NoError(t, err)
	absent, err := svc.Record(ctx, form(false))
	require.NoError(t, err)
	require.Equal(t, 4, remaining(t, st))

	_, err = svc.Delete(ctx, absent.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining(t, st))

	_, err = svc.Delete(ctx, present.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining(t, st))

	_, err = svc.Delete(ctx, present.Record.ID)
	assert.True(t, errors.Is(err, studio.ErrNotFound))
}

type brokenCounter struct {
	*memory.Store
}

func (brokenCounter) AdjustRemainingClasses(ctx context.Context, id string, delta int) error {
	return errors.New("write quota exceeded")
}

func TestCounterFailureQueuesRepair(t *testing.T) {
	ctx := context.Background()
	st := brokenCounter{seed(t, 2)}
	jobs := queue.NewInMemory(4)
	svc := NewService(st, jobs, pacific, nil)

	res, err := svc.Record(ctx, form(true))
	require.NoError(t, err)
	assert.Equal(t, CounterWarning, res.Warning)
	assert.NotEmpty(t, res.Record.ID)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := jobs.Consume(cctx)
	require.NoError(t, err)
	select {
	case msg := <-ch:
		adj, err := queue.DecodeCounterAdjust(msg)
		require.NoError(t, err)
		assert.Equal(t, -1, adj.Delta)
		assert.Equal(t, res.Record.ID, adj.RecordID)
	case <-time.After(time.Second):
		t.Fatal("no repair queued")
	}

	// the healthy store applies the repair
	r := NewRepairer(st.Store, jobs, nil)
	msg, err := queue.NewCounterAdjust(queue.CounterAdjust{StudentID: "s1", Delta: -1})
	require.NoError(t, err)
	require.NoError(t, r.Handle(ctx, msg))
	assert.Equal(t, 1, remaining(t, st.Store))
}

type txStore struct {
	*memory.Store
	recorded, removed int
}

func (s *txStore) RecordAttendance(ctx context.Context, rec studio.AttendanceRecord, delta int) (studio.AttendanceRecord, error) {
	s.recorded++
	rec, err := s.CreateAttendance(ctx, rec)
	if err != nil {
		return rec, err
	}
	return rec, s.AdjustRemainingClasses(ctx, rec.StudentID, delta)
}

func (s *txStore) RemoveAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	s.removed++
	rec, err := s.GetAttendance(ctx, id)
	if err != nil {
		return rec, err
	}
	if err := s.DeleteAttendance(ctx, id); err != nil {
		return rec, err
	}
	if rec.Present {
		return rec, s.AdjustRemainingClasses(ctx, rec.StudentID, 1)
	}
	return rec, nil
}

func TestTransactionalStoreIsUsed(t *testing.T) {
	ctx := context.Background()
	st := &txStore{Store: seed(t, 1)}
	svc := NewService(st, nil, pacific, nil)
	changes := 0
	svc.OnChange(func() { changes++ })

	res, err := svc.Record(ctx, form(true))
	require.NoError(t, err)
	assert.Equal(t, 1, st.recorded)
	assert.Equal(t, 0, remaining(t, st))

	_, err = svc.Delete(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.removed)
	assert.Equal(t, 1, remaining(t, st))
	assert.Equal(t, 2, changes)
}

func TestRepairerRequeuesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	jobs := queue.NewInMemory(4)
	r := NewRepairer(brokenCounter{seed(t, 0)}, jobs, nil)
	r.Backoff = time.Millisecond
	r.MaxAttempts = 2

	msg, err := queue.NewCounterAdjust(queue.CounterAdjust{StudentID: "s1", Delta: 1})
	require.NoError(t, err)
	require.NoError(t, r.Handle(ctx, msg))

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := jobs.Consume(cctx)
	require.NoError(t, err)
	next := <-ch
	adj, err := queue.DecodeCounterAdjust(next)
	require.NoError(t, err)
	assert.Equal(t, 1, adj.Attempt)

	assert.Error(t, r.Handle(ctx, next))
}
