package roster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artwink/internal/store/memory"
	"artwink/internal/studio"
)

var pacific = mustLoc("America/Los_Angeles")

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.StudentName)
	}
	return out
}

func TestBuildEveryStudentHasOneEntry(t *testing.T) {
	at := time.Date(2025, 3, 31, 9, 0, 0, 0, pacific)
	ds := Dataset{
		Students: []studio.Student{
			{ID: "s3", StudentName: "juan", ParentID: "p1", RemainingClasses: 2},
			{ID: "s1", StudentName: "Anna", ParentID: "missing", RemainingClasses: -1},
			{ID: "s2", StudentName: "Bob", ParentID: "p1"},
		},
		Parents: []studio.Parent{{ID: "p1", ParentName: "Maria"}},
		Attendance: []studio.AttendanceRecord{
			{ID: "a1", StudentID: "s3", Present: true, AttendanceDate: at},
			{ID: "a2", StudentID: "s3", Present: false, AttendanceDate: at.Add(48 * time.Hour)},
		},
	}
	entries, err := Build(ds, Filter{}, pacific)
	require.NoError(t, err)
	require.Equal(t, []string{"Anna", "Bob", "juan"}, names(entries))

	anna, bob, juan := entries[0], entries[1], entries[2]
	assert.Equal(t, NoParent, anna.ParentName)
	assert.Equal(t, NoAttendance, anna.LastAttendance)
	assert.Nil(t, anna.LastAttendanceAt)
	assert.Equal(t, -1, anna.RemainingClasses)
	assert.Equal(t, "Maria", bob.ParentName)
	assert.Equal(t, NoAttendance, bob.LastAttendance)

	assert.Equal(t, "April 2, 2025, 09:00 AM", juan.LastAttendance)
	assert.Equal(t, 1, juan.TotalAttendances)
	assert.Len(t, ds.Students, 3)
	assert.Equal(t, "juan", ds.Students[0].StudentName)
}

func TestBuildSearchIsCaseInsensitiveSubstring(t *testing.T) {
	ds := Dataset{Students: []studio.Student{
		{ID: "1", StudentName: "Anna"},
		{ID: "2", StudentName: "Bob"},
		{ID: "3", StudentName: "Juan"},
	}}
	entries, err := Build(ds, Filter{Query: "an"}, pacific)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Juan"}, names(entries))

	entries, err = Build(ds, Filter{Query: "AN"}, pacific)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Juan"}, names(entries))
}

func TestBuildDateFilter(t *testing.T) {
	ds := Dataset{
		Students: []studio.Student{{ID: "1", StudentName: "Anna"}, {ID: "2", StudentName: "Bob"}},
		Attendance: []studio.AttendanceRecord{
			{StudentID: "1", AttendanceDate: time.Date(2025, 3, 31, 23, 0, 0, 0, pacific)},
			{StudentID: "2", AttendanceDate: time.Date(2025, 3, 30, 12, 0, 0, 0, pacific)},
		},
	}
	entries, err := Build(ds, Filter{Date: "2025-03-31"}, pacific)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna"}, names(entries))

	_, err = Build(ds, Filter{Date: "03/31/2025"}, pacific)
	var v *studio.ValidationError
	assert.True(t, errors.As(err, &v))
}

func TestAttendanceDateFilterIgnoresTimeOfDay(t *testing.T) {
	ds := Dataset{
		Students: []studio.Student{{ID: "1", StudentName: "Anna"}},
		Attendance: []studio.AttendanceRecord{
			{ID: "a", StudentID: "1", AttendanceDate: time.Date(2025, 3, 30, 10, 0, 0, 0, pacific)},
			{ID: "b", StudentID: "1", AttendanceDate: time.Date(2025, 3, 31, 9, 0, 0, 0, pacific)},
			{ID: "c", StudentID: "1", AttendanceDate: time.Date(2025, 3, 31, 23, 0, 0, 0, pacific)},
		},
	}
	view, err := Attendance(ds, Filter{Date: "2025-03-31"}, pacific)
	require.NoError(t, err)
	require.Equal(t, 2, view.Total)
	assert.Equal(t, "c", view.Rows[0].ID)
	assert.Equal(t, "b", view.Rows[1].ID)

	all, err := Attendance(ds, Filter{}, pacific)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
}

func TestAttendanceTiesSortByName(t *testing.T) {
	at := time.Date(2025, 3, 31, 16, 0, 0, 0, pacific)
	ds := Dataset{
		Students: []studio.Student{{ID: "1", StudentName: "Zoe"}, {ID: "2", StudentName: "amy"}},
		Attendance: []studio.AttendanceRecord{
			{ID: "z", StudentID: "1", AttendanceDate: at},
			{ID: "a", StudentID: "2", AttendanceDate: at},
			{ID: "x", StudentID: "gone", AttendanceDate: at.Add(-time.Hour)},
		},
	}
	view, err := Attendance(ds, Filter{}, pacific)
	require.NoError(t, err)
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "amy", view.Rows[0].StudentName)
	assert.Equal(t, "Zoe", view.Rows[1].StudentName)
	assert.Equal(t, UnknownStudent, view.Rows[2].StudentName)
	assert.Equal(t, "March 31, 2025, 04:00 PM", view.Rows[0].AttendanceDate)
}

func TestSuggest(t *testing.T) {
	var students []studio.Student
	for _, n := range []string{"Dana", "Ana", "Hana", "Lana", "Bob", "Nana", "Jana"} {
		students = append(students, studio.Student{ID: n, StudentName: n})
	}
	assert.Equal(t, []string{"Ana", "Dana", "Hana", "Jana", "Lana"}, Suggest(students, "ana"))
	assert.Empty(t, Suggest(students, ""))
	assert.Empty(t, Suggest(students, "zzz"))
}

func TestStudentsActiveOnly(t *testing.T) {
	students := []studio.Student{
		{ID: "1", StudentName: "Anna", IsActive: true},
		{ID: "2", StudentName: "Annie", IsActive: false},
	}
	assert.Len(t, Students(students, "ann", false), 2)
	got := Students(students, "ann", true)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

type failingSource struct {
	*memory.Store
}

func (failingSource) ListParents(ctx context.Context) ([]studio.Parent, error) {
	return nil, errors.New("parents offline")
}

func TestLoadReportsPerKeyErrors(t *testing.T) {
	st := memory.New()
	_, err := st.CreateStudent(context.Background(), studio.Student{ID: "s1", StudentName: "Anna"})
	require.NoError(t, err)

	ds, err := Load(context.Background(), failingSource{st})
	var le LoadErrors
	require.True(t, errors.As(err, &le))
	assert.Len(t, le, 1)
	assert.Contains(t, le, "parents")
	assert.Len(t, ds.Students, 1)
}

type countingSource struct {
	*memory.Store
	loads atomic.Int32
}

func (c *countingSource) ListStudents(ctx context.Context) ([]studio.Student, error) {
	c.loads.Add(1)
	return c.Store.ListStudents(ctx)
}

func TestCacheInvalidateAndRebuild(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Store: memory.New()}
	c := NewCache(src, 10*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Get(ctx)
	require.NoError(t, err)
	_, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.loads.Load())

	_, err = src.CreateStudent(ctx, studio.Student{ID: "s1", StudentName: "Anna"})
	require.NoError(t, err)
	c.Invalidate()
	c.Invalidate()

	assert.Eventually(t, func() bool { return src.loads.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.data != nil
	}, time.Second, 5*time.Millisecond)

	ds, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Students, 1)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestCacheDiscardsLateResult(t *testing.T) {
	c := NewCache(&countingSource{Store: memory.New()}, time.Hour, nil)
	defer c.Close()
	discarded := 0
	c.OnDiscard = func() { discarded++ }

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.Invalidate()

	assert.False(t, c.store(gen, Dataset{}))
	assert.Equal(t, 1, discarded)
	c.mu.Lock()
	assert.Nil(t, c.data)
	c.mu.Unlock()
}
