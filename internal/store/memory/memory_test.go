package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artwink/internal/studio"
)

func TestCreateStudentLinksParent(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateParent(ctx, studio.Parent{ID: "p1", ParentName: "Pak Wan", IsActive: true})
	require.NoError(t, err)
	assert.Empty(t, p.StudentIDs)

	st, err := s.CreateStudent(ctx, studio.Student{StudentName: "Winsey", ParentID: "p1", RemainingClasses: 4})
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)

	got, err := s.GetParent(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{st.ID}, got.StudentIDs)
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	name := "x"

	_, err := s.UpdateStudent(ctx, "nope", studio.StudentUpdate{StudentName: &name})
	assert.True(t, errors.Is(err, studio.ErrNotFound))
	_, err = s.UpdateParent(ctx, "nope", studio.ParentUpdate{ParentName: &name})
	assert.True(t, errors.Is(err, studio.ErrNotFound))
}

func TestAdjustRemainingClassesGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateStudent(ctx, studio.Student{ID: "s1", StudentName: "Anna"})
	require.NoError(t, err)

	require.NoError(t, s.AdjustRemainingClasses(ctx, "s1", -1))
	st, err := s.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, -1, st.RemainingClasses)
}

func TestListAttendanceNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)
	for i, sid := range []string{"a", "b", "a"} {
		_, err := s.CreateAttendance(ctx, studio.AttendanceRecord{StudentID: sid, AttendanceDate: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	all, err := s.ListAttendance(ctx, studio.AttendanceQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].AttendanceDate.After(all[1].AttendanceDate))

	onlyA, err := s.ListAttendance(ctx, studio.AttendanceQuery{StudentID: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, base.Add(2*time.Hour), onlyA[0].AttendanceDate)
}

func TestListArtworksByStudent(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	_, err := s.CreateArtwork(ctx, studio.Artwork{FileName: "one.png", StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	_, err = s.CreateArtwork(ctx, studio.Artwork{FileName: "two.png", StudentIDs: []string{"s1"}})
	require.NoError(t, err)

	s1, err := s.ListArtworks(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, "two.png", s1[0].FileName)

	s2, err := s.ListArtworks(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Len(t, s2, 1)
}

func TestCredentialsNormalizeEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateCredential(ctx, studio.Credential{UserID: "u1", Email: " Mom@Example.com "}))

	c, err := s.GetCredentialByEmail(ctx, "mom@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)

	err = s.CreateCredential(ctx, studio.Credential{UserID: "u2", Email: "MOM@example.com"})
	var authErr *studio.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, studio.AuthEmailInUse, authErr.Code)
}
