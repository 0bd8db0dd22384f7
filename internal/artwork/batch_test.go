package artwork

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artwink/internal/blob"
	"artwink/internal/store/memory"
	"artwink/internal/studio"
)

func TestBatchLifecycle(t *testing.T) {
	s := NewBatches(time.Minute)
	b := s.Open()

	v, err := s.Add(b.ID, []Processed{processed(t, "a.png"), processed(t, "b.png")})
	require.NoError(t, err)
	require.Len(t, v.Items, 2)

	v, err = s.Toggle(b.ID, "s1")
	require.NoError(t, err)
	v, err = s.Toggle(b.ID, "s2")
	require.NoError(t, err)
	v, err = s.Toggle(b.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, v.StudentIDs)

	p, err := s.Preview(b.ID, v.Items[1].PreviewID)
	require.NoError(t, err)
	assert.Equal(t, "b.png", p.Name)

	v, err = s.Remove(b.ID, v.Items[0].PreviewID)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "b.png", v.Items[0].FileName)

	_, err = s.Remove(b.ID, "nope")
	assert.True(t, errors.Is(err, studio.ErrNotFound))

	n, err := s.Discard(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.Get(b.ID)
	assert.True(t, errors.Is(err, studio.ErrNotFound))
}

func TestBatchExpires(t *testing.T) {
	s := NewBatches(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	a := s.Open()
	b := s.Open()

	now = now.Add(45 * time.Second)
	_, err := s.Get(a.ID)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	_, err = s.Get(b.ID)
	assert.True(t, errors.Is(err, studio.ErrNotFound))
	_, err = s.Get(a.ID)
	assert.NoError(t, err)
}

func TestServiceAddAndSubmit(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	st := memory.New()
	svc := NewService(NewBatches(time.Minute), blueMark(), NewUploader(blobs, st, nil), nil)
	changed := 0
	svc.OnChange(func() { changed++ })

	b := svc.Batches().Open()
	res, err := svc.AddFiles(ctx, b.ID, []Source{
		{Name: "good.png", ContentType: "image/png", Data: pngBytes(t, 50, 50, red)},
		{Name: "bad.txt", ContentType: "text/plain", Data: []byte("x")},
	})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.NotEmpty(t, res.Outcomes[0].PreviewID)
	assert.Equal(t, KindInvalidFileType, res.Outcomes[1].Kind)
	assert.Contains(t, res.Message, "Some files could not be processed")
	require.Len(t, res.Batch.Items, 1)

	// no students tagged: rejected, batch kept
	_, err = svc.Submit(ctx, b.ID)
	var v *studio.ValidationError
	require.True(t, errors.As(err, &v))
	_, err = svc.Batches().Get(b.ID)
	require.NoError(t, err)

	_, err = svc.Batches().Toggle(b.ID, "s1")
	require.NoError(t, err)
	rep, err := svc.Submit(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SuccessCount)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, blobs.Len())

	_, err = svc.Batches().Get(b.ID)
	assert.True(t, errors.Is(err, studio.ErrNotFound))
}

func TestTakeReadyKeepsIncompleteBatch(t *testing.T) {
	s := NewBatches(time.Minute)
	b := s.Open()
	v, err := s.Add(b.ID, []Processed{processed(t, "a.png")})
	require.NoError(t, err)
	_, err = s.Toggle(b.ID, "s1")
	require.NoError(t, err)

	// emptied after tagging, as a concurrent remove would
	_, err = s.Remove(b.ID, v.Items[0].PreviewID)
	require.NoError(t, err)
	_, err = s.TakeReady(b.ID)
	assert.ErrorIs(t, err, ErrNothingToUpload)
	_, err = s.Get(b.ID)
	require.NoError(t, err)

	_, err = s.Add(b.ID, []Processed{processed(t, "b.png")})
	require.NoError(t, err)
	taken, err := s.TakeReady(b.ID)
	require.NoError(t, err)
	require.Len(t, taken.Items, 1)
	assert.Equal(t, []string{"s1"}, taken.StudentIDs)
	_, err = s.Get(b.ID)
	assert.True(t, errors.Is(err, studio.ErrNotFound))
}
