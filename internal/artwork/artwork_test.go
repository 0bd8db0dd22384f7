package artwork

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artwink/internal/blob"
	"artwink/internal/store/memory"
	"artwink/internal/studio"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, c)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.White), nil))
	return buf.Bytes()
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func blueMark() *Watermarker {
	return NewWatermarker(StaticMark{Image: solid(10, 10, blue)})
}

func TestPlacementWidthIsTenPercent(t *testing.T) {
	for _, size := range [][2]int{{1000, 800}, {640, 480}, {3000, 4000}, {250, 1000}} {
		w, h := size[0], size[1]
		r := Placement(w, h, 192, 96)
		assert.Equal(t, int(float64(w)*0.1+0.5), r.Dx(), "width for %dx%d", w, h)
		assert.InDelta(t, 2.0, float64(r.Dx())/float64(r.Dy()), 0.1, "aspect for %dx%d", w, h)
		assert.Equal(t, int(float64(w)*0.02+0.5), r.Min.X)
		assert.LessOrEqual(t, r.Max.Y, h)
	}
}

func TestPlacementBottomLeft(t *testing.T) {
	r := Placement(1000, 800, 192, 192)
	assert.Equal(t, image.Rect(20, 680, 120, 780), r)
}

func TestPlacementClampsToImage(t *testing.T) {
	r := Placement(100, 5, 10, 100)
	assert.LessOrEqual(t, r.Dy(), 5)
	assert.LessOrEqual(t, r.Dx(), 100)
}

func TestApplyCompositesMark(t *testing.T) {
	out, err := blueMark().Apply(Source{Name: "cat.png", ContentType: "image/png", Data: pngBytes(t, 200, 100, red)})
	require.NoError(t, err)
	assert.Equal(t, "cat.png", out.Name)
	assert.Equal(t, "image/png", out.ContentType)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 100, out.Height)

	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	r, _, b, _ := img.At(14, 86).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))

	r, _, b, _ = img.At(150, 10).RGBA()
	assert.Equal(t, uint32(255), r>>8)
	assert.Equal(t, uint32(0), b>>8)
}

func TestApplyKeepsJPEG(t *testing.T) {
	out, err := blueMark().Apply(Source{Name: "a.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 64, 64)})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.ContentType)
	_, err = jpeg.Decode(bytes.NewReader(out.Data))
	assert.NoError(t, err)
}

func TestApplyFallsBackToPNG(t *testing.T) {
	out, err := blueMark().Apply(Source{Name: "a.bmp", ContentType: "image/bmp", Data: pngBytes(t, 20, 20, red)})
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, out.ContentType)
}

func TestApplyErrors(t *testing.T) {
	_, err := blueMark().Apply(Source{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")})
	assert.True(t, errors.Is(err, ErrInvalidFileType))
	assert.Contains(t, err.Error(), "notes.txt")

	_, err = blueMark().Apply(Source{Name: "broken.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nnot really")})
	assert.True(t, errors.Is(err, ErrImageDecode))

	missing := NewWatermarker(&FileMark{Path: "/nonexistent/Icon-192.png"})
	_, err = missing.Apply(Source{Name: "ok.png", ContentType: "image/png", Data: pngBytes(t, 10, 10, red)})
	assert.True(t, errors.Is(err, ErrWatermarkLoad))
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ok.png", fe.File)
}

func TestProcessAllSettlesEveryFile(t *testing.T) {
	srcs := []Source{
		{Name: "1.txt", ContentType: "text/plain", Data: []byte("x")},
		{Name: "2.png", ContentType: "image/png", Data: pngBytes(t, 30, 30, red)},
		{Name: "3.png", ContentType: "image/png", Data: []byte("garbage")},
		{Name: "4.png", ContentType: "image/png", Data: pngBytes(t, 40, 20, red)},
		{Name: "5.jpg", ContentType: "image/jpeg", Data: jpegBytes(t, 16, 16)},
	}
	outcomes := blueMark().ProcessAll(context.Background(), srcs)
	require.Len(t, outcomes, 5)

	ok := 0
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, srcs[i].Name, o.Name)
		if o.Err == nil {
			ok++
		}
	}
	assert.Equal(t, 3, ok)
	assert.True(t, errors.Is(outcomes[0].Err, ErrInvalidFileType))
	assert.True(t, errors.Is(outcomes[2].Err, ErrImageDecode))
}

func TestCompressFitsWithin1024(t *testing.T) {
	p := Processed{Name: "big.png", ContentType: "image/png", Data: pngBytes(t, 2048, 1024, red)}
	out, err := Compress(p)
	require.NoError(t, err)
	assert.Equal(t, 1024, out.Width)
	assert.Equal(t, 512, out.Height)

	small := Processed{Name: "small.png", ContentType: "image/png", Data: pngBytes(t, 100, 50, red)}
	out, err = Compress(small)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
}

func processed(t *testing.T, name string) Processed {
	return Processed{Name: name, ContentType: "image/png", Data: pngBytes(t, 20, 20, red), Width: 20, Height: 20}
}

func TestUploadContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	blobs.FailFor = []string{"_second.png"}
	st := memory.New()
	u := NewUploader(blobs, st, nil)
	clock := time.UnixMilli(1743400000000)
	u.now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }

	files := []Processed{processed(t, "first.png"), processed(t, "second.png"), processed(t, "third.png")}
	rep, err := u.Upload(ctx, files, []string{"s1", "s2"})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.SuccessCount)
	assert.True(t, rep.Failed())
	assert.Contains(t, rep.Message, "Completed with errors. 2 of 3 uploaded.")
	assert.Contains(t, rep.Message, "Failed to upload second.png:")
	assert.NotContains(t, rep.Message, "first.png")
	assert.True(t, errors.Is(rep.Items[1].Err(), ErrUpload))
	assert.Equal(t, 2, blobs.Len())

	s1, err := st.ListArtworks(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, s1, 2)
	names := []string{s1[0].FileName, s1[1].FileName}
	assert.ElementsMatch(t, []string{"1743400000001_first.png", "1743400000003_third.png"}, names)
	assert.Equal(t, []string{"s1", "s2"}, s1[0].StudentIDs)
}

type brokenRecorder struct{}

func (brokenRecorder) CreateArtwork(ctx context.Context, a studio.Artwork) (studio.Artwork, error) {
	return studio.Artwork{}, errors.New("quota exceeded")
}

func TestUploadMetadataFailure(t *testing.T) {
	u := NewUploader(blob.NewMemory(), brokenRecorder{}, nil)
	rep, err := u.Upload(context.Background(), []Processed{processed(t, "a.png")}, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.SuccessCount)
	assert.True(t, errors.Is(rep.Items[0].Err(), ErrMetadata))
	assert.Contains(t, rep.Message, "Failed to upload a.png: Failed to create artwork: quota exceeded")
}

func TestUploadRequiresFilesAndStudents(t *testing.T) {
	blobs := blob.NewMemory()
	u := NewUploader(blobs, memory.New(), nil)

	_, err := u.Upload(context.Background(), nil, []string{"s1"})
	var v *studio.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "Please select at least one image and one student.", v.Message)

	_, err = u.Upload(context.Background(), []Processed{processed(t, "a.png")}, nil)
	assert.True(t, errors.As(err, &v))
	assert.Zero(t, blobs.Len())
}

func TestUploadSuccessMessage(t *testing.T) {
	u := NewUploader(blob.NewMemory(), memory.New(), nil)
	rep, err := u.Upload(context.Background(), []Processed{processed(t, "a.png")}, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, "1 artwork uploaded successfully!", rep.Message)
}

func TestApplyRejectsUndeclaredType(t *testing.T) {
	for _, ct := range []string{"", "application/octet-stream", "  "} {
		_, err := blueMark().Apply(Source{Name: "cat.png", ContentType: ct, Data: pngBytes(t, 20, 20, red)})
		assert.True(t, errors.Is(err, ErrInvalidFileType), "content type %q", ct)
	}

	out, err := blueMark().Apply(Source{Name: "cat.png", ContentType: "Image/PNG; charset=binary", Data: pngBytes(t, 20, 20, red)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.ContentType)
}

func TestProcessAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := blueMark().ProcessAll(ctx, []Source{{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 10, 10, red)}})
	require.Len(t, out, 1)
	assert.True(t, errors.Is(out[0].Err, ErrCanceled))
	assert.False(t, errors.Is(out[0].Err, ErrImageDecode))
	assert.True(t, errors.Is(out[0].Err, context.Canceled))
}
