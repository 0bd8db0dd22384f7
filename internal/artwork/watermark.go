// Package artwork watermarks, compresses and uploads student artwork.
package artwork

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"artwink/internal/metrics"
)

const (
	markWidthRatio = 0.1
	paddingRatio   = 0.02
	encodeQuality  = 92
)

// Source is one user-supplied file.
type Source struct {
	Name        string
	ContentType string
	Data        []byte
}

// Processed is a watermarked image ready for upload. Name and ContentType
// follow the source unless the type could not be encoded.
type Processed struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Placement is where the watermark lands on a w×h image: 10% of the width,
// the mark's aspect ratio, each side clamped to the image, anchored
// bottom-left with padding of 2% of the width.
func Placement(w, h, markW, markH int) image.Rectangle {
	ww := float64(w) * markWidthRatio
	wh := float64(markH) * (ww / float64(markW))
	ww = math.Min(ww, float64(w))
	wh = math.Min(wh, float64(h))
	pad := float64(w) * paddingRatio

	x := int(math.Round(pad))
	y := int(math.Round(float64(h) - wh - pad))
	width := int(math.Round(ww))
	height := int(math.Round(wh))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return image.Rect(x, y, x+width, y+height)
}

// MarkSource supplies the watermark image.
type MarkSource interface {
	Mark() (image.Image, error)
}

// StaticMark is an already decoded watermark.
type StaticMark struct {
	Image image.Image
}

func (m StaticMark) Mark() (image.Image, error) {
	if m.Image == nil {
		return nil, fmt.Errorf("no watermark image")
	}
	return m.Image, nil
}

// FileMark loads the watermark from disk on first use. A failed load is
// retried on the next call.
type FileMark struct {
	Path string

	mu  sync.Mutex
	img image.Image
}

func (m *FileMark) Mark() (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.img != nil {
		return m.img, nil
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(data, m.Path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Path, err)
	}
	m.img = img
	return img, nil
}

// Watermarker composites the mark onto images.
type Watermarker struct {
	mark MarkSource
}

// NewWatermarker builds a watermarker for mark.
func NewWatermarker(mark MarkSource) *Watermarker {
	return &Watermarker{mark: mark}
}

// Apply watermarks one file. A declared type that is missing or not an
// image type is rejected before decoding.
func (w *Watermarker) Apply(src Source) (Processed, error) {
	ct := declaredType(src.ContentType)
	if !strings.HasPrefix(ct, "image/") {
		return Processed{}, fileErr(KindInvalidFileType, src.Name, fmt.Errorf("type %q", ct))
	}
	img, err := decodeImage(src.Data, src.Name)
	if err != nil {
		return Processed{}, fileErr(KindImageDecodeError, src.Name, err)
	}
	mark, err := w.mark.Mark()
	if err != nil {
		return Processed{}, fileErr(KindWatermarkLoadError, src.Name, err)
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	at := Placement(b.Dx(), b.Dy(), mark.Bounds().Dx(), mark.Bounds().Dy())
	draw.CatmullRom.Scale(dst, at, mark, mark.Bounds(), draw.Over, nil)

	data, outType, err := encodeImage(dst, ct, encodeQuality)
	if err != nil {
		return Processed{}, fileErr(KindEncodeError, src.Name, err)
	}
	return Processed{
		Name:        src.Name,
		ContentType: outType,
		Data:        data,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// Outcome is the result for srcs[Index].
type Outcome struct {
	Index  int
	Name   string
	Result Processed
	Err    error
}

// ProcessAll watermarks every source concurrently and waits for all of them.
// One file failing never affects another; outcomes keep input order.
func (w *Watermarker) ProcessAll(ctx context.Context, srcs []Source) []Outcome {
	out := make([]Outcome, len(srcs))
	var g errgroup.Group
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			o := Outcome{Index: i, Name: src.Name}
			if err := ctx.Err(); err != nil {
				o.Err = fileErr(KindCanceled, src.Name, err)
			} else {
				o.Result, o.Err = w.Apply(src)
			}
			metrics.ArtworkFiles.WithLabelValues("watermark", metrics.Result(o.Err)).Inc()
			out[i] = o
			return nil
		})
	}
	_ = g.Wait()
	return out
}
