package artwork

import (
	"github.com/disintegration/imaging"
)

// Compression bounds applied before upload.
const (
	MaxDimension    = 1024
	CompressQuality = 80
)

// Compress fits p within MaxDimension×MaxDimension, keeping its aspect
// ratio, and re-encodes at CompressQuality. Smaller images keep their size.
func Compress(p Processed) (Processed, error) {
	img, err := decodeImage(p.Data, p.Name)
	if err != nil {
		return Processed{}, err
	}
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}
	data, ct, err := encodeImage(img, p.ContentType, CompressQuality)
	if err != nil {
		return Processed{}, err
	}
	nb := img.Bounds()
	return Processed{
		Name:        p.Name,
		ContentType: ct,
		Data:        data,
		Width:       nb.Dx(),
		Height:      nb.Dy(),
	}, nil
}
