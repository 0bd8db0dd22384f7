package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// DefaultContentType is used to encode when the declared type has no encoder.
const DefaultContentType = "image/png"

// declaredType normalizes a declared MIME type, dropping any parameters.
func declaredType(declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// decodeImage reads jpeg, png, gif and webp, going by the sniffed type and
// then by extension.
func decodeImage(data []byte, name string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	r := bytes.NewReader(data)

	switch {
	case strings.Contains(ct, "jpeg"):
		return jpeg.Decode(r)
	case strings.Contains(ct, "png"):
		return png.Decode(r)
	case strings.Contains(ct, "gif"):
		return gif.Decode(r)
	case strings.Contains(ct, "webp"):
		return webp.Decode(r)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".png":
		return png.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".webp":
		return webp.Decode(r)
	}
	return nil, fmt.Errorf("unsupported format %s", ct)
}

// encodeImage writes img as contentType. Types without an encoder fall back
// to DefaultContentType; the type actually written is returned.
func encodeImage(img image.Image, contentType string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	var err error
	switch contentType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		contentType = "image/jpeg"
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "image/gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	case "image/webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	case "image/png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		contentType = DefaultContentType
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType, nil
}
