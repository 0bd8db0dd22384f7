package artwork

import "fmt"

// Kind classifies a per-file failure.
type Kind string

const (
	KindInvalidFileType    Kind = "invalid_file_type"
	KindImageDecodeError   Kind = "image_decode_error"
	KindWatermarkLoadError Kind = "watermark_load_error"
	KindEncodeError        Kind = "encode_error"
	KindUploadError        Kind = "upload_error"
	KindMetadataError      Kind = "metadata_error"
	KindCanceled           Kind = "canceled"
)

// Sentinels for errors.Is against a FileError of the same kind.
var (
	ErrInvalidFileType = &FileError{Kind: KindInvalidFileType}
	ErrImageDecode     = &FileError{Kind: KindImageDecodeError}
	ErrWatermarkLoad   = &FileError{Kind: KindWatermarkLoadError}
	ErrEncode          = &FileError{Kind: KindEncodeError}
	ErrUpload          = &FileError{Kind: KindUploadError}
	ErrMetadata        = &FileError{Kind: KindMetadataError}
	ErrCanceled        = &FileError{Kind: KindCanceled}
)

// FileError is a failure attributable to one file of a batch.
type FileError struct {
	Kind Kind
	File string
	Err  error
}

func (e *FileError) Error() string {
	switch e.Kind {
	case KindInvalidFileType:
		return fmt.Sprintf("File %q is not a valid image.", e.File)
	case KindImageDecodeError:
		return fmt.Sprintf("Failed to load image %s for watermarking: %v", e.File, e.Err)
	case KindWatermarkLoadError:
		return fmt.Sprintf("Failed to load watermark icon for %s: %v", e.File, e.Err)
	case KindEncodeError:
		return fmt.Sprintf("Failed to encode %s: %v", e.File, e.Err)
	case KindUploadError:
		return fmt.Sprintf("Failed to upload image: %v", e.Err)
	case KindMetadataError:
		return fmt.Sprintf("Failed to create artwork: %v", e.Err)
	case KindCanceled:
		return fmt.Sprintf("Processing of %s was cancelled: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *FileError) Is(target error) bool {
	t, ok := target.(*FileError)
	return ok && t.File == "" && t.Err == nil && t.Kind == e.Kind
}

func fileErr(kind Kind, file string, err error) error {
	return &FileError{Kind: kind, File: file, Err: err}
}
