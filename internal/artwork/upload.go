package artwork

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"artwink/internal/blob"
	"artwink/internal/metrics"
	"artwink/internal/studio"
)

// Recorder persists artwork metadata.
type Recorder interface {
	CreateArtwork(ctx context.Context, a studio.Artwork) (studio.Artwork, error)
}

// ItemResult is the outcome of one file in a submit.
type ItemResult struct {
	FileName string          `json:"fileName"`
	Artwork  *studio.Artwork `json:"artwork,omitempty"`
	Error    string          `json:"error,omitempty"`
	err      error
}

// Err returns the underlying failure, if any.
func (r ItemResult) Err() error { return r.err }

// Report summarizes a submit.
type Report struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"successCount"`
	Items        []ItemResult `json:"items"`
	Message      string       `json:"message"`
}

// Failed reports whether any item failed.
func (r Report) Failed() bool { return r.SuccessCount < r.Total }

// Uploader stores files and records one artwork per stored file.
type Uploader struct {
	blobs   blob.Store
	records Recorder
	log     *zap.Logger
	now     func() time.Time
}

// NewUploader wires an uploader.
func NewUploader(blobs blob.Store, records Recorder, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{blobs: blobs, records: records, log: log, now: time.Now}
}

// ErrNothingToUpload is returned when files or student tags are missing.
var ErrNothingToUpload = studio.Invalid("files", "Please select at least one image and one student.")

// Upload processes files one at a time: compress, store, record. A failure
// is kept against its file and the next file still runs. Nothing is
// deduplicated against earlier submits.
func (u *Uploader) Upload(ctx context.Context, files []Processed, studentIDs []string) (Report, error) {
	if len(files) == 0 || len(studentIDs) == 0 {
		return Report{}, ErrNothingToUpload
	}
	rep := Report{Total: len(files), Items: make([]ItemResult, 0, len(files))}
	var failures []string
	for _, f := range files {
		start := time.Now()
		res := u.one(ctx, f, studentIDs)
		metrics.UploadDuration.Observe(time.Since(start).Seconds())
		if res.err != nil {
			failures = append(failures, fmt.Sprintf("Failed to upload %s: %s", f.Name, res.Error))
			u.log.Warn("artwork upload failed", zap.String("file", f.Name), zap.Error(res.err))
		} else {
			rep.SuccessCount++
		}
		rep.Items = append(rep.Items, res)
	}

	if len(failures) > 0 {
		rep.Message = fmt.Sprintf("Completed with errors. %d of %d uploaded. Errors: %s",
			rep.SuccessCount, rep.Total, strings.Join(failures, "; "))
	} else {
		plural := ""
		if rep.SuccessCount > 1 {
			plural = "s"
		}
		rep.Message = fmt.Sprintf("%d artwork%s uploaded successfully!", rep.SuccessCount, plural)
	}
	u.log.Info("artwork batch submitted",
		zap.Int("total", rep.Total),
		zap.Int("uploaded", rep.SuccessCount),
		zap.Strings("students", studentIDs))
	return rep, nil
}

func (u *Uploader) one(ctx context.Context, f Processed, studentIDs []string) ItemResult {
	res := ItemResult{FileName: f.Name}
	fail := func(kind Kind, err error) ItemResult {
		fe := fileErr(kind, f.Name, err)
		metrics.ArtworkFiles.WithLabelValues(stage(kind), "error").Inc()
		res.err = fe
		res.Error = fe.Error()
		return res
	}

	small, err := Compress(f)
	if err != nil {
		return fail(KindUploadError, err)
	}
	objectPath := blob.ArtworkPath(u.now(), f.Name)
	url, err := u.blobs.Upload(ctx, objectPath, small.Data, small.ContentType)
	if err != nil {
		return fail(KindUploadError, err)
	}
	metrics.ArtworkFiles.WithLabelValues("upload", "ok").Inc()

	rec, err := u.records.CreateArtwork(ctx, studio.Artwork{
		ImageURL:   url,
		StudentIDs: append([]string{}, studentIDs...),
		FileName:   path.Base(objectPath),
	})
	if err != nil {
		return fail(KindMetadataError, err)
	}
	metrics.ArtworkFiles.WithLabelValues("record", "ok").Inc()
	res.Artwork = &rec
	res.FileName = rec.FileName
	return res
}

func stage(k Kind) string {
	if k == KindMetadataError {
		return "record"
	}
	return "upload"
}
