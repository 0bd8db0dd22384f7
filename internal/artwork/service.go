package artwork

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// FileOutcome reports one file of an add-files request.
type FileOutcome struct {
	FileName  string `json:"fileName"`
	PreviewID string `json:"previewId,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
}

// AddResult is the batch after adding files plus the per-file outcomes.
type AddResult struct {
	Batch    BatchView     `json:"batch"`
	Outcomes []FileOutcome `json:"outcomes"`
	Message  string        `json:"message,omitempty"`
}

// Service ties batches, watermarking and upload together.
type Service struct {
	batches  *Batches
	marker   *Watermarker
	uploader *Uploader
	log      *zap.Logger
	onChange func()
}

// NewService wires the artwork service.
func NewService(batches *Batches, marker *Watermarker, uploader *Uploader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{batches: batches, marker: marker, uploader: uploader, log: log}
}

// OnChange registers fn to run after a submit stored at least one artwork.
func (s *Service) OnChange(fn func()) { s.onChange = fn }

// Batches exposes the batch store.
func (s *Service) Batches() *Batches { return s.batches }

// AddFiles watermarks srcs concurrently and appends the successes to the batch.
func (s *Service) AddFiles(ctx context.Context, batchID string, srcs []Source) (AddResult, error) {
	if _, err := s.batches.Get(batchID); err != nil {
		return AddResult{}, err
	}
	outcomes := s.marker.ProcessAll(ctx, srcs)

	var ok []Processed
	var okIdx []int
	res := AddResult{Outcomes: make([]FileOutcome, len(outcomes))}
	var failed []string
	for i, o := range outcomes {
		res.Outcomes[i] = FileOutcome{FileName: o.Name}
		if o.Err != nil {
			res.Outcomes[i].Error = o.Err.Error()
			var fe *FileError
			if errors.As(o.Err, &fe) {
				res.Outcomes[i].Kind = fe.Kind
			}
			failed = append(failed, o.Err.Error())
			continue
		}
		ok = append(ok, o.Result)
		okIdx = append(okIdx, i)
	}

	view, err := s.batches.Add(batchID, ok)
	if err != nil {
		return AddResult{}, err
	}
	added := view.Items[len(view.Items)-len(ok):]
	for j, i := range okIdx {
		res.Outcomes[i].PreviewID = added[j].PreviewID
	}
	res.Batch = view
	if len(failed) > 0 {
		res.Message = "Some files could not be processed: " + strings.Join(failed, "; ")
	}
	return res, nil
}

// Submit uploads the batch. Missing files or tags fail validation and leave
// the batch as it is; once uploads start the batch is discarded whatever
// the outcome.
func (s *Service) Submit(ctx context.Context, batchID string) (Report, error) {
	b, err := s.batches.TakeReady(batchID)
	if err != nil {
		return Report{}, err
	}
	files := make([]Processed, 0, len(b.Items))
	for _, it := range b.Items {
		files = append(files, it.File)
	}
	rep, err := s.uploader.Upload(ctx, files, b.StudentIDs)
	if err != nil {
		return Report{}, err
	}
	if rep.SuccessCount > 0 && s.onChange != nil {
		s.onChange()
	}
	s.log.Debug("batch released", zap.String("batch_id", batchID), zap.Int("previews", len(b.Items)))
	return rep, nil
}
