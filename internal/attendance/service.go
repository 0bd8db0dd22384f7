// Package attendance records check-ins and keeps each student's remaining
// class counter in step with them.
package attendance

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"artwink/internal/metrics"
	"artwink/internal/queue"
	"artwink/internal/studio"
)

// CounterWarning is returned when the record was written but its counter
// change was not.
const CounterWarning = "Attendance saved, but remaining classes could not be updated. A correction has been queued."

// Publisher enqueues background work.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Input is the attendance form. Date and time are read in the studio timezone.
type Input struct {
	StudentID string `json:"studentId" validate:"required" msg:"Please select a student"`
	ClassName string `json:"className" validate:"required,classname" msg:"Please select a class"`
	Present   bool   `json:"present"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02" msg:"Please pick a date (YYYY-MM-DD)"`
	Time      string `json:"time" validate:"required,datetime=15:04" msg:"Please pick a time (HH:MM)"`
}

// Result is the outcome of a write. Warning is set when the counter change
// is pending repair.
type Result struct {
	Record  studio.AttendanceRecord `json:"record"`
	Warning string                  `json:"warning,omitempty"`
}

// Service coordinates attendance writes and their counter side effect.
type Service struct {
	store    studio.Store
	tx       studio.Transactional
	jobs     Publisher
	validate *validator.Validate
	loc      *time.Location
	log      *zap.Logger
	onChange func()
}

// NewService wires a service. When store also implements
// studio.Transactional, record and counter are written atomically.
func NewService(store studio.Store, jobs Publisher, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		jobs:     jobs,
		validate: studio.NewValidator(),
		loc:      loc,
		log:      log,
	}
	if tx, ok := store.(studio.Transactional); ok {
		s.tx = tx
	}
	return s
}

// OnChange registers fn to run after every successful write.
func (s *Service) OnChange(fn func()) { s.onChange = fn }

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// At composes the form's date and time in the studio timezone.
func (s *Service) At(date, clock string) (time.Time, error) {
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, s.loc)
	if err != nil {
		return time.Time{}, studio.Invalid("date", "Please pick a valid date and time")
	}
	return at, nil
}

// Record writes one attendance event. A present event takes one class off
// the student's counter, which may go negative.
func (s *Service) Record(ctx context.Context, in Input) (Result, error) {
	if err := studio.Check(s.validate, in); err != nil {
		return Result{}, err
	}
	at, err := s.At(in.Date, in.Time)
	if err != nil {
		return Result{}, err
	}
	st, err := s.store.GetStudent(ctx, in.StudentID)
	if errors.Is(err, studio.ErrNotFound) {
		return Result{}, studio.Invalid("studentId", "Please select a student")
	}
	if err != nil {
		return Result{}, studio.IOFailure("load student", err)
	}

	rec := studio.AttendanceRecord{
		StudentID:      st.ID,
		ParentID:       st.ParentID,
		ClassName:      in.ClassName,
		Present:        in.Present,
		AttendanceDate: at,
	}
	delta := rec.CounterDelta()

	var res Result
	if s.tx != nil {
		rec, err = s.tx.RecordAttendance(ctx, rec, delta)
		if err != nil {
			return Result{}, storeErr("record attendance", err)
		}
		res.Record = rec
	} else {
		rec, err = s.store.CreateAttendance(ctx, rec)
		if err != nil {
			return Result{}, studio.IOFailure("create attendance", err)
		}
		res.Record = rec
		if delta != 0 {
			if err := s.store.AdjustRemainingClasses(ctx, rec.StudentID, delta); err != nil {
				res.Warning = s.drift(ctx, rec, delta, err)
			}
		}
	}

	metrics.AttendanceRecorded.WithLabelValues(strconv.FormatBool(rec.Present)).Inc()
	s.log.Info("attendance recorded",
		zap.String("record_id", rec.ID),
		zap.String("student_id", rec.StudentID),
		zap.Bool("present", rec.Present),
		zap.Time("at", rec.AttendanceDate))
	s.changed()
	return res, nil
}

// Delete removes a record. Deleting a present record gives the class back.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	if id == "" {
		return Result{}, studio.Invalid("id", "Attendance id is required")
	}
	var res Result
	if s.tx != nil {
		rec, err := s.tx.RemoveAttendance(ctx, id)
		if err != nil {
			return Result{}, storeErr("delete attendance", err)
		}
		res.Record = rec
	} else {
		rec, err := s.store.GetAttendance(ctx, id)
		if err != nil {
			return Result{}, storeErr("load attendance", err)
		}
		if err := s.store.DeleteAttendance(ctx, id); err != nil {
			return Result{}, storeErr("delete attendance", err)
		}
		res.Record = rec
		if rec.Present {
			if err := s.store.AdjustRemainingClasses(ctx, rec.StudentID, 1); err != nil {
				res.Warning = s.drift(ctx, rec, 1, err)
			}
		}
	}

	metrics.AttendanceDeleted.Inc()
	s.log.Info("attendance deleted", zap.String("record_id", id), zap.Bool("present", res.Record.Present))
	s.changed()
	return res, nil
}

// ForStudent lists a student's records, newest first.
func (s *Service) ForStudent(ctx context.Context, studentID string) ([]studio.AttendanceRecord, error) {
	recs, err := s.store.ListAttendance(ctx, studio.AttendanceQuery{StudentID: studentID})
	if err != nil {
		return nil, studio.IOFailure("list attendance", err)
	}
	return recs, nil
}

// drift records a counter change that failed after its record was written
// and queues a repair.
func (s *Service) drift(ctx context.Context, rec studio.AttendanceRecord, delta int, cause error) string {
	metrics.CounterDrift.Inc()
	s.log.Error("remaining classes update failed",
		zap.String("record_id", rec.ID),
		zap.String("student_id", rec.StudentID),
		zap.Int("delta", delta),
		zap.Error(cause))

	if s.jobs == nil {
		return CounterWarning
	}
	msg, err := queue.NewCounterAdjust(queue.CounterAdjust{StudentID: rec.StudentID, Delta: delta, RecordID: rec.ID})
	if err == nil {
		err = s.jobs.Publish(ctx, msg)
	}
	if err != nil {
		s.log.Error("counter repair not queued", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return CounterWarning
}

func storeErr(op string, err error) error {
	var nf *studio.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return studio.IOFailure(op, err)
}
