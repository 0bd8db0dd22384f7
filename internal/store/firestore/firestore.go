// Package firestore stores studio documents in Cloud Firestore using the
// collection layout of the hosted portal: users, students, attendance, artworks.
package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"artwink/internal/studio"
)

const (
	colParents    = "users"
	colStudents   = "students"
	colAttendance = "attendance"
	colArtworks   = "artworks"
)

// Store implements studio.Store and studio.Transactional.
type Store struct {
	client *firestore.Client
}

// New wraps an initialized Firestore client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection(colStudents).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (s *Store) GetParent(ctx context.Context, id string) (studio.Parent, error) {
	snap, err := s.client.Collection(colParents).Doc(id).Get(ctx)
	if isNotFound(err) {
		return studio.Parent{}, studio.NotFound("parent", id)
	}
	if err != nil {
		return studio.Parent{}, err
	}
	return parentFrom(snap)
}

func parentFrom(snap *firestore.DocumentSnapshot) (studio.Parent, error) {
	var p studio.Parent
	if err := snap.DataTo(&p); err != nil {
		return studio.Parent{}, err
	}
	p.ID = snap.Ref.ID
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	return p, nil
}

func (s *Store) ListParents(ctx context.Context) ([]studio.Parent, error) {
	iter := s.client.Collection(colParents).Limit(studio.DefaultLimit).Documents(ctx)
	defer iter.Stop()
	var res []studio.Parent
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := parentFrom(snap)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastModified.After(res[j].LastModified) })
	return res, nil
}

func (s *Store) CreateParent(ctx context.Context, p studio.Parent) (studio.Parent, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	ref := s.client.Collection(colParents).Doc(p.ID)
	if _, err := ref.Set(ctx, map[string]interface{}{
		"email":            p.Email,
		"parentName":       p.ParentName,
		"studentIDs":       p.StudentIDs,
		"isActive":         p.IsActive,
		"lastModifiedTime": firestore.ServerTimestamp,
	}); err != nil {
		return studio.Parent{}, err
	}
	return s.GetParent(ctx, p.ID)
}

func (s *Store) UpdateParent(ctx context.Context, id string, u studio.ParentUpdate) (studio.Parent, error) {
	updates := []firestore.Update{{Path: "lastModifiedTime", Value: firestore.ServerTimestamp}}
	if u.ParentName != nil {
		updates = append(updates, firestore.Update{Path: "parentName", Value: *u.ParentName})
	}
	if u.IsActive != nil {
		updates = append(updates, firestore.Update{Path: "isActive", Value: *u.IsActive})
	}
	if _, err := s.client.Collection(colParents).Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return studio.Parent{}, studio.NotFound("parent", id)
		}
		return studio.Parent{}, err
	}
	return s.GetParent(ctx, id)
}

func studentFrom(snap *firestore.DocumentSnapshot) (studio.Student, error) {
	var st studio.Student
	if err := snap.DataTo(&st); err != nil {
		return studio.Student{}, err
	}
	st.ID = snap.Ref.ID
	return st, nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (studio.Student, error) {
	snap, err := s.client.Collection(colStudents).Doc(id).Get(ctx)
	if isNotFound(err) {
		return studio.Student{}, studio.NotFound("student", id)
	}
	if err != nil {
		return studio.Student{}, err
	}
	return studentFrom(snap)
}

func (s *Store) ListStudents(ctx context.Context) ([]studio.Student, error) {
	iter := s.client.Collection(colStudents).Limit(studio.DefaultLimit).Documents(ctx)
	defer iter.Stop()
	var res []studio.Student
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		st, err := studentFrom(snap)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, nil
}

// CreateStudent writes the student and links it into the parent's studentIDs.
// The two writes go through one batch.
func (s *Store) CreateStudent(ctx context.Context, st studio.Student) (studio.Student, error) {
	if st.ID == "" {
		st.ID = s.client.Collection(colStudents).NewDoc().ID
	}
	batch := s.client.Batch()
	batch.Set(s.client.Collection(colStudents).Doc(st.ID), map[string]interface{}{
		"studentName":      st.StudentName,
		"parentId":         st.ParentID,
		"remainingClasses": st.RemainingClasses,
		"isActive":         st.IsActive,
		"lastModifiedTime": firestore.ServerTimestamp,
	})
	if st.ParentID != "" {
		batch.Update(s.client.Collection(colParents).Doc(st.ParentID), []firestore.Update{
			{Path: "studentIDs", Value: firestore.ArrayUnion(st.ID)},
			{Path: "lastModifiedTime", Value: firestore.ServerTimestamp},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		if isNotFound(err) {
			return studio.Student{}, studio.NotFound("parent", st.ParentID)
		}
		return studio.Student{}, err
	}
	return s.GetStudent(ctx, st.ID)
}

func (s *Store) UpdateStudent(ctx context.Context, id string, u studio.StudentUpdate) (studio.Student, error) {
	updates := []firestore.Update{{Path: "lastModifiedTime", Value: firestore.ServerTimestamp}}
	if u.StudentName != nil {
		updates = append(updates, firestore.Update{Path: "studentName", Value: *u.StudentName})
	}
	if u.RemainingClasses != nil {
		updates = append(updates, firestore.Update{Path: "remainingClasses", Value: *u.RemainingClasses})
	}
	if u.IsActive != nil {
		updates = append(updates, firestore.Update{Path: "isActive", Value: *u.IsActive})
	}
	if _, err := s.client.Collection(colStudents).Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return studio.Student{}, studio.NotFound("student", id)
		}
		return studio.Student{}, err
	}
	return s.GetStudent(ctx, id)
}

func counterUpdates(delta int) []firestore.Update {
	return []firestore.Update{
		{Path: "remainingClasses", Value: firestore.Increment(delta)},
		{Path: "lastModifiedTime", Value: firestore.ServerTimestamp},
	}
}

func (s *Store) AdjustRemainingClasses(ctx context.Context, studentID string, delta int) error {
	_, err := s.client.Collection(colStudents).Doc(studentID).Update(ctx, counterUpdates(delta))
	if isNotFound(err) {
		return studio.NotFound("student", studentID)
	}
	return err
}

func attendanceFrom(snap *firestore.DocumentSnapshot) (studio.AttendanceRecord, error) {
	var rec studio.AttendanceRecord
	if err := snap.DataTo(&rec); err != nil {
		return studio.AttendanceRecord{}, err
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}

func (s *Store) GetAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	snap, err := s.client.Collection(colAttendance).Doc(id).Get(ctx)
	if isNotFound(err) {
		return studio.AttendanceRecord{}, studio.NotFound("attendance", id)
	}
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	return attendanceFrom(snap)
}

// ListAttendance orders server side only for the unfiltered listing; the
// per-student query is sorted here so it needs no composite index.
func (s *Store) ListAttendance(ctx context.Context, q studio.AttendanceQuery) ([]studio.AttendanceRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = studio.DefaultLimit
	}
	query := s.client.Collection(colAttendance).Query
	if q.StudentID != "" {
		query = query.Where("studentId", "==", q.StudentID)
	} else {
		query = query.OrderBy("attendanceDate", firestore.Desc)
	}
	iter := query.Limit(limit).Documents(ctx)
	defer iter.Stop()

	var res []studio.AttendanceRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := attendanceFrom(snap)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].AttendanceDate.After(res[j].AttendanceDate) })
	return res, nil
}

func attendanceData(rec studio.AttendanceRecord) map[string]interface{} {
	return map[string]interface{}{
		"studentId":      rec.StudentID,
		"parentId":       rec.ParentID,
		"className":      rec.ClassName,
		"attendance":     rec.Present,
		"attendanceDate": rec.AttendanceDate,
	}
}

func (s *Store) CreateAttendance(ctx context.Context, rec studio.AttendanceRecord) (studio.AttendanceRecord, error) {
	ref := s.client.Collection(colAttendance).NewDoc()
	if rec.ID != "" {
		ref = s.client.Collection(colAttendance).Doc(rec.ID)
	}
	if _, err := ref.Set(ctx, attendanceData(rec)); err != nil {
		return studio.AttendanceRecord{}, err
	}
	rec.ID = ref.ID
	return rec, nil
}

func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	ref := s.client.Collection(colAttendance).Doc(id)
	_, err := ref.Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return studio.NotFound("attendance", id)
	}
	return err
}

// RecordAttendance creates the record and increments the counter in one transaction.
func (s *Store) RecordAttendance(ctx context.Context, rec studio.AttendanceRecord, delta int) (studio.AttendanceRecord, error) {
	ref := s.client.Collection(colAttendance).NewDoc()
	if rec.ID != "" {
		ref = s.client.Collection(colAttendance).Doc(rec.ID)
	}
	studentRef := s.client.Collection(colStudents).Doc(rec.StudentID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(studentRef); err != nil {
			return err
		}
		if err := tx.Create(ref, attendanceData(rec)); err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}
		return tx.Update(studentRef, counterUpdates(delta))
	})
	if isNotFound(err) {
		return studio.AttendanceRecord{}, studio.NotFound("student", rec.StudentID)
	}
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	rec.ID = ref.ID
	return rec, nil
}

// RemoveAttendance deletes the record and restores a class for present records.
func (s *Store) RemoveAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	ref := s.client.Collection(colAttendance).Doc(id)
	var rec studio.AttendanceRecord
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if rec, err = attendanceFrom(snap); err != nil {
			return err
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		if !rec.Present {
			return nil
		}
		return tx.Update(s.client.Collection(colStudents).Doc(rec.StudentID), counterUpdates(1))
	})
	if isNotFound(err) {
		return studio.AttendanceRecord{}, studio.NotFound("attendance", id)
	}
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	return rec, nil
}

func (s *Store) CreateArtwork(ctx context.Context, a studio.Artwork) (studio.Artwork, error) {
	ref, _, err := s.client.Collection(colArtworks).Add(ctx, map[string]interface{}{
		"imageUrl":   a.ImageURL,
		"studentIds": a.StudentIDs,
		"fileName":   a.FileName,
		"createdAt":  firestore.ServerTimestamp,
	})
	if err != nil {
		return studio.Artwork{}, err
	}
	a.ID = ref.ID
	return a, nil
}

func (s *Store) ListArtworks(ctx context.Context, studentID string, limit int) ([]studio.Artwork, error) {
	if limit <= 0 {
		limit = studio.DefaultLimit
	}
	iter := s.client.Collection(colArtworks).
		Where("studentIds", "array-contains", studentID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var res []studio.Artwork
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var a studio.Artwork
		if err := snap.DataTo(&a); err != nil {
			return nil, err
		}
		a.ID = snap.Ref.ID
		res = append(res, a)
	}
	return res, nil
}
