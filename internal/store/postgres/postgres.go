// Package postgres stores studio documents in Postgres through database/sql
// and the pgx driver. Attendance writes and counter changes share a transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"artwink/internal/studio"
)

// Store implements studio.Store, studio.Transactional and studio.CredentialStore.
type Store struct {
	db *sql.DB
}

// New creates a store over an open connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const parentColumns = `id, email, parent_name, student_ids, is_active, last_modified_time`

func scanParent(row interface{ Scan(...any) error }) (studio.Parent, error) {
	var p studio.Parent
	err := row.Scan(&p.ID, &p.Email, &p.ParentName, pq.Array(&p.StudentIDs), &p.IsActive, &p.LastModified)
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	return p, err
}

func (s *Store) GetParent(ctx context.Context, id string) (studio.Parent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+parentColumns+` FROM parents WHERE id = $1`, id)
	p, err := scanParent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Parent{}, studio.NotFound("parent", id)
	}
	return p, err
}

func (s *Store) ListParents(ctx context.Context) ([]studio.Parent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+parentColumns+` FROM parents ORDER BY last_modified_time DESC LIMIT $1`, studio.DefaultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []studio.Parent
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *Store) CreateParent(ctx context.Context, p studio.Parent) (studio.Parent, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO parents (id, email, parent_name, student_ids, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING last_modified_time
	`, p.ID, p.Email, p.ParentName, pq.Array(p.StudentIDs), p.IsActive)
	if err := row.Scan(&p.LastModified); err != nil {
		return studio.Parent{}, err
	}
	return p, nil
}

func (s *Store) UpdateParent(ctx context.Context, id string, u studio.ParentUpdate) (studio.Parent, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE parents
		SET parent_name = COALESCE($2, parent_name),
			is_active = COALESCE($3, is_active),
			last_modified_time = NOW()
		WHERE id = $1
		RETURNING `+parentColumns, id, u.ParentName, u.IsActive)
	p, err := scanParent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Parent{}, studio.NotFound("parent", id)
	}
	return p, err
}

const studentColumns = `id, student_name, parent_id, remaining_classes, is_active, last_modified_time`

func scanStudent(row interface{ Scan(...any) error }) (studio.Student, error) {
	var st studio.Student
	err := row.Scan(&st.ID, &st.StudentName, &st.ParentID, &st.RemainingClasses, &st.IsActive, &st.LastModified)
	return st, err
}

func (s *Store) GetStudent(ctx context.Context, id string) (studio.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Student{}, studio.NotFound("student", id)
	}
	return st, err
}

func (s *Store) ListStudents(ctx context.Context) ([]studio.Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students LIMIT $1`, studio.DefaultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []studio.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (s *Store) CreateStudent(ctx context.Context, st studio.Student) (studio.Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return studio.Student{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO students (id, student_name, parent_id, remaining_classes, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING last_modified_time
	`, st.ID, st.StudentName, st.ParentID, st.RemainingClasses, st.IsActive)
	if err := row.Scan(&st.LastModified); err != nil {
		return studio.Student{}, err
	}
	if st.ParentID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE parents
			SET student_ids = array_append(student_ids, $2), last_modified_time = NOW()
			WHERE id = $1 AND NOT ($2 = ANY(student_ids))
		`, st.ParentID, st.ID); err != nil {
			return studio.Student{}, err
		}
	}
	return st, tx.Commit()
}

func (s *Store) UpdateStudent(ctx context.Context, id string, u studio.StudentUpdate) (studio.Student, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE students
		SET student_name = COALESCE($2, student_name),
			remaining_classes = COALESCE($3, remaining_classes),
			is_active = COALESCE($4, is_active),
			last_modified_time = NOW()
		WHERE id = $1
		RETURNING `+studentColumns, id, u.StudentName, u.RemainingClasses, u.IsActive)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Student{}, studio.NotFound("student", id)
	}
	return st, err
}

func (s *Store) AdjustRemainingClasses(ctx context.Context, studentID string, delta int) error {
	return adjust(ctx, s.db, studentID, delta)
}

func adjust(ctx context.Context, ex execer, studentID string, delta int) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE students
		SET remaining_classes = remaining_classes + $2, last_modified_time = NOW()
		WHERE id = $1
	`, studentID, delta)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return studio.NotFound("student", studentID)
	}
	return nil
}

const attendanceColumns = `id, student_id, parent_id, class_name, attendance, attendance_date`

func scanAttendance(row interface{ Scan(...any) error }) (studio.AttendanceRecord, error) {
	var rec studio.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ParentID, &rec.ClassName, &rec.Present, &rec.AttendanceDate)
	return rec, err
}

func (s *Store) GetAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	rec, err := scanAttendance(s.db.QueryRowContext(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return studio.AttendanceRecord{}, studio.NotFound("attendance", id)
	}
	return rec, err
}

func (s *Store) ListAttendance(ctx context.Context, q studio.AttendanceQuery) ([]studio.AttendanceRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = studio.DefaultLimit
	}
	query := `SELECT ` + attendanceColumns + ` FROM attendance`
	args := []any{}
	clauses := []string{}
	if q.StudentID != "" {
		args = append(args, q.StudentID)
		clauses = append(clauses, "student_id = $1")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY attendance_date DESC LIMIT $" + itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []studio.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *Store) CreateAttendance(ctx context.Context, rec studio.AttendanceRecord) (studio.AttendanceRecord, error) {
	return insertAttendance(ctx, s.db, rec)
}

func insertAttendance(ctx context.Context, ex execer, rec studio.AttendanceRecord) (studio.AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AttendanceDate.IsZero() {
		rec.AttendanceDate = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, parent_id, class_name, attendance, attendance_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.StudentID, rec.ParentID, rec.ClassName, rec.Present, rec.AttendanceDate)
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	return rec, nil
}

func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return studio.NotFound("attendance", id)
	}
	return nil
}

// RecordAttendance inserts rec and applies delta in one transaction.
func (s *Store) RecordAttendance(ctx context.Context, rec studio.AttendanceRecord, delta int) (studio.AttendanceRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	defer tx.Rollback()

	rec, err = insertAttendance(ctx, tx, rec)
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	if delta != 0 {
		if err := adjust(ctx, tx, rec.StudentID, delta); err != nil {
			return studio.AttendanceRecord{}, err
		}
	}
	return rec, tx.Commit()
}

// RemoveAttendance deletes the record and restores a class for present records.
func (s *Store) RemoveAttendance(ctx context.Context, id string) (studio.AttendanceRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	defer tx.Rollback()

	rec, err := scanAttendance(tx.QueryRowContext(ctx, `DELETE FROM attendance WHERE id = $1 RETURNING `+attendanceColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return studio.AttendanceRecord{}, studio.NotFound("attendance", id)
	}
	if err != nil {
		return studio.AttendanceRecord{}, err
	}
	if rec.Present {
		if err := adjust(ctx, tx, rec.StudentID, 1); err != nil {
			return studio.AttendanceRecord{}, err
		}
	}
	return rec, tx.Commit()
}

func (s *Store) CreateArtwork(ctx context.Context, a studio.Artwork) (studio.Artwork, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO artworks (id, image_url, student_ids, file_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.ImageURL, pq.Array(a.StudentIDs), a.FileName)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return studio.Artwork{}, err
	}
	return a, nil
}

func (s *Store) ListArtworks(ctx context.Context, studentID string, limit int) ([]studio.Artwork, error) {
	if limit <= 0 {
		limit = studio.DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_url, student_ids, file_name, created_at
		FROM artworks
		WHERE $1 = ANY(student_ids)
		ORDER BY created_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []studio.Artwork
	for rows.Next() {
		var a studio.Artwork
		if err := rows.Scan(&a.ID, &a.ImageURL, pq.Array(&a.StudentIDs), &a.FileName, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (studio.Credential, error) {
	var c studio.Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, disabled FROM credentials WHERE email = $1
	`, normalize(email)).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return studio.Credential{}, studio.NotFound("credential", email)
	}
	return c, err
}

func (s *Store) CreateCredential(ctx context.Context, c studio.Credential) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (email, user_id, password_hash, disabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, normalize(c.Email), c.UserID, c.PasswordHash, c.Disabled)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return studio.NewAuthError(studio.AuthEmailInUse, nil)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func itoa(i int) string { return strconv.Itoa(i) }
