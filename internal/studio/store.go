package studio

import (
	"context"
)

// Store is the document backend consumed by the application. Lookups of
// missing documents return an error matching ErrNotFound.
type Store interface {
	GetParent(ctx context.Context, id string) (Parent, error)
	ListParents(ctx context.Context) ([]Parent, error)
	CreateParent(ctx context.Context, p Parent) (Parent, error)
	UpdateParent(ctx context.Context, id string, u ParentUpdate) (Parent, error)

	GetStudent(ctx context.Context, id string) (Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	// CreateStudent also links the student id into its parent's StudentIDs.
	CreateStudent(ctx context.Context, s Student) (Student, error)
	UpdateStudent(ctx context.Context, id string, u StudentUpdate) (Student, error)
	AdjustRemainingClasses(ctx context.Context, studentID string, delta int) error

	GetAttendance(ctx context.Context, id string) (AttendanceRecord, error)
	ListAttendance(ctx context.Context, q AttendanceQuery) ([]AttendanceRecord, error)
	CreateAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, id string) error

	CreateArtwork(ctx context.Context, a Artwork) (Artwork, error)
	ListArtworks(ctx context.Context, studentID string, limit int) ([]Artwork, error)

	Ping(ctx context.Context) error
}

// Transactional is implemented by stores that can apply an attendance write
// and its counter change atomically.
type Transactional interface {
	// RecordAttendance creates rec and adds delta to the student's counter.
	RecordAttendance(ctx context.Context, rec AttendanceRecord, delta int) (AttendanceRecord, error)
	// RemoveAttendance deletes the record and, if it was present, gives the
	// class back. It returns the deleted record.
	RemoveAttendance(ctx context.Context, id string) (AttendanceRecord, error)
}

// Credential is a locally managed sign-in secret.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	Disabled     bool
}

// CredentialStore persists local credentials keyed by normalized email.
type CredentialStore interface {
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
	CreateCredential(ctx context.Context, c Credential) error
}
