// Package directory manages parent accounts and student records.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"artwink/internal/auth"
	"artwink/internal/studio"
)

// ErrNothingToUpdate is returned for an update that sets no field.
var ErrNothingToUpdate = studio.Invalid("update", "Nothing to update")

// NewParent is the admin form for a parent account.
type NewParent struct {
	Email      string `json:"email" validate:"required,email" msg:"Please enter a valid email address"`
	Password   string `json:"password" validate:"required,min=6" msg:"Password must be at least 6 characters"`
	ParentName string `json:"parentName" validate:"required" msg:"Parent name is required"`
}

// NewStudent is the admin form for a student.
type NewStudent struct {
	StudentName      string `json:"studentName" validate:"required" msg:"Student name is required"`
	ParentID         string `json:"parentId" validate:"required" msg:"Please select a parent"`
	RemainingClasses int    `json:"remainingClasses"`
}

// Service creates and edits parents and students.
type Service struct {
	store    studio.Store
	accounts auth.Provider
	validate *validator.Validate
	log      *zap.Logger
	onChange func()
}

// NewService wires a directory service. accounts creates sign-in accounts
// for new parents.
func NewService(store studio.Store, accounts auth.Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, accounts: accounts, validate: studio.NewValidator(), log: log}
}

// OnChange registers fn to run after every successful write.
func (s *Service) OnChange(fn func()) { s.onChange = fn }

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// CreateParent creates the sign-in account and then the profile under the
// account's uid. The profile starts active with no students.
func (s *Service) CreateParent(ctx context.Context, in NewParent) (studio.Parent, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.ParentName = strings.TrimSpace(in.ParentName)
	if err := studio.Check(s.validate, in); err != nil {
		return studio.Parent{}, err
	}
	id, err := s.accounts.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return studio.Parent{}, err
	}
	p, err := s.store.CreateParent(ctx, studio.Parent{
		ID:         id.UID,
		Email:      id.Email,
		ParentName: in.ParentName,
		StudentIDs: []string{},
		IsActive:   true,
	})
	if err != nil {
		s.log.Error("parent profile not stored after account creation",
			zap.String("uid", id.UID), zap.Error(err))
		return studio.Parent{}, studio.IOFailure("create parent", err)
	}
	s.log.Info("parent created", zap.String("parent_id", p.ID))
	s.changed()
	return p, nil
}

// UpdateParent applies the set fields of u.
func (s *Service) UpdateParent(ctx context.Context, id string, u studio.ParentUpdate) (studio.Parent, error) {
	if u.Empty() {
		return studio.Parent{}, ErrNothingToUpdate
	}
	if u.ParentName != nil {
		name := strings.TrimSpace(*u.ParentName)
		if name == "" {
			return studio.Parent{}, studio.Invalid("parentName", "Parent name is required")
		}
		u.ParentName = &name
	}
	p, err := s.store.UpdateParent(ctx, id, u)
	if err != nil {
		return studio.Parent{}, storeErr("update parent", err)
	}
	s.changed()
	return p, nil
}

// CreateStudent stores a new active student under a fresh id and links it
// into the parent's student list.
func (s *Service) CreateStudent(ctx context.Context, in NewStudent) (studio.Student, error) {
	in.StudentName = strings.TrimSpace(in.StudentName)
	if err := studio.Check(s.validate, in); err != nil {
		return studio.Student{}, err
	}
	if _, err := s.store.GetParent(ctx, in.ParentID); err != nil {
		return studio.Student{}, storeErr("load parent", err)
	}
	st, err := s.store.CreateStudent(ctx, studio.Student{
		ID:               uuid.NewString(),
		StudentName:      in.StudentName,
		ParentID:         in.ParentID,
		RemainingClasses: in.RemainingClasses,
		IsActive:         true,
	})
	if err != nil {
		return studio.Student{}, storeErr("create student", err)
	}
	s.log.Info("student created", zap.String("student_id", st.ID), zap.String("parent_id", st.ParentID))
	s.changed()
	return st, nil
}

// UpdateStudent applies the set fields of u.
func (s *Service) UpdateStudent(ctx context.Context, id string, u studio.StudentUpdate) (studio.Student, error) {
	if u.Empty() {
		return studio.Student{}, ErrNothingToUpdate
	}
	if u.StudentName != nil {
		name := strings.TrimSpace(*u.StudentName)
		if name == "" {
			return studio.Student{}, studio.Invalid("studentName", "Student name is required")
		}
		u.StudentName = &name
	}
	st, err := s.store.UpdateStudent(ctx, id, u)
	if err != nil {
		return studio.Student{}, storeErr("update student", err)
	}
	s.changed()
	return st, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, studio.ErrNotFound) {
		return err
	}
	return studio.IOFailure(op, err)
}
