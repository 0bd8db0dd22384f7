package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"artwink/internal/auth"
	"artwink/internal/studio"
)

// profile loads the caller's parent profile.
func (s *Server) profile(c *gin.Context) (studio.Parent, error) {
	p, err := s.Gate.Profile(c.Request.Context(), auth.SessionOf(c))
	if err != nil {
		return studio.Parent{}, err
	}
	if p == nil {
		return studio.Parent{}, studio.ErrForbidden
	}
	return *p, nil
}

// ownedStudent returns the student if the parent is linked to it, either
// through the profile's list or the student's parent id.
func (s *Server) ownedStudent(ctx context.Context, p studio.Parent, id string) (studio.Student, error) {
	st, err := s.Store.GetStudent(ctx, id)
	if err != nil {
		return studio.Student{}, err
	}
	if !p.HasStudent(id) && st.ParentID != p.ID {
		return studio.Student{}, studio.ErrForbidden
	}
	return st, nil
}

func (s *Server) parentStudents(c *gin.Context) {
	p, err := s.profile(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	students := make([]studio.Student, 0, len(p.StudentIDs))
	for _, id := range p.StudentIDs {
		st, err := s.Store.GetStudent(c.Request.Context(), id)
		if errors.Is(err, studio.ErrNotFound) {
			continue
		}
		if err != nil {
			s.respondError(c, studio.IOFailure("load student", err))
			return
		}
		students = append(students, st)
	}
	c.JSON(http.StatusOK, gin.H{"parent": p, "students": students})
}

func (s *Server) parentAttendance(c *gin.Context) {
	p, err := s.profile(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	st, err := s.ownedStudent(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	recs, err := s.Attendance.ForStudent(c.Request.Context(), st.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "records": recs})
}

func (s *Server) parentArtworks(c *gin.Context) {
	p, err := s.profile(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	st, err := s.ownedStudent(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	arts, err := s.Store.ListArtworks(c.Request.Context(), st.ID, studio.DefaultLimit)
	if err != nil {
		s.respondError(c, studio.IOFailure("list artworks", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st, "artworks": arts})
}
