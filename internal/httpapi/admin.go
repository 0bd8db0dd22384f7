package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"artwink/internal/attendance"
	"artwink/internal/directory"
	"artwink/internal/roster"
	"artwink/internal/studio"
)

type viewQuery struct {
	Query     string `form:"q"`
	Date      string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	ClassName string `form:"className" binding:"omitempty,classname"`
}

func (q viewQuery) filter() roster.Filter {
	return roster.Filter{Query: q.Query, Date: q.Date}
}

// dataset binds the view query and returns the cached dataset.
func (s *Server) dataset(c *gin.Context) (roster.Dataset, viewQuery, bool) {
	var q viewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, bindErr(err))
		return roster.Dataset{}, q, false
	}
	ds, err := s.Roster.Get(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return roster.Dataset{}, q, false
	}
	return ds, q, true
}

// dashboard loads the three collections fresh. A failed collection is
// reported under its key and the others are still returned.
func (s *Server) dashboard(c *gin.Context) {
	ds, err := roster.Load(c.Request.Context(), s.Store)
	body := gin.H{
		"students":    ds.Students,
		"parents":     ds.Parents,
		"attendances": ds.Attendance,
	}
	if err != nil {
		var le roster.LoadErrors
		if !errors.As(err, &le) || len(le) == 3 {
			s.respondError(c, err)
			return
		}
		body["errors"] = loadErrorMessages(le)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) roster(c *gin.Context) {
	ds, q, ok := s.dataset(c)
	if !ok {
		return
	}
	entries, err := roster.Build(ds, q.filter(), s.Location)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

func (s *Server) suggestions(c *gin.Context) {
	ds, q, ok := s.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": roster.Suggest(ds.Students, q.Query)})
}

func (s *Server) attendanceView(c *gin.Context) {
	ds, q, ok := s.dataset(c)
	if !ok {
		return
	}
	view, err := roster.Attendance(ds, q.filter(), s.Location)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if q.ClassName != "" {
		kept := view.Rows[:0]
		for _, r := range view.Rows {
			if r.ClassName == q.ClassName {
				kept = append(kept, r)
			}
		}
		view = roster.AttendanceView{Rows: kept, Total: len(kept)}
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) recordAttendance(c *gin.Context) {
	var in attendance.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	res, err := s.Attendance.Record(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) deleteAttendance(c *gin.Context) {
	res, err := s.Attendance.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type studentQuery struct {
	Query  string `form:"q"`
	Active bool   `form:"active"`
}

func (s *Server) listStudents(c *gin.Context) {
	var q studentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	ds, err := s.Roster.Get(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": roster.Students(ds.Students, q.Query, q.Active)})
}

func (s *Server) createStudent(c *gin.Context) {
	var in directory.NewStudent
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	st, err := s.Directory.CreateStudent(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) updateStudent(c *gin.Context) {
	var u studio.StudentUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	st, err := s.Directory.UpdateStudent(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) listParents(c *gin.Context) {
	ds, err := s.Roster.Get(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parents": ds.Parents})
}

func (s *Server) createParent(c *gin.Context) {
	var in directory.NewParent
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	p, err := s.Directory.CreateParent(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updateParent(c *gin.Context) {
	var u studio.ParentUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		s.respondError(c, bindErr(err))
		return
	}
	p, err := s.Directory.UpdateParent(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listArtworks(c *gin.Context) {
	id := c.Query("studentId")
	if id == "" {
		s.respondError(c, studio.Invalid("studentId", "Please select a student"))
		return
	}
	arts, err := s.Store.ListArtworks(c.Request.Context(), id, studio.DefaultLimit)
	if err != nil {
		s.respondError(c, studio.IOFailure("list artworks", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"artworks": arts})
}
