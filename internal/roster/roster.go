// Package roster derives the admin views that join students, parents and
// attendance records. Every view is recomputed from the full dataset.
package roster

import (
	"sort"
	"time"

	"artwink/internal/studio"
)

const (
	// NoAttendance is shown for students with no records.
	NoAttendance = "No attendance recorded"
	// NoParent is shown when the parent profile cannot be resolved.
	NoParent = "N/A"
	// UnknownStudent labels records whose student no longer exists.
	UnknownStudent = "Unknown student"
	// MaxSuggestions caps name suggestions.
	MaxSuggestions = 5
)

// Dataset is the input of every derived view.
type Dataset struct {
	Students   []studio.Student          `json:"students"`
	Parents    []studio.Parent           `json:"parents"`
	Attendance []studio.AttendanceRecord `json:"attendances"`
}

// Entry is one roster row. Every student yields exactly one.
type Entry struct {
	StudentID        string     `json:"studentId"`
	StudentName      string     `json:"studentName"`
	ParentName       string     `json:"parentName"`
	RemainingClasses int        `json:"remainingClasses"`
	IsActive         bool       `json:"isActive"`
	LastAttendance   string     `json:"lastAttendance"`
	LastAttendanceAt *time.Time `json:"lastAttendanceAt,omitempty"`
	TotalAttendances int        `json:"totalAttendances"`
}

// Build joins the dataset into roster entries sorted by student name and
// applies f. The dataset is not modified.
func Build(ds Dataset, f Filter, loc *time.Location) ([]Entry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	parentNames := make(map[string]string, len(ds.Parents))
	for _, p := range ds.Parents {
		parentNames[p.ID] = p.ParentName
	}
	byStudent := make(map[string][]studio.AttendanceRecord)
	for _, rec := range ds.Attendance {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}

	students := sortedStudents(ds.Students)
	entries := make([]Entry, 0, len(students))
	for _, st := range students {
		if !Matches(st.StudentName, f.Query) {
			continue
		}
		recs := byStudent[st.ID]
		if f.Date != "" && !attendedOn(recs, f.Date, loc) {
			continue
		}
		e := Entry{
			StudentID:        st.ID,
			StudentName:      st.StudentName,
			ParentName:       NoParent,
			RemainingClasses: st.RemainingClasses,
			IsActive:         st.IsActive,
			LastAttendance:   NoAttendance,
		}
		if name := parentNames[st.ParentID]; name != "" {
			e.ParentName = name
		}
		var last time.Time
		for _, rec := range recs {
			if rec.Present {
				e.TotalAttendances++
			}
			if rec.AttendanceDate.After(last) {
				last = rec.AttendanceDate
			}
		}
		if len(recs) > 0 {
			e.LastAttendance = Display(last, loc)
			e.LastAttendanceAt = &last
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func attendedOn(recs []studio.AttendanceRecord, day string, loc *time.Location) bool {
	for _, rec := range recs {
		if DayOf(rec.AttendanceDate, loc) == day {
			return true
		}
	}
	return false
}

// sortedStudents returns a copy ordered by name, then id.
func sortedStudents(in []studio.Student) []studio.Student {
	out := make([]studio.Student, len(in))
	copy(out, in)
	order := newNameOrder()
	sort.SliceStable(out, func(i, j int) bool {
		if c := order.compare(out[i].StudentName, out[j].StudentName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Suggest returns up to MaxSuggestions student names containing query.
// An empty query suggests nothing.
func Suggest(students []studio.Student, query string) []string {
	out := []string{}
	if query == "" {
		return out
	}
	for _, st := range sortedStudents(students) {
		if Matches(st.StudentName, query) {
			out = append(out, st.StudentName)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// Students filters the tag picker list: name match and, optionally, active only.
func Students(students []studio.Student, query string, activeOnly bool) []studio.Student {
	out := []studio.Student{}
	for _, st := range sortedStudents(students) {
		if activeOnly && !st.IsActive {
			continue
		}
		if Matches(st.StudentName, query) {
			out = append(out, st)
		}
	}
	return out
}
