package roster

import (
	"sort"
	"time"
)

// AttendanceRow is one line of the admin attendance view.
type AttendanceRow struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"studentId"`
	StudentName    string    `json:"studentName"`
	ClassName      string    `json:"className"`
	Present        bool      `json:"attendance"`
	AttendanceAt   time.Time `json:"attendanceDateTime"`
	AttendanceDate string    `json:"attendanceDate"`
	Day            string    `json:"day"`
}

// AttendanceView is the filtered attendance list plus its displayed count.
type AttendanceView struct {
	Rows  []AttendanceRow `json:"records"`
	Total int             `json:"total"`
}

// Attendance lists records newest first, ties broken by student name, then
// applies the name search and the day filter.
func Attendance(ds Dataset, f Filter, loc *time.Location) (AttendanceView, error) {
	if err := f.Validate(); err != nil {
		return AttendanceView{}, err
	}
	names := make(map[string]string, len(ds.Students))
	for _, st := range ds.Students {
		names[st.ID] = st.StudentName
	}

	rows := make([]AttendanceRow, 0, len(ds.Attendance))
	for _, rec := range ds.Attendance {
		name, ok := names[rec.StudentID]
		if !ok {
			name = UnknownStudent
		}
		rows = append(rows, AttendanceRow{
			ID:             rec.ID,
			StudentID:      rec.StudentID,
			StudentName:    name,
			ClassName:      rec.ClassName,
			Present:        rec.Present,
			AttendanceAt:   rec.AttendanceDate,
			AttendanceDate: Display(rec.AttendanceDate, loc),
			Day:            DayOf(rec.AttendanceDate, loc),
		})
	}

	order := newNameOrder()
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.AttendanceAt.Equal(b.AttendanceAt) {
			return a.AttendanceAt.After(b.AttendanceAt)
		}
		if c := order.compare(a.StudentName, b.StudentName); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	kept := rows[:0]
	for _, r := range rows {
		if !Matches(r.StudentName, f.Query) {
			continue
		}
		if f.Date != "" && r.Day != f.Date {
			continue
		}
		kept = append(kept, r)
	}
	return AttendanceView{Rows: kept, Total: len(kept)}, nil
}
