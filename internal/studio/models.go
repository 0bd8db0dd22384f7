package studio

import (
	"time"
)

// Class names offered by the studio.
const (
	ClassTraditional = "Traditional Art Class"
	ClassDigital     = "Digital Art Class"
)

// Classes lists the enumerated class names in display order.
var Classes = []string{ClassTraditional, ClassDigital}

// ValidClass reports whether name is one of the enumerated classes.
func ValidClass(name string) bool {
	for _, c := range Classes {
		if c == name {
			return true
		}
	}
	return false
}

// Parent is a parent account profile. ID equals the auth user id.
type Parent struct {
	ID           string    `json:"id" firestore:"-"`
	Email        string    `json:"email" firestore:"email"`
	ParentName   string    `json:"parentName" firestore:"parentName"`
	StudentIDs   []string  `json:"studentIDs" firestore:"studentIDs"`
	IsActive     bool      `json:"isActive" firestore:"isActive"`
	LastModified time.Time `json:"lastModifiedTime" firestore:"lastModifiedTime"`
}

// HasStudent reports whether the parent profile links studentID.
func (p Parent) HasStudent(studentID string) bool {
	for _, id := range p.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Student is a studio student with a remaining-class credit counter.
// RemainingClasses may be negative.
type Student struct {
	ID               string    `json:"id" firestore:"-"`
	StudentName      string    `json:"studentName" firestore:"studentName"`
	ParentID         string    `json:"parentId" firestore:"parentId"`
	RemainingClasses int       `json:"remainingClasses" firestore:"remainingClasses"`
	IsActive         bool      `json:"isActive" firestore:"isActive"`
	LastModified     time.Time `json:"lastModifiedTime" firestore:"lastModifiedTime"`
}

// AttendanceRecord is one check-in event. Records are immutable except for deletion.
type AttendanceRecord struct {
	ID             string    `json:"id" firestore:"-"`
	StudentID      string    `json:"studentId" firestore:"studentId"`
	ParentID       string    `json:"parentId" firestore:"parentId"`
	ClassName      string    `json:"className" firestore:"className"`
	Present        bool      `json:"attendance" firestore:"attendance"`
	AttendanceDate time.Time `json:"attendanceDate" firestore:"attendanceDate"`
}

// CounterDelta is the change a record applies to the student's remaining classes
// when it is created.
func (r AttendanceRecord) CounterDelta() int {
	if r.Present {
		return -1
	}
	return 0
}

// Artwork links one stored image to one or more students.
type Artwork struct {
	ID         string    `json:"id" firestore:"-"`
	ImageURL   string    `json:"imageUrl" firestore:"imageUrl"`
	StudentIDs []string  `json:"studentIds" firestore:"studentIds"`
	FileName   string    `json:"fileName" firestore:"fileName"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// StudentUpdate carries optional student field changes.
type StudentUpdate struct {
	StudentName      *string `json:"studentName"`
	RemainingClasses *int    `json:"remainingClasses"`
	IsActive         *bool   `json:"isActive"`
}

// Empty reports whether no field is set.
func (u StudentUpdate) Empty() bool {
	return u.StudentName == nil && u.RemainingClasses == nil && u.IsActive == nil
}

// ParentUpdate carries optional parent field changes.
type ParentUpdate struct {
	ParentName *string `json:"parentName"`
	IsActive   *bool   `json:"isActive"`
}

// Empty reports whether no field is set.
func (u ParentUpdate) Empty() bool {
	return u.ParentName == nil && u.IsActive == nil
}

// AttendanceQuery filters attendance listings. Zero values mean no filter;
// results are ordered newest first.
type AttendanceQuery struct {
	StudentID string
	Limit     int
}

// DefaultLimit caps collection queries.
const DefaultLimit = 10000
