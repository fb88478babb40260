package models

// EnrolMethodManual is the enrol plugin name of manual enrolment instances
const EnrolMethodManual = "manual"

// Enrolment status values shared by enrol instances and user enrolments
const (
	EnrolStatusEnabled  = 0
	EnrolStatusDisabled = 1
)

// Course is the subset of a course row this service reads
type Course struct {
	ID        int64
	ShortName string
	FullName  string
	SortOrder int
}

// EnrolInstance is one enrolment method attached to a course
type EnrolInstance struct {
	ID         int64
	CourseID   int64
	Method     string
	Status     int
	AllowEnrol bool
	SortOrder  int
}

// Enabled reports whether the instance is active
func (e *EnrolInstance) Enabled() bool {
	return e.Status == EnrolStatusEnabled
}

// Unenrolment requests removal of a role from a user in a course
type Unenrolment struct {
	RoleID   int64 `json:"roleid" validate:"required,gt=0"`
	UserID   int64 `json:"userid" validate:"required,gt=0"`
	CourseID int64 `json:"courseid" validate:"required,gt=0"`
}

// UnenrolResult reports what one removal touched
type UnenrolResult struct {
	RoleAssignmentsRemoved int64
	// UserEnrolmentID is the removed user_enrolments row, 0 when the user was not enrolled
	UserEnrolmentID int64
}

// Removed reports whether anything was deleted
func (r *UnenrolResult) Removed() bool {
	return r.RoleAssignmentsRemoved > 0 || r.UserEnrolmentID != 0
}
