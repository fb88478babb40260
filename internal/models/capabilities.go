package models

import "fmt"

// Capability constants checked by the web-service functions
const (
	CapUserViewDetails       = "moodle/user:viewdetails"
	CapUserViewHiddenDetails = "moodle/user:viewhiddendetails"
	CapUserUpdate            = "moodle/user:update"
	CapCourseViewHiddenUser  = "moodle/course:viewhiddenuserfields"
	CapEnrolManualUnenrol    = "enrol/manual:unenrol"
)

// Context levels as stored in role_assignments.context_level
const (
	ContextSystem = 10
	ContextUser   = 30
	ContextCourse = 50
)

// Role permission values as stored in role_capabilities.permission
const (
	PermissionAllow    = 1
	PermissionPrevent  = -1
	PermissionProhibit = -1000
)

// AllCapabilities is the whitelist of capabilities the service evaluates
var AllCapabilities = map[string]bool{
	CapUserViewDetails:       true,
	CapUserViewHiddenDetails: true,
	CapUserUpdate:            true,
	CapCourseViewHiddenUser:  true,
	CapEnrolManualUnenrol:    true,
}

// IsKnownCapability checks if a capability exists in the whitelist
func IsKnownCapability(capability string) bool {
	return AllCapabilities[capability]
}

// Scope is the context a capability is evaluated in
type Scope struct {
	Level      int
	InstanceID int64
}

// SystemScope is the site-wide context
func SystemScope() Scope { return Scope{Level: ContextSystem} }

// CourseScope is the context of one course
func CourseScope(courseID int64) Scope { return Scope{Level: ContextCourse, InstanceID: courseID} }

// UserScope is the context of one user
func UserScope(userID int64) Scope { return Scope{Level: ContextUser, InstanceID: userID} }

// IsSystem reports whether the scope is the site-wide context
func (s Scope) IsSystem() bool { return s.Level == ContextSystem }

func (s Scope) String() string {
	switch s.Level {
	case ContextSystem:
		return "system"
	case ContextUser:
		return fmt.Sprintf("user:%d", s.InstanceID)
	case ContextCourse:
		return fmt.Sprintf("course:%d", s.InstanceID)
	default:
		return fmt.Sprintf("context:%d:%d", s.Level, s.InstanceID)
	}
}

// RolePermission is one role's permission for a capability, as found at a
// given context level
type RolePermission struct {
	ContextLevel int
	Permission   int
}
