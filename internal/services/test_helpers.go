package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// discardLogger returns a logger that drops everything
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// MockCapabilityRepository implements CapabilityRepository for testing
type MockCapabilityRepository struct {
	RolePermissionsFunc func(ctx context.Context, userID int64, capability string, scope models.Scope) ([]models.RolePermission, error)
	AssignableRolesFunc func(ctx context.Context, q database.Querier, userID, courseID int64) ([]int64, error)
	RoleExistsFunc      func(ctx context.Context, q database.Querier, roleID int64) (bool, error)
	HasCourseRoleFunc   func(ctx context.Context, userID int64, shortnames []string) (bool, error)
}

func (m *MockCapabilityRepository) RolePermissions(ctx context.Context, userID int64, capability string, scope models.Scope) ([]models.RolePermission, error) {
	if m.RolePermissionsFunc != nil {
		return m.RolePermissionsFunc(ctx, userID, capability, scope)
	}
	return []models.RolePermission{}, nil
}

func (m *MockCapabilityRepository) AssignableRoles(ctx context.Context, q database.Querier, userID, courseID int64) ([]int64, error) {
	if m.AssignableRolesFunc != nil {
		return m.AssignableRolesFunc(ctx, q, userID, courseID)
	}
	return []int64{}, nil
}

func (m *MockCapabilityRepository) RoleExists(ctx context.Context, q database.Querier, roleID int64) (bool, error) {
	if m.RoleExistsFunc != nil {
		return m.RoleExistsFunc(ctx, q, roleID)
	}
	return false, nil
}

func (m *MockCapabilityRepository) HasCourseRole(ctx context.Context, userID int64, shortnames []string) (bool, error) {
	if m.HasCourseRoleFunc != nil {
		return m.HasCourseRoleFunc(ctx, userID, shortnames)
	}
	return false, nil
}

// MockAuthorizer implements Authorizer, VisibilityAuthorizer and EnrolAuthorizer for testing
type MockAuthorizer struct {
	Admins              map[int64]bool
	HasFunc             func(ctx context.Context, caller models.Caller, capability string, scope models.Scope) (bool, error)
	IsCourseContactFunc func(ctx context.Context, userID int64) (bool, error)
	CanAssignRoleFunc   func(ctx context.Context, q database.Querier, caller models.Caller, roleID, courseID int64) (bool, error)

	// HasCalls records every capability check
	HasCalls []CapabilityCall
}

// CapabilityCall is one recorded MockAuthorizer.Has call
type CapabilityCall struct {
	Capability string
	Scope      models.Scope
}

func (m *MockAuthorizer) IsSiteAdmin(caller models.Caller) bool {
	return m.Admins[caller.ID]
}

func (m *MockAuthorizer) Has(ctx context.Context, caller models.Caller, capability string, scope models.Scope) (bool, error) {
	m.HasCalls = append(m.HasCalls, CapabilityCall{Capability: capability, Scope: scope})
	if m.HasFunc != nil {
		return m.HasFunc(ctx, caller, capability, scope)
	}
	return false, nil
}

func (m *MockAuthorizer) Require(ctx context.Context, caller models.Caller, capability string, scope models.Scope) error {
	ok, err := m.Has(ctx, caller, capability, scope)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewServiceError(models.ErrForbidden, "nopermissions", capability, nil)
	}
	return nil
}

func (m *MockAuthorizer) IsCourseContact(ctx context.Context, userID int64) (bool, error) {
	if m.IsCourseContactFunc != nil {
		return m.IsCourseContactFunc(ctx, userID)
	}
	return false, nil
}

func (m *MockAuthorizer) CanAssignRole(ctx context.Context, q database.Querier, caller models.Caller, roleID, courseID int64) (bool, error) {
	if m.CanAssignRoleFunc != nil {
		return m.CanAssignRoleFunc(ctx, q, caller, roleID, courseID)
	}
	return true, nil
}

// allowAll grants every capability everywhere
func allowAll(context.Context, models.Caller, string, models.Scope) (bool, error) {
	return true, nil
}

// MockUserRepository implements UserFinder, UserLoader and ProfileStore for testing
type MockUserRepository struct {
	FindByExactFieldFunc func(ctx context.Context, field string, value any) ([]int64, error)
	FindByFuzzyFieldFunc func(ctx context.Context, field, value string) ([]int64, error)
	GetByIDsFunc         func(ctx context.Context, ids []int64) ([]*models.User, error)
	ListPageFunc         func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CustomFieldsFunc     func(ctx context.Context, userID int64) ([]models.CustomField, error)
	PreferencesFunc      func(ctx context.Context, userID int64) ([]models.Preference, error)

	// Queries records the field of every Find call
	Queries []string
}

func (m *MockUserRepository) FindByExactField(ctx context.Context, field string, value any) ([]int64, error) {
	m.Queries = append(m.Queries, field)
	if m.FindByExactFieldFunc != nil {
		return m.FindByExactFieldFunc(ctx, field, value)
	}
	return []int64{}, nil
}

func (m *MockUserRepository) FindByFuzzyField(ctx context.Context, field, value string) ([]int64, error) {
	m.Queries = append(m.Queries, field)
	if m.FindByFuzzyFieldFunc != nil {
		return m.FindByFuzzyFieldFunc(ctx, field, value)
	}
	return []int64{}, nil
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) ListPage(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListPageFunc != nil {
		return m.ListPageFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) CustomFields(ctx context.Context, userID int64) ([]models.CustomField, error) {
	if m.CustomFieldsFunc != nil {
		return m.CustomFieldsFunc(ctx, userID)
	}
	return []models.CustomField{}, nil
}

func (m *MockUserRepository) Preferences(ctx context.Context, userID int64) ([]models.Preference, error) {
	if m.PreferencesFunc != nil {
		return m.PreferencesFunc(ctx, userID)
	}
	return []models.Preference{}, nil
}

// MockCourseLister implements CourseLister for testing
type MockCourseLister struct {
	ActiveCoursesForFunc func(ctx context.Context, userID int64) ([]models.Course, error)
}

func (m *MockCourseLister) ActiveCoursesFor(ctx context.Context, userID int64) ([]models.Course, error) {
	if m.ActiveCoursesForFunc != nil {
		return m.ActiveCoursesForFunc(ctx, userID)
	}
	return []models.Course{}, nil
}

// MockTransactor implements Transactor for testing. It calls fn with a nil
// transaction and records whether the work was committed.
type MockTransactor struct {
	Committed  bool
	RolledBack bool
}

func (m *MockTransactor) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if err := fn(nil); err != nil {
		m.RolledBack = true
		return err
	}
	m.Committed = true
	return nil
}

// MockEnrolmentStore implements EnrolmentStore for testing
type MockEnrolmentStore struct {
	CourseExistsFunc    func(ctx context.Context, q database.Querier, courseID int64) (bool, error)
	ManualInstanceFunc  func(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error)
	RemoveEnrolmentFunc func(ctx context.Context, q database.Querier, inst *models.EnrolInstance, userID, roleID int64) (*models.UnenrolResult, error)

	// Removed records every removal in call order
	Removed []models.Unenrolment
}

func (m *MockEnrolmentStore) CourseExists(ctx context.Context, q database.Querier, courseID int64) (bool, error) {
	if m.CourseExistsFunc != nil {
		return m.CourseExistsFunc(ctx, q, courseID)
	}
	return true, nil
}

func (m *MockEnrolmentStore) ManualInstance(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error) {
	if m.ManualInstanceFunc != nil {
		return m.ManualInstanceFunc(ctx, q, courseID)
	}
	return &models.EnrolInstance{
		ID:         courseID * 10,
		CourseID:   courseID,
		Method:     models.EnrolMethodManual,
		Status:     models.EnrolStatusEnabled,
		AllowEnrol: true,
	}, nil
}

func (m *MockEnrolmentStore) RemoveEnrolment(ctx context.Context, q database.Querier, inst *models.EnrolInstance, userID, roleID int64) (*models.UnenrolResult, error) {
	m.Removed = append(m.Removed, models.Unenrolment{RoleID: roleID, UserID: userID, CourseID: inst.CourseID})
	if m.RemoveEnrolmentFunc != nil {
		return m.RemoveEnrolmentFunc(ctx, q, inst, userID, roleID)
	}
	return &models.UnenrolResult{RoleAssignmentsRemoved: 1, UserEnrolmentID: userID + 1000}, nil
}

// MockEventWriter implements EventWriter for testing
type MockEventWriter struct {
	CreateFunc func(ctx context.Context, q database.Querier, event *models.LogEvent) (*models.LogEvent, error)

	Events []*models.LogEvent
}

func (m *MockEventWriter) Create(ctx context.Context, q database.Querier, event *models.LogEvent) (*models.LogEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, q, event)
	}
	m.Events = append(m.Events, event)
	return event, nil
}

// MockProjector implements Projector for testing
type MockProjector struct {
	ProjectFunc        func(ctx context.Context, caller models.Caller, user *models.User, scope models.Scope) (*models.UserProfile, error)
	AttachExtendedFunc func(ctx context.Context, user *models.User, profile *models.UserProfile) error

	// Scopes records the scope of every projection
	Scopes []models.Scope
}

func (m *MockProjector) Project(ctx context.Context, caller models.Caller, user *models.User, scope models.Scope) (*models.UserProfile, error) {
	m.Scopes = append(m.Scopes, scope)
	if m.ProjectFunc != nil {
		return m.ProjectFunc(ctx, caller, user, scope)
	}
	return &models.UserProfile{ID: user.ID, FullName: user.FullName()}, nil
}

func (m *MockProjector) AttachExtended(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	if m.AttachExtendedFunc != nil {
		return m.AttachExtendedFunc(ctx, user, profile)
	}
	profile.Auth = user.Auth
	mailFormat := user.MailFormat
	profile.MailFormat = &mailFormat
	return nil
}
