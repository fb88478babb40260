package services

import (
	"context"
	"testing"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unenrolFixture struct {
	tx         *MockTransactor
	enrolments *MockEnrolmentStore
	events     *MockEventWriter
	access     *MockAuthorizer
	svc        *UnenrolService
}

func newUnenrolFixture(manualEnabled bool) *unenrolFixture {
	f := &unenrolFixture{
		tx:         &MockTransactor{},
		enrolments: &MockEnrolmentStore{},
		events:     &MockEventWriter{},
		access:     &MockAuthorizer{HasFunc: allowAll},
	}
	f.svc = NewUnenrolService(f.tx, f.enrolments, f.events, f.access, manualEnabled, discardLogger(), discardAuditLogger())
	return f
}

func batch() []models.Unenrolment {
	return []models.Unenrolment{
		{RoleID: 5, UserID: 10, CourseID: 1},
		{RoleID: 5, UserID: 11, CourseID: 2},
		{RoleID: 5, UserID: 12, CourseID: 3},
	}
}

func TestUnenrolService_Unenrol_Success(t *testing.T) {
	f := newUnenrolFixture(true)

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch())

	require.NoError(t, err)
	assert.True(t, f.tx.Committed)
	assert.Len(t, f.enrolments.Removed, 3)
	require.Len(t, f.events.Events, 6)
	assert.Equal(t, models.EventRoleUnassigned, f.events.Events[0].EventName)
	assert.Equal(t, models.EventUserEnrolmentDeleted, f.events.Events[1].EventName)
	assert.Equal(t, int64(10), f.events.Events[1].RelatedUserID)
	assert.Equal(t, int64(1010), f.events.Events[1].ObjectID)
}

func TestUnenrolService_Unenrol_ManualPluginDisabled(t *testing.T) {
	f := newUnenrolFixture(false)

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch())

	assert.ErrorIs(t, err, models.ErrNotConfigured)
	var svcErr *models.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "manualpluginnotinstalled", svcErr.Code)
	assert.False(t, f.tx.Committed)
	assert.Empty(t, f.enrolments.Removed)
}

func TestUnenrolService_Unenrol_MissingInstanceRollsBackBatch(t *testing.T) {
	f := newUnenrolFixture(true)
	f.enrolments.ManualInstanceFunc = func(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error) {
		if courseID == 2 {
			return nil, models.ErrNotFound
		}
		return &models.EnrolInstance{ID: courseID, CourseID: courseID, Method: models.EnrolMethodManual, AllowEnrol: true}, nil
	}

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch())

	assert.ErrorIs(t, err, models.ErrNotConfigured)
	var svcErr *models.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "wsnoinstance", svcErr.Code)
	assert.True(t, f.tx.RolledBack)
	assert.False(t, f.tx.Committed)
	// item 3 is never attempted
	assert.Equal(t, []models.Unenrolment{{RoleID: 5, UserID: 10, CourseID: 1}}, f.enrolments.Removed)
}

func TestUnenrolService_Unenrol_UnknownCourse(t *testing.T) {
	f := newUnenrolFixture(true)
	f.enrolments.CourseExistsFunc = func(ctx context.Context, q database.Querier, courseID int64) (bool, error) {
		return courseID != 1, nil
	}

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch())

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.True(t, f.tx.RolledBack)
}

func TestUnenrolService_Unenrol_MissingCapability(t *testing.T) {
	f := newUnenrolFixture(true)
	f.access.HasFunc = grants(models.CapEnrolManualUnenrol, models.CourseScope(1))

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 7}, batch())

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Len(t, f.enrolments.Removed, 1)
	assert.True(t, f.tx.RolledBack)
}

func TestUnenrolService_Unenrol_RoleNotAssignable(t *testing.T) {
	f := newUnenrolFixture(true)
	f.access.CanAssignRoleFunc = func(ctx context.Context, q database.Querier, caller models.Caller, roleID, courseID int64) (bool, error) {
		return false, nil
	}

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 7}, batch())

	assert.ErrorIs(t, err, models.ErrForbidden)
	var svcErr *models.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "wsusercannotassign", svcErr.Code)
	assert.Empty(t, f.enrolments.Removed)
}

func TestUnenrolService_Unenrol_InstanceRejects(t *testing.T) {
	f := newUnenrolFixture(true)
	f.enrolments.ManualInstanceFunc = func(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error) {
		return &models.EnrolInstance{ID: 4, CourseID: courseID, Method: models.EnrolMethodManual, AllowEnrol: false}, nil
	}

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch())

	assert.ErrorIs(t, err, models.ErrRejected)
	var svcErr *models.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "wscannotenrol", svcErr.Code)
}

func TestUnenrolService_Unenrol_NotEnrolledIsNoop(t *testing.T) {
	f := newUnenrolFixture(true)
	f.enrolments.RemoveEnrolmentFunc = func(ctx context.Context, q database.Querier, inst *models.EnrolInstance, userID, roleID int64) (*models.UnenrolResult, error) {
		return &models.UnenrolResult{}, nil
	}

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, batch()[:1])

	require.NoError(t, err)
	assert.True(t, f.tx.Committed)
	assert.Empty(t, f.events.Events)
}

func TestUnenrolService_Unenrol_EmptyBatch(t *testing.T) {
	f := newUnenrolFixture(true)

	err := f.svc.Unenrol(context.Background(), models.Caller{ID: 1}, nil)

	require.NoError(t, err)
	assert.True(t, f.tx.Committed)
}
