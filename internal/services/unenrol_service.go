package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/metrics"
	"github.com/digitalis/digitalis/internal/models"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// Transactor runs fn inside one database transaction, implemented by database.DB
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// EnrolmentStore is the subset of repositories.EnrolmentRepository used by UnenrolService.
type EnrolmentStore interface {
	CourseExists(ctx context.Context, q database.Querier, courseID int64) (bool, error)
	ManualInstance(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error)
	RemoveEnrolment(ctx context.Context, q database.Querier, inst *models.EnrolInstance, userID, roleID int64) (*models.UnenrolResult, error)
}

// EventWriter is the subset of repositories.EventLogRepository used by UnenrolService.
type EventWriter interface {
	Create(ctx context.Context, q database.Querier, event *models.LogEvent) (*models.LogEvent, error)
}

// EnrolAuthorizer is the access surface UnenrolService needs
type EnrolAuthorizer interface {
	Require(ctx context.Context, caller models.Caller, capability string, scope models.Scope) error
	CanAssignRole(ctx context.Context, q database.Querier, caller models.Caller, roleID, courseID int64) (bool, error)
}

// UnenrolService implements local_digitalis_unenrol_users
type UnenrolService struct {
	tx            Transactor
	enrolments    EnrolmentStore
	events        EventWriter
	access        EnrolAuthorizer
	manualEnabled bool
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewUnenrolService creates a new UnenrolService
func NewUnenrolService(tx Transactor, enrolments EnrolmentStore, events EventWriter, access EnrolAuthorizer, manualEnabled bool, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UnenrolService {
	return &UnenrolService{
		tx:            tx,
		enrolments:    enrolments,
		events:        events,
		access:        access,
		manualEnabled: manualEnabled,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// Unenrol removes every requested role/enrolment pair in one transaction.
// The first failing item aborts the batch and nothing is kept.
func (s *UnenrolService) Unenrol(ctx context.Context, caller models.Caller, items []models.Unenrolment) error {
	if !s.manualEnabled {
		err := models.NewServiceError(models.ErrNotConfigured, "manualpluginnotinstalled",
			"the manual enrolment plugin is disabled", nil)
		s.auditLogger.LogUnenrolment(ctx, caller.ID, len(items), err)
		return err
	}

	var removed int
	err := s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		removed = 0
		for i, item := range items {
			if err := s.unenrolOne(ctx, tx, caller, item); err != nil {
				s.logger.Warn("unenrol item failed",
					slog.Int("index", i),
					slog.Int64("course_id", item.CourseID),
					slog.Int64("user_id", item.UserID),
					slog.Int64("role_id", item.RoleID),
					slog.Any("error", err),
				)
				return err
			}
			removed++
		}
		return nil
	})

	s.auditLogger.LogUnenrolment(ctx, caller.ID, len(items), err)

	if err != nil {
		metrics.Unenrolments.WithLabelValues(outcomeOf(err)).Add(float64(len(items)))
		return err
	}

	metrics.Unenrolments.WithLabelValues(metrics.OutcomeSuccess).Add(float64(removed))
	s.logger.Info("unenrol batch committed",
		slog.Int64("caller_id", caller.ID),
		slog.Int("items", removed),
	)
	return nil
}

func (s *UnenrolService) unenrolOne(ctx context.Context, tx pgx.Tx, caller models.Caller, item models.Unenrolment) error {
	exists, err := s.enrolments.CourseExists(ctx, tx, item.CourseID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewServiceError(models.ErrNotFound, "invalidcontext",
			fmt.Sprintf("course %d does not exist", item.CourseID), map[string]any{"courseid": item.CourseID})
	}

	scope := models.CourseScope(item.CourseID)
	if err := s.access.Require(ctx, caller, models.CapEnrolManualUnenrol, scope); err != nil {
		return err
	}

	assignable, err := s.access.CanAssignRole(ctx, tx, caller, item.RoleID, item.CourseID)
	if err != nil {
		return err
	}
	if !assignable {
		return models.NewServiceError(models.ErrForbidden, "wsusercannotassign",
			fmt.Sprintf("role %d cannot be assigned in course %d", item.RoleID, item.CourseID),
			map[string]any{"roleid": item.RoleID, "courseid": item.CourseID})
	}

	inst, err := s.enrolments.ManualInstance(ctx, tx, item.CourseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewServiceError(models.ErrNotConfigured, "wsnoinstance",
				fmt.Sprintf("course %d has no enabled manual enrolment instance", item.CourseID),
				map[string]any{"courseid": item.CourseID})
		}
		return err
	}

	if !inst.AllowEnrol {
		return models.NewServiceError(models.ErrRejected, "wscannotenrol",
			fmt.Sprintf("manual enrolment instance %d does not accept changes", inst.ID),
			map[string]any{"instanceid": inst.ID})
	}

	result, err := s.enrolments.RemoveEnrolment(ctx, tx, inst, item.UserID, item.RoleID)
	if err != nil {
		return err
	}

	return s.writeEvents(ctx, tx, caller, item, inst, result)
}

// writeEvents records what the removal touched
func (s *UnenrolService) writeEvents(ctx context.Context, tx pgx.Tx, caller models.Caller, item models.Unenrolment, inst *models.EnrolInstance, result *models.UnenrolResult) error {
	if result.RoleAssignmentsRemoved > 0 {
		_, err := s.events.Create(ctx, tx, &models.LogEvent{
			EventName:     models.EventRoleUnassigned,
			Component:     "core",
			CRUD:          models.EventCRUDDelete,
			ContextLevel:  models.ContextCourse,
			ContextID:     item.CourseID,
			ObjectTable:   "role",
			ObjectID:      item.RoleID,
			UserID:        caller.ID,
			RelatedUserID: item.UserID,
			CourseID:      item.CourseID,
			Other:         models.EventOther{"component": "", "itemid": 0},
		})
		if err != nil {
			return err
		}
	}

	if result.UserEnrolmentID != 0 {
		_, err := s.events.Create(ctx, tx, &models.LogEvent{
			EventName:     models.EventUserEnrolmentDeleted,
			Component:     "core",
			CRUD:          models.EventCRUDDelete,
			ContextLevel:  models.ContextCourse,
			ContextID:     item.CourseID,
			ObjectTable:   "user_enrolments",
			ObjectID:      result.UserEnrolmentID,
			UserID:        caller.ID,
			RelatedUserID: item.UserID,
			CourseID:      item.CourseID,
			Other:         models.EventOther{"enrol": inst.Method, "enrolid": inst.ID},
		})
		if err != nil {
			return err
		}
	}

	if !result.Removed() {
		s.logger.Debug("user not enrolled, nothing removed",
			slog.Int64("course_id", item.CourseID),
			slog.Int64("user_id", item.UserID),
		)
	}
	return nil
}

func outcomeOf(err error) string {
	if errors.Is(err, models.ErrForbidden) {
		return metrics.OutcomeDenied
	}
	return metrics.OutcomeError
}
