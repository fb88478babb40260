package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrolmentRepository reads courses and enrolment instances and removes
// manual enrolments
type EnrolmentRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewEnrolmentRepository(db *database.DB) *EnrolmentRepository {
	return &EnrolmentRepository{pool: db.Pool, now: time.Now}
}

// ActiveCoursesFor returns the courses a user is actively enrolled in,
// ordered by course sort order then id
func (r *EnrolmentRepository) ActiveCoursesFor(ctx context.Context, userID int64) ([]models.Course, error) {
	now := r.now().Unix()

	query, args, err := dialect.From(goqu.T("courses").As("c")).
		Select(
			goqu.I("c.id"), goqu.I("c.shortname"), goqu.I("c.fullname"), goqu.I("c.sortorder"),
		).
		Distinct().
		Join(goqu.T("enrol").As("e"), goqu.On(goqu.I("e.course_id").Eq(goqu.I("c.id")))).
		Join(goqu.T("user_enrolments").As("ue"), goqu.On(goqu.I("ue.enrol_id").Eq(goqu.I("e.id")))).
		Where(
			goqu.I("ue.user_id").Eq(userID),
			goqu.I("e.status").Eq(models.EnrolStatusEnabled),
			goqu.I("ue.status").Eq(models.EnrolStatusEnabled),
			goqu.I("ue.timestart").Lte(now),
			goqu.Or(
				goqu.I("ue.timeend").Eq(0),
				goqu.I("ue.timeend").Gt(now),
			),
		).
		Order(goqu.I("c.sortorder").Asc(), goqu.I("c.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build course query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.ShortName, &c.FullName, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course rows: %w", err)
	}

	return courses, nil
}

// CourseExists reports whether the course id is known
func (r *EnrolmentRepository) CourseExists(ctx context.Context, q database.Querier, courseID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check course: %w", err)
	}
	return exists, nil
}

// ManualInstance returns the first enabled manual enrol instance of a course,
// or models.ErrNotFound when the course has none
func (r *EnrolmentRepository) ManualInstance(ctx context.Context, q database.Querier, courseID int64) (*models.EnrolInstance, error) {
	query := `
		SELECT id, course_id, enrol, status, allow_enrol, sortorder
		FROM enrol
		WHERE course_id = $1 AND enrol = $2 AND status = $3
		ORDER BY sortorder, id
		LIMIT 1
	`

	var inst models.EnrolInstance
	err := q.QueryRow(ctx, query, courseID, models.EnrolMethodManual, models.EnrolStatusEnabled).Scan(
		&inst.ID, &inst.CourseID, &inst.Method, &inst.Status, &inst.AllowEnrol, &inst.SortOrder,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query manual instance: %w", err)
	}

	return &inst, nil
}

// RemoveEnrolment deletes the user's role assignment in the instance's course
// and the user's enrolment on the instance. Both are no-ops when absent.
func (r *EnrolmentRepository) RemoveEnrolment(ctx context.Context, q database.Querier, inst *models.EnrolInstance, userID, roleID int64) (*models.UnenrolResult, error) {
	raTag, err := q.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE user_id = $1 AND role_id = $2 AND context_level = $3 AND instance_id = $4`,
		userID, roleID, models.ContextCourse, inst.CourseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove role assignment: %w", database.MapPostgresError(err))
	}

	var userEnrolmentID int64
	err = q.QueryRow(ctx,
		`DELETE FROM user_enrolments WHERE enrol_id = $1 AND user_id = $2 RETURNING id`,
		inst.ID, userID,
	).Scan(&userEnrolmentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to remove user enrolment: %w", database.MapPostgresError(err))
	}

	return &models.UnenrolResult{
		RoleAssignmentsRemoved: raTag.RowsAffected(),
		UserEnrolmentID:        userEnrolmentID,
	}, nil
}
