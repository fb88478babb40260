package repositories

import (
	"context"
	"fmt"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CapabilityRepository reads role assignments and role definitions
type CapabilityRepository struct {
	pool *pgxpool.Pool
}

func NewCapabilityRepository(db *database.DB) *CapabilityRepository {
	return &CapabilityRepository{pool: db.Pool}
}

// RolePermissions returns the permission every role the user holds at system
// level or at the given scope defines for capability
func (r *CapabilityRepository) RolePermissions(ctx context.Context, userID int64, capability string, scope models.Scope) ([]models.RolePermission, error) {
	query := `
		SELECT ra.context_level, rc.permission
		FROM role_assignments ra
		JOIN role_capabilities rc ON rc.role_id = ra.role_id
		WHERE ra.user_id = $1
		  AND rc.capability = $2
		  AND ((ra.context_level = $3 AND ra.instance_id = 0)
		    OR (ra.context_level = $4 AND ra.instance_id = $5))
	`

	rows, err := r.pool.Query(ctx, query, userID, capability, models.ContextSystem, scope.Level, scope.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]models.RolePermission, 0)
	for rows.Next() {
		var p models.RolePermission
		if err := rows.Scan(&p.ContextLevel, &p.Permission); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		perms = append(perms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role permission rows: %w", err)
	}

	return perms, nil
}

// AssignableRoles returns the role ids the user may assign in a course,
// through role_allow_assign from roles held at system or course level
func (r *CapabilityRepository) AssignableRoles(ctx context.Context, q database.Querier, userID, courseID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT raa.allow_assign
		FROM role_assignments ra
		JOIN role_allow_assign raa ON raa.role_id = ra.role_id
		WHERE ra.user_id = $1
		  AND ((ra.context_level = $2 AND ra.instance_id = 0)
		    OR (ra.context_level = $3 AND ra.instance_id = $4))
		ORDER BY raa.allow_assign
	`

	rows, err := q.Query(ctx, query, userID, models.ContextSystem, models.ContextCourse, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignable roles: %w", err)
	}

	return scanIDRows(rows)
}

// RoleExists reports whether a role id is defined
func (r *CapabilityRepository) RoleExists(ctx context.Context, q database.Querier, roleID int64) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return exists, nil
}

// HasCourseRole reports whether the user holds, in any course, a role whose
// shortname is one of shortnames
func (r *CapabilityRepository) HasCourseRole(ctx context.Context, userID int64, shortnames []string) (bool, error) {
	if len(shortnames) == 0 {
		return false, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM role_assignments ra
			JOIN roles ro ON ro.id = ra.role_id
			WHERE ra.user_id = $1 AND ra.context_level = $2 AND ro.shortname = ANY($3)
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, models.ContextCourse, shortnames).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check course roles: %w", err)
	}
	return exists, nil
}
