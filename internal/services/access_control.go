package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/digitalis/digitalis/internal/config"
	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
)

// CapabilityRepository is the subset of repositories.CapabilityRepository used by AccessControl.
type CapabilityRepository interface {
	RolePermissions(ctx context.Context, userID int64, capability string, scope models.Scope) ([]models.RolePermission, error)
	AssignableRoles(ctx context.Context, q database.Querier, userID, courseID int64) ([]int64, error)
	RoleExists(ctx context.Context, q database.Querier, roleID int64) (bool, error)
	HasCourseRole(ctx context.Context, userID int64, shortnames []string) (bool, error)
}

// AccessControl answers capability questions for a caller
type AccessControl struct {
	repo   CapabilityRepository
	site   *config.SiteConfig
	logger *slog.Logger
}

// NewAccessControl creates a new AccessControl
func NewAccessControl(repo CapabilityRepository, site *config.SiteConfig, logger *slog.Logger) *AccessControl {
	return &AccessControl{
		repo:   repo,
		site:   site,
		logger: logger,
	}
}

// IsSiteAdmin reports whether the caller is listed in SITE_ADMINS
func (a *AccessControl) IsSiteAdmin(caller models.Caller) bool {
	return a.site.IsSiteAdmin(caller.ID)
}

// Has reports whether the caller holds capability in scope.
//
// Site admins always pass. Otherwise the caller's roles at system level and at
// the exact scope are considered: any prohibit denies, then the most specific
// level with an allow or prevent decides, allow winning within a level.
func (a *AccessControl) Has(ctx context.Context, caller models.Caller, capability string, scope models.Scope) (bool, error) {
	if !models.IsKnownCapability(capability) {
		return false, fmt.Errorf("unknown capability %q", capability)
	}

	if a.IsSiteAdmin(caller) {
		return true, nil
	}

	perms, err := a.repo.RolePermissions(ctx, caller.ID, capability, scope)
	if err != nil {
		return false, fmt.Errorf("failed to load role permissions: %w", err)
	}

	return resolvePermissions(perms, scope), nil
}

func resolvePermissions(perms []models.RolePermission, scope models.Scope) bool {
	var systemAllow, systemPrevent, scopeAllow, scopePrevent bool

	for _, p := range perms {
		atScope := !scope.IsSystem() && p.ContextLevel == scope.Level

		switch p.Permission {
		case models.PermissionProhibit:
			return false
		case models.PermissionAllow:
			if atScope {
				scopeAllow = true
			} else {
				systemAllow = true
			}
		case models.PermissionPrevent:
			if atScope {
				scopePrevent = true
			} else {
				systemPrevent = true
			}
		}
	}

	if scopeAllow || scopePrevent {
		return scopeAllow
	}
	if systemAllow || systemPrevent {
		return systemAllow
	}
	return false
}

// Require returns a Forbidden ServiceError when the caller lacks capability
func (a *AccessControl) Require(ctx context.Context, caller models.Caller, capability string, scope models.Scope) error {
	ok, err := a.Has(ctx, caller, capability, scope)
	if err != nil {
		return err
	}
	if !ok {
		a.logger.Debug("capability check failed",
			slog.Int64("caller_id", caller.ID),
			slog.String("capability", capability),
			slog.String("scope", scope.String()),
		)
		return models.NewServiceError(models.ErrForbidden, "nopermissions",
			fmt.Sprintf("missing capability %s in %s", capability, scope), map[string]any{"capability": capability})
	}
	return nil
}

// CanAssignRole reports whether the caller may assign roleID in the course
func (a *AccessControl) CanAssignRole(ctx context.Context, q database.Querier, caller models.Caller, roleID, courseID int64) (bool, error) {
	if a.IsSiteAdmin(caller) {
		return a.repo.RoleExists(ctx, q, roleID)
	}

	roles, err := a.repo.AssignableRoles(ctx, q, caller.ID, courseID)
	if err != nil {
		return false, fmt.Errorf("failed to load assignable roles: %w", err)
	}

	return slices.Contains(roles, roleID), nil
}

// IsCourseContact reports whether the user holds a course contact role in any course
func (a *AccessControl) IsCourseContact(ctx context.Context, userID int64) (bool, error) {
	return a.repo.HasCourseRole(ctx, userID, a.site.CourseContactRoles)
}
