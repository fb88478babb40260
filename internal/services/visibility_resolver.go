package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitalis/digitalis/internal/models"
)

// Projector builds profile records, implemented by ProfileProjector
type Projector interface {
	Project(ctx context.Context, caller models.Caller, user *models.User, scope models.Scope) (*models.UserProfile, error)
	AttachExtended(ctx context.Context, user *models.User, profile *models.UserProfile) error
}

// VisibilityAuthorizer is the access surface VisibilityResolver needs
type VisibilityAuthorizer interface {
	Authorizer
	IsCourseContact(ctx context.Context, userID int64) (bool, error)
}

// VisibilityResolver decides which scope, if any, the caller may see a user in
type VisibilityResolver struct {
	courses   CourseLister
	access    VisibilityAuthorizer
	projector Projector
	logger    *slog.Logger
}

// NewVisibilityResolver creates a new VisibilityResolver
func NewVisibilityResolver(courses CourseLister, access VisibilityAuthorizer, projector Projector, logger *slog.Logger) *VisibilityResolver {
	return &VisibilityResolver{
		courses:   courses,
		access:    access,
		projector: projector,
		logger:    logger,
	}
}

// Decide returns the scope granting the caller visibility of user.
// System visibility wins outright; among courses the last satisfying one wins.
func (r *VisibilityResolver) Decide(ctx context.Context, caller models.Caller, user *models.User) (models.VisibilityDecision, error) {
	courses, err := r.courses.ActiveCoursesFor(ctx, user.ID)
	if err != nil {
		return models.DeniedVisibility(), fmt.Errorf("failed to load active courses: %w", err)
	}

	userScope := models.UserScope(user.ID)

	viewInUserContext, err := r.access.Has(ctx, caller, models.CapUserViewDetails, userScope)
	if err != nil {
		return models.DeniedVisibility(), err
	}

	if viewInUserContext || caller.Is(user.ID) {
		return models.VisibilityDecision{Allowed: true, Scope: models.SystemScope()}, nil
	}

	contact, err := r.access.IsCourseContact(ctx, user.ID)
	if err != nil {
		return models.DeniedVisibility(), fmt.Errorf("failed to check course contact: %w", err)
	}
	if contact {
		return models.VisibilityDecision{Allowed: true, Scope: models.SystemScope()}, nil
	}

	decision := models.DeniedVisibility()
	for _, course := range courses {
		scope := models.CourseScope(course.ID)

		ok, err := r.access.Has(ctx, caller, models.CapUserViewDetails, scope)
		if err != nil {
			return models.DeniedVisibility(), err
		}

		// every course is evaluated, a later match replaces an earlier one
		if ok {
			decision = models.VisibilityDecision{Allowed: true, Scope: scope}
		}
	}

	return decision, nil
}

// Resolve returns the profile of user as the caller may see it, or nil when
// the caller may not see the user at all
func (r *VisibilityResolver) Resolve(ctx context.Context, caller models.Caller, user *models.User) (*models.UserProfile, error) {
	decision, err := r.Decide(ctx, caller, user)
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		r.logger.Debug("user omitted from lookup",
			slog.Int64("caller_id", caller.ID),
			slog.Int64("user_id", user.ID),
		)
		return nil, nil
	}

	profile, err := r.projector.Project(ctx, caller, user, decision.Scope)
	if err != nil {
		return nil, err
	}

	extended := caller.Is(user.ID)
	if !extended {
		extended, err = r.access.Has(ctx, caller, models.CapUserUpdate, models.SystemScope())
		if err != nil {
			return nil, err
		}
	}

	if extended {
		if err := r.projector.AttachExtended(ctx, user, profile); err != nil {
			return nil, err
		}
	}

	return profile, nil
}
