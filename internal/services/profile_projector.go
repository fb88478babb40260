package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/digitalis/digitalis/internal/config"
	"github.com/digitalis/digitalis/internal/models"
)

// ProfileStore is the subset of repositories.UserRepository used by ProfileProjector.
type ProfileStore interface {
	CustomFields(ctx context.Context, userID int64) ([]models.CustomField, error)
	Preferences(ctx context.Context, userID int64) ([]models.Preference, error)
}

// CourseLister is the subset of repositories.EnrolmentRepository used for course membership.
type CourseLister interface {
	ActiveCoursesFor(ctx context.Context, userID int64) ([]models.Course, error)
}

// ProfileProjector builds the response record of a user for a scope
type ProfileProjector struct {
	store   ProfileStore
	courses CourseLister
	access  Authorizer
	site    *config.SiteConfig
	logger  *slog.Logger
}

// NewProfileProjector creates a new ProfileProjector
func NewProfileProjector(store ProfileStore, courses CourseLister, access Authorizer, site *config.SiteConfig, logger *slog.Logger) *ProfileProjector {
	return &ProfileProjector{
		store:   store,
		courses: courses,
		access:  access,
		site:    site,
		logger:  logger,
	}
}

// Project returns the fields of user visible to caller in scope.
// Scope is either the system scope or a course scope.
func (p *ProfileProjector) Project(ctx context.Context, caller models.Caller, user *models.User, scope models.Scope) (*models.UserProfile, error) {
	profile := &models.UserProfile{
		ID:                   user.ID,
		FirstName:            user.FirstName,
		LastName:             user.LastName,
		FullName:             user.FullName(),
		Department:           user.Department,
		Institution:          user.Institution,
		Interests:            user.Interests,
		ProfileImageURL:      p.imageURL(user.ID, "f1"),
		ProfileImageURLSmall: p.imageURL(user.ID, "f2"),
	}

	var err error
	if scope.IsSystem() {
		err = p.projectSystem(ctx, caller, user, profile)
	} else {
		err = p.projectCourse(ctx, caller, user, scope, profile)
	}
	if err != nil {
		return nil, err
	}

	fields, err := p.store.CustomFields(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom fields: %w", err)
	}
	if len(fields) > 0 {
		profile.CustomFields = fields
	}

	return profile, nil
}

func (p *ProfileProjector) projectSystem(ctx context.Context, caller models.Caller, user *models.User, profile *models.UserProfile) error {
	seeHidden := caller.Is(user.ID)
	if !seeHidden {
		ok, err := p.access.Has(ctx, caller, models.CapUserViewHiddenDetails, models.UserScope(user.ID))
		if err != nil {
			return err
		}
		seeHidden = ok
	}

	show := func(field string) bool {
		return seeHidden || !p.isHidden(field)
	}

	profile.Username = user.Username
	profile.Address = user.Address
	profile.Phone1 = user.Phone1
	profile.Phone2 = user.Phone2

	if show("icq") {
		profile.ICQ = user.ICQ
	}
	if show("skype") {
		profile.Skype = user.Skype
	}
	if show("yahoo") {
		profile.Yahoo = user.Yahoo
	}
	if show("aim") {
		profile.AIM = user.AIM
	}
	if show("msn") {
		profile.MSN = user.MSN
	}
	if show("firstaccess") && user.FirstAccess != 0 {
		profile.FirstAccess = ptr(user.FirstAccess)
	}
	if show("lastaccess") && user.LastAccess != 0 {
		profile.LastAccess = ptr(user.LastAccess)
	}
	p.projectCommon(user, profile, show)

	if seeHidden {
		profile.Email = user.Email
		return nil
	}

	visible, err := p.emailVisible(ctx, caller, user)
	if err != nil {
		return err
	}
	if visible {
		profile.Email = user.Email
	}
	return nil
}

func (p *ProfileProjector) projectCourse(ctx context.Context, caller models.Caller, user *models.User, scope models.Scope, profile *models.UserProfile) error {
	seeHidden, err := p.access.Has(ctx, caller, models.CapCourseViewHiddenUser, scope)
	if err != nil {
		return err
	}

	show := func(field string) bool {
		return seeHidden || !p.isHidden(field)
	}

	if show("lastaccess") && user.LastAccess != 0 {
		profile.LastAccess = ptr(user.LastAccess)
	}
	p.projectCommon(user, profile, show)

	if caller.Is(user.ID) || user.MailDisplay == models.MailDisplayEveryone || user.MailDisplay == models.MailDisplayCourseMembers {
		profile.Email = user.Email
	}
	return nil
}

// projectCommon sets the fields both scopes share and may hide
func (p *ProfileProjector) projectCommon(user *models.User, profile *models.UserProfile, show func(string) bool) {
	if show("description") && user.Description != "" {
		profile.Description = user.Description
		profile.DescriptionFormat = ptr(user.DescriptionFormat)
	}
	if show("city") {
		profile.City = user.City
	}
	if show("country") {
		profile.Country = user.Country
	}
	if show("url") {
		profile.URL = user.URL
	}
}

// emailVisible applies the target's maildisplay setting
func (p *ProfileProjector) emailVisible(ctx context.Context, caller models.Caller, user *models.User) (bool, error) {
	switch user.MailDisplay {
	case models.MailDisplayEveryone:
		return true, nil
	case models.MailDisplayCourseMembers:
		return p.shareCourse(ctx, caller.ID, user.ID)
	default:
		return false, nil
	}
}

func (p *ProfileProjector) shareCourse(ctx context.Context, callerID, userID int64) (bool, error) {
	mine, err := p.courses.ActiveCoursesFor(ctx, callerID)
	if err != nil {
		return false, fmt.Errorf("failed to load caller courses: %w", err)
	}
	if len(mine) == 0 {
		return false, nil
	}

	theirs, err := p.courses.ActiveCoursesFor(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user courses: %w", err)
	}

	for _, c := range theirs {
		if slices.ContainsFunc(mine, func(m models.Course) bool { return m.ID == c.ID }) {
			return true, nil
		}
	}
	return false, nil
}

// AttachExtended adds the account fields and preferences shown to the user
// themselves and to profile editors
func (p *ProfileProjector) AttachExtended(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	profile.Auth = user.Auth
	profile.Confirmed = ptr(boolInt(user.Confirmed))
	profile.IDNumber = user.IDNumber
	profile.Lang = user.Lang
	profile.Theme = user.Theme
	profile.Timezone = user.Timezone
	profile.MailFormat = ptr(user.MailFormat)

	prefs, err := p.store.Preferences(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if len(prefs) > 0 {
		profile.Preferences = prefs
	}
	return nil
}

func (p *ProfileProjector) isHidden(field string) bool {
	return slices.Contains(p.site.HiddenUserFields, field)
}

func (p *ProfileProjector) imageURL(userID int64, size string) string {
	return fmt.Sprintf("%s/user/pix.php/%d/%s.jpg", p.site.WWWRoot, userID, size)
}

func ptr[T any](v T) *T {
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
