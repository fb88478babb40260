package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitalis/digitalis/internal/metrics"
	"github.com/digitalis/digitalis/internal/models"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
)

// Lookup defaults
const (
	DefaultLimitFrom = 0
	DefaultLimitNum  = 30
)

// UserLoader is the subset of repositories.UserRepository used by UserLookupService.
type UserLoader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
	ListPage(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// CandidateFilter is implemented by CriteriaFilter
type CandidateFilter interface {
	Filter(ctx context.Context, caller models.Caller, set models.CriteriaSet) (*models.CandidateSet, error)
}

// ProfileResolver is implemented by VisibilityResolver
type ProfileResolver interface {
	Resolve(ctx context.Context, caller models.Caller, user *models.User) (*models.UserProfile, error)
}

// LookupRequest is the get_users input
type LookupRequest struct {
	Criteria  []models.SearchCriterion
	LimitFrom int
	LimitNum  int
}

// UserLookupService implements local_digitalis_get_users
type UserLookupService struct {
	users       UserLoader
	filter      CandidateFilter
	resolver    ProfileResolver
	maxPageSize int
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserLookupService creates a new UserLookupService
func NewUserLookupService(users UserLoader, filter CandidateFilter, resolver ProfileResolver, maxPageSize int, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserLookupService {
	return &UserLookupService{
		users:       users,
		filter:      filter,
		resolver:    resolver,
		maxPageSize: maxPageSize,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetUsers returns the visible profiles of the requested page, in ascending id order.
// Users the caller may not see are left out.
func (s *UserLookupService) GetUsers(ctx context.Context, caller models.Caller, req LookupRequest) ([]*models.UserProfile, error) {
	if req.LimitNum < 1 || req.LimitNum > s.maxPageSize {
		return nil, models.NewServiceError(models.ErrInvalidParameter, "invalidparameter",
			fmt.Sprintf("limitnum must be between 1 and %d", s.maxPageSize), map[string]any{"limitnum": req.LimitNum})
	}
	if req.LimitFrom < 0 {
		return nil, models.NewServiceError(models.ErrInvalidParameter, "invalidparameter",
			"limitfrom must not be negative", map[string]any{"limitfrom": req.LimitFrom})
	}

	set, err := models.ParseCriteria(req.Criteria)
	if err != nil {
		return nil, err
	}

	users, err := s.loadPage(ctx, caller, set, req.LimitFrom, req.LimitNum)
	if err != nil {
		return nil, err
	}

	profiles := make([]*models.UserProfile, 0, len(users))
	for _, user := range users {
		profile, err := s.resolver.Resolve(ctx, caller, user)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user %d: %w", user.ID, err)
		}
		if profile != nil {
			profiles = append(profiles, profile)
		}
	}

	s.auditLogger.LogLookup(ctx, caller.ID, criteriaKeys(set), len(profiles))
	return profiles, nil
}

func (s *UserLookupService) loadPage(ctx context.Context, caller models.Caller, set models.CriteriaSet, page, size int) ([]*models.User, error) {
	if set == nil {
		users, err := s.users.ListPage(ctx, size, page*size)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		return users, nil
	}

	candidates, err := s.filter.Filter(ctx, caller, set)
	if err != nil {
		return nil, err
	}
	metrics.LookupCandidates.Observe(float64(candidates.Len()))

	ids := candidates.Page(size, page)
	if len(ids) == 0 {
		s.logger.Debug("lookup page empty",
			slog.Int("candidates", candidates.Len()),
			slog.Int("limitfrom", page),
			slog.Int("limitnum", size),
		)
		return []*models.User{}, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func criteriaKeys(set models.CriteriaSet) []string {
	if set == nil {
		return nil
	}
	keys := make([]string, 0)
	for _, c := range set.Criteria() {
		keys = append(keys, string(c.Key))
	}
	return keys
}
