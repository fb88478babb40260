package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/digitalis/digitalis/internal/models"
	"github.com/digitalis/digitalis/pkg/logger"
)

// UserFinder is the subset of repositories.UserRepository used by CriteriaFilter.
type UserFinder interface {
	FindByExactField(ctx context.Context, field string, value any) ([]int64, error)
	FindByFuzzyField(ctx context.Context, field, value string) ([]int64, error)
}

// Authorizer answers the capability questions of the lookup path
type Authorizer interface {
	IsSiteAdmin(caller models.Caller) bool
	Has(ctx context.Context, caller models.Caller, capability string, scope models.Scope) (bool, error)
}

var (
	authPluginPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// predicate is a validated criterion ready to run against the user store
type predicate struct {
	key    models.CriteriaKey
	field  string
	value  any
	fuzzy  bool
	none   bool // matches nothing, no query is issued
	logged string
}

// CriteriaFilter turns a CriteriaSet into the candidate user ids
type CriteriaFilter struct {
	users  UserFinder
	access Authorizer
	logger *slog.Logger
}

// NewCriteriaFilter creates a new CriteriaFilter
func NewCriteriaFilter(users UserFinder, access Authorizer, logger *slog.Logger) *CriteriaFilter {
	return &CriteriaFilter{
		users:  users,
		access: access,
		logger: logger,
	}
}

// Filter validates every criterion in order, then evaluates the set.
// Diverse criteria are intersected, repeated criteria are unioned.
func (f *CriteriaFilter) Filter(ctx context.Context, caller models.Caller, set models.CriteriaSet) (*models.CandidateSet, error) {
	if set == nil {
		return models.NewCandidateSet(), nil
	}

	criteria := set.Criteria()
	preds := make([]predicate, 0, len(criteria))
	for _, c := range criteria {
		p, err := f.compile(ctx, caller, c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	switch set.(type) {
	case models.DiverseCriteria:
		return f.intersect(ctx, preds)
	default:
		return f.union(ctx, preds)
	}
}

func (f *CriteriaFilter) intersect(ctx context.Context, preds []predicate) (*models.CandidateSet, error) {
	var result *models.CandidateSet

	for i, p := range preds {
		ids, err := f.run(ctx, p)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			result = models.NewCandidateSet(ids...)
		} else {
			result.Intersect(ids)
		}

		if result.Len() == 0 {
			f.logger.Debug("criteria intersection empty",
				slog.String("key", string(p.key)),
				slog.Int("evaluated", i+1),
				slog.Int("total", len(preds)),
			)
			break
		}
	}

	if result == nil {
		result = models.NewCandidateSet()
	}
	return result, nil
}

func (f *CriteriaFilter) union(ctx context.Context, preds []predicate) (*models.CandidateSet, error) {
	result := models.NewCandidateSet()

	for _, p := range preds {
		ids, err := f.run(ctx, p)
		if err != nil {
			return nil, err
		}
		result.Union(ids)
	}

	return result, nil
}

func (f *CriteriaFilter) run(ctx context.Context, p predicate) ([]int64, error) {
	if p.none {
		return []int64{}, nil
	}

	var (
		ids []int64
		err error
	)
	if p.fuzzy {
		ids, err = f.users.FindByFuzzyField(ctx, p.field, p.value.(string))
	} else {
		ids, err = f.users.FindByExactField(ctx, p.field, p.value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match %s criterion: %w", p.key, err)
	}

	f.logger.Debug("criterion matched",
		slog.String("key", string(p.key)),
		slog.String("value", p.logged),
		slog.Int("matches", len(ids)),
	)
	return ids, nil
}

// compile checks the caller may search by the criterion and normalises its value
func (f *CriteriaFilter) compile(ctx context.Context, caller models.Caller, c models.Criterion) (predicate, error) {
	p := predicate{key: c.Key, field: string(c.Key), logged: c.Value}

	switch c.Key {
	case models.CriteriaID:
		id, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
		if err != nil {
			return p, models.NewServiceError(models.ErrInvalidCriteria, "invalidparameter",
				"criteria id expects an integer value", map[string]any{"key": string(c.Key)})
		}
		p.value = id

	case models.CriteriaIDNumber:
		if err := f.requireSystem(ctx, caller, models.CapUserUpdate, c.Key); err != nil {
			return p, err
		}
		p.value = c.Value

	case models.CriteriaUsername:
		username := cleanUsername(c.Value)
		if !f.access.IsSiteAdmin(caller) && caller.Username != username {
			return p, models.MissingCapabilityError(string(c.Key))
		}
		p.value = username

	case models.CriteriaDeleted:
		if !f.access.IsSiteAdmin(caller) {
			return p, models.MissingCapabilityError(string(c.Key))
		}
		p.value = parseBool(c.Value)

	case models.CriteriaFullName:
		p.fuzzy = true
		p.value = stripTags(c.Value)

	case models.CriteriaEmail:
		p.fuzzy = true
		p.value = strings.TrimSpace(c.Value)
		p.logged = logger.SanitizedEmail(c.Value)

	case models.CriteriaAuth:
		if err := f.requireSystem(ctx, caller, models.CapUserUpdate, c.Key); err != nil {
			return p, err
		}
		plugin := strings.TrimSpace(c.Value)
		p.value = plugin
		p.none = !authPluginPattern.MatchString(plugin)

	default:
		return p, models.InvalidCriteriaError("invalidextparam", string(c.Key))
	}

	return p, nil
}

func (f *CriteriaFilter) requireSystem(ctx context.Context, caller models.Caller, capability string, key models.CriteriaKey) error {
	ok, err := f.access.Has(ctx, caller, capability, models.SystemScope())
	if err != nil {
		return err
	}
	if !ok {
		return models.MissingCapabilityError(string(key))
	}
	return nil
}

func cleanUsername(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func stripTags(value string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(value, ""))
}
