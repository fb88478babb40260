package services

import (
	"context"
	"testing"

	"github.com/digitalis/digitalis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFilter struct {
	ids    []int64
	err    error
	called bool
}

func (s *stubFilter) Filter(ctx context.Context, caller models.Caller, set models.CriteriaSet) (*models.CandidateSet, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return models.NewCandidateSet(s.ids...), nil
}

type stubResolver struct {
	hidden map[int64]bool
}

func (s *stubResolver) Resolve(ctx context.Context, caller models.Caller, user *models.User) (*models.UserProfile, error) {
	if s.hidden[user.ID] {
		return nil, nil
	}
	return &models.UserProfile{ID: user.ID}, nil
}

func usersFor(ids []int64) []*models.User {
	users := make([]*models.User, len(ids))
	for i, id := range ids {
		users[i] = &models.User{ID: id}
	}
	return users
}

func newTestLookup(users *MockUserRepository, filter CandidateFilter, resolver ProfileResolver) *UserLookupService {
	return NewUserLookupService(users, filter, resolver, 100, discardLogger(), discardAuditLogger())
}

func profileIDs(profiles []*models.UserProfile) []int64 {
	ids := make([]int64, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

func TestUserLookupService_GetUsers_PageIndexed(t *testing.T) {
	candidates := make([]int64, 75)
	for i := range candidates {
		candidates[i] = int64(i + 1)
	}

	tests := []struct {
		limitFrom int
		first     int64
		count     int
	}{
		{0, 1, 30},
		{1, 31, 30},
		{2, 61, 15},
		{3, 0, 0},
	}

	for _, tt := range tests {
		var requested []int64
		users := &MockUserRepository{
			GetByIDsFunc: func(ctx context.Context, ids []int64) ([]*models.User, error) {
				requested = ids
				return usersFor(ids), nil
			},
		}
		svc := newTestLookup(users, &stubFilter{ids: candidates}, &stubResolver{})

		profiles, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{
			Criteria:  []models.SearchCriterion{{Key: "email", Value: "example.com"}},
			LimitFrom: tt.limitFrom,
			LimitNum:  30,
		})

		require.NoError(t, err)
		assert.Len(t, profiles, tt.count, "limitfrom=%d", tt.limitFrom)
		if tt.count > 0 {
			assert.Equal(t, tt.first, profiles[0].ID)
			assert.Len(t, requested, tt.count)
		} else {
			assert.Nil(t, requested, "no profile query for an empty page")
		}
	}
}

// limitfrom stays a page index without criteria, unlike the legacy host
// function which used it as a raw row offset on this path.
func TestUserLookupService_GetUsers_UnfilteredUsesPageOffset(t *testing.T) {
	var gotLimit, gotOffset int
	users := &MockUserRepository{
		ListPageFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			gotLimit, gotOffset = limit, offset
			return usersFor([]int64{61, 62}), nil
		},
	}
	filter := &stubFilter{}
	svc := newTestLookup(users, filter, &stubResolver{})

	profiles, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{LimitFrom: 2, LimitNum: 30})

	require.NoError(t, err)
	assert.Equal(t, 30, gotLimit)
	assert.Equal(t, 60, gotOffset)
	assert.Equal(t, []int64{61, 62}, profileIDs(profiles))
	assert.False(t, filter.called)
}

func TestUserLookupService_GetUsers_EmptyCandidatesSkipsProfileQuery(t *testing.T) {
	users := &MockUserRepository{
		GetByIDsFunc: func(ctx context.Context, ids []int64) ([]*models.User, error) {
			t.Fatal("GetByIDs must not run for empty candidates")
			return nil, nil
		},
	}
	svc := newTestLookup(users, &stubFilter{}, &stubResolver{})

	profiles, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{
		Criteria: []models.SearchCriterion{{Key: "id", Value: "5"}},
		LimitNum: 30,
	})

	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestUserLookupService_GetUsers_OmitsInvisibleUsers(t *testing.T) {
	users := &MockUserRepository{
		GetByIDsFunc: func(ctx context.Context, ids []int64) ([]*models.User, error) {
			return usersFor(ids), nil
		},
	}
	svc := newTestLookup(users, &stubFilter{ids: []int64{1, 2, 3}}, &stubResolver{hidden: map[int64]bool{2: true}})

	profiles, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{
		Criteria: []models.SearchCriterion{{Key: "fullname", Value: "a"}},
		LimitNum: 30,
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, profileIDs(profiles))
}

func TestUserLookupService_GetUsers_InvalidLimits(t *testing.T) {
	svc := newTestLookup(&MockUserRepository{}, &stubFilter{}, &stubResolver{})

	for _, req := range []LookupRequest{
		{LimitNum: 0},
		{LimitNum: 101},
		{LimitNum: 10, LimitFrom: -1},
	} {
		_, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, req)
		assert.ErrorIs(t, err, models.ErrInvalidParameter)
	}
}

func TestUserLookupService_GetUsers_MixedCriteriaRejected(t *testing.T) {
	filter := &stubFilter{}
	svc := newTestLookup(&MockUserRepository{}, filter, &stubResolver{})

	_, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{
		Criteria: []models.SearchCriterion{
			{Key: "id", Value: "1"},
			{Key: "id", Value: "2"},
			{Key: "email", Value: "x"},
		},
		LimitNum: 30,
	})

	assert.ErrorIs(t, err, models.ErrInvalidCriteria)
	assert.False(t, filter.called)
}

func TestUserLookupService_GetUsers_FilterErrorIsTerminal(t *testing.T) {
	svc := newTestLookup(&MockUserRepository{}, &stubFilter{err: models.MissingCapabilityError("username")}, &stubResolver{})

	profiles, err := svc.GetUsers(context.Background(), models.Caller{ID: 1}, LookupRequest{
		Criteria: []models.SearchCriterion{{Key: "username", Value: "alice"}},
		LimitNum: 30,
	})

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Nil(t, profiles)
}
