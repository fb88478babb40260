//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalis/digitalis/internal/models"
)

func TestUserRepository_FindByExactField(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	ana := seedUser(t, "ana", "Ana", "Silva", "ana@example.com")
	bruno := seedUser(t, "bruno", "Bruno", "Costa", "bruno@example.com")
	_, err := testDB.Pool.Exec(ctx, `UPDATE users SET deleted = TRUE, auth = 'ldap' WHERE id = $1`, bruno)
	require.NoError(t, err)

	ids, err := repo.FindByExactField(ctx, "username", "ana")
	require.NoError(t, err)
	assert.Equal(t, []int64{ana}, ids)

	ids, err = repo.FindByExactField(ctx, "deleted", true)
	require.NoError(t, err)
	assert.Equal(t, []int64{bruno}, ids)

	ids, err = repo.FindByExactField(ctx, "auth", "manual")
	require.NoError(t, err)
	assert.Equal(t, []int64{ana}, ids)

	_, err = repo.FindByExactField(ctx, "password", "x")
	assert.Error(t, err)
}

func TestUserRepository_FindByFuzzyField(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	ana := seedUser(t, "ana", "Ana", "Silva", "ana@example.com")
	seedUser(t, "bruno", "Bruno", "Costa", "bruno@other.org")
	pct := seedUser(t, "pct", "Cem", "Porcento", "100%@example.com")

	ids, err := repo.FindByFuzzyField(ctx, "fullname", "a silva")
	require.NoError(t, err)
	assert.Equal(t, []int64{ana}, ids)

	ids, err = repo.FindByFuzzyField(ctx, "email", "EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{ana, pct}, ids)

	ids, err = repo.FindByFuzzyField(ctx, "email", "%")
	require.NoError(t, err)
	assert.Equal(t, []int64{pct}, ids, "wildcards are matched literally")
}

func TestUserRepository_GetByIDsAndListPage(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	first := seedUser(t, "u1", "A", "One", "")
	second := seedUser(t, "u2", "B", "Two", "")
	third := seedUser(t, "u3", "C", "Three", "")

	users, err := repo.GetByIDs(ctx, []int64{third, first, 999})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first, users[0].ID)
	assert.Equal(t, third, users[1].ID)

	page, err := repo.ListPage(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, second, page[0].ID)
	assert.Equal(t, third, page[1].ID)

	_, err = repo.ListPage(ctx, 0, 0)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserRepository_GetByID(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	id := seedUser(t, "ana", "Ana", "Silva", "ana@example.com")

	user, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, "Ana Silva", user.FullName())
	assert.Equal(t, models.MailDisplayCourseMembers, user.MailDisplay)
	assert.True(t, user.Confirmed)

	_, err = repo.GetByID(ctx, id+100)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_CustomFieldsAndPreferences(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	id := seedUser(t, "ana", "Ana", "Silva", "")
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO user_info_field (shortname, name, datatype, sortorder) VALUES
			('nif', 'Tax number', 'text', 2),
			('student', 'Student', 'checkbox', 1)`)
	require.NoError(t, err)
	_, err = testDB.Pool.Exec(ctx, `
		INSERT INTO user_info_data (user_id, field_id, data)
		SELECT $1::bigint, id, CASE shortname WHEN 'nif' THEN '123' ELSE '1' END FROM user_info_field`, id)
	require.NoError(t, err)
	_, err = testDB.Pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, name, value) VALUES
			($1, 'htmleditor', 'atto'), ($1, 'auth_forcepasswordchange', '0')`, id)
	require.NoError(t, err)

	fields, err := repo.CustomFields(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.CustomField{
		{Type: "checkbox", Value: "1", Name: "Student", ShortName: "student"},
		{Type: "text", Value: "123", Name: "Tax number", ShortName: "nif"},
	}, fields)

	prefs, err := repo.Preferences(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.Preference{
		{Name: "auth_forcepasswordchange", Value: "0"},
		{Name: "htmleditor", Value: "atto"},
	}, prefs)
}
