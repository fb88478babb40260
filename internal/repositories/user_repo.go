package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var dialect = goqu.Dialect("postgres")

// userColumns is the column order scanUserRow expects
var userColumns = []any{
	"id", "auth", "confirmed", "deleted", "suspended", "username", "idnumber",
	"firstname", "lastname", "email", "maildisplay",
	"phone1", "phone2", "icq", "skype", "yahoo", "aim", "msn",
	"institution", "department", "address", "city", "country",
	"lang", "theme", "timezone", "firstaccess", "lastaccess",
	"mailformat", "description", "descriptionformat", "url", "interests",
}

// exactColumns are the columns FindByExactField may compare
var exactColumns = map[string]bool{
	"id":       true,
	"idnumber": true,
	"username": true,
	"deleted":  true,
	"auth":     true,
}

// fuzzyExpressions are the expressions FindByFuzzyField may match against
var fuzzyExpressions = map[string]exp.LiteralExpression{
	"fullname": goqu.L(`"firstname" || ' ' || "lastname"`),
	"email":    goqu.L(`"email"`),
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var u models.User

	err := scanner.Scan(
		&u.ID, &u.Auth, &u.Confirmed, &u.Deleted, &u.Suspended, &u.Username, &u.IDNumber,
		&u.FirstName, &u.LastName, &u.Email, &u.MailDisplay,
		&u.Phone1, &u.Phone2, &u.ICQ, &u.Skype, &u.Yahoo, &u.AIM, &u.MSN,
		&u.Institution, &u.Department, &u.Address, &u.City, &u.Country,
		&u.Lang, &u.Theme, &u.Timezone, &u.FirstAccess, &u.LastAccess,
		&u.MailFormat, &u.Description, &u.DescriptionFormat, &u.URL, &u.Interests,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &u, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func scanIDRows(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()

	ids := make([]int64, 0)

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// likePattern returns a pattern matching m anywhere with ILIKE.
func likePattern(m string) string {
	m = strings.ReplaceAll(m, `\`, `\\`)
	m = strings.ReplaceAll(m, "_", `\_`)
	m = strings.ReplaceAll(m, "%", `\%`)
	return "%" + m + "%"
}

func (r *UserRepository) queryIDs(ctx context.Context, ds *goqu.SelectDataset) ([]int64, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanIDRows(rows)
}

// FindByExactField returns the ids of users whose column equals value, ascending
func (r *UserRepository) FindByExactField(ctx context.Context, field string, value any) ([]int64, error) {
	if !exactColumns[field] {
		return nil, fmt.Errorf("unsupported exact match column %q", field)
	}

	ds := dialect.From("users").
		Select("id").
		Where(goqu.C(field).Eq(value)).
		Order(goqu.C("id").Asc())

	return r.queryIDs(ctx, ds)
}

// FindByFuzzyField returns the ids of users whose field contains value,
// case-insensitively, ascending
func (r *UserRepository) FindByFuzzyField(ctx context.Context, field, value string) ([]int64, error) {
	expr, ok := fuzzyExpressions[field]
	if !ok {
		return nil, fmt.Errorf("unsupported fuzzy match field %q", field)
	}

	ds := dialect.From("users").
		Select("id").
		Where(expr.ILike(likePattern(value))).
		Order(goqu.C("id").Asc())

	return r.queryIDs(ctx, ds)
}

func (r *UserRepository) queryUsers(ctx context.Context, ds *goqu.SelectDataset) ([]*models.User, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// GetByIDs loads the given users ordered by ascending id. Unknown ids are skipped.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	ds := dialect.From("users").
		Select(userColumns...).
		Where(goqu.C("id").In(ids)).
		Order(goqu.C("id").Asc())

	return r.queryUsers(ctx, ds)
}

// ListPage returns one page of all users ordered by ascending id
func (r *UserRepository) ListPage(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || offset < 0 {
		return nil, models.ErrBadRequest
	}

	ds := dialect.From("users").
		Select(userColumns...).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset))

	return r.queryUsers(ctx, ds)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query, args, err := dialect.From("users").
		Select(userColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	return scanUserRow(r.pool.QueryRow(ctx, query, args...))
}

// CustomFields returns the profile field values of a user in field sort order
func (r *UserRepository) CustomFields(ctx context.Context, userID int64) ([]models.CustomField, error) {
	query := `
		SELECT f.datatype, d.data, f.name, f.shortname
		FROM user_info_data d
		JOIN user_info_field f ON f.id = d.field_id
		WHERE d.user_id = $1
		ORDER BY f.sortorder, f.id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom fields: %w", err)
	}
	defer rows.Close()

	fields := make([]models.CustomField, 0)
	for rows.Next() {
		var f models.CustomField
		if err := rows.Scan(&f.Type, &f.Value, &f.Name, &f.ShortName); err != nil {
			return nil, fmt.Errorf("failed to scan custom field: %w", err)
		}
		fields = append(fields, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating custom field rows: %w", err)
	}

	return fields, nil
}

// Preferences returns a user's preferences ordered by name
func (r *UserRepository) Preferences(ctx context.Context, userID int64) ([]models.Preference, error) {
	query := `SELECT name, value FROM user_preferences WHERE user_id = $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make([]models.Preference, 0)
	for rows.Next() {
		var p models.Preference
		if err := rows.Scan(&p.Name, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference rows: %w", err)
	}

	return prefs, nil
}
