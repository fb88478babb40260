package repositories

import (
	"context"
	"fmt"

	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLogRepository writes and reads the standard event log
type EventLogRepository struct {
	pool *pgxpool.Pool
}

func NewEventLogRepository(db *database.DB) *EventLogRepository {
	return &EventLogRepository{pool: db.Pool}
}

const eventColumns = `id, eventname, component, crud, contextlevel, contextinstanceid,
	objecttable, objectid, userid, relateduserid, courseid, other, timecreated`

func scanEventRow(row rowScanner) (*models.LogEvent, error) {
	var e models.LogEvent

	err := row.Scan(
		&e.ID, &e.EventName, &e.Component, &e.CRUD, &e.ContextLevel, &e.ContextID,
		&e.ObjectTable, &e.ObjectID, &e.UserID, &e.RelatedUserID, &e.CourseID, &e.Other,
		&e.TimeCreated,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

// Create writes an event through q, normally the open unenrol transaction
func (r *EventLogRepository) Create(ctx context.Context, q database.Querier, event *models.LogEvent) (*models.LogEvent, error) {
	query := `
		INSERT INTO logstore_standard_log (
			eventname, component, crud, contextlevel, contextinstanceid,
			objecttable, objectid, userid, relateduserid, courseid, other
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + eventColumns

	other := event.Other
	if other == nil {
		other = models.EventOther{}
	}

	created, err := scanEventRow(q.QueryRow(ctx, query,
		event.EventName, event.Component, event.CRUD, event.ContextLevel, event.ContextID,
		event.ObjectTable, event.ObjectID, event.UserID, event.RelatedUserID, event.CourseID, other,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create log event: %w", err)
	}

	return created, nil
}

// ListByRelatedUser returns the newest events about a user first
func (r *EventLogRepository) ListByRelatedUser(ctx context.Context, userID int64, limit int) ([]*models.LogEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM logstore_standard_log
		WHERE relateduserid = $1
		ORDER BY timecreated DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log events: %w", err)
	}

	return scanEventRows(rows)
}

func scanEventRows(rows pgx.Rows) ([]*models.LogEvent, error) {
	defer rows.Close()

	events := make([]*models.LogEvent, 0)
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log event rows: %w", err)
	}

	return events, nil
}
