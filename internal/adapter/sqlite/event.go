package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// Compile-time checks: EventRepository serves the change-log ports.
var (
	_ domain.LicenceEventRepository   = (*EventRepository)(nil)
	_ domain.LicenceHistoryRepository = (*EventRepository)(nil)
)

// EventRepository reads the licence_event change log written by triggers.
type EventRepository struct {
	db *sql.DB
}

const selectEvent = `SELECT licence_id, vrm, event_timestamp, insert_timestamp, event_action, uploader_id,
	licensing_authority_id, plate_number, start_date, end_date, wheelchair_accessible, description
	FROM licence_event`

// dayBound is the exclusive upper bound of a day. Timestamps are stored as
// ISO strings, so the next midnight compares correctly.
func dayBound(day time.Time) string {
	return domain.TruncateToDate(day).AddDate(0, 0, 1).Format(dateFormat)
}

func (r *EventRepository) FindUpTo(ctx context.Context, day time.Time) ([]domain.LicenceEvent, error) {
	return r.events(ctx, selectEvent+` WHERE event_timestamp < ? ORDER BY event_timestamp, id`, dayBound(day))
}

func (r *EventRepository) FindByVRMUpTo(ctx context.Context, vrm string, day time.Time) ([]domain.LicenceEvent, error) {
	return r.events(ctx, selectEvent+` WHERE vrm = ? AND event_timestamp < ? ORDER BY event_timestamp, id`,
		vrm, dayBound(day))
}

const historyFilter = ` WHERE e.vrm = ? AND e.event_timestamp >= ? AND e.event_timestamp < ?`

func historyArgs(q domain.HistoryQuery) []any {
	return []any{q.VRM, domain.TruncateToDate(q.From).Format(dateFormat), dayBound(q.To)}
}

// FindChanges returns one page of the VRM's changes, newest first.
func (r *EventRepository) FindChanges(ctx context.Context, q domain.HistoryQuery) ([]domain.LicenceChange, error) {
	args := append(historyArgs(q), q.PageSize, q.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.event_timestamp, e.event_action, a.name, e.plate_number,
		 e.start_date, e.end_date, e.wheelchair_accessible
		 FROM licence_event e LEFT JOIN licensing_authority a ON a.id = e.licensing_authority_id`+
			historyFilter+` ORDER BY e.event_timestamp DESC, e.id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying licence history: %w", err)
	}
	defer rows.Close()

	changes := []domain.LicenceChange{}
	for rows.Next() {
		var (
			c                    domain.LicenceChange
			eventTS, action      string
			authority            sql.NullString
			start, end           string
			wheelchairAccessible sql.NullBool
		)
		err := rows.Scan(&eventTS, &action, &authority, &c.PlateNumber, &start, &end, &wheelchairAccessible)
		if err != nil {
			return nil, fmt.Errorf("scanning licence change: %w", err)
		}
		c.ModifyDate = domain.TruncateToDate(parseTime(eventTS))
		c.Action = domain.LicenceAction(action)
		c.LicensingAuthorityName = authority.String
		if !authority.Valid {
			c.LicensingAuthorityName = domain.UnknownAuthorityName
		}
		c.Start = parseDate(start)
		c.End = parseDate(end)
		c.WheelchairAccessible = boolPtr(wheelchairAccessible)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CountChanges counts every change matching the query regardless of paging.
func (r *EventRepository) CountChanges(ctx context.Context, q domain.HistoryQuery) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM licence_event e`+historyFilter, historyArgs(q)...).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting licence history: %w", err)
	}
	return count, nil
}

func (r *EventRepository) events(ctx context.Context, query string, args ...any) ([]domain.LicenceEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying licence events: %w", err)
	}
	defer rows.Close()

	var events []domain.LicenceEvent
	for rows.Next() {
		var (
			e                    domain.LicenceEvent
			licenceID            sql.NullInt64
			eventTS, insertTS    string
			action, uploaderID   string
			start, end           string
			wheelchairAccessible sql.NullBool
		)
		err := rows.Scan(&licenceID, &e.VRM, &eventTS, &insertTS, &action, &uploaderID,
			&e.LicensingAuthorityID, &e.PlateNumber, &start, &end, &wheelchairAccessible, &e.Description)
		if err != nil {
			return nil, fmt.Errorf("scanning licence event: %w", err)
		}
		e.LicenceID = int(licenceID.Int64)
		e.EventTimestamp = parseTime(eventTS)
		e.InsertTimestamp = parseTime(insertTS)
		e.Action = domain.LicenceAction(action)
		e.UploaderID, _ = uuid.Parse(uploaderID)
		e.Start = parseDate(start)
		e.End = parseDate(end)
		e.WheelchairAccessible = boolPtr(wheelchairAccessible)
		events = append(events, e)
	}
	return events, rows.Err()
}
