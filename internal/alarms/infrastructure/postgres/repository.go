package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	alarms "plant-scada/internal/alarms/domain"
)

// Repository is a Postgres repository for alarm events.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save upserts one alarm event.
func (r *Repository) Save(ctx context.Context, event *alarms.Event) error {
	if r == nil || r.db == nil {
		return errors.New("alarm repo: nil db")
	}
	if event == nil {
		return errors.New("alarm repo: nil event")
	}
	if event.ID == "" || event.Message == "" {
		return errors.New("alarm repo: missing fields")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alarm_events (
	id, equipment_id, equipment_name, ts, severity, type, message, description,
	value, threshold, acknowledged, acknowledged_by, acknowledged_at,
	resolved_at, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13,
	$14, $15
)
ON CONFLICT (id) DO UPDATE SET
	acknowledged = EXCLUDED.acknowledged,
	acknowledged_by = EXCLUDED.acknowledged_by,
	acknowledged_at = EXCLUDED.acknowledged_at,
	resolved_at = EXCLUDED.resolved_at`,
		event.ID,
		nullableString(event.EquipmentID),
		nullableString(event.EquipmentName),
		event.Timestamp,
		string(event.Severity),
		string(event.Type),
		event.Message,
		nullableString(event.Description),
		nullableFloat(event.Value),
		nullableFloat(event.Threshold),
		event.Acknowledged,
		nullableString(event.AcknowledgedBy),
		nullableTime(event.AcknowledgedAt),
		nullableTime(event.ResolvedAt),
		event.CreatedAt,
	)
	return err
}

// Get fetches one alarm by id; nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*alarms.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
FROM alarm_events
WHERE id = $1`, id)
	return scanEvent(row)
}

// List returns alarms matching filter, ordered by timestamp descending.
func (r *Repository) List(ctx context.Context, filter alarms.Filter) ([]*alarms.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	query := selectColumns + `
FROM alarm_events
WHERE 1 = 1`
	var args []any
	if filter.EquipmentID != "" {
		args = append(args, filter.EquipmentID)
		query += " AND equipment_id = $" + strconv.Itoa(len(args))
	}
	if filter.OnlyActive {
		query += " AND resolved_at IS NULL"
	}
	if filter.Unacknowledged {
		query += " AND acknowledged = FALSE"
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += " AND ts >= $" + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += " AND ts < $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY ts DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*alarms.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CountActive returns the number of unresolved alarms.
func (r *Repository) CountActive(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alarm repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM alarm_events WHERE resolved_at IS NULL`).Scan(&count)
	return count, err
}

// CountActiveBySeverity returns the number of unresolved alarms at severity.
func (r *Repository) CountActiveBySeverity(ctx context.Context, severity alarms.Severity) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alarm repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM alarm_events WHERE resolved_at IS NULL AND severity = $1`, string(severity)).Scan(&count)
	return count, err
}

const selectColumns = `
SELECT id, equipment_id, equipment_name, ts, severity, type, message, description,
	value, threshold, acknowledged, acknowledged_by, acknowledged_at,
	resolved_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*alarms.Event, error) {
	var (
		event            alarms.Event
		severity, typ    string
		equipmentID      sql.NullString
		equipmentName    sql.NullString
		description      sql.NullString
		value, threshold sql.NullFloat64
		ackedBy          sql.NullString
		ackedAt          sql.NullTime
		resolvedAt       sql.NullTime
	)
	err := row.Scan(
		&event.ID, &equipmentID, &equipmentName, &event.Timestamp, &severity, &typ, &event.Message, &description,
		&value, &threshold, &event.Acknowledged, &ackedBy, &ackedAt,
		&resolvedAt, &event.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	event.Severity = alarms.Severity(severity)
	event.Type = alarms.Type(typ)
	event.EquipmentID = equipmentID.String
	event.EquipmentName = equipmentName.String
	event.Description = description.String
	if value.Valid {
		v := value.Float64
		event.Value = &v
	}
	if threshold.Valid {
		t := threshold.Float64
		event.Threshold = &t
	}
	event.AcknowledgedBy = ackedBy.String
	if ackedAt.Valid {
		event.AcknowledgedAt = ackedAt.Time
	}
	if resolvedAt.Valid {
		event.ResolvedAt = resolvedAt.Time
	}
	return &event, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
