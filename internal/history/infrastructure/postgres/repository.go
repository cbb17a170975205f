package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	history "plant-scada/internal/history/domain"
)

// Repository is a Postgres repository for historical samples.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one sample. Samples are immutable once written.
func (r *Repository) Append(ctx context.Context, sample *history.Sample) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if sample == nil {
		return errors.New("history repo: nil sample")
	}
	if sample.ID == "" || sample.EquipmentID == "" {
		return errors.New("history repo: missing fields")
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO historical_samples (
	id, equipment_id, ts, current_value, voltage, power, temperature,
	active_power, reactive_power, power_factor,
	rpm, torque, frequency, oil_temperature, oil_level,
	quality_index, source, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10,
	$11, $12, $13, $14, $15,
	$16, $17, $18
)`,
		sample.ID,
		sample.EquipmentID,
		sample.Timestamp,
		sample.Current,
		sample.Voltage,
		sample.Power,
		sample.Temperature,
		sample.ActivePower,
		sample.ReactivePower,
		sample.PowerFactor,
		nullableFloat(sample.RPM),
		nullableFloat(sample.Torque),
		nullableFloat(sample.Frequency),
		nullableFloat(sample.OilTemperature),
		nullableFloat(sample.OilLevel),
		sample.QualityIndex,
		sample.Source,
		sample.CreatedAt,
	)
	return err
}

// DeleteBefore removes samples older than cutoff and reports how many went.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("history repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM historical_samples WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByEquipment returns the most recent samples for one unit, newest first.
func (r *Repository) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]*history.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
FROM historical_samples
WHERE equipment_id = $1
ORDER BY ts DESC
LIMIT $2`, equipmentID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByEquipmentAndRange returns samples in [from, to), oldest first.
func (r *Repository) ListByEquipmentAndRange(ctx context.Context, equipmentID string, from, to time.Time) ([]*history.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
FROM historical_samples
WHERE equipment_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`, equipmentID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

const selectColumns = `
SELECT id, equipment_id, ts, current_value, voltage, power, temperature,
	active_power, reactive_power, power_factor,
	rpm, torque, frequency, oil_temperature, oil_level,
	quality_index, source, created_at`

func collect(rows *sql.Rows) ([]*history.Sample, error) {
	defer rows.Close()
	var out []*history.Sample
	for rows.Next() {
		var (
			sample                            history.Sample
			rpm, torque, freq, oilTemp, oilLv sql.NullFloat64
		)
		err := rows.Scan(
			&sample.ID, &sample.EquipmentID, &sample.Timestamp,
			&sample.Current, &sample.Voltage, &sample.Power, &sample.Temperature,
			&sample.ActivePower, &sample.ReactivePower, &sample.PowerFactor,
			&rpm, &torque, &freq, &oilTemp, &oilLv,
			&sample.QualityIndex, &sample.Source, &sample.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sample.RPM = floatPtr(rpm)
		sample.Torque = floatPtr(torque)
		sample.Frequency = floatPtr(freq)
		sample.OilTemperature = floatPtr(oilTemp)
		sample.OilLevel = floatPtr(oilLv)
		out = append(out, &sample)
	}
	return out, rows.Err()
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
