package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	equipment "plant-scada/internal/equipment/domain"
)

// Repository is a Postgres repository for equipment. The type-specific
// payload is stored as a JSONB column beside the common measurement set.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get fetches one equipment by id; nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
FROM equipment
WHERE id = $1`, id)
	return scanEquipment(row)
}

// Save upserts one equipment.
func (r *Repository) Save(ctx context.Context, eq *equipment.Equipment) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if eq == nil {
		return errors.New("equipment repo: nil equipment")
	}
	if eq.ID == "" || eq.Name == "" {
		return errors.New("equipment repo: missing fields")
	}
	if eq.CreatedAt.IsZero() {
		eq.CreatedAt = time.Now().UTC()
	}
	if eq.UpdatedAt.IsZero() {
		eq.UpdatedAt = eq.CreatedAt
	}
	payload, err := marshalSpec(eq)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO equipment (
	id, name, type, status, location, manufacturer, model, serial_number,
	nominal_current, current_value, voltage, power, temperature,
	active_power, reactive_power, power_factor, capacitance_uf,
	spec, installation_date, last_maintenance, next_maintenance,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13,
	$14, $15, $16, $17,
	$18, $19, $20, $21,
	$22, $23
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	nominal_current = EXCLUDED.nominal_current,
	current_value = EXCLUDED.current_value,
	voltage = EXCLUDED.voltage,
	power = EXCLUDED.power,
	temperature = EXCLUDED.temperature,
	active_power = EXCLUDED.active_power,
	reactive_power = EXCLUDED.reactive_power,
	power_factor = EXCLUDED.power_factor,
	capacitance_uf = EXCLUDED.capacitance_uf,
	spec = EXCLUDED.spec,
	last_maintenance = EXCLUDED.last_maintenance,
	next_maintenance = EXCLUDED.next_maintenance,
	updated_at = EXCLUDED.updated_at`,
		eq.ID,
		eq.Name,
		string(eq.Type),
		string(eq.Status),
		eq.Location,
		eq.Manufacturer,
		eq.Model,
		eq.SerialNumber,
		eq.NominalCurrent,
		eq.Current,
		eq.Voltage,
		eq.Power,
		eq.Temperature,
		eq.ActivePower,
		eq.ReactivePower,
		eq.PowerFactor,
		eq.CapacitanceUF,
		payload,
		nullableTime(eq.InstallationDate),
		nullableTime(eq.LastMaintenance),
		nullableTime(eq.NextMaintenance),
		eq.CreatedAt,
		eq.UpdatedAt,
	)
	return err
}

// ListAll returns every equipment ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
FROM equipment
ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByStatus returns equipment in one status, ordered by name.
func (r *Repository) ListByStatus(ctx context.Context, status equipment.Status) ([]*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
FROM equipment
WHERE status = $1
ORDER BY name`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByType returns equipment of one type, ordered by name.
func (r *Repository) ListByType(ctx context.Context, typ equipment.Type) ([]*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
FROM equipment
WHERE type = $1
ORDER BY name`, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

const selectColumns = `
SELECT id, name, type, status, location, manufacturer, model, serial_number,
	nominal_current, current_value, voltage, power, temperature,
	active_power, reactive_power, power_factor, capacitance_uf,
	spec, installation_date, last_maintenance, next_maintenance,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner) (*equipment.Equipment, error) {
	var (
		eq           equipment.Equipment
		typ, status  string
		spec         []byte
		installation sql.NullTime
		lastMaint    sql.NullTime
		nextMaint    sql.NullTime
	)
	err := row.Scan(
		&eq.ID, &eq.Name, &typ, &status, &eq.Location, &eq.Manufacturer, &eq.Model, &eq.SerialNumber,
		&eq.NominalCurrent, &eq.Current, &eq.Voltage, &eq.Power, &eq.Temperature,
		&eq.ActivePower, &eq.ReactivePower, &eq.PowerFactor, &eq.CapacitanceUF,
		&spec, &installation, &lastMaint, &nextMaint,
		&eq.CreatedAt, &eq.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	eq.Type = equipment.Type(typ)
	eq.Status = equipment.Status(status)
	if installation.Valid {
		eq.InstallationDate = installation.Time
	}
	if lastMaint.Valid {
		eq.LastMaintenance = lastMaint.Time
	}
	if nextMaint.Valid {
		eq.NextMaintenance = nextMaint.Time
	}
	if err := unmarshalSpec(&eq, spec); err != nil {
		return nil, err
	}
	return &eq, nil
}

func collect(rows *sql.Rows) ([]*equipment.Equipment, error) {
	var out []*equipment.Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, rows.Err()
}

func marshalSpec(eq *equipment.Equipment) ([]byte, error) {
	switch eq.Type {
	case equipment.TypeMotor:
		if eq.Motor != nil {
			return json.Marshal(eq.Motor)
		}
	case equipment.TypeTransformer:
		if eq.Transformer != nil {
			return json.Marshal(eq.Transformer)
		}
	case equipment.TypeInverter:
		if eq.Inverter != nil {
			return json.Marshal(eq.Inverter)
		}
	}
	return []byte("null"), nil
}

func unmarshalSpec(eq *equipment.Equipment, spec []byte) error {
	if len(spec) == 0 || string(spec) == "null" {
		return nil
	}
	switch eq.Type {
	case equipment.TypeMotor:
		eq.Motor = &equipment.MotorSpec{}
		return json.Unmarshal(spec, eq.Motor)
	case equipment.TypeTransformer:
		eq.Transformer = &equipment.TransformerSpec{}
		return json.Unmarshal(spec, eq.Transformer)
	case equipment.TypeInverter:
		eq.Inverter = &equipment.InverterSpec{}
		return json.Unmarshal(spec, eq.Inverter)
	}
	return nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
