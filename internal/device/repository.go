package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/home-sentry/core/internal/home"
)

// Repository defines persistence for devices, signals, and states.
type Repository interface {
	CreateDevice(ctx context.Context, d *Device) error
	ListDevices(ctx context.Context) ([]Device, error)
	ListDevicesByRoom(ctx context.Context, roomID int64) ([]Device, error)
	GetDevice(ctx context.Context, id int64) (*Device, error)
	GetDeviceBySourceRef(ctx context.Context, sourceRef string) (*Device, error)
	UpdateDevice(ctx context.Context, d *Device) error
	DeleteDevice(ctx context.Context, id int64) error

	CreateSignal(ctx context.Context, s *Signal) error
	ListSignalsByDevice(ctx context.Context, deviceID int64) ([]Signal, error)
	GetSignal(ctx context.Context, id int64) (*Signal, error)
	GetSignalByName(ctx context.Context, deviceID int64, name string) (*Signal, error)
	UpdateSignal(ctx context.Context, s *Signal) error
	DeleteSignal(ctx context.Context, id int64) error

	InsertSignalState(ctx context.Context, st *SignalState) error
	ListSignalStates(ctx context.Context, signalID int64, limit int) ([]SignalState, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateDevice inserts a new device and assigns its generated ID.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, d *Device) error {
	const query = `INSERT INTO devices (room_id, name, kind, source, source_ref)
		VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		nullInt(d.RoomID), d.Name, d.Kind, d.Source, nullStr(d.SourceRef))
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device insert id: %w", err)
	}
	d.ID = id
	return nil
}

const deviceSelect = `SELECT d.id, d.room_id, d.name, d.kind, d.source, d.source_ref,
	r.id, r.home_id, r.name, r.floor
	FROM devices d
	LEFT JOIN rooms r ON r.id = d.room_id`

// ListDevices returns all devices with their room relation, ordered by ID.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, deviceSelect+" ORDER BY d.id")
}

// ListDevicesByRoom returns devices assigned to a specific room.
func (r *SQLiteRepository) ListDevicesByRoom(ctx context.Context, roomID int64) ([]Device, error) {
	return r.queryDevices(ctx, deviceSelect+" WHERE d.room_id = ? ORDER BY d.id", roomID)
}

// GetDevice returns a single device with its room relation.
// Returns ErrDeviceNotFound if no row exists.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id int64) (*Device, error) {
	row := r.db.QueryRowContext(ctx, deviceSelect+" WHERE d.id = ?", id)
	return scanDevice(row)
}

// GetDeviceBySourceRef returns the device registered for an external
// source reference, such as a Home Assistant entity ID.
// Returns ErrDeviceNotFound if no row exists.
func (r *SQLiteRepository) GetDeviceBySourceRef(ctx context.Context, sourceRef string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, deviceSelect+" WHERE d.source_ref = ?", sourceRef)
	return scanDevice(row)
}

// UpdateDevice updates an existing device record.
func (r *SQLiteRepository) UpdateDevice(ctx context.Context, d *Device) error {
	const query = `UPDATE devices SET room_id = ?, name = ?, kind = ?, source = ?, source_ref = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		nullInt(d.RoomID), d.Name, d.Kind, d.Source, nullStr(d.SourceRef), d.ID)
	if err != nil {
		return fmt.Errorf("updating device %d: %w", d.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteDevice removes a device by ID. Deleting an absent device is
// not an error.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting device %d: %w", id, err)
	}
	return nil
}

// CreateSignal inserts a new signal and assigns its generated ID.
func (r *SQLiteRepository) CreateSignal(ctx context.Context, s *Signal) error {
	const query = `INSERT INTO signals (device_id, name, unit, value_type, category)
		VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		s.DeviceID, s.Name, nullStr(s.Unit), nullStr(s.ValueType), nullStr(s.Category))
	if err != nil {
		return fmt.Errorf("inserting signal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading signal insert id: %w", err)
	}
	s.ID = id
	return nil
}

const signalSelect = `SELECT id, device_id, name, unit, value_type, category FROM signals`

// ListSignalsByDevice returns the signals owned by a device.
func (r *SQLiteRepository) ListSignalsByDevice(ctx context.Context, deviceID int64) ([]Signal, error) {
	rows, err := r.db.QueryContext(ctx, signalSelect+" WHERE device_id = ? ORDER BY id", deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying signals: %w", err)
	}
	defer rows.Close()

	var signals []Signal
	for rows.Next() {
		s, err := scanSignalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning signal row: %w", err)
		}
		signals = append(signals, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signal rows: %w", err)
	}
	return signals, nil
}

// GetSignal returns a single signal by ID.
// Returns ErrSignalNotFound if no row exists.
func (r *SQLiteRepository) GetSignal(ctx context.Context, id int64) (*Signal, error) {
	row := r.db.QueryRowContext(ctx, signalSelect+" WHERE id = ?", id)
	return scanSignal(row)
}

// GetSignalByName returns a device's signal with the given name.
// Returns ErrSignalNotFound if no row exists.
func (r *SQLiteRepository) GetSignalByName(ctx context.Context, deviceID int64, name string) (*Signal, error) {
	row := r.db.QueryRowContext(ctx, signalSelect+" WHERE device_id = ? AND name = ?", deviceID, name)
	return scanSignal(row)
}

// UpdateSignal updates an existing signal record.
func (r *SQLiteRepository) UpdateSignal(ctx context.Context, s *Signal) error {
	const query = `UPDATE signals SET name = ?, unit = ?, value_type = ?, category = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		s.Name, nullStr(s.Unit), nullStr(s.ValueType), nullStr(s.Category), s.ID)
	if err != nil {
		return fmt.Errorf("updating signal %d: %w", s.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// DeleteSignal removes a signal by ID. Deleting an absent signal is
// not an error.
func (r *SQLiteRepository) DeleteSignal(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM signals WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting signal %d: %w", id, err)
	}
	return nil
}

// InsertSignalState appends a state observation and assigns its
// generated ID. A zero timestamp is filled with the current UTC time.
func (r *SQLiteRepository) InsertSignalState(ctx context.Context, st *SignalState) error {
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now().UTC()
	}

	const query = `INSERT INTO signal_states (signal_id, timestamp, raw_value, numeric_value, extra_json)
		VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		st.SignalID, st.Timestamp.UTC().Format(time.RFC3339),
		st.RawValue, nullFloat(st.NumericValue), nullStr(st.ExtraJSON))
	if err != nil {
		return fmt.Errorf("inserting signal state: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading signal state insert id: %w", err)
	}
	st.ID = id
	return nil
}

// ListSignalStates returns the most recent states for a signal, newest
// first. Limit is clamped to a sane page size.
func (r *SQLiteRepository) ListSignalStates(ctx context.Context, signalID int64, limit int) ([]SignalState, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 { //nolint:mnd // max page size for state history queries
		limit = 500
	}

	const query = `SELECT id, signal_id, timestamp, raw_value, numeric_value, extra_json
		FROM signal_states WHERE signal_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, signalID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying signal states: %w", err)
	}
	defer rows.Close()

	var states []SignalState
	for rows.Next() {
		var st SignalState
		var timestamp string
		var numericValue sql.NullFloat64
		var extraJSON sql.NullString

		if err := rows.Scan(&st.ID, &st.SignalID, &timestamp, &st.RawValue,
			&numericValue, &extraJSON); err != nil {
			return nil, fmt.Errorf("scanning signal state row: %w", err)
		}

		if numericValue.Valid {
			st.NumericValue = &numericValue.Float64
		}
		if extraJSON.Valid {
			st.ExtraJSON = &extraJSON.String
		}
		st.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing signal state timestamp %q: %w", timestamp, err)
		}

		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signal state rows: %w", err)
	}
	return states, nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanDevice scans a single joined row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	d, err := scanDeviceColumns(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	return d, nil
}

// scanDeviceRow scans a joined device from a Rows cursor.
func scanDeviceRow(rows *sql.Rows) (*Device, error) {
	return scanDeviceColumns(rows.Scan)
}

// scanDeviceColumns scans the deviceSelect column set.
func scanDeviceColumns(scan func(dest ...any) error) (*Device, error) {
	var d Device
	var roomID, joinedRoomID, joinedHomeID sql.NullInt64
	var sourceRef, roomName, roomFloor sql.NullString

	err := scan(&d.ID, &roomID, &d.Name, &d.Kind, &d.Source, &sourceRef,
		&joinedRoomID, &joinedHomeID, &roomName, &roomFloor)
	if err != nil {
		return nil, err
	}

	if roomID.Valid {
		d.RoomID = &roomID.Int64
	}
	if sourceRef.Valid {
		d.SourceRef = &sourceRef.String
	}
	if joinedRoomID.Valid {
		rm := &home.Room{
			ID:     joinedRoomID.Int64,
			HomeID: joinedHomeID.Int64,
			Name:   roomName.String,
		}
		if roomFloor.Valid {
			rm.Floor = &roomFloor.String
		}
		d.Room = rm
	}
	return &d, nil
}

// scanSignal scans a single row into a Signal (for QueryRow).
func scanSignal(row *sql.Row) (*Signal, error) {
	var s Signal
	var unit, valueType, category sql.NullString

	err := row.Scan(&s.ID, &s.DeviceID, &s.Name, &unit, &valueType, &category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignalNotFound
		}
		return nil, fmt.Errorf("scanning signal: %w", err)
	}
	applySignalNullables(&s, unit, valueType, category)
	return &s, nil
}

// scanSignalRow scans a signal from a Rows cursor.
func scanSignalRow(rows *sql.Rows) (*Signal, error) {
	var s Signal
	var unit, valueType, category sql.NullString

	if err := rows.Scan(&s.ID, &s.DeviceID, &s.Name, &unit, &valueType, &category); err != nil {
		return nil, err
	}
	applySignalNullables(&s, unit, valueType, category)
	return &s, nil
}

func applySignalNullables(s *Signal, unit, valueType, category sql.NullString) {
	if unit.Valid {
		s.Unit = &unit.String
	}
	if valueType.Valid {
		s.ValueType = &valueType.String
	}
	if category.Valid {
		s.Category = &category.String
	}
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt converts a *int64 to a sql.NullInt64 for nullable columns.
func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// nullFloat converts a *float64 to a sql.NullFloat64 for nullable columns.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
