package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the full
// device hierarchy plus the location tables it references.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE homes (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			name     TEXT NOT NULL,
			timezone TEXT
		);

		CREATE TABLE rooms (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			home_id INTEGER NOT NULL REFERENCES homes(id),
			name    TEXT NOT NULL,
			floor   TEXT
		);

		CREATE TABLE devices (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id    INTEGER REFERENCES rooms(id),
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT 'home_assistant',
			source_ref TEXT
		);

		CREATE TABLE signals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id  INTEGER NOT NULL REFERENCES devices(id),
			name       TEXT NOT NULL,
			unit       TEXT,
			value_type TEXT,
			category   TEXT
		);

		CREATE TABLE signal_states (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id     INTEGER NOT NULL REFERENCES signals(id),
			timestamp     TEXT NOT NULL,
			raw_value     TEXT NOT NULL,
			numeric_value REAL,
			extra_json    TEXT
		);

		INSERT INTO homes (name) VALUES ('Test Home');
		INSERT INTO rooms (home_id, name, floor) VALUES (1, 'Living Room', 'ground');
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

func TestCreateDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{
		RoomID:    intPtr(1),
		Name:      "Living Thermostat",
		Kind:      "thermostat",
		Source:    DefaultSource,
		SourceRef: strPtr("climate.living_room"),
	}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if d.ID == 0 {
		t.Error("CreateDevice() did not assign an ID")
	}

	got, err := repo.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "Living Thermostat" {
		t.Errorf("Name = %q, want Living Thermostat", got.Name)
	}
	if got.Room == nil || got.Room.Name != "Living Room" {
		t.Errorf("Room = %+v, want joined Living Room", got.Room)
	}
	if got.SourceRef == nil || *got.SourceRef != "climate.living_room" {
		t.Errorf("SourceRef = %v, want climate.living_room", got.SourceRef)
	}
}

func TestCreateDevice_Unassigned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Roaming Sensor", Kind: "sensor", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	got, err := repo.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.RoomID != nil {
		t.Errorf("RoomID = %v, want nil", got.RoomID)
	}
	if got.Room != nil {
		t.Errorf("Room = %+v, want nil for unassigned device", got.Room)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetDevice(context.Background(), 999)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetDeviceBySourceRef(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Hall Motion", Kind: "binary_sensor", Source: DefaultSource,
		SourceRef: strPtr("binary_sensor.hall_motion")}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	got, err := repo.GetDeviceBySourceRef(ctx, "binary_sensor.hall_motion")
	if err != nil {
		t.Fatalf("GetDeviceBySourceRef() error = %v", err)
	}
	if got.ID != d.ID {
		t.Errorf("ID = %d, want %d", got.ID, d.ID)
	}

	if _, err := repo.GetDeviceBySourceRef(ctx, "light.unknown"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDeviceBySourceRef() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestListDevicesByRoom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	devices := []*Device{
		{RoomID: intPtr(1), Name: "Thermostat", Kind: "thermostat", Source: DefaultSource},
		{RoomID: intPtr(1), Name: "Light", Kind: "light", Source: DefaultSource},
		{Name: "Unassigned", Kind: "sensor", Source: DefaultSource},
	}
	for _, d := range devices {
		if err := repo.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice() error = %v", err)
		}
	}

	all, err := repo.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListDevices() returned %d devices, want 3", len(all))
	}

	byRoom, err := repo.ListDevicesByRoom(ctx, 1)
	if err != nil {
		t.Fatalf("ListDevicesByRoom() error = %v", err)
	}
	if len(byRoom) != 2 {
		t.Errorf("ListDevicesByRoom() returned %d devices, want 2", len(byRoom))
	}
}

func TestUpdateDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{RoomID: intPtr(1), Name: "Before", Kind: "light", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	d.Name = "After"
	d.RoomID = nil
	if err := repo.UpdateDevice(ctx, d); err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}

	got, err := repo.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "After" {
		t.Errorf("Name = %q, want After", got.Name)
	}
	if got.RoomID != nil {
		t.Errorf("RoomID = %v, want nil after detach", got.RoomID)
	}
}

func TestUpdateDevice_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.UpdateDevice(context.Background(), &Device{ID: 999, Name: "ghost", Kind: "x", Source: DefaultSource})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestDeleteDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Doomed", Kind: "sensor", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := repo.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if _, err := repo.GetDevice(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() after delete error = %v, want ErrDeviceNotFound", err)
	}

	// Deleting again is not an error.
	if err := repo.DeleteDevice(ctx, d.ID); err != nil {
		t.Errorf("DeleteDevice() second call error = %v", err)
	}
}

func TestSignalLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Thermostat", Kind: "climate", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	sig := &Signal{DeviceID: d.ID, Name: "state", Unit: strPtr("C"), ValueType: strPtr("float")}
	if err := repo.CreateSignal(ctx, sig); err != nil {
		t.Fatalf("CreateSignal() error = %v", err)
	}
	if sig.ID == 0 {
		t.Error("CreateSignal() did not assign an ID")
	}

	byName, err := repo.GetSignalByName(ctx, d.ID, "state")
	if err != nil {
		t.Fatalf("GetSignalByName() error = %v", err)
	}
	if byName.ID != sig.ID {
		t.Errorf("GetSignalByName() ID = %d, want %d", byName.ID, sig.ID)
	}
	if byName.Unit == nil || *byName.Unit != "C" {
		t.Errorf("Unit = %v, want C", byName.Unit)
	}

	if _, err := repo.GetSignalByName(ctx, d.ID, "missing"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("GetSignalByName() error = %v, want ErrSignalNotFound", err)
	}

	signals, err := repo.ListSignalsByDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListSignalsByDevice() error = %v", err)
	}
	if len(signals) != 1 {
		t.Errorf("ListSignalsByDevice() returned %d signals, want 1", len(signals))
	}

	sig.Category = strPtr("climate")
	if err := repo.UpdateSignal(ctx, sig); err != nil {
		t.Fatalf("UpdateSignal() error = %v", err)
	}

	if err := repo.DeleteSignal(ctx, sig.ID); err != nil {
		t.Fatalf("DeleteSignal() error = %v", err)
	}
	if _, err := repo.GetSignal(ctx, sig.ID); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("GetSignal() after delete error = %v, want ErrSignalNotFound", err)
	}
}

func TestSignalStates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Thermostat", Kind: "climate", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	sig := &Signal{DeviceID: d.ID, Name: "state"}
	if err := repo.CreateSignal(ctx, sig); err != nil {
		t.Fatalf("CreateSignal() error = %v", err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	numeric := 21.5
	states := []*SignalState{
		{SignalID: sig.ID, Timestamp: base, RawValue: "21.5", NumericValue: &numeric},
		{SignalID: sig.ID, Timestamp: base.Add(time.Minute), RawValue: "heat",
			ExtraJSON: strPtr(`{"hvac_action":"heating"}`)},
	}
	for _, st := range states {
		if err := repo.InsertSignalState(ctx, st); err != nil {
			t.Fatalf("InsertSignalState() error = %v", err)
		}
		if st.ID == 0 {
			t.Error("InsertSignalState() did not assign an ID")
		}
	}

	got, err := repo.ListSignalStates(ctx, sig.ID, 10)
	if err != nil {
		t.Fatalf("ListSignalStates() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 states, got %d", len(got))
	}

	// Newest first.
	if got[0].RawValue != "heat" {
		t.Errorf("got[0].RawValue = %q, want heat", got[0].RawValue)
	}
	if got[0].ExtraJSON == nil {
		t.Error("got[0].ExtraJSON = nil, want extra metadata")
	}
	if got[1].NumericValue == nil || *got[1].NumericValue != 21.5 {
		t.Errorf("got[1].NumericValue = %v, want 21.5", got[1].NumericValue)
	}
	if !got[1].Timestamp.Equal(base) {
		t.Errorf("got[1].Timestamp = %v, want %v", got[1].Timestamp, base)
	}
}

func TestInsertSignalState_DefaultTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Sensor", Kind: "sensor", Source: DefaultSource}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	sig := &Signal{DeviceID: d.ID, Name: "state"}
	if err := repo.CreateSignal(ctx, sig); err != nil {
		t.Fatalf("CreateSignal() error = %v", err)
	}

	st := &SignalState{SignalID: sig.ID, RawValue: "on"}
	if err := repo.InsertSignalState(ctx, st); err != nil {
		t.Fatalf("InsertSignalState() error = %v", err)
	}
	if st.Timestamp.IsZero() {
		t.Error("Timestamp not defaulted")
	}
}
