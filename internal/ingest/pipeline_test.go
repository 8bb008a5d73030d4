package ingest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/home-sentry/core/internal/device"
	"github.com/home-sentry/core/internal/infrastructure/config"
	"github.com/home-sentry/core/internal/infrastructure/logging"
)

// setupTestDB creates an in-memory SQLite database with the device schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE homes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			timezone TEXT
		);
		CREATE TABLE rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			home_id INTEGER NOT NULL REFERENCES homes(id),
			name TEXT NOT NULL,
			floor TEXT
		);
		CREATE TABLE devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER REFERENCES rooms(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'home_assistant',
			source_ref TEXT
		);
		CREATE TABLE signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL REFERENCES devices(id),
			name TEXT NOT NULL,
			unit TEXT,
			value_type TEXT,
			category TEXT
		);
		CREATE TABLE signal_states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id INTEGER NOT NULL REFERENCES signals(id),
			timestamp TEXT NOT NULL,
			raw_value TEXT NOT NULL,
			numeric_value REAL,
			extra_json TEXT
		);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close() //nolint:errcheck // test cleanup
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

// recordingBroadcaster captures broadcast events for assertions.
type recordingBroadcaster struct {
	events []StateEvent
}

func (b *recordingBroadcaster) Broadcast(_ string, payload any) {
	if ev, ok := payload.(StateEvent); ok {
		b.events = append(b.events, ev)
	}
}

// recordingMetrics captures forwarded metric writes.
type recordingMetrics struct {
	refs   []string
	values []float64
}

func (m *recordingMetrics) WriteSignalMetric(deviceRef, _ string, value float64) {
	m.refs = append(m.refs, deviceRef)
	m.values = append(m.values, value)
}

func newTestPipeline(t *testing.T) (*Pipeline, device.Repository, *recordingBroadcaster, *recordingMetrics) {
	t.Helper()

	repo := device.NewSQLiteRepository(setupTestDB(t))
	events := &recordingBroadcaster{}
	metrics := &recordingMetrics{}

	p, err := New(Deps{
		Config: config.IngestConfig{
			TopicPrefix:     "homeassistant",
			DebounceMS:      300,
			FlushIntervalMS: 50,
		},
		Repo:    repo,
		Metrics: metrics,
		Events:  events,
		Logger:  logging.Default(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, repo, events, metrics
}

// flushAll forces every cached entity to be treated as due.
func flushAll(t *testing.T, p *Pipeline) {
	t.Helper()
	p.flushDue(context.Background(), time.Now().Add(time.Hour))
}

func TestHandleMessage_CachesAttributes(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	if err := p.HandleMessage("homeassistant/sensor/hall_temp/state", []byte("21.5")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if err := p.HandleMessage("homeassistant/sensor/hall_temp/friendly_name", []byte("Hall Temp")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	ent, ok := p.cache["sensor/hall_temp"]
	if !ok {
		t.Fatal("entity not cached")
	}
	if ent.attrs["state"] != 21.5 {
		t.Errorf("state = %v, want 21.5", ent.attrs["state"])
	}
	if ent.attrs["friendly_name"] != "Hall Temp" {
		t.Errorf("friendly_name = %v, want Hall Temp", ent.attrs["friendly_name"])
	}
	if ent.dueAt.IsZero() {
		t.Error("expected a pending flush")
	}
}

func TestHandleMessage_IgnoresForeignTopics(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	for _, topic := range []string{
		"homeassistant/status",
		"zigbee2mqtt/sensor/hall_temp/state",
		"homeassistant/sensor/hall_temp",
	} {
		if err := p.HandleMessage(topic, []byte("x")); err != nil {
			t.Fatalf("HandleMessage(%q) error = %v", topic, err)
		}
	}

	if len(p.cache) != 0 {
		t.Errorf("cache size = %d, want 0", len(p.cache))
	}
}

func TestFlush_ProvisionsAndRecords(t *testing.T) {
	p, repo, events, metrics := newTestPipeline(t)
	ctx := context.Background()

	msgs := map[string]string{
		"homeassistant/sensor/hall_temp/state":               "21.5",
		"homeassistant/sensor/hall_temp/friendly_name":       "Hall Temp",
		"homeassistant/sensor/hall_temp/unit_of_measurement": "°C",
		"homeassistant/sensor/hall_temp/device_class":        "temperature",
	}
	for topic, payload := range msgs {
		if err := p.HandleMessage(topic, []byte(payload)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}

	flushAll(t, p)

	dev, err := repo.GetDeviceBySourceRef(ctx, "sensor.hall_temp")
	if err != nil {
		t.Fatalf("GetDeviceBySourceRef() error = %v", err)
	}
	if dev.Name != "Hall Temp" {
		t.Errorf("device Name = %q, want %q", dev.Name, "Hall Temp")
	}
	if dev.Kind != "sensor" {
		t.Errorf("device Kind = %q, want sensor", dev.Kind)
	}
	if dev.Source != device.DefaultSource {
		t.Errorf("device Source = %q, want %q", dev.Source, device.DefaultSource)
	}
	if dev.RoomID != nil {
		t.Errorf("device RoomID = %v, want nil", *dev.RoomID)
	}

	sig, err := repo.GetSignalByName(ctx, dev.ID, "state")
	if err != nil {
		t.Fatalf("GetSignalByName() error = %v", err)
	}
	if sig.Unit == nil || *sig.Unit != "°C" {
		t.Errorf("signal Unit = %v, want °C", sig.Unit)
	}
	if sig.Category == nil || *sig.Category != "temperature" {
		t.Errorf("signal Category = %v, want temperature", sig.Category)
	}

	states, err := repo.ListSignalStates(ctx, sig.ID, 10)
	if err != nil {
		t.Fatalf("ListSignalStates() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("len(states) = %d, want 1", len(states))
	}

	st := states[0]
	if st.RawValue != "21.5" {
		t.Errorf("RawValue = %q, want 21.5", st.RawValue)
	}
	if st.NumericValue == nil || *st.NumericValue != 21.5 {
		t.Errorf("NumericValue = %v, want 21.5", st.NumericValue)
	}
	if st.ExtraJSON == nil {
		t.Fatal("ExtraJSON = nil, want attribute map")
	}

	if len(events.events) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(events.events))
	}
	if events.events[0].SourceRef != "sensor.hall_temp" {
		t.Errorf("event SourceRef = %q, want sensor.hall_temp", events.events[0].SourceRef)
	}
	if len(metrics.values) != 1 || metrics.values[0] != 21.5 {
		t.Errorf("metric values = %v, want [21.5]", metrics.values)
	}
}

func TestFlush_WithoutStateDiscards(t *testing.T) {
	p, repo, events, _ := newTestPipeline(t)

	if err := p.HandleMessage("homeassistant/sensor/hall_temp/friendly_name", []byte("Hall Temp")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	flushAll(t, p)

	_, err := repo.GetDeviceBySourceRef(context.Background(), "sensor.hall_temp")
	if err == nil {
		t.Error("device should not be provisioned without a state attribute")
	}
	if len(events.events) != 0 {
		t.Errorf("broadcast count = %d, want 0", len(events.events))
	}

	// The pending flush is consumed even when discarded.
	if !p.cache["sensor/hall_temp"].dueAt.IsZero() {
		t.Error("dueAt should be cleared after flush")
	}
}

func TestFlush_DebouncesBursts(t *testing.T) {
	p, repo, _, _ := newTestPipeline(t)
	ctx := context.Background()

	for _, payload := range []string{"1", "2", "3"} {
		if err := p.HandleMessage("homeassistant/sensor/counter/state", []byte(payload)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}

	flushAll(t, p)
	// A second scan with nothing newly due records nothing.
	flushAll(t, p)

	dev, err := repo.GetDeviceBySourceRef(ctx, "sensor.counter")
	if err != nil {
		t.Fatalf("GetDeviceBySourceRef() error = %v", err)
	}
	sig, err := repo.GetSignalByName(ctx, dev.ID, "state")
	if err != nil {
		t.Fatalf("GetSignalByName() error = %v", err)
	}

	states, err := repo.ListSignalStates(ctx, sig.ID, 10)
	if err != nil {
		t.Fatalf("ListSignalStates() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("len(states) = %d, want 1 (burst should collapse)", len(states))
	}
	if states[0].RawValue != "3" {
		t.Errorf("RawValue = %q, want 3 (last write wins)", states[0].RawValue)
	}
}

func TestFlush_ReusesProvisionedDevice(t *testing.T) {
	p, repo, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if err := p.HandleMessage("homeassistant/light/porch/state", []byte("on")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	flushAll(t, p)

	if err := p.HandleMessage("homeassistant/light/porch/state", []byte("off")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	flushAll(t, p)

	devices, err := repo.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}

	sig, err := repo.GetSignalByName(ctx, devices[0].ID, "state")
	if err != nil {
		t.Fatalf("GetSignalByName() error = %v", err)
	}
	states, err := repo.ListSignalStates(ctx, sig.ID, 10)
	if err != nil {
		t.Fatalf("ListSignalStates() error = %v", err)
	}
	if len(states) != 2 {
		t.Errorf("len(states) = %d, want 2", len(states))
	}
	if states[0].RawValue != "off" {
		t.Errorf("newest RawValue = %q, want off", states[0].RawValue)
	}
	if states[0].NumericValue != nil {
		t.Errorf("NumericValue = %v, want nil for non-numeric state", *states[0].NumericValue)
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    any
	}{
		{"number", "21.5", 21.5},
		{"quoted string", `"on"`, "on"},
		{"bare string", "on", "on"},
		{"bool", "true", true},
		{"null", "null", nil},
		{"bare text with spaces", "Hall Temp", "Hall Temp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePayload([]byte(tt.payload)); got != tt.want {
				t.Errorf("parsePayload(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestStringifyValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "on", "on"},
		{"float", 21.5, "21.5"},
		{"integer float", 42.0, "42"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"object", map[string]any{"a": 1.0}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringifyValue(tt.value); got != tt.want {
				t.Errorf("stringifyValue(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	if got := numericValue(21.5); got == nil || *got != 21.5 {
		t.Errorf("numericValue(21.5) = %v, want 21.5", got)
	}
	if got := numericValue("42"); got == nil || *got != 42 {
		t.Errorf("numericValue(\"42\") = %v, want 42", got)
	}
	if got := numericValue("on"); got != nil {
		t.Errorf("numericValue(\"on\") = %v, want nil", *got)
	}
	if got := numericValue(true); got != nil {
		t.Errorf("numericValue(true) = %v, want nil", *got)
	}
}
