package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/home-sentry/core/internal/audit"
	"github.com/home-sentry/core/internal/home"
	"github.com/home-sentry/core/internal/infrastructure/logging"
	"github.com/home-sentry/core/internal/patch"
)

// setupService builds a Service over an in-memory database with an
// audit trail table alongside the entity tables.
func setupService(t *testing.T) (*Service, *audit.Logger, *sql.DB) {
	t.Helper()

	db := setupTestDB(t)
	auditSchema := `
		CREATE TABLE audit_logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			action     TEXT NOT NULL,
			record_id  TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			user_id    TEXT,
			old_value  TEXT,
			new_value  TEXT
		);
	`
	if _, err := db.Exec(auditSchema); err != nil {
		t.Fatalf("failed to create audit schema: %v", err)
	}

	auditLog := audit.NewLogger(db)
	svc := NewService(
		NewSQLiteRepository(db),
		home.NewSQLiteRepository(db),
		auditLog,
		logging.Default(),
	)
	return svc, auditLog, db
}

func deviceAuditRecords(t *testing.T, auditLog *audit.Logger, action string) []audit.Record {
	t.Helper()
	result, err := auditLog.List(context.Background(), audit.Filter{TableName: "devices", Action: action})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	return result.Records
}

func TestService_CreateDevice(t *testing.T) {
	svc, auditLog, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, CreateDeviceInput{
		RoomID:    intPtr(1),
		Name:      "Living Thermostat",
		Kind:      "thermostat",
		SourceRef: strPtr("climate.living_room"),
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if d.Source != DefaultSource {
		t.Errorf("Source = %q, want default %q", d.Source, DefaultSource)
	}
	if d.Room == nil || d.Room.ID != 1 {
		t.Errorf("Room = %+v, want resolved parent", d.Room)
	}

	records := deviceAuditRecords(t, auditLog, audit.ActionInsert)
	if len(records) != 1 {
		t.Fatalf("expected 1 insert audit record, got %d", len(records))
	}
	if records[0].RecordID != "1" {
		t.Errorf("RecordID = %q, want 1", records[0].RecordID)
	}
}

func TestService_CreateDevice_MissingRoom(t *testing.T) {
	svc, auditLog, db := setupService(t)

	_, err := svc.CreateDevice(context.Background(), CreateDeviceInput{
		RoomID: intPtr(999),
		Name:   "Orphan",
		Kind:   "sensor",
	})
	if !errors.Is(err, home.ErrRoomNotFound) {
		t.Fatalf("CreateDevice() error = %v, want ErrRoomNotFound", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 0 {
		t.Errorf("expected no devices written, got %d", count)
	}
	if records := deviceAuditRecords(t, auditLog, ""); len(records) != 0 {
		t.Errorf("expected no audit records, got %d", len(records))
	}
}

func TestService_UpdateDevice_DetachRoom(t *testing.T) {
	svc, auditLog, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, CreateDeviceInput{RoomID: intPtr(1), Name: "Lamp", Kind: "light"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	updated, err := svc.UpdateDevice(ctx, d.ID, UpdateDeviceInput{RoomID: patch.Null[int64]()})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if updated.RoomID != nil || updated.Room != nil {
		t.Errorf("room not detached: RoomID = %v, Room = %+v", updated.RoomID, updated.Room)
	}

	records := deviceAuditRecords(t, auditLog, audit.ActionUpdate)
	if len(records) != 1 {
		t.Errorf("expected 1 update audit record, got %d", len(records))
	}
}

func TestService_UpdateDevice_ReassignMissingRoom(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, CreateDeviceInput{Name: "Lamp", Kind: "light"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	_, err = svc.UpdateDevice(ctx, d.ID, UpdateDeviceInput{RoomID: patch.Of(int64(999))})
	if !errors.Is(err, home.ErrRoomNotFound) {
		t.Errorf("UpdateDevice() error = %v, want ErrRoomNotFound", err)
	}
}

func TestService_UpdateDevice_Partial(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, CreateDeviceInput{
		Name: "Lamp", Kind: "light", SourceRef: strPtr("light.lamp"),
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	updated, err := svc.UpdateDevice(ctx, d.ID, UpdateDeviceInput{
		Name:      patch.Of("Desk Lamp"),
		SourceRef: patch.Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if updated.Name != "Desk Lamp" {
		t.Errorf("Name = %q, want Desk Lamp", updated.Name)
	}
	if updated.Kind != "light" {
		t.Errorf("Kind = %q, want light preserved", updated.Kind)
	}
	if updated.SourceRef != nil {
		t.Errorf("SourceRef = %v, want nil after explicit null", updated.SourceRef)
	}
}

func TestService_UpdateDevice_NotFound(t *testing.T) {
	svc, auditLog, _ := setupService(t)

	updated, err := svc.UpdateDevice(context.Background(), 999, UpdateDeviceInput{Name: patch.Of("ghost")})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if updated != nil {
		t.Errorf("UpdateDevice() = %+v, want nil for missing device", updated)
	}
	if records := deviceAuditRecords(t, auditLog, ""); len(records) != 0 {
		t.Errorf("expected no audit records, got %d", len(records))
	}
}

func TestService_DeleteDevice(t *testing.T) {
	svc, auditLog, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, CreateDeviceInput{Name: "Doomed", Kind: "sensor"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := svc.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}

	records := deviceAuditRecords(t, auditLog, audit.ActionDelete)
	if len(records) != 1 {
		t.Fatalf("expected 1 delete audit record, got %d", len(records))
	}
	if records[0].OldValue == nil {
		t.Error("OldValue = nil, want prior snapshot")
	}

	// Deleting a missing device still succeeds and audits with null old.
	if err := svc.DeleteDevice(ctx, 999); err != nil {
		t.Fatalf("DeleteDevice() missing error = %v", err)
	}
	records = deviceAuditRecords(t, auditLog, audit.ActionDelete)
	if len(records) != 2 {
		t.Fatalf("expected 2 delete audit records, got %d", len(records))
	}
}

func TestService_GetDevice_MissingReturnsNil(t *testing.T) {
	svc, _, _ := setupService(t)

	d, err := svc.GetDevice(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if d != nil {
		t.Errorf("GetDevice() = %+v, want nil", d)
	}
}
