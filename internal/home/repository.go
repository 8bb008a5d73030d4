package home

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository defines the interface for home and room persistence.
type Repository interface {
	CreateHome(ctx context.Context, h *Home) error
	ListHomes(ctx context.Context) ([]Home, error)
	GetHome(ctx context.Context, id int64) (*Home, error)
	UpdateHome(ctx context.Context, h *Home) error
	DeleteHome(ctx context.Context, id int64) error

	CreateRoom(ctx context.Context, rm *Room) error
	ListRooms(ctx context.Context) ([]Room, error)
	ListRoomsByHome(ctx context.Context, homeID int64) ([]Room, error)
	GetRoom(ctx context.Context, id int64) (*Room, error)
	UpdateRoom(ctx context.Context, rm *Room) error
	DeleteRoom(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed home repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateHome inserts a new home and assigns its generated ID.
func (r *SQLiteRepository) CreateHome(ctx context.Context, h *Home) error {
	const query = `INSERT INTO homes (name, timezone) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, h.Name, nullStr(h.Timezone))
	if err != nil {
		return fmt.Errorf("inserting home: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading home insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListHomes returns all homes ordered by ID.
func (r *SQLiteRepository) ListHomes(ctx context.Context) ([]Home, error) {
	const query = `SELECT id, name, timezone FROM homes ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying homes: %w", err)
	}
	defer rows.Close()

	var homes []Home
	for rows.Next() {
		h, err := scanHomeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning home row: %w", err)
		}
		homes = append(homes, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating home rows: %w", err)
	}
	return homes, nil
}

// GetHome returns a single home by ID.
// Returns ErrHomeNotFound if no row exists.
func (r *SQLiteRepository) GetHome(ctx context.Context, id int64) (*Home, error) {
	const query = `SELECT id, name, timezone FROM homes WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var h Home
	var timezone sql.NullString
	if err := row.Scan(&h.ID, &h.Name, &timezone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHomeNotFound
		}
		return nil, fmt.Errorf("scanning home: %w", err)
	}
	if timezone.Valid {
		h.Timezone = &timezone.String
	}
	return &h, nil
}

// UpdateHome updates an existing home record.
func (r *SQLiteRepository) UpdateHome(ctx context.Context, h *Home) error {
	const query = `UPDATE homes SET name = ?, timezone = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, h.Name, nullStr(h.Timezone), h.ID)
	if err != nil {
		return fmt.Errorf("updating home %d: %w", h.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrHomeNotFound
	}
	return nil
}

// DeleteHome removes a home by ID. Deleting an absent home is not an
// error; the caller reports success either way.
func (r *SQLiteRepository) DeleteHome(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM homes WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting home %d: %w", id, err)
	}
	return nil
}

// CreateRoom inserts a new room and assigns its generated ID.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, rm *Room) error {
	const query = `INSERT INTO rooms (home_id, name, floor) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, rm.HomeID, rm.Name, nullStr(rm.Floor))
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading room insert id: %w", err)
	}
	rm.ID = id
	return nil
}

const roomSelect = `SELECT r.id, r.home_id, r.name, r.floor,
	h.id, h.name, h.timezone
	FROM rooms r
	INNER JOIN homes h ON h.id = r.home_id`

// ListRooms returns all rooms with their parent home, ordered by ID.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	return r.queryRooms(ctx, roomSelect+" ORDER BY r.id")
}

// ListRoomsByHome returns rooms for a specific home.
func (r *SQLiteRepository) ListRoomsByHome(ctx context.Context, homeID int64) ([]Room, error) {
	return r.queryRooms(ctx, roomSelect+" WHERE r.home_id = ? ORDER BY r.id", homeID)
}

// GetRoom returns a single room with its parent home.
// Returns ErrRoomNotFound if no row exists.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id int64) (*Room, error) {
	row := r.db.QueryRowContext(ctx, roomSelect+" WHERE r.id = ?", id)

	rm, err := scanRoom(row)
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// UpdateRoom updates an existing room record.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, rm *Room) error {
	const query = `UPDATE rooms SET name = ?, floor = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, rm.Name, nullStr(rm.Floor), rm.ID)
	if err != nil {
		return fmt.Errorf("updating room %d: %w", rm.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a room by ID. Deleting an absent room is not an error.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting room %d: %w", id, err)
	}
	return nil
}

// queryRooms executes a query and returns a slice of Room.
func (r *SQLiteRepository) queryRooms(ctx context.Context, query string, args ...any) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		rm, err := scanRoomRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// scanRoom scans a single joined row into a Room (for QueryRow).
func scanRoom(row *sql.Row) (*Room, error) {
	var rm Room
	var h Home
	var floor, timezone sql.NullString

	err := row.Scan(&rm.ID, &rm.HomeID, &rm.Name, &floor, &h.ID, &h.Name, &timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}

	if floor.Valid {
		rm.Floor = &floor.String
	}
	if timezone.Valid {
		h.Timezone = &timezone.String
	}
	rm.Home = &h
	return &rm, nil
}

// scanRoomRow scans a joined room from a Rows cursor.
func scanRoomRow(rows *sql.Rows) (*Room, error) {
	var rm Room
	var h Home
	var floor, timezone sql.NullString

	err := rows.Scan(&rm.ID, &rm.HomeID, &rm.Name, &floor, &h.ID, &h.Name, &timezone)
	if err != nil {
		return nil, err
	}

	if floor.Valid {
		rm.Floor = &floor.String
	}
	if timezone.Valid {
		h.Timezone = &timezone.String
	}
	rm.Home = &h
	return &rm, nil
}

// scanHomeRow scans a home from a Rows cursor.
func scanHomeRow(rows *sql.Rows) (*Home, error) {
	var h Home
	var timezone sql.NullString

	if err := rows.Scan(&h.ID, &h.Name, &timezone); err != nil {
		return nil, err
	}
	if timezone.Valid {
		h.Timezone = &timezone.String
	}
	return &h, nil
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
