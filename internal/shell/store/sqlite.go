package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Stack Operations
// =============================================================================

// stackRow represents a stack row in the database.
type stackRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	File         string  `db:"file"`
	ConfigHash   string  `db:"config_hash"`
	Status       string  `db:"status"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	StartedAt    *string `db:"started_at"`
	StoppedAt    *string `db:"stopped_at"`
}

func (s *SQLiteStore) CreateStack(ctx context.Context, stack *domain.Stack) error {
	return createStack(ctx, s.db, stack)
}

func (s *SQLiteStore) GetStack(ctx context.Context, id string) (*domain.Stack, error) {
	return getStack(ctx, s.db, id)
}

func (s *SQLiteStore) GetStackByName(ctx context.Context, name string) (*domain.Stack, error) {
	return getStackByName(ctx, s.db, name)
}

func (s *SQLiteStore) UpdateStack(ctx context.Context, stack *domain.Stack) error {
	return updateStack(ctx, s.db, stack)
}

func (s *SQLiteStore) DeleteStack(ctx context.Context, id string) error {
	return deleteStack(ctx, s.db, id)
}

func (s *SQLiteStore) ListStacks(ctx context.Context, opts ListOptions) ([]domain.Stack, error) {
	return listStacks(ctx, s.db, opts)
}

// =============================================================================
// Service Record Operations
// =============================================================================

// serviceRow represents a service row in the database.
type serviceRow struct {
	ID             int64   `db:"id"`
	StackID        string  `db:"stack_id"`
	Name           string  `db:"name"`
	ContainerID    string  `db:"container_id"`
	Image          string  `db:"image"`
	State          string  `db:"state"`
	Gate           string  `db:"gate"`
	ExitCode       *int    `db:"exit_code"`
	Restarts       int     `db:"restarts"`
	ErrorMessage   string  `db:"error_message"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
	StartedAt      *string `db:"started_at"`
	FirstHealthyAt *string `db:"first_healthy_at"`
	FailedAt       *string `db:"failed_at"`
}

func (s *SQLiteStore) CreateService(ctx context.Context, record *domain.ServiceRecord) error {
	return createService(ctx, s.db, record)
}

func (s *SQLiteStore) GetService(ctx context.Context, stackID, name string) (*domain.ServiceRecord, error) {
	return getService(ctx, s.db, stackID, name)
}

func (s *SQLiteStore) UpdateService(ctx context.Context, record *domain.ServiceRecord) error {
	return updateService(ctx, s.db, record)
}

func (s *SQLiteStore) ListServices(ctx context.Context, stackID string) ([]domain.ServiceRecord, error) {
	return listServices(ctx, s.db, stackID)
}

func (s *SQLiteStore) DeleteServices(ctx context.Context, stackID string) error {
	return deleteServices(ctx, s.db, stackID)
}

// =============================================================================
// Event Operations
// =============================================================================

// eventRow represents an event row in the database.
type eventRow struct {
	ID          int64  `db:"id"`
	ReferenceID string `db:"reference_id"`
	StackID     string `db:"stack_id"`
	Type        string `db:"type"`
	Service     string `db:"service"`
	Message     string `db:"message"`
	Timestamp   string `db:"timestamp"`
	CreatedAt   string `db:"created_at"`
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.StackEvent) error {
	return appendEvent(ctx, s.db, event)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, stackID string, limit int, eventType *string) ([]domain.StackEvent, error) {
	return listEvents(ctx, s.db, stackID, limit, eventType)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateStack(ctx context.Context, stack *domain.Stack) error {
	return createStack(ctx, s.tx, stack)
}

func (s *txSQLiteStore) GetStack(ctx context.Context, id string) (*domain.Stack, error) {
	return getStack(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetStackByName(ctx context.Context, name string) (*domain.Stack, error) {
	return getStackByName(ctx, s.tx, name)
}

func (s *txSQLiteStore) UpdateStack(ctx context.Context, stack *domain.Stack) error {
	return updateStack(ctx, s.tx, stack)
}

func (s *txSQLiteStore) DeleteStack(ctx context.Context, id string) error {
	return deleteStack(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListStacks(ctx context.Context, opts ListOptions) ([]domain.Stack, error) {
	return listStacks(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateService(ctx context.Context, record *domain.ServiceRecord) error {
	return createService(ctx, s.tx, record)
}

func (s *txSQLiteStore) GetService(ctx context.Context, stackID, name string) (*domain.ServiceRecord, error) {
	return getService(ctx, s.tx, stackID, name)
}

func (s *txSQLiteStore) UpdateService(ctx context.Context, record *domain.ServiceRecord) error {
	return updateService(ctx, s.tx, record)
}

func (s *txSQLiteStore) ListServices(ctx context.Context, stackID string) ([]domain.ServiceRecord, error) {
	return listServices(ctx, s.tx, stackID)
}

func (s *txSQLiteStore) DeleteServices(ctx context.Context, stackID string) error {
	return deleteServices(ctx, s.tx, stackID)
}

func (s *txSQLiteStore) AppendEvent(ctx context.Context, event *domain.StackEvent) error {
	return appendEvent(ctx, s.tx, event)
}

func (s *txSQLiteStore) ListEvents(ctx context.Context, stackID string, limit int, eventType *string) ([]domain.StackEvent, error) {
	return listEvents(ctx, s.tx, stackID, limit, eventType)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createStack(ctx context.Context, exec executor, stack *domain.Stack) error {
	var startedAt, stoppedAt *string
	if stack.StartedAt != nil {
		s := stack.StartedAt.Format(time.RFC3339)
		startedAt = &s
	}
	if stack.StoppedAt != nil {
		s := stack.StoppedAt.Format(time.RFC3339)
		stoppedAt = &s
	}

	query := `
		INSERT INTO stacks (
			id, name, file, config_hash, status, error_message,
			created_at, updated_at, started_at, stopped_at
		) VALUES (
			:id, :name, :file, :config_hash, :status, :error_message,
			:created_at, :updated_at, :started_at, :stopped_at
		)`

	row := map[string]any{
		"id":            stack.ID,
		"name":          stack.Name,
		"file":          stack.File,
		"config_hash":   stack.ConfigHash,
		"status":        string(stack.Status),
		"error_message": stack.ErrorMessage,
		"created_at":    stack.CreatedAt.Format(time.RFC3339),
		"updated_at":    stack.UpdatedAt.Format(time.RFC3339),
		"started_at":    startedAt,
		"stopped_at":    stoppedAt,
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stacks.id") {
			return NewStoreError("CreateStack", "stack", stack.ID, "stack with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stacks.name") {
			return NewStoreError("CreateStack", "stack", stack.ID, "stack with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("CreateStack", "stack", stack.ID, err.Error(), err)
	}

	return nil
}

func getStack(ctx context.Context, exec executor, id string) (*domain.Stack, error) {
	query := `SELECT * FROM stacks WHERE id = ?`

	var row stackRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetStack", "stack", id, "stack not found", ErrNotFound)
		}
		return nil, NewStoreError("GetStack", "stack", id, err.Error(), err)
	}

	return rowToStack(&row), nil
}

func getStackByName(ctx context.Context, exec executor, name string) (*domain.Stack, error) {
	query := `SELECT * FROM stacks WHERE name = ?`

	var row stackRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetStackByName", "stack", name, "stack not found", ErrNotFound)
		}
		return nil, NewStoreError("GetStackByName", "stack", name, err.Error(), err)
	}

	return rowToStack(&row), nil
}

func updateStack(ctx context.Context, exec executor, stack *domain.Stack) error {
	var startedAt, stoppedAt *string
	if stack.StartedAt != nil {
		s := stack.StartedAt.Format(time.RFC3339)
		startedAt = &s
	}
	if stack.StoppedAt != nil {
		s := stack.StoppedAt.Format(time.RFC3339)
		stoppedAt = &s
	}

	query := `
		UPDATE stacks SET
			name = :name,
			file = :file,
			config_hash = :config_hash,
			status = :status,
			error_message = :error_message,
			updated_at = :updated_at,
			started_at = :started_at,
			stopped_at = :stopped_at
		WHERE id = :id`

	row := map[string]any{
		"id":            stack.ID,
		"name":          stack.Name,
		"file":          stack.File,
		"config_hash":   stack.ConfigHash,
		"status":        string(stack.Status),
		"error_message": stack.ErrorMessage,
		"updated_at":    stack.UpdatedAt.Format(time.RFC3339),
		"started_at":    startedAt,
		"stopped_at":    stoppedAt,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateStack", "stack", stack.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateStack", "stack", stack.ID, "stack not found", ErrNotFound)
	}

	return nil
}

func deleteStack(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM stacks WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteStack", "stack", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteStack", "stack", id, "stack not found", ErrNotFound)
	}

	return nil
}

func listStacks(ctx context.Context, exec executor, opts ListOptions) ([]domain.Stack, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM stacks ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []stackRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListStacks", "stack", "", err.Error(), err)
	}

	stacks := make([]domain.Stack, 0, len(rows))
	for _, row := range rows {
		stacks = append(stacks, *rowToStack(&row))
	}

	return stacks, nil
}

func createService(ctx context.Context, exec executor, record *domain.ServiceRecord) error {
	var startedAt, firstHealthyAt, failedAt *string
	if record.StartedAt != nil {
		s := record.StartedAt.Format(time.RFC3339)
		startedAt = &s
	}
	if record.FirstHealthyAt != nil {
		s := record.FirstHealthyAt.Format(time.RFC3339)
		firstHealthyAt = &s
	}
	if record.FailedAt != nil {
		s := record.FailedAt.Format(time.RFC3339)
		failedAt = &s
	}

	query := `
		INSERT INTO services (
			stack_id, name, container_id, image, state, gate, exit_code,
			restarts, error_message, created_at, updated_at,
			started_at, first_healthy_at, failed_at
		) VALUES (
			:stack_id, :name, :container_id, :image, :state, :gate, :exit_code,
			:restarts, :error_message, :created_at, :updated_at,
			:started_at, :first_healthy_at, :failed_at
		)`

	row := map[string]any{
		"stack_id":         record.StackID,
		"name":             record.Name,
		"container_id":     record.ContainerID,
		"image":            record.Image,
		"state":            string(record.State),
		"gate":             string(record.Gate),
		"exit_code":        record.ExitCode,
		"restarts":         record.Restarts,
		"error_message":    record.Error,
		"created_at":       record.CreatedAt.Format(time.RFC3339),
		"updated_at":       record.UpdatedAt.Format(time.RFC3339),
		"started_at":       startedAt,
		"first_healthy_at": firstHealthyAt,
		"failed_at":        failedAt,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: services.") {
			return NewStoreError("CreateService", "service", record.Name, "service already recorded for this stack", ErrDuplicateName)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateService", "service", record.Name, "stack not found", ErrForeignKey)
		}
		return NewStoreError("CreateService", "service", record.Name, err.Error(), err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}

	return nil
}

func getService(ctx context.Context, exec executor, stackID, name string) (*domain.ServiceRecord, error) {
	query := `SELECT * FROM services WHERE stack_id = ? AND name = ?`

	var row serviceRow
	err := exec.GetContext(ctx, &row, query, stackID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetService", "service", name, "service not found", ErrNotFound)
		}
		return nil, NewStoreError("GetService", "service", name, err.Error(), err)
	}

	return rowToService(&row), nil
}

func updateService(ctx context.Context, exec executor, record *domain.ServiceRecord) error {
	var startedAt, firstHealthyAt, failedAt *string
	if record.StartedAt != nil {
		s := record.StartedAt.Format(time.RFC3339)
		startedAt = &s
	}
	if record.FirstHealthyAt != nil {
		s := record.FirstHealthyAt.Format(time.RFC3339)
		firstHealthyAt = &s
	}
	if record.FailedAt != nil {
		s := record.FailedAt.Format(time.RFC3339)
		failedAt = &s
	}

	query := `
		UPDATE services SET
			container_id = :container_id,
			image = :image,
			state = :state,
			gate = :gate,
			exit_code = :exit_code,
			restarts = :restarts,
			error_message = :error_message,
			updated_at = :updated_at,
			started_at = :started_at,
			first_healthy_at = :first_healthy_at,
			failed_at = :failed_at
		WHERE id = :id`

	row := map[string]any{
		"id":               record.ID,
		"container_id":     record.ContainerID,
		"image":            record.Image,
		"state":            string(record.State),
		"gate":             string(record.Gate),
		"exit_code":        record.ExitCode,
		"restarts":         record.Restarts,
		"error_message":    record.Error,
		"updated_at":       record.UpdatedAt.Format(time.RFC3339),
		"started_at":       startedAt,
		"first_healthy_at": firstHealthyAt,
		"failed_at":        failedAt,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateService", "service", record.Name, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateService", "service", record.Name, "service not found", ErrNotFound)
	}

	return nil
}

func listServices(ctx context.Context, exec executor, stackID string) ([]domain.ServiceRecord, error) {
	// Insertion order matches topology order
	query := `SELECT * FROM services WHERE stack_id = ? ORDER BY id ASC`

	var rows []serviceRow
	err := exec.SelectContext(ctx, &rows, query, stackID)
	if err != nil {
		return nil, NewStoreError("ListServices", "service", "", err.Error(), err)
	}

	records := make([]domain.ServiceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *rowToService(&row))
	}

	return records, nil
}

func deleteServices(ctx context.Context, exec executor, stackID string) error {
	query := `DELETE FROM services WHERE stack_id = ?`

	_, err := exec.ExecContext(ctx, query, stackID)
	if err != nil {
		return NewStoreError("DeleteServices", "service", "", err.Error(), err)
	}

	return nil
}

func appendEvent(ctx context.Context, exec executor, event *domain.StackEvent) error {
	query := `
		INSERT INTO events (
			reference_id, stack_id, type, service, message, timestamp, created_at
		) VALUES (
			:reference_id, :stack_id, :type, :service, :message, :timestamp, :created_at
		)`

	row := map[string]any{
		"reference_id": event.ReferenceID,
		"stack_id":     event.StackID,
		"type":         string(event.Type),
		"service":      event.Service,
		"message":      event.Message,
		"timestamp":    event.Timestamp.Format(time.RFC3339Nano),
		"created_at":   event.CreatedAt.Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: events.reference_id") {
			return NewStoreError("AppendEvent", "event", event.ReferenceID, "event with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AppendEvent", "event", event.ReferenceID, "stack not found", ErrForeignKey)
		}
		return NewStoreError("AppendEvent", "event", event.ReferenceID, err.Error(), err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

func listEvents(ctx context.Context, exec executor, stackID string, limit int, eventType *string) ([]domain.StackEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `SELECT * FROM events WHERE stack_id = ?`
	args := []any{stackID}

	if eventType != nil && *eventType != "" {
		query += ` AND type = ?`
		args = append(args, *eventType)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []eventRow
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("ListEvents", "event", "", err.Error(), err)
	}

	events := make([]domain.StackEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *rowToEvent(&row))
	}

	return events, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToStack converts a database row to a domain.Stack.
func rowToStack(row *stackRow) *domain.Stack {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var startedAt, stoppedAt *time.Time
	if row.StartedAt != nil && *row.StartedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.StartedAt)
		startedAt = &t
	}
	if row.StoppedAt != nil && *row.StoppedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.StoppedAt)
		stoppedAt = &t
	}

	return &domain.Stack{
		ID:           row.ID,
		Name:         row.Name,
		File:         row.File,
		ConfigHash:   row.ConfigHash,
		Status:       domain.StackStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		StartedAt:    startedAt,
		StoppedAt:    stoppedAt,
	}
}

// rowToService converts a database row to a domain.ServiceRecord.
func rowToService(row *serviceRow) *domain.ServiceRecord {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var startedAt, firstHealthyAt, failedAt *time.Time
	if row.StartedAt != nil && *row.StartedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.StartedAt)
		startedAt = &t
	}
	if row.FirstHealthyAt != nil && *row.FirstHealthyAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.FirstHealthyAt)
		firstHealthyAt = &t
	}
	if row.FailedAt != nil && *row.FailedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.FailedAt)
		failedAt = &t
	}

	return &domain.ServiceRecord{
		ID:             row.ID,
		StackID:        row.StackID,
		Name:           row.Name,
		ContainerID:    row.ContainerID,
		Image:          row.Image,
		State:          domain.ServiceState(row.State),
		Gate:           domain.GateHealth(row.Gate),
		ExitCode:       row.ExitCode,
		Restarts:       row.Restarts,
		Error:          row.ErrorMessage,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		StartedAt:      startedAt,
		FirstHealthyAt: firstHealthyAt,
		FailedAt:       failedAt,
	}
}

// rowToEvent converts a database row to a domain.StackEvent.
func rowToEvent(row *eventRow) *domain.StackEvent {
	timestamp, _ := time.Parse(time.RFC3339Nano, row.Timestamp)
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	return &domain.StackEvent{
		ID:          row.ID,
		ReferenceID: row.ReferenceID,
		StackID:     row.StackID,
		Type:        domain.StackEventType(row.Type),
		Service:     row.Service,
		Message:     row.Message,
		Timestamp:   timestamp,
		CreatedAt:   createdAt,
	}
}
