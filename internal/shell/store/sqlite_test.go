package store

import (
	"context"
	"testing"
	"time"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestStack(t *testing.T, store Store, name string) *domain.Stack {
	t.Helper()
	stack, err := domain.NewStack(name, "barge.yaml")
	require.NoError(t, err)
	stack.ConfigHash = "sha256:abc123"

	err = store.CreateStack(context.Background(), stack)
	require.NoError(t, err)
	return stack
}

func createTestService(t *testing.T, store Store, stackID, name string, gated bool) *domain.ServiceRecord {
	t.Helper()
	record := domain.NewServiceRecord(stackID, name, "postgres:16-alpine", gated)
	err := store.CreateService(context.Background(), &record)
	require.NoError(t, err)
	return &record
}

func appendTestEvent(t *testing.T, store Store, stackID string, eventType domain.StackEventType, service, message string) *domain.StackEvent {
	t.Helper()
	event := domain.NewStackEvent(uuid.NewString(), stackID, eventType, service, message)
	err := store.AppendEvent(context.Background(), &event)
	require.NoError(t, err)
	return &event
}

// =============================================================================
// Stack CRUD Tests
// =============================================================================

func TestCreateStack_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack, err := domain.NewStack("Orders App", "deploy/barge.yaml")
	require.NoError(t, err)
	stack.ConfigHash = "sha256:deadbeef"

	err = store.CreateStack(ctx, stack)
	require.NoError(t, err)

	// Verify stack was created
	retrieved, err := store.GetStack(ctx, stack.ID)
	require.NoError(t, err)
	assert.Equal(t, stack.ID, retrieved.ID)
	assert.Equal(t, "orders-app", retrieved.Name)
	assert.Equal(t, "deploy/barge.yaml", retrieved.File)
	assert.Equal(t, "sha256:deadbeef", retrieved.ConfigHash)
	assert.Equal(t, domain.StackPending, retrieved.Status)
	assert.Equal(t, stack.CreatedAt.Format(time.RFC3339), retrieved.CreatedAt.Format(time.RFC3339))
	assert.Nil(t, retrieved.StartedAt)
	assert.Nil(t, retrieved.StoppedAt)
}

func TestCreateStack_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	// Try to create another stack with same ID
	duplicate := *stack
	duplicate.Name = "different-name"

	err := store.CreateStack(ctx, &duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateStack_DuplicateName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestStack(t, store, "orders")

	// Same name, different ID
	duplicate, err := domain.NewStack("orders", "other.yaml")
	require.NoError(t, err)

	err = store.CreateStack(ctx, duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestGetStack_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetStack(ctx, "nonexistent-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStackByName_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	retrieved, err := store.GetStackByName(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, stack.ID, retrieved.ID)
	assert.Equal(t, "orders", retrieved.Name)
}

func TestGetStackByName_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetStackByName(ctx, "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStack_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	// Walk the stack to running
	require.NoError(t, stack.Transition(domain.StackStarting))
	require.NoError(t, stack.Transition(domain.StackRunning))

	err := store.UpdateStack(ctx, stack)
	require.NoError(t, err)

	// Verify update
	retrieved, err := store.GetStack(ctx, stack.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StackRunning, retrieved.Status)
	require.NotNil(t, retrieved.StartedAt)
	assert.Equal(t, stack.StartedAt.Format(time.RFC3339), retrieved.StartedAt.Format(time.RFC3339))
}

func TestUpdateStack_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack, err := domain.NewStack("ghost", "barge.yaml")
	require.NoError(t, err)

	err = store.UpdateStack(ctx, stack)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStack_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	err := store.DeleteStack(ctx, stack.ID)
	require.NoError(t, err)

	// Verify deletion
	_, err = store.GetStack(ctx, stack.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStack_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.DeleteStack(ctx, "nonexistent-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStack_CascadesToServicesAndEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	createTestService(t, store, stack.ID, "database", true)
	appendTestEvent(t, store, stack.ID, domain.EventContainerStarted, "database", "started")

	err := store.DeleteStack(ctx, stack.ID)
	require.NoError(t, err)

	// Dependent rows are gone with the stack
	_, err = store.GetService(ctx, stack.ID, "database")
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := store.ListEvents(ctx, stack.ID, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListStacks_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	names := []string{"alpha", "bravo", "charlie"}
	for i, name := range names {
		stack, err := domain.NewStack(name, "barge.yaml")
		require.NoError(t, err)
		// Distinct creation times so the ordering is deterministic
		stack.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		stack.UpdatedAt = stack.CreatedAt
		require.NoError(t, store.CreateStack(ctx, stack))
	}

	stacks, err := store.ListStacks(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, stacks, 3)
	assert.Equal(t, "charlie", stacks[0].Name)
	assert.Equal(t, "bravo", stacks[1].Name)
	assert.Equal(t, "alpha", stacks[2].Name)
}

func TestListStacks_Pagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestStack(t, store, "alpha")
	createTestStack(t, store, "bravo")
	createTestStack(t, store, "charlie")

	page, err := store.ListStacks(ctx, ListOptions{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.ListStacks(ctx, ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestListStacks_Empty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stacks, err := store.ListStacks(ctx, DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, stacks)
}

// =============================================================================
// Service Record Tests
// =============================================================================

func TestCreateService_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	record := domain.NewServiceRecord(stack.ID, "database", "postgres:16-alpine", true)
	err := store.CreateService(ctx, &record)
	require.NoError(t, err)
	assert.Greater(t, record.ID, int64(0))

	retrieved, err := store.GetService(ctx, stack.ID, "database")
	require.NoError(t, err)
	assert.Equal(t, record.ID, retrieved.ID)
	assert.Equal(t, stack.ID, retrieved.StackID)
	assert.Equal(t, "postgres:16-alpine", retrieved.Image)
	assert.Equal(t, domain.ServicePending, retrieved.State)
	assert.Equal(t, domain.GatePending, retrieved.Gate)
	assert.Nil(t, retrieved.ExitCode)
	assert.Zero(t, retrieved.Restarts)
}

func TestCreateService_Ungated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	createTestService(t, store, stack.ID, "cache", false)

	retrieved, err := store.GetService(ctx, stack.ID, "cache")
	require.NoError(t, err)
	assert.Equal(t, domain.GateNone, retrieved.Gate)
}

func TestCreateService_DuplicateName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	createTestService(t, store, stack.ID, "database", true)

	duplicate := domain.NewServiceRecord(stack.ID, "database", "postgres:17", true)
	err := store.CreateService(ctx, &duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreateService_SameNameDifferentStack(t *testing.T) {
	store := setupTestStore(t)

	first := createTestStack(t, store, "orders")
	second := createTestStack(t, store, "billing")

	createTestService(t, store, first.ID, "database", true)
	createTestService(t, store, second.ID, "database", true)
}

func TestCreateService_StackNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := domain.NewServiceRecord("nonexistent-stack", "database", "postgres:16-alpine", true)
	err := store.CreateService(ctx, &record)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestGetService_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	_, err := store.GetService(ctx, stack.ID, "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateService_RecordsStartAndHealth(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	record := createTestService(t, store, stack.ID, "database", true)

	startedAt := time.Now().UTC()
	record.RecordStarted("cid-abc123", startedAt)
	require.NoError(t, store.UpdateService(ctx, record))

	healthyAt := startedAt.Add(3 * time.Second)
	record.RecordHealthy(healthyAt)
	require.NoError(t, store.UpdateService(ctx, record))

	retrieved, err := store.GetService(ctx, stack.ID, "database")
	require.NoError(t, err)
	assert.Equal(t, "cid-abc123", retrieved.ContainerID)
	assert.Equal(t, domain.ServiceStarted, retrieved.State)
	assert.Equal(t, domain.GateHealthy, retrieved.Gate)
	require.NotNil(t, retrieved.StartedAt)
	require.NotNil(t, retrieved.FirstHealthyAt)
	assert.Equal(t, startedAt.Format(time.RFC3339), retrieved.StartedAt.Format(time.RFC3339))
	assert.Equal(t, healthyAt.Format(time.RFC3339), retrieved.FirstHealthyAt.Format(time.RFC3339))
	assert.False(t, retrieved.FirstHealthyAt.Before(*retrieved.StartedAt))
}

func TestUpdateService_RecordsFailure(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	record := createTestService(t, store, stack.ID, "database", true)

	failedAt := time.Now().UTC()
	record.RecordFailed("health check exhausted 5 retries", failedAt)
	require.NoError(t, store.UpdateService(ctx, record))

	retrieved, err := store.GetService(ctx, stack.ID, "database")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceFailed, retrieved.State)
	assert.Equal(t, domain.GateFailed, retrieved.Gate)
	assert.Equal(t, "health check exhausted 5 retries", retrieved.Error)
	require.NotNil(t, retrieved.FailedAt)
}

func TestUpdateService_ExitCodeRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	record := createTestService(t, store, stack.ID, "backend", false)

	code := 137
	record.ExitCode = &code
	record.State = domain.ServiceExited
	record.Restarts = 2
	require.NoError(t, store.UpdateService(ctx, record))

	retrieved, err := store.GetService(ctx, stack.ID, "backend")
	require.NoError(t, err)
	require.NotNil(t, retrieved.ExitCode)
	assert.Equal(t, 137, *retrieved.ExitCode)
	assert.Equal(t, domain.ServiceExited, retrieved.State)
	assert.Equal(t, 2, retrieved.Restarts)
}

func TestUpdateService_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := domain.NewServiceRecord("some-stack", "ghost", "nginx:alpine", false)
	record.ID = 9999

	err := store.UpdateService(ctx, &record)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListServices_TopologyOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	createTestService(t, store, stack.ID, "cache", false)
	createTestService(t, store, stack.ID, "database", true)
	createTestService(t, store, stack.ID, "backend", false)

	records, err := store.ListServices(ctx, stack.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "cache", records[0].Name)
	assert.Equal(t, "database", records[1].Name)
	assert.Equal(t, "backend", records[2].Name)
}

func TestListServices_Empty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	records, err := store.ListServices(ctx, stack.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteServices_OnlyTargetStack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := createTestStack(t, store, "orders")
	second := createTestStack(t, store, "billing")
	createTestService(t, store, first.ID, "database", true)
	createTestService(t, store, second.ID, "database", true)

	err := store.DeleteServices(ctx, first.ID)
	require.NoError(t, err)

	records, err := store.ListServices(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The other stack keeps its records
	records, err = store.ListServices(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// =============================================================================
// Event Tests
// =============================================================================

func TestAppendEvent_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")

	event := domain.NewStackEvent(uuid.NewString(), stack.ID, domain.EventGateHealthy, "database", "Health gate for database passed")
	err := store.AppendEvent(ctx, &event)
	require.NoError(t, err)
	assert.Greater(t, event.ID, int64(0))

	events, err := store.ListEvents(ctx, stack.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ReferenceID, events[0].ReferenceID)
	assert.Equal(t, domain.EventGateHealthy, events[0].Type)
	assert.Equal(t, "database", events[0].Service)
	assert.Equal(t, "Health gate for database passed", events[0].Message)
}

func TestAppendEvent_DuplicateReferenceID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	event := appendTestEvent(t, store, stack.ID, domain.EventContainerStarted, "cache", "started")

	duplicate := domain.NewStackEvent(event.ReferenceID, stack.ID, domain.EventContainerStopped, "cache", "stopped")
	err := store.AppendEvent(ctx, &duplicate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAppendEvent_StackNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	event := domain.NewStackEvent(uuid.NewString(), "nonexistent-stack", domain.EventContainerStarted, "cache", "started")
	err := store.AppendEvent(ctx, &event)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestListEvents_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	appendTestEvent(t, store, stack.ID, domain.EventContainerCreated, "database", "created")
	appendTestEvent(t, store, stack.ID, domain.EventContainerStarted, "database", "started")
	latest := appendTestEvent(t, store, stack.ID, domain.EventGateHealthy, "database", "healthy")

	events, err := store.ListEvents(ctx, stack.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, latest.ReferenceID, events[0].ReferenceID)
	assert.Equal(t, domain.EventContainerCreated, events[2].Type)
}

func TestListEvents_FilterByType(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	appendTestEvent(t, store, stack.ID, domain.EventContainerStarted, "database", "started")
	appendTestEvent(t, store, stack.ID, domain.EventContainerDied, "backend", "exit code 1")
	appendTestEvent(t, store, stack.ID, domain.EventContainerStarted, "backend", "started")

	eventType := string(domain.EventContainerStarted)
	events, err := store.ListEvents(ctx, stack.ID, 10, &eventType)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, domain.EventContainerStarted, event.Type)
	}
}

func TestListEvents_Limit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	for i := 0; i < 5; i++ {
		appendTestEvent(t, store, stack.ID, domain.EventContainerRestarted, "backend", "restarted")
	}

	events, err := store.ListEvents(ctx, stack.ID, 3, nil)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestListEvents_OtherStackInvisible(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := createTestStack(t, store, "orders")
	second := createTestStack(t, store, "billing")
	appendTestEvent(t, store, first.ID, domain.EventContainerStarted, "database", "started")

	events, err := store.ListEvents(ctx, second.ID, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_CommitSuccess(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var createdID string

	err := store.WithTx(ctx, func(txStore Store) error {
		stack, err := domain.NewStack("tx-commit", "barge.yaml")
		if err != nil {
			return err
		}
		createdID = stack.ID
		return txStore.CreateStack(ctx, stack)
	})
	require.NoError(t, err)

	// Verify stack was persisted
	retrieved, err := store.GetStack(ctx, createdID)
	require.NoError(t, err)
	assert.Equal(t, "tx-commit", retrieved.Name)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var createdID string

	err := store.WithTx(ctx, func(txStore Store) error {
		stack, err := domain.NewStack("tx-rollback", "barge.yaml")
		if err != nil {
			return err
		}
		createdID = stack.ID

		if err := txStore.CreateStack(ctx, stack); err != nil {
			return err
		}

		// Return error to trigger rollback
		return assert.AnError
	})
	require.Error(t, err)

	// Verify stack was NOT persisted
	_, err = store.GetStack(ctx, createdID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_ReplaceServices(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stack := createTestStack(t, store, "orders")
	createTestService(t, store, stack.ID, "database", true)
	createTestService(t, store, stack.ID, "backend", false)

	// Redeploy swaps the full service set atomically
	err := store.WithTx(ctx, func(txStore Store) error {
		if err := txStore.DeleteServices(ctx, stack.ID); err != nil {
			return err
		}
		record := domain.NewServiceRecord(stack.ID, "database", "postgres:17-alpine", true)
		return txStore.CreateService(ctx, &record)
	})
	require.NoError(t, err)

	records, err := store.ListServices(ctx, stack.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "postgres:17-alpine", records[0].Image)
}

func TestWithTx_NestedTx(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var stackID string

	err := store.WithTx(ctx, func(txStore Store) error {
		stack, err := domain.NewStack("nested-tx", "barge.yaml")
		if err != nil {
			return err
		}
		stackID = stack.ID

		if err := txStore.CreateStack(ctx, stack); err != nil {
			return err
		}

		// Nested transaction (should just run the function)
		return txStore.WithTx(ctx, func(nestedTxStore Store) error {
			// Should be able to access the stack created above
			_, err := nestedTxStore.GetStack(ctx, stackID)
			return err
		})
	})
	require.NoError(t, err)

	// Verify stack was persisted
	retrieved, err := store.GetStack(ctx, stackID)
	require.NoError(t, err)
	assert.Equal(t, "nested-tx", retrieved.Name)
}

func TestWithTx_TxStoreClose(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(txStore Store) error {
		// Close should be a no-op for tx store
		return txStore.Close()
	})
	require.NoError(t, err)
}

func TestWithTx_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)

	// Cancel context immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Should fail when starting transaction
	err := store.WithTx(ctx, func(tx Store) error {
		return nil
	})
	require.Error(t, err)
}

// =============================================================================
// Error Handling Tests
// =============================================================================

func TestStoreError_Error(t *testing.T) {
	// With all fields
	err := NewStoreError("CreateStack", "stack", "abc-123", "failed to insert", ErrDuplicateID)
	assert.Equal(t, "CreateStack stack abc-123: failed to insert", err.Error())

	// Without ID
	err = NewStoreError("ListStacks", "stack", "", "database error", ErrConnectionFailed)
	assert.Equal(t, "ListStacks stack: database error", err.Error())

	// Without entity
	err = NewStoreError("Close", "", "", "connection closed", nil)
	assert.Equal(t, "Close: connection closed", err.Error())
}

func TestStoreError_Unwrap(t *testing.T) {
	err := NewStoreError("CreateStack", "stack", "abc-123", "failed", ErrDuplicateID)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

// =============================================================================
// Options Tests
// =============================================================================

func TestListOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListOptions
		want ListOptions
	}{
		{"defaults applied", ListOptions{}, ListOptions{Limit: 100, Offset: 0}},
		{"negative values clamped", ListOptions{Limit: -5, Offset: -1}, ListOptions{Limit: 100, Offset: 0}},
		{"large limit clamped", ListOptions{Limit: 5000, Offset: 10}, ListOptions{Limit: 1000, Offset: 10}},
		{"valid values untouched", ListOptions{Limit: 50, Offset: 25}, ListOptions{Limit: 50, Offset: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

// =============================================================================
// Context Cancellation Tests
// =============================================================================

func TestGetStack_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)

	stack := createTestStack(t, store, "orders")

	// Cancel context immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Should fail with context error
	_, err := store.GetStack(ctx, stack.ID)
	require.Error(t, err)
}

func TestCreateStack_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)

	stack, err := domain.NewStack("cancelled", "barge.yaml")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.CreateStack(ctx, stack)
	require.Error(t, err)
}
