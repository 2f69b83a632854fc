package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/domain"
)

func TestAuditWorkerCountsPersistedEntries(t *testing.T) {
	col := sharedCollector()
	before := testutil.ToFloat64(col.AuditEntriesTotal)

	persisted := make(chan struct{}, 1)
	repo := &MockAuditRepository{
		CreateFunc: func(ctx context.Context, entry *domain.AuditLog) error {
			persisted <- struct{}{}
			return nil
		},
	}
	svc := NewAuditService(repo, col, zap.NewNop())
	defer svc.Shutdown()

	svc.LogAsync(context.Background(), AuditEntry{
		UserID:       uuid.New(),
		UserRole:     "admin",
		Action:       "create",
		ResourceType: "diagnostic",
	})

	select {
	case <-persisted:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was never persisted")
	}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(col.AuditEntriesTotal) >= before+1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuditFailedPersistDoesNotCount(t *testing.T) {
	col := sharedCollector()
	before := testutil.ToFloat64(col.AuditEntriesTotal)

	attempted := make(chan struct{}, 1)
	repo := &MockAuditRepository{
		CreateFunc: func(ctx context.Context, entry *domain.AuditLog) error {
			attempted <- struct{}{}
			return context.DeadlineExceeded
		},
	}
	svc := NewAuditService(repo, col, zap.NewNop())

	svc.LogAsync(context.Background(), AuditEntry{UserID: uuid.New(), Action: "delete", ResourceType: "diagnostic"})

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was never attempted")
	}
	svc.Shutdown()

	assert.Equal(t, before, testutil.ToFloat64(col.AuditEntriesTotal))
}

func TestAuditDropIsCountedWhenBufferFull(t *testing.T) {
	col := sharedCollector()
	before := testutil.ToFloat64(col.AuditBufferDropped)

	// Unbuffered channel with no worker: every enqueue takes the drop branch.
	svc := &AuditService{
		repo:    &MockAuditRepository{},
		col:     col,
		log:     zap.NewNop(),
		entries: make(chan *domain.AuditLog),
		done:    make(chan struct{}),
	}

	svc.LogAsync(context.Background(), AuditEntry{UserID: uuid.New(), Action: "create", ResourceType: "diagnostic"})
	svc.LogAsync(context.Background(), AuditEntry{UserID: uuid.New(), Action: "delete", ResourceType: "diagnostic"})

	assert.Equal(t, before+2, testutil.ToFloat64(col.AuditBufferDropped))
}
