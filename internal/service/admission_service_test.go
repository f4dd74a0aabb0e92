package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	"github.com/lukehurtiu/community-classes-api/internal/repository"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
)

// fakeLedger mimics the transactional registration ledger: Admit re-validates
// the duplicate and capacity guards under a lock, exactly as the SQL
// implementation does under SELECT ... FOR UPDATE.
type fakeLedger struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]map[string]bool // classID -> memberID

	existsErr error
	countErr  error
	admitErr  error
}

func newFakeLedger(capacity int) *fakeLedger {
	return &fakeLedger{capacity: capacity, entries: map[string]map[string]bool{}}
}

func (f *fakeLedger) Exists(_ context.Context, classID, memberID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[classID][memberID], nil
}

func (f *fakeLedger) CountByClass(_ context.Context, classID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries[classID]), nil
}

func (f *fakeLedger) Admit(_ context.Context, classID, memberID string) (*models.Registration, error) {
	if f.admitErr != nil {
		return nil, f.admitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries[classID] == nil {
		f.entries[classID] = map[string]bool{}
	}
	if f.entries[classID][memberID] {
		return nil, repository.ErrAlreadyRegistered
	}
	if len(f.entries[classID]) >= f.capacity {
		return nil, repository.ErrClassFull
	}
	f.entries[classID][memberID] = true
	return &models.Registration{
		ID:        uuid.NewString(),
		ClassID:   classID,
		MemberID:  memberID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type fakeClassReader struct {
	class *models.CommunityClass
	err   error
}

func (f *fakeClassReader) FindByID(_ context.Context, _ string) (*models.CommunityClass, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.class, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) InvalidateMemberViews(_ context.Context) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	queries  []string
}

func (f *fakeRecorder) RecordAdmission(outcome string) {
	f.mu.Lock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[outcome]++
	f.mu.Unlock()
}

func (f *fakeRecorder) ObserveDBQuery(label string, _ time.Duration) {
	f.mu.Lock()
	f.queries = append(f.queries, label)
	f.mu.Unlock()
}

func testClass(capacity int) *models.CommunityClass {
	return &models.CommunityClass{
		ID:       "class-1",
		Title:    "Pottery for Beginners",
		Capacity: capacity,
	}
}

func TestAdmissionServiceAdmitSuccess(t *testing.T) {
	ledger := newFakeLedger(3)
	views := &fakeInvalidator{}
	metrics := &fakeRecorder{}
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(3)}, views, metrics, zap.NewNop())

	reg, err := svc.Admit(context.Background(), "class-1", "member-1")
	require.NoError(t, err)
	assert.Equal(t, "class-1", reg.ClassID)
	assert.Equal(t, "member-1", reg.MemberID)
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, 1, views.calls)
	assert.Equal(t, 1, metrics.outcomes[AdmissionOutcomeAdmitted])
	assert.Equal(t, []string{"registration_admit"}, metrics.queries)
}

func TestAdmissionServiceClassNotFound(t *testing.T) {
	svc := NewAdmissionService(newFakeLedger(3), &fakeClassReader{err: sql.ErrNoRows}, nil, nil, zap.NewNop())

	_, err := svc.Admit(context.Background(), "missing", "member-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrClassNotFound.Code, appErr.Code)
	assert.Equal(t, 404, appErr.Status)
}

func TestAdmissionServiceMissingClassID(t *testing.T) {
	metrics := &fakeRecorder{}
	svc := NewAdmissionService(newFakeLedger(3), &fakeClassReader{class: testClass(3)}, nil, metrics, zap.NewNop())

	_, err := svc.Admit(context.Background(), "", "member-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, metrics.outcomes, "validation rejects are not admission outcomes")
}

func TestAdmissionServiceDuplicateRejected(t *testing.T) {
	ledger := newFakeLedger(3)
	metrics := &fakeRecorder{}
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(3)}, nil, metrics, zap.NewNop())

	_, err := svc.Admit(context.Background(), "class-1", "member-1")
	require.NoError(t, err)

	_, err = svc.Admit(context.Background(), "class-1", "member-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, metrics.outcomes[AdmissionOutcomeDuplicate])

	// Rejection is terminal for the attempt but never poisons the ledger:
	// another member can still take the remaining seats.
	_, err = svc.Admit(context.Background(), "class-1", "member-2")
	require.NoError(t, err)
}

func TestAdmissionServiceFullRejected(t *testing.T) {
	ledger := newFakeLedger(1)
	metrics := &fakeRecorder{}
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(1)}, nil, metrics, zap.NewNop())

	_, err := svc.Admit(context.Background(), "class-1", "member-1")
	require.NoError(t, err)

	_, err = svc.Admit(context.Background(), "class-1", "member-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrClassFull.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Equal(t, 1, metrics.outcomes[AdmissionOutcomeFull])
}

func TestAdmissionServiceRacedDuplicateFromLedger(t *testing.T) {
	// The pre-check said "not registered" but a concurrent request won the
	// insert; the ledger's sentinel must surface as the same conflict.
	ledger := newFakeLedger(3)
	ledger.admitErr = repository.ErrAlreadyRegistered
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(3)}, nil, nil, zap.NewNop())

	_, err := svc.Admit(context.Background(), "class-1", "member-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
}

func TestAdmissionServiceStoreErrorMapped(t *testing.T) {
	ledger := newFakeLedger(3)
	ledger.countErr = errors.New("connection reset")
	metrics := &fakeRecorder{}
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(3)}, nil, metrics, zap.NewNop())

	_, err := svc.Admit(context.Background(), "class-1", "member-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.NotContains(t, appErr.Message, "connection reset")
	assert.Equal(t, 1, metrics.outcomes[AdmissionOutcomeStoreError])
}

func TestAdmissionServiceCapacityNeverExceededUnderConcurrency(t *testing.T) {
	const capacity = 5
	const contenders = 50

	ledger := newFakeLedger(capacity)
	views := &fakeInvalidator{}
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(capacity)}, views, nil, zap.NewNop())

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(member int) {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), "class-1", fmt.Sprintf("member-%d", member))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	admitted, rejected := 0, 0
	for err := range results {
		if err == nil {
			admitted++
			continue
		}
		rejected++
		assert.Equal(t, appErrors.ErrClassFull.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, capacity, admitted)
	assert.Equal(t, contenders-capacity, rejected)

	count, err := ledger.CountByClass(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, capacity, count)
	assert.Equal(t, capacity, views.calls)
}

func TestAdmissionServiceConcurrentDuplicateAdmitsOnce(t *testing.T) {
	const attempts = 20

	ledger := newFakeLedger(10)
	svc := NewAdmissionService(ledger, &fakeClassReader{class: testClass(10)}, nil, nil, zap.NewNop())

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), "class-1", "member-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
			continue
		}
		assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, 1, admitted)

	count, err := ledger.CountByClass(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
