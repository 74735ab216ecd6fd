package email

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSweepStore struct {
	mu          sync.Mutex
	pending     []*outbox.Record
	requeued    int64
	requeueErr  error
	fetchErr    error
	fetchCalls  int
	lastChannel domain.Channel
}

func (m *mockSweepStore) RequeueDue(_ context.Context, channel domain.Channel, _ time.Time, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastChannel = channel
	return m.requeued, m.requeueErr
}

func (m *mockSweepStore) FetchPending(_ context.Context, _ domain.Channel, _ time.Time, _ int) ([]*outbox.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := m.pending
	m.pending = nil
	return out, m.fetchErr
}

func (m *mockSweepStore) UpdateDeliveryState(_ context.Context, _ *outbox.Record) error {
	return nil
}

func TestSweep_DeliversPendingBatch(t *testing.T) {
	store := &mockSweepStore{pending: []*outbox.Record{emailRecord(), emailRecord(), emailRecord()}}
	sender := &mockSender{}
	d := NewDeliverer(store, &mockResolver{address: "user@example.com"}, sender, 0)
	s := NewSweeper(SweeperConfig{}, store, d)

	s.Sweep(context.Background())

	assert.Len(t, sender.messages(), 3)
	assert.Equal(t, domain.ChannelEmail, store.lastChannel)
}

func TestSweep_KeepsDrainingAfterFailure(t *testing.T) {
	records := []*outbox.Record{emailRecord(), emailRecord()}
	store := &mockSweepStore{pending: records}
	d := NewDeliverer(store, &mockResolver{address: "user@example.com"}, &mockSender{err: errors.New("down")}, 0)
	s := NewSweeper(SweeperConfig{}, store, d)

	s.Sweep(context.Background())

	// both records attempted despite the first failing
	for _, rec := range records {
		assert.Equal(t, outbox.StatusFailed, rec.Status)
	}
	assert.Equal(t, 1, store.fetchCalls)
}

func TestSweep_FetchErrorAborts(t *testing.T) {
	store := &mockSweepStore{fetchErr: errors.New("db gone")}
	sender := &mockSender{}
	d := NewDeliverer(store, &mockResolver{address: "user@example.com"}, sender, 0)
	s := NewSweeper(SweeperConfig{}, store, d)

	s.Sweep(context.Background())

	assert.Empty(t, sender.messages())
}

func TestSweeper_StartStop(t *testing.T) {
	store := &mockSweepStore{}
	d := NewDeliverer(store, &mockResolver{address: "user@example.com"}, &mockSender{}, 0)
	s := NewSweeper(SweeperConfig{Interval: 5 * time.Millisecond, BatchSize: 10}, store, d)

	s.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	s.Stop()

	store.mu.Lock()
	calls := store.fetchCalls
	store.mu.Unlock()
	require.Greater(t, calls, 0)
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(SweeperConfig{}, &mockSweepStore{}, nil)
	assert.Equal(t, 10*time.Second, s.config.Interval)
	assert.Equal(t, 50, s.config.BatchSize)
}
