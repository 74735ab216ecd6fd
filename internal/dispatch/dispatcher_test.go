package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/email"
	"github.com/partnerhub/notify/internal/inbox"
	"github.com/partnerhub/notify/internal/outbox"
	"github.com/partnerhub/notify/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inboxWrite struct {
	item *inbox.Item
	rec  *outbox.Record
}

type mockInboxRepo struct {
	mu         sync.Mutex
	writes     []inboxWrite
	failFor    map[string]error
	duplicates map[string]bool
}

func newMockInboxRepo() *mockInboxRepo {
	return &mockInboxRepo{failFor: map[string]error{}, duplicates: map[string]bool{}}
}

func (m *mockInboxRepo) CreateWithDelivery(_ context.Context, item *inbox.Item, rec *outbox.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[item.UserID]; ok {
		return err
	}
	if m.duplicates[item.UserID] {
		return outbox.ErrDuplicate
	}
	m.writes = append(m.writes, inboxWrite{item: item, rec: rec})
	return nil
}

func (m *mockInboxRepo) List(context.Context, string, inbox.ListFilter) ([]inbox.Item, int64, error) {
	return nil, 0, nil
}
func (m *mockInboxRepo) UnreadCount(context.Context, string) (int64, error) { return 0, nil }
func (m *mockInboxRepo) MarkRead(context.Context, string, string) error     { return nil }
func (m *mockInboxRepo) MarkAllRead(context.Context, string) (int64, error) { return 0, nil }

type mockOutboxRepo struct {
	mu         sync.Mutex
	created    []*outbox.Record
	failFor    map[string]error
	duplicates map[string]bool
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{failFor: map[string]error{}, duplicates: map[string]bool{}}
}

func (m *mockOutboxRepo) Create(_ context.Context, rec *outbox.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[rec.TargetUserID]; ok {
		return err
	}
	if m.duplicates[rec.TargetUserID] {
		return outbox.ErrDuplicate
	}
	rec.ID = fmt.Sprintf("rec-%d", len(m.created)+1)
	m.created = append(m.created, rec)
	return nil
}

func (m *mockOutboxRepo) GetByID(context.Context, string) (*outbox.Record, error) {
	return nil, outbox.ErrNotFound
}
func (m *mockOutboxRepo) UpdateDeliveryState(context.Context, *outbox.Record) error { return nil }
func (m *mockOutboxRepo) RequeueDue(context.Context, domain.Channel, time.Time, int) (int64, error) {
	return 0, nil
}
func (m *mockOutboxRepo) FetchPending(context.Context, domain.Channel, time.Time, int) ([]*outbox.Record, error) {
	return nil, nil
}
func (m *mockOutboxRepo) RequeueAllFailed(context.Context, domain.Channel) (int64, error) {
	return 0, nil
}
func (m *mockOutboxRepo) List(context.Context, outbox.Filter) ([]*outbox.Record, int64, error) {
	return nil, 0, nil
}
func (m *mockOutboxRepo) Stats(context.Context) (*outbox.Stats, error) { return nil, nil }

type mockPreferences struct {
	prefs map[string]*prefs.Preference
}

func (m *mockPreferences) Resolve(_ context.Context, userID string) (*prefs.Preference, error) {
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return prefs.Default(userID), nil
}

type enqueued struct {
	userID    string
	eventType domain.EventType
	rec       *outbox.Record
	window    time.Duration
}

type mockEnqueuer struct {
	mu      sync.Mutex
	entries []enqueued
}

func (m *mockEnqueuer) Enqueue(userID string, eventType domain.EventType, rec *outbox.Record, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, enqueued{userID: userID, eventType: eventType, rec: rec, window: window})
}

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type staticResolver struct{}

func (staticResolver) EmailAddress(_ context.Context, userID string) (string, error) {
	return userID + "@example.com", nil
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	inbox      *mockInboxRepo
	outbox     *mockOutboxRepo
	prefs      *mockPreferences
	enqueuer   *mockEnqueuer
	sender     *recordingSender
}

func newFixture() *dispatcherFixture {
	inboxRepo := newMockInboxRepo()
	outboxRepo := newMockOutboxRepo()
	preferences := &mockPreferences{prefs: map[string]*prefs.Preference{}}
	enqueuer := &mockEnqueuer{}
	sender := &recordingSender{}

	deliverer := email.NewDeliverer(outboxRepo, staticResolver{}, sender, 0)
	d := NewDispatcher(inboxRepo, outboxRepo, preferences, email.NewPolicy(nil), deliverer, enqueuer)

	return &dispatcherFixture{
		dispatcher: d,
		inbox:      inboxRepo,
		outbox:     outboxRepo,
		prefs:      preferences,
		enqueuer:   enqueuer,
		sender:     sender,
	}
}

func projectApprovedEvent(targets ...string) *Event {
	return &Event{
		EventType:     domain.EventProjectApproved,
		TargetUserIDs: targets,
		Title:         "Your project was approved",
		Content:       "Congratulations, the review is complete.",
	}
}

func TestDispatch_AllowListedEventSendsImmediately(t *testing.T) {
	f := newFixture()

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u1"))
	require.NoError(t, err)
	assert.Equal(t, Result{InboxCount: 1, EmailCount: 1}, result)

	// inbox item with category derived from the event type, ledger row born SENT
	require.Len(t, f.inbox.writes, 1)
	write := f.inbox.writes[0]
	assert.Equal(t, "u1", write.item.UserID)
	assert.Equal(t, domain.CategoryProject, write.item.Category)
	assert.Equal(t, domain.ChannelInbox, write.rec.Channel)
	assert.Equal(t, outbox.StatusSent, write.rec.Status)
	assert.NotNil(t, write.rec.SentAt)

	// allow-listed event type bypasses batching: one immediate send, row SENT
	require.Len(t, f.outbox.created, 1)
	emailRec := f.outbox.created[0]
	assert.Equal(t, domain.ChannelEmail, emailRec.Channel)
	assert.Equal(t, outbox.StatusSent, emailRec.Status)
	assert.Empty(t, f.enqueuer.entries)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "u1@example.com", f.sender.sent[0].To)
}

func TestDispatch_WindowedEventGoesThroughCoalescer(t *testing.T) {
	f := newFixture()

	event := &Event{
		EventType:     domain.EventDMReceived,
		TargetUserIDs: []string{"u2"},
		Title:         "New message from Alice",
		Content:       "are you coming?",
	}

	for i := 0; i < 2; i++ {
		result, err := f.dispatcher.Dispatch(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, Result{InboxCount: 1, EmailCount: 1}, result)
	}

	// no immediate send; both rows handed to the coalescer with the DM window
	assert.Empty(t, f.sender.sent)
	require.Len(t, f.enqueuer.entries, 2)
	for _, e := range f.enqueuer.entries {
		assert.Equal(t, "u2", e.userID)
		assert.Equal(t, domain.EventDMReceived, e.eventType)
		assert.Equal(t, 60*time.Second, e.window)

		// the row is parked until the window elapses so the sweeper
		// cannot deliver it early
		assert.Equal(t, outbox.StatusPending, e.rec.Status)
		require.NotNil(t, e.rec.NextRetryAt)
		assert.Equal(t, e.rec.CreatedAt.Add(60*time.Second), *e.rec.NextRetryAt)
	}
}

func TestDispatch_DisabledEmailPreferenceStillSends(t *testing.T) {
	f := newFixture()
	pref := prefs.Default("u3")
	pref.EmailEnabled = false
	f.prefs.prefs["u3"] = pref

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u3"))
	require.NoError(t, err)

	// email delivery is mandatory: the preference only shapes batching
	assert.Equal(t, Result{InboxCount: 1, EmailCount: 1}, result)
	assert.Len(t, f.sender.sent, 1)
}

func TestDispatch_SkipEmail(t *testing.T) {
	f := newFixture()
	event := projectApprovedEvent("u1")
	event.SkipEmail = true

	result, err := f.dispatcher.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, Result{InboxCount: 1, EmailCount: 0}, result)
	assert.Empty(t, f.outbox.created)
	assert.Empty(t, f.sender.sent)
}

func TestDispatch_FanOutToMultipleRecipients(t *testing.T) {
	f := newFixture()

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u1", "u2", "u3"))
	require.NoError(t, err)
	assert.Equal(t, Result{InboxCount: 3, EmailCount: 3}, result)
	assert.Len(t, f.inbox.writes, 3)
	assert.Len(t, f.sender.sent, 3)
}

func TestDispatch_RecipientFailureIsIsolated(t *testing.T) {
	f := newFixture()
	f.inbox.failFor["u2"] = errors.New("connection reset")

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u1", "u2", "u3"))
	require.NoError(t, err)

	// u2's failure skips its email path but never blocks u1 or u3
	assert.Equal(t, Result{InboxCount: 2, EmailCount: 2}, result)
}

func TestDispatch_NothingWrittenIsFatal(t *testing.T) {
	f := newFixture()
	f.inbox.failFor["u1"] = errors.New("database gone")

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u1"))
	require.Error(t, err)
	assert.Equal(t, Result{}, result)
}

func TestDispatch_DuplicateDedupeKeyIsNoOp(t *testing.T) {
	f := newFixture()
	f.inbox.duplicates["u1"] = true
	f.outbox.duplicates["u1"] = true

	key := "project-approved:p-9:u1"
	event := projectApprovedEvent("u1")
	event.DedupeKey = &key

	result, err := f.dispatcher.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, Result{InboxCount: 0, EmailCount: 0}, result)
	assert.Empty(t, f.sender.sent)
}

func TestDispatch_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		event *Event
	}{
		{
			name: "no recipients",
			event: &Event{
				EventType: domain.EventProjectApproved,
				Title:     "t",
				Content:   "c",
			},
		},
		{
			name: "empty recipient id",
			event: &Event{
				EventType:     domain.EventProjectApproved,
				TargetUserIDs: []string{""},
				Title:         "t",
				Content:       "c",
			},
		},
		{
			name:  "empty title",
			event: &Event{EventType: domain.EventProjectApproved, TargetUserIDs: []string{"u1"}, Content: "c"},
		},
		{
			name: "title too long",
			event: &Event{
				EventType:     domain.EventProjectApproved,
				TargetUserIDs: []string{"u1"},
				Title:         strings.Repeat("a", 201),
				Content:       "c",
			},
		},
		{
			name: "content too long",
			event: &Event{
				EventType:     domain.EventProjectApproved,
				TargetUserIDs: []string{"u1"},
				Title:         "t",
				Content:       strings.Repeat("a", 2001),
			},
		},
		{
			name:  "missing event type",
			event: &Event{TargetUserIDs: []string{"u1"}, Title: "t", Content: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dispatcher.Dispatch(context.Background(), tt.event)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)

			// rejected events are never persisted
			assert.Empty(t, f.inbox.writes)
			assert.Empty(t, f.outbox.created)
		})
	}
}

func TestDispatch_UnknownEventTypeLandsInSystemCategory(t *testing.T) {
	f := newFixture()

	event := &Event{
		EventType:     domain.EventType("SOMETHING_NEW"),
		TargetUserIDs: []string{"u1"},
		Title:         "t",
		Content:       "c",
	}
	result, err := f.dispatcher.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, result.InboxCount)
	assert.Equal(t, domain.CategorySystem, f.inbox.writes[0].item.Category)
}

func TestDispatch_ImmediateFailureStillCountsRow(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp down")

	result, err := f.dispatcher.Dispatch(context.Background(), projectApprovedEvent("u1"))
	require.NoError(t, err)

	// the durable row exists and carries the retry bookkeeping
	assert.Equal(t, Result{InboxCount: 1, EmailCount: 1}, result)
	require.Len(t, f.outbox.created, 1)
	rec := f.outbox.created[0]
	assert.Equal(t, outbox.StatusFailed, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.NotNil(t, rec.NextRetryAt)
}
