package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	prefs   map[string]*Preference
	getErr  error
	upserts int
}

func newMockRepo() *mockRepo {
	return &mockRepo{prefs: map[string]*Preference{}}
}

func (m *mockRepo) Get(_ context.Context, userID string) (*Preference, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	pref, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return pref, nil
}

func (m *mockRepo) Upsert(_ context.Context, pref *Preference) error {
	m.upserts++
	m.prefs[pref.UserID] = pref
	return nil
}

func TestResolve_CreatesDefaultOnFirstAccess(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	pref, err := svc.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", pref.UserID)
	assert.True(t, pref.EmailEnabled)
	assert.Empty(t, pref.BatchModes)
	assert.Equal(t, 1, repo.upserts)

	// second resolve reads the stored row, no new write
	_, err = svc.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.upserts)
}

func TestResolve_PropagatesRepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.getErr = errors.New("connection lost")
	svc := NewService(repo)

	_, err := svc.Resolve(context.Background(), "u1")
	assert.Error(t, err)
	assert.Zero(t, repo.upserts)
}

func TestUpdate_PartialChange(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	disabled := false
	pref, err := svc.Update(context.Background(), "u1", &disabled, map[domain.EventType]BatchMode{
		domain.EventDMReceived: BatchModeImmediate,
	})
	require.NoError(t, err)

	assert.False(t, pref.EmailEnabled)
	assert.Equal(t, BatchModeImmediate, pref.ModeFor(domain.EventDMReceived))

	// a later update without emailEnabled leaves the flag untouched and
	// merges new overrides
	pref, err = svc.Update(context.Background(), "u1", nil, map[domain.EventType]BatchMode{
		domain.EventCommunityMention: BatchModeWindowed,
	})
	require.NoError(t, err)

	assert.False(t, pref.EmailEnabled)
	assert.Equal(t, BatchModeImmediate, pref.ModeFor(domain.EventDMReceived))
	assert.Equal(t, BatchModeWindowed, pref.ModeFor(domain.EventCommunityMention))
}

func TestModeFor_NoOverride(t *testing.T) {
	pref := Default("u1")
	assert.Equal(t, BatchMode(""), pref.ModeFor(domain.EventDMReceived))
}

func TestBatchMode_Valid(t *testing.T) {
	assert.True(t, BatchModeImmediate.Valid())
	assert.True(t, BatchModeWindowed.Valid())
	assert.False(t, BatchMode("digest").Valid())
	assert.False(t, BatchMode("").Valid())
}
