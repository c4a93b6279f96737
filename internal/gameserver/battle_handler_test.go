package gameserver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/ballbattle/internal/game/ball"
	"github.com/cory-johannsen/ballbattle/internal/game/battle"
	"github.com/cory-johannsen/ballbattle/internal/game/session"
)

const handlerCatalog = `
balls:
  - {id: 1, country: Sparta, health: 20, attack: 5}
  - {id: 2, country: Athens, health: 10, attack: 3}
instances:
  - {id: 101, ball: 1, owner: 1}
  - {id: 102, ball: 2, owner: 1}
  - {id: 201, ball: 2, owner: 2}
  - {id: 202, ball: 1, owner: 2}
`

// flakySource fails lookups for the ids in broken.
type flakySource struct {
	InstanceSource
	broken map[int64]bool
}

func (f *flakySource) Instance(ctx context.Context, id int64) (*ball.Instance, error) {
	if f.broken[id] {
		return nil, errors.New("database unavailable")
	}
	return f.InstanceSource.Instance(ctx, id)
}

// expiringSource drops every session and then fails once expire is set,
// as when the expiry sweep runs while a battle is loading.
type expiringSource struct {
	InstanceSource
	sessions *session.Manager
	expire   bool
}

func (e *expiringSource) Instance(ctx context.Context, id int64) (*ball.Instance, error) {
	if e.expire {
		e.sessions.Expire(time.Now().Add(time.Hour), time.Nanosecond)
		return nil, errors.New("database unavailable")
	}
	return e.InstanceSource.Instance(ctx, id)
}

func newTestHandler(t *testing.T, logger *zap.Logger) (*BattleHandler, *session.Manager) {
	t.Helper()
	cat, err := ball.LoadCatalogFromBytes([]byte(handlerCatalog))
	require.NoError(t, err)
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	sessions := session.NewManager()
	return NewBattleHandler(sessions, cat, battle.Limits{}, 15*time.Minute, logger), sessions
}

func TestBattleHandler_FullSession(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	h, sessions := newTestHandler(t, zap.New(core))

	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)

	_, err = h.AddInstance(ctx, s.ID, 1, 101)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 2, 201)
	require.NoError(t, err)

	out, err := h.Confirm(ctx, s.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, out, "battle must wait for the second confirmation")

	out, err = h.Confirm(ctx, s.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, battle.VerdictTeamA, out.Verdict)
	assert.Equal(t, "battle_"+s.ID+".txt", out.Artifact)
	assert.Equal(t, battle.LineTeamAWins, out.Transcript[len(out.Transcript)-1])
	assert.Equal(t, 2, out.Turns)

	finished := logs.FilterMessage("battle finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "A", finished[0].ContextMap()["winner"])

	assert.Equal(t, 0, sessions.Len(), "finished sessions must be removed")
	_, err = h.Confirm(ctx, s.ID, 1)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestBattleHandler_AddInstanceErrors(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(t, nil)
	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)

	_, err = h.AddInstance(ctx, s.ID, 1, 999)
	assert.ErrorIs(t, err, ball.ErrInstanceNotFound)

	_, err = h.AddInstance(ctx, s.ID, 1, 201)
	assert.ErrorIs(t, err, session.ErrNotOwner)

	_, err = h.AddInstance(ctx, "nope", 1, 101)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = h.AddInstance(ctx, s.ID, 1, 101)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 1, 102)
	assert.ErrorIs(t, err, session.ErrTeamFull)
}

func TestBattleHandler_StartSessionRespectsConfiguredLimit(t *testing.T) {
	cat, err := ball.LoadCatalogFromBytes([]byte(handlerCatalog))
	require.NoError(t, err)
	h := NewBattleHandler(session.NewManager(), cat, battle.Limits{TeamSize: 2}, 0, zaptest.NewLogger(t))

	_, err = h.StartSession(1, 2, 3)
	assert.ErrorIs(t, err, session.ErrInvalidLimit)
	_, err = h.StartSession(1, 2, 2)
	assert.NoError(t, err)
	_, err = h.StartSession(1, 1, 2)
	assert.ErrorIs(t, err, session.ErrNoOpponent)
}

func TestBattleHandler_LoadFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	cat, err := ball.LoadCatalogFromBytes([]byte(handlerCatalog))
	require.NoError(t, err)
	src := &flakySource{InstanceSource: cat, broken: map[int64]bool{}}
	sessions := session.NewManager()
	h := NewBattleHandler(sessions, src, battle.Limits{}, 0, zaptest.NewLogger(t))

	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 1, 101)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 2, 201)
	require.NoError(t, err)
	_, err = h.Confirm(ctx, s.ID, 1)
	require.NoError(t, err)

	src.broken[201] = true
	_, err = h.Confirm(ctx, s.ID, 2)
	require.Error(t, err)

	got, ok := sessions.Get(s.ID)
	require.True(t, ok, "session must survive a failed start")
	assert.False(t, got.Ready(), "confirmations must be cleared after a failed start")

	src.broken[201] = false
	_, err = h.Confirm(ctx, s.ID, 1)
	require.NoError(t, err)
	out, err := h.Confirm(ctx, s.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, out)
}

func TestBattleHandler_LoadFailureAfterExpiryIsLogged(t *testing.T) {
	ctx := context.Background()
	cat, err := ball.LoadCatalogFromBytes([]byte(handlerCatalog))
	require.NoError(t, err)
	sessions := session.NewManager()
	core, logs := observer.New(zapcore.WarnLevel)
	src := &expiringSource{InstanceSource: cat, sessions: sessions}
	h := NewBattleHandler(sessions, src, battle.Limits{}, 0, zap.New(core))

	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 1, 101)
	require.NoError(t, err)
	_, err = h.AddInstance(ctx, s.ID, 2, 201)
	require.NoError(t, err)
	_, err = h.Confirm(ctx, s.ID, 1)
	require.NoError(t, err)

	src.expire = true
	_, err = h.Confirm(ctx, s.ID, 2)
	require.Error(t, err)

	warned := logs.FilterMessage("clearing confirmations after failed battle start").All()
	require.Len(t, warned, 1)
	assert.Equal(t, s.ID, warned[0].ContextMap()["session"])
}

func TestBattleHandler_ReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	h, sessions := newTestHandler(t, nil)
	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)

	got, err := h.AddInstance(ctx, s.ID, 1, 101)
	require.NoError(t, err)
	got.TeamA[0] = 999
	got.TeamB = append(got.TeamB, 202)
	got.Confirmed[1] = true

	stored, ok := sessions.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, []int64{101}, stored.TeamA)
	assert.Empty(t, stored.TeamB)
	assert.False(t, stored.Confirmed[1])
}

func TestBattleHandler_Cancel(t *testing.T) {
	h, sessions := newTestHandler(t, nil)
	s, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Cancel(s.ID, 3), session.ErrNotParticipant)
	require.NoError(t, h.Cancel(s.ID, 2))
	assert.Equal(t, 0, sessions.Len())
	assert.ErrorIs(t, h.Cancel(s.ID, 1), session.ErrSessionNotFound)
}

func TestBattleHandler_ExpireSessions(t *testing.T) {
	h, sessions := newTestHandler(t, nil)
	_, err := h.StartSession(1, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, h.ExpireSessions(time.Now()))
	assert.Equal(t, 1, h.ExpireSessions(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, sessions.Len())
}

func TestBattleHandler_QuickBattle(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(t, nil)

	out, err := h.QuickBattle(ctx, []int64{101, 102, 201, 202})
	require.NoError(t, err)
	assert.Equal(t, "-- Turn 1: #101 Sparta vs #201 Athens --", out.Transcript[0])
	assert.True(t, strings.HasPrefix(out.Artifact, "battle_"))

	_, err = h.QuickBattle(ctx, []int64{101, 102, 201})
	assert.ErrorIs(t, err, ErrInvalidTeamCount)

	_, err = h.QuickBattle(ctx, []int64{101, 999})
	assert.ErrorIs(t, err, ball.ErrInstanceNotFound)
}

func TestBattleHandler_Property_QuickBattleAlwaysResolves(t *testing.T) {
	h, _ := newTestHandler(t, zap.NewNop())
	pool := []int64{101, 102, 201, 202}
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.SampledFrom([]int{2, 4, 6}).Draw(rt, "n")
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = rapid.SampledFrom(pool).Draw(rt, "id")
		}
		out, err := h.QuickBattle(context.Background(), ids)
		require.NoError(rt, err)
		last := out.Transcript[len(out.Transcript)-1]
		assert.Contains(rt, []string{battle.LineTeamAWins, battle.LineTeamBWins, battle.LineDraw}, last)
	})
}
