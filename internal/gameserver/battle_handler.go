// Package gameserver wires battle sessions, instance lookup and the battle
// engine together.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/ballbattle/internal/game/ball"
	"github.com/cory-johannsen/ballbattle/internal/game/battle"
	"github.com/cory-johannsen/ballbattle/internal/game/session"
)

// ErrInvalidTeamCount is returned by QuickBattle for anything but 2, 4 or 6 ids.
var ErrInvalidTeamCount = errors.New("provide 2, 4, or 6 ball ids")

// InstanceSource resolves instance ids to battle-ready instances.
type InstanceSource interface {
	Instance(ctx context.Context, id int64) (*ball.Instance, error)
}

// Outcome is the result of a finished battle.
type Outcome struct {
	SessionID  string
	Transcript []string
	Verdict    battle.Verdict
	Turns      int
	// Artifact is the suggested filename for the transcript.
	Artifact string
}

// ArtifactName returns the transcript filename for a battle id.
func ArtifactName(id string) string {
	return fmt.Sprintf("battle_%s.txt", id)
}

// BattleHandler runs session commands and battles.
type BattleHandler struct {
	sessions session.Store
	source   InstanceSource
	limits   battle.Limits
	ttl      time.Duration
	logger   *zap.Logger
}

// NewBattleHandler creates a BattleHandler with the given dependencies.
//
// Precondition: sessions, source and logger must be non-nil.
func NewBattleHandler(sessions session.Store, source InstanceSource, limits battle.Limits, ttl time.Duration, logger *zap.Logger) *BattleHandler {
	return &BattleHandler{
		sessions: sessions,
		source:   source,
		limits:   limits,
		ttl:      ttl,
		logger:   logger,
	}
}

// StartSession opens a new pending battle hosted by host.
//
// Postcondition: Returns the stored session or a session validation error.
func (h *BattleHandler) StartSession(host, opponent int64, limit int) (*session.Session, error) {
	if h.limits.TeamSize > 0 && limit > h.limits.TeamSize {
		return nil, fmt.Errorf("%w: %d exceeds configured maximum %d", session.ErrInvalidLimit, limit, h.limits.TeamSize)
	}
	s, err := session.NewSession(host, opponent, limit)
	if err != nil {
		return nil, err
	}
	if err := h.sessions.Create(s); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	h.logger.Info("battle session started",
		zap.String("session", s.ID),
		zap.Int64("host", host),
		zap.Int64("opponent", opponent),
		zap.Int("limit", limit),
	)
	return s, nil
}

// AddInstance adds one of user's instances to their team.
//
// Postcondition: Returns the updated session snapshot, or an error from the
// instance source or session rules.
func (h *BattleHandler) AddInstance(ctx context.Context, id string, user, instanceID int64) (*session.Session, error) {
	inst, err := h.source.Instance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("loading instance %d: %w", instanceID, err)
	}
	var out *session.Session
	err = h.sessions.Update(id, func(s *session.Session) error {
		if err := s.AddInstance(user, inst.ID, inst.OwnerID); err != nil {
			return err
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.logger.Debug("instance added",
		zap.String("session", id),
		zap.Int64("user", user),
		zap.Int64("instance", instanceID),
	)
	return out, nil
}

// Confirm marks user ready. When both players are ready the battle runs
// and the session is removed.
//
// Postcondition: Returns a nil Outcome while waiting for the other player.
func (h *BattleHandler) Confirm(ctx context.Context, id string, user int64) (*Outcome, error) {
	var snapshot *session.Session
	err := h.sessions.Update(id, func(s *session.Session) error {
		ready, err := s.Confirm(user)
		if err != nil {
			return err
		}
		if ready {
			snapshot = s.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	res, err := h.fight(ctx, snapshot.TeamA, snapshot.TeamB)
	if err != nil {
		// let the players fix their teams and confirm again
		clearErr := h.sessions.Update(id, func(s *session.Session) error {
			s.ClearConfirmations()
			return nil
		})
		if clearErr != nil {
			h.logger.Warn("clearing confirmations after failed battle start",
				zap.String("session", id),
				zap.Error(clearErr),
			)
		}
		return nil, err
	}

	h.sessions.Delete(id)

	h.logger.Info("battle finished",
		zap.String("session", id),
		zap.Int64s("team_a", snapshot.TeamA),
		zap.Int64s("team_b", snapshot.TeamB),
		zap.String("winner", res.Verdict.String()),
		zap.Int("turns", res.Turns),
	)
	return newOutcome(id, res), nil
}

// Cancel removes a pending session. Only the host or opponent may cancel.
func (h *BattleHandler) Cancel(id string, user int64) error {
	s, ok := h.sessions.Get(id)
	if !ok {
		return session.ErrSessionNotFound
	}
	if s.SideOf(user) == session.SideNone {
		return session.ErrNotParticipant
	}
	h.sessions.Delete(id)
	h.logger.Info("battle session cancelled", zap.String("session", id), zap.Int64("user", user))
	return nil
}

// ExpireSessions drops sessions older than the configured ttl.
//
// Postcondition: Returns the number of sessions removed; zero when ttl is unset.
func (h *BattleHandler) ExpireSessions(now time.Time) int {
	if h.ttl <= 0 {
		return 0
	}
	removed := h.sessions.Expire(now, h.ttl)
	for _, id := range removed {
		h.logger.Info("battle session expired", zap.String("session", id))
	}
	return len(removed)
}

// QuickBattle runs a battle between the first and second half of ids.
//
// Precondition: len(ids) must be 2, 4 or 6.
// Postcondition: Returns the Outcome with a fresh id, or an error.
func (h *BattleHandler) QuickBattle(ctx context.Context, ids []int64) (*Outcome, error) {
	switch len(ids) {
	case 2, 4, 6:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTeamCount, len(ids))
	}
	half := len(ids) / 2
	res, err := h.fight(ctx, ids[:half], ids[half:])
	if err != nil {
		return nil, err
	}
	id := session.NewID()
	h.logger.Info("quick battle finished",
		zap.String("battle", id),
		zap.Int64s("ids", ids),
		zap.String("winner", res.Verdict.String()),
		zap.Int("turns", res.Turns),
	)
	return newOutcome(id, res), nil
}

func newOutcome(id string, res battle.Result) *Outcome {
	return &Outcome{
		SessionID:  id,
		Transcript: res.Transcript,
		Verdict:    res.Verdict,
		Turns:      res.Turns,
		Artifact:   ArtifactName(id),
	}
}

func (h *BattleHandler) fight(ctx context.Context, idsA, idsB []int64) (battle.Result, error) {
	teamA, err := h.load(ctx, idsA)
	if err != nil {
		return battle.Result{}, err
	}
	teamB, err := h.load(ctx, idsB)
	if err != nil {
		return battle.Result{}, err
	}
	tb, err := battle.NewTeamBattleWithLimits(teamA, teamB, h.limits)
	if err != nil {
		return battle.Result{}, err
	}
	return tb.Run(), nil
}

func (h *BattleHandler) load(ctx context.Context, ids []int64) ([]battle.Entity, error) {
	out := make([]battle.Entity, 0, len(ids))
	for _, id := range ids {
		inst, err := h.source.Instance(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading instance %d: %w", id, err)
		}
		out = append(out, inst)
	}
	return out, nil
}
