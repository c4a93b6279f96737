// Package session tracks battles that are being assembled by two players
// before they are run.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxLimit is the largest team size a session may request.
const MaxLimit = 3

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("battle session not found")
	// ErrNotParticipant is returned when the caller is neither host nor opponent.
	ErrNotParticipant = errors.New("you are not part of this battle")
	// ErrTeamFull is returned when the caller's team already holds Limit instances.
	ErrTeamFull = errors.New("team is full")
	// ErrDuplicateInstance is returned when an instance is already in either team.
	ErrDuplicateInstance = errors.New("ball already in this battle")
	// ErrNotOwner is returned when the caller does not own the instance.
	ErrNotOwner = errors.New("you do not own this ball")
	// ErrEmptyTeam is returned when confirming with no instances added.
	ErrEmptyTeam = errors.New("add at least one ball before confirming")
	// ErrInvalidLimit is returned when the team size is outside 1..MaxLimit.
	ErrInvalidLimit = errors.New("invalid team size")
	// ErrNoOpponent is returned when the opponent is missing or is the host.
	ErrNoOpponent = errors.New("a different opponent is required")
	// ErrAlreadyReady is returned when both players already confirmed and the battle is starting.
	ErrAlreadyReady = errors.New("battle is already starting")
)

// Side identifies which team a player fills.
type Side int

const (
	SideNone Side = iota
	SideA
	SideB
)

// Session is a pending battle between a host (team A) and an opponent (team B).
type Session struct {
	ID       string
	Host     int64
	Opponent int64
	Limit    int
	TeamA    []int64
	TeamB    []int64
	// Confirmed maps a player id to their ready flag.
	Confirmed map[int64]bool
	CreatedAt time.Time
}

// NewSession creates a session with a fresh id.
//
// Precondition: host must be non-zero.
// Postcondition: Returns a session with empty teams and no confirmations, or
// ErrInvalidLimit / ErrNoOpponent.
func NewSession(host, opponent int64, limit int) (*Session, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidLimit, limit, MaxLimit)
	}
	if opponent == 0 || opponent == host {
		return nil, ErrNoOpponent
	}
	return &Session{
		ID:        NewID(),
		Host:      host,
		Opponent:  opponent,
		Limit:     limit,
		Confirmed: map[int64]bool{host: false, opponent: false},
		CreatedAt: time.Now(),
	}, nil
}

// NewID returns an 8 character lowercase hex id.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// SideOf reports which team user plays for.
func (s *Session) SideOf(user int64) Side {
	switch user {
	case s.Host:
		return SideA
	case s.Opponent:
		return SideB
	default:
		return SideNone
	}
}

// Team returns the instance ids of user's team, or nil for a non-participant.
func (s *Session) Team(user int64) []int64 {
	switch s.SideOf(user) {
	case SideA:
		return s.TeamA
	case SideB:
		return s.TeamB
	default:
		return nil
	}
}

// AddInstance appends instanceID to user's team.
//
// Precondition: ownerID is the owner recorded for instanceID.
// Postcondition: On success both confirmations are cleared.
func (s *Session) AddInstance(user, instanceID, ownerID int64) error {
	side := s.SideOf(user)
	if side == SideNone {
		return ErrNotParticipant
	}
	if s.Ready() {
		return ErrAlreadyReady
	}
	if ownerID != user {
		return ErrNotOwner
	}
	if slices.Contains(s.TeamA, instanceID) || slices.Contains(s.TeamB, instanceID) {
		return ErrDuplicateInstance
	}
	if len(s.Team(user)) >= s.Limit {
		return fmt.Errorf("%w: limit is %d", ErrTeamFull, s.Limit)
	}
	if side == SideA {
		s.TeamA = append(s.TeamA, instanceID)
	} else {
		s.TeamB = append(s.TeamB, instanceID)
	}
	s.ClearConfirmations()
	return nil
}

// ClearConfirmations resets both ready flags.
func (s *Session) ClearConfirmations() {
	for k := range s.Confirmed {
		s.Confirmed[k] = false
	}
}

// Confirm marks user as ready.
//
// Postcondition: Returns true when both players have confirmed.
func (s *Session) Confirm(user int64) (bool, error) {
	if s.SideOf(user) == SideNone {
		return false, ErrNotParticipant
	}
	if s.Ready() {
		return false, ErrAlreadyReady
	}
	if len(s.Team(user)) == 0 {
		return false, ErrEmptyTeam
	}
	s.Confirmed[user] = true
	return s.Ready(), nil
}

// Ready reports whether both players have confirmed.
func (s *Session) Ready() bool {
	return s.Confirmed[s.Host] && s.Confirmed[s.Opponent]
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.TeamA = slices.Clone(s.TeamA)
	cp.TeamB = slices.Clone(s.TeamB)
	cp.Confirmed = make(map[int64]bool, len(s.Confirmed))
	for k, v := range s.Confirmed {
		cp.Confirmed[k] = v
	}
	return &cp
}
