// Package battle implements the deterministic team battle engine: per-battle
// participants, ability hook resolution and the alternating-turn state machine.
package battle

import "github.com/cory-johannsen/ballbattle/internal/game/ability"

// Entity is the static, read-only definition a Participant is built from.
type Entity interface {
	// Health is the entity's maximum hit points.
	Health() int
	// Attack is the entity's base damage per exchange.
	Attack() int
	// AbilityLogic returns the entity's hook → entries document. May be nil.
	AbilityLogic() ability.Logic
	// ShortDescription is the display name used in the transcript.
	ShortDescription() string
}

// Participant is the mutable per-battle state of one entity.
//
// Invariant: a Participant is never removed from its team; it is defeated
// once CurrentHP <= 0.
type Participant struct {
	Entity Entity
	MaxHP  int
	// CurrentHP may transiently drop below zero after a hit.
	CurrentHP int
	// ShieldPercent is merged with max() on each grant and never reset automatically.
	ShieldPercent float64
	// ExtraDamageMultiplier and ExtraFlatDamage accumulate until the
	// participant's own attack resolves, then return to 1.0 and 0.
	ExtraDamageMultiplier float64
	ExtraFlatDamage       int
}

// NewParticipant builds a Participant at full health from e.
//
// Precondition: e must be non-nil.
// Postcondition: MaxHP == CurrentHP == e.Health(); modifiers at their neutral values.
func NewParticipant(e Entity) *Participant {
	hp := e.Health()
	return &Participant{
		Entity:                e,
		MaxHP:                 hp,
		CurrentHP:             hp,
		ExtraDamageMultiplier: 1.0,
	}
}

// Name returns the participant's display name.
func (p *Participant) Name() string { return p.Entity.ShortDescription() }

// Alive reports whether the participant still has positive HP.
func (p *Participant) Alive() bool { return p.CurrentHP > 0 }

// resetAttackModifiers clears the modifiers consumed by the participant's own attack.
// ShieldPercent is left untouched.
func (p *Participant) resetAttackModifiers() {
	p.ExtraDamageMultiplier = 1.0
	p.ExtraFlatDamage = 0
}

// Team is an ordered list of up to MaxTeamSize participants.
type Team []*Participant

// Active returns the first participant in team order with positive HP, or nil.
func (t Team) Active() *Participant {
	for _, p := range t {
		if p.Alive() {
			return p
		}
	}
	return nil
}

// Alive reports whether any participant in the team has positive HP.
func (t Team) Alive() bool { return t.Active() != nil }

func newTeam(entities []Entity, size int) Team {
	if len(entities) > size {
		entities = entities[:size]
	}
	team := make(Team, 0, len(entities))
	for _, e := range entities {
		team = append(team, NewParticipant(e))
	}
	return team
}
