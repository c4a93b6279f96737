// Package ball provides countryball definitions, owned instances and the
// YAML catalog used when no database is configured.
package ball

import (
	"fmt"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
)

// Ball is the static definition of a collectible.
type Ball struct {
	ID        int64         `yaml:"id"`
	Country   string        `yaml:"country"`
	Health    int           `yaml:"health"`
	Attack    int           `yaml:"attack"`
	Abilities ability.Logic `yaml:"abilities"`
}

// Validate checks that the ball satisfies basic invariants.
//
// Precondition: b must not be nil.
// Postcondition: Returns nil iff ID >= 1, Country is non-empty, Health >= 1,
// Attack >= 0 and Abilities pass ability.Validate.
func (b *Ball) Validate() error {
	if b.ID < 1 {
		return fmt.Errorf("ball: id must be >= 1, got %d", b.ID)
	}
	if b.Country == "" {
		return fmt.Errorf("ball %d: country must not be empty", b.ID)
	}
	if b.Health < 1 {
		return fmt.Errorf("ball %d (%s): health must be >= 1", b.ID, b.Country)
	}
	if b.Attack < 0 {
		return fmt.Errorf("ball %d (%s): attack must be >= 0", b.ID, b.Country)
	}
	if err := ability.Validate(b.Abilities); err != nil {
		return fmt.Errorf("ball %d (%s): %w", b.ID, b.Country, err)
	}
	return nil
}

// Instance is one player-owned copy of a Ball. It satisfies battle.Entity.
type Instance struct {
	ID      int64
	OwnerID int64
	Ball    *Ball
}

// Health returns the ball's health.
func (i *Instance) Health() int { return i.Ball.Health }

// Attack returns the ball's attack.
func (i *Instance) Attack() int { return i.Ball.Attack }

// AbilityLogic returns the ball's ability document.
func (i *Instance) AbilityLogic() ability.Logic { return i.Ball.Abilities }

// ShortDescription returns "#<instance id> <country>".
func (i *Instance) ShortDescription() string {
	return fmt.Sprintf("#%d %s", i.ID, i.Ball.Country)
}
