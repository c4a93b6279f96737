package battle_test

import (
	"fmt"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
)

// stubEntity is a minimal battle.Entity for engine tests.
type stubEntity struct {
	id     int
	name   string
	health int
	attack int
	logic  ability.Logic
}

func (s *stubEntity) Health() int                 { return s.health }
func (s *stubEntity) Attack() int                 { return s.attack }
func (s *stubEntity) AbilityLogic() ability.Logic { return s.logic }
func (s *stubEntity) ShortDescription() string    { return fmt.Sprintf("#%d %s", s.id, s.name) }

func entry(k ability.Kind, v float64) ability.Entry { return ability.NewEntry(k, v) }
