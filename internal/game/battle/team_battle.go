package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
)

const (
	// MaxTeamSize is the number of entities kept from each input list.
	MaxTeamSize = 3
	// DefaultTurnLimit caps the turn loop; exceeding it ends the battle in a draw.
	DefaultTurnLimit = 1000
)

// Final transcript lines.
const (
	LineTeamAWins = "Team A wins!"
	LineTeamBWins = "Team B wins!"
	LineDraw      = "Battle ended in a draw."
	LineTurnLimit = "Turn limit reached, ending in a draw."
)

// ErrConfiguration is returned when a battle cannot be built from its inputs.
var ErrConfiguration = errors.New("battle configuration error")

// State is the TeamBattle state machine position.
type State int

const (
	StateEnter State = iota
	StateTurnLoop
	StateResolved
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case StateEnter:
		return "enter"
	case StateTurnLoop:
		return "turn_loop"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Verdict is the battle outcome.
type Verdict int

const (
	VerdictDraw Verdict = iota
	VerdictTeamA
	VerdictTeamB
)

// String returns the winner label: "A", "B" or "draw".
func (v Verdict) String() string {
	switch v {
	case VerdictTeamA:
		return "A"
	case VerdictTeamB:
		return "B"
	default:
		return "draw"
	}
}

// Result is everything a resolved battle hands back to its caller.
type Result struct {
	Transcript []string
	Verdict    Verdict
	// Turns is the number of turns started.
	Turns            int
	TurnLimitReached bool
}

// Limits tunes a TeamBattle. Zero fields fall back to the package defaults.
type Limits struct {
	TeamSize  int
	TurnLimit int
}

func (l Limits) withDefaults() Limits {
	if l.TeamSize <= 0 || l.TeamSize > MaxTeamSize {
		l.TeamSize = MaxTeamSize
	}
	if l.TurnLimit <= 0 {
		l.TurnLimit = DefaultTurnLimit
	}
	return l
}

// TeamBattle simulates a battle between two teams of up to three entities.
// A TeamBattle is not safe for concurrent use; separate instances share no state.
type TeamBattle struct {
	TeamA Team
	TeamB Team

	limits    Limits
	state     State
	turns     int
	turnLimit bool
	logs      []string
	result    *Result
}

// NewTeamBattle builds a battle with the default limits.
//
// Precondition: teamA and teamB must be non-empty.
// Postcondition: Returns a battle in StateEnter, or an error wrapping ErrConfiguration.
func NewTeamBattle(teamA, teamB []Entity) (*TeamBattle, error) {
	return NewTeamBattleWithLimits(teamA, teamB, Limits{})
}

// NewTeamBattleWithLimits builds a battle; each team is silently truncated to
// limits.TeamSize entities.
//
// Precondition: teamA and teamB must be non-empty.
// Postcondition: Returns a battle in StateEnter, or an error wrapping ErrConfiguration.
func NewTeamBattleWithLimits(teamA, teamB []Entity, limits Limits) (*TeamBattle, error) {
	if len(teamA) == 0 || len(teamB) == 0 {
		return nil, fmt.Errorf("%w: both teams must have at least one entity", ErrConfiguration)
	}
	l := limits.withDefaults()
	return &TeamBattle{
		TeamA:  newTeam(teamA, l.TeamSize),
		TeamB:  newTeam(teamB, l.TeamSize),
		limits: l,
		state:  StateEnter,
	}, nil
}

// State returns the current state machine position.
func (b *TeamBattle) State() State { return b.state }

// Run drives the battle to completion and returns its Result. Calling Run on
// a resolved battle returns the same Result again.
//
// Postcondition: State() == StateResolved; the transcript ends with a verdict line.
func (b *TeamBattle) Run() Result {
	if b.state == StateResolved {
		return *b.result
	}

	b.enter()
	b.loop()
	return b.resolve()
}

// enter fires on_enter for each team's starting active participant.
func (b *TeamBattle) enter() {
	a := b.TeamA.Active()
	d := b.TeamB.Active()
	if a != nil {
		b.log(ApplyAbilities(ability.OnEnter, a, d)...)
	}
	if d != nil {
		b.log(ApplyAbilities(ability.OnEnter, d, a)...)
	}
	b.state = StateTurnLoop
}

func (b *TeamBattle) loop() {
	turn := 1
	for {
		a := b.TeamA.Active()
		d := b.TeamB.Active()
		if a == nil || d == nil {
			return
		}

		b.turns = turn
		b.log(fmt.Sprintf("-- Turn %d: %s vs %s --", turn, a.Name(), d.Name()))
		b.exchange(a, d, b.TeamB)

		a = b.TeamA.Active()
		d = b.TeamB.Active()
		if a == nil || d == nil {
			return
		}
		b.exchange(d, a, b.TeamA)

		turn++
		if turn > b.limits.TurnLimit {
			b.turnLimit = true
			b.log(LineTurnLimit)
			return
		}
	}
}

// exchange resolves one attack of attacker on defender, who belongs to defTeam.
func (b *TeamBattle) exchange(attacker, defender *Participant, defTeam Team) {
	b.log(ApplyAbilities(ability.OnAttack, attacker, defender)...)
	b.log(ApplyAbilities(ability.OnDefend, defender, attacker)...)

	dmg := int(float64(attacker.Entity.Attack())*attacker.ExtraDamageMultiplier) + attacker.ExtraFlatDamage
	if defender.ShieldPercent > 0 {
		reduction := int(float64(dmg) * defender.ShieldPercent)
		dmg -= reduction
		b.log(fmt.Sprintf("%s absorbs %d damage with shield.", defender.Name(), reduction))
	}
	dmg = max(1, dmg)
	defender.CurrentHP -= dmg
	b.log(fmt.Sprintf("%s deals %d damage. %s HP is now %d.",
		attacker.Name(), dmg, defender.Name(), max(defender.CurrentHP, 0)))

	attacker.resetAttackModifiers()

	if defender.CurrentHP <= 0 {
		b.log(fmt.Sprintf("%s has been defeated.", defender.Name()))
		b.log(ApplyAbilities(ability.OnExit, defender, attacker)...)
		if next := defTeam.Active(); next != nil {
			b.log(ApplyAbilities(ability.OnEnter, next, attacker)...)
		}
	}
}

func (b *TeamBattle) resolve() Result {
	res := Result{
		Turns:            b.turns,
		TurnLimitReached: b.turnLimit,
	}
	aAlive := b.TeamA.Alive()
	dAlive := b.TeamB.Alive()
	switch {
	case aAlive && !dAlive:
		res.Verdict = VerdictTeamA
		b.log(LineTeamAWins)
	case dAlive && !aAlive:
		res.Verdict = VerdictTeamB
		b.log(LineTeamBWins)
	default:
		res.Verdict = VerdictDraw
		b.log(LineDraw)
	}
	res.Transcript = b.logs
	b.result = &res
	b.state = StateResolved
	return res
}

func (b *TeamBattle) log(lines ...string) {
	b.logs = append(b.logs, lines...)
}
