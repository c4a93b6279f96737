package battle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/ballbattle/internal/game/ability"
)

// ApplyAbilities fires every entry registered on actor's entity for hook, in
// document order, and returns the transcript lines they produced.
//
// Only actor's modifiers are mutated, except for shield entries which raise
// target's ShieldPercent. A shield entry with a nil target is skipped without
// a log line. Unknown ability types log a note and have no effect.
//
// Precondition: actor must be non-nil; target may be nil.
func ApplyAbilities(hook ability.Hook, actor, target *Participant) []string {
	var logs []string
	for _, entry := range actor.Entity.AbilityLogic().For(hook) {
		v := entry.EffectiveValue()
		switch entry.Kind() {
		case ability.KindDamageMultiplier:
			logs = append(logs, fmt.Sprintf("%s uses damage x%s.", actor.Name(), formatFactor(v)))
			actor.ExtraDamageMultiplier *= v
		case ability.KindExtraDamage:
			amt := int(v)
			logs = append(logs, fmt.Sprintf("%s gains +%d extra damage this attack.", actor.Name(), amt))
			actor.ExtraFlatDamage += amt
		case ability.KindHeal:
			heal := max(1, int(float64(actor.MaxHP)*v))
			actor.CurrentHP = min(actor.CurrentHP+heal, actor.MaxHP)
			logs = append(logs, fmt.Sprintf("%s heals %d HP.", actor.Name(), heal))
		case ability.KindShield:
			if target == nil {
				continue
			}
			target.ShieldPercent = max(target.ShieldPercent, v)
			logs = append(logs, fmt.Sprintf("%s grants a %.0f%% shield to %s.", actor.Name(), v*100, target.Name()))
		default:
			typ := entry.Type
			if typ == "" {
				typ = "<missing>"
			}
			logs = append(logs, fmt.Sprintf("Unknown ability type: %s", typ))
		}
	}
	return logs
}

// formatFactor renders a multiplier the way ability documents write it:
// whole numbers keep one decimal place ("2.0"), others use the shortest form.
func formatFactor(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
