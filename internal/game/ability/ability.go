// Package ability defines the data model of a countryball's ability rules:
// the trigger hooks, the closed set of ability kinds and the per-hook entry lists.
package ability

// Hook names a point in the battle lifecycle at which ability entries fire.
type Hook string

const (
	OnEnter  Hook = "on_enter"
	OnAttack Hook = "on_attack"
	OnDefend Hook = "on_defend"
	OnExit   Hook = "on_exit"
)

// Hooks lists every known hook in lifecycle order.
var Hooks = []Hook{OnEnter, OnAttack, OnDefend, OnExit}

// Valid reports whether h is one of the four known hooks.
func (h Hook) Valid() bool {
	switch h {
	case OnEnter, OnAttack, OnDefend, OnExit:
		return true
	}
	return false
}

// Kind is the closed enumeration of ability effects.
type Kind int

const (
	// KindUnknown covers any type string outside the known set. It is never
	// rejected at battle time; it only produces a transcript note.
	KindUnknown Kind = iota
	KindDamageMultiplier
	KindExtraDamage
	KindHeal
	KindShield
)

// ParseKind maps an ability type string to its Kind.
//
// Postcondition: Returns KindUnknown for any unrecognised string.
func ParseKind(s string) Kind {
	switch s {
	case "damage_multiplier":
		return KindDamageMultiplier
	case "extra_damage":
		return KindExtraDamage
	case "heal":
		return KindHeal
	case "shield":
		return KindShield
	default:
		return KindUnknown
	}
}

// String returns the type string used in ability documents.
func (k Kind) String() string {
	switch k {
	case KindDamageMultiplier:
		return "damage_multiplier"
	case KindExtraDamage:
		return "extra_damage"
	case KindHeal:
		return "heal"
	case KindShield:
		return "shield"
	default:
		return "unknown"
	}
}

// DefaultValue is the value an entry of this kind takes when its value is absent.
func (k Kind) DefaultValue() float64 {
	if k == KindDamageMultiplier {
		return 1.0
	}
	return 0
}

// Entry is one {type, value} rule fired at a hook.
type Entry struct {
	Type string `json:"type" yaml:"type"`
	// Value is nil when the document omitted it.
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// Kind resolves the entry's type string.
func (e Entry) Kind() Kind { return ParseKind(e.Type) }

// EffectiveValue returns Value, or the kind's default when Value is absent.
func (e Entry) EffectiveValue() float64 {
	if e.Value == nil {
		return e.Kind().DefaultValue()
	}
	return *e.Value
}

// NewEntry builds an entry of kind k with an explicit value.
func NewEntry(k Kind, v float64) Entry {
	return Entry{Type: k.String(), Value: &v}
}

// Logic maps each hook to its ordered entries. Order within a hook is
// significant: multipliers and heals compound in document order.
type Logic map[Hook][]Entry

// For returns the entries registered for h. An absent hook yields nil.
func (l Logic) For(h Hook) []Entry {
	if l == nil {
		return nil
	}
	return l[h]
}
