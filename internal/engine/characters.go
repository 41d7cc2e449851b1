package engine

import (
	"fmt"
	"strings"
)

type Archetype string

const (
	Warrior Archetype = "Warrior"
	Mage    Archetype = "Mage"
	Archer  Archetype = "Archer"
	Healer  Archetype = "Healer"
)

// Character holds the fixed combat parameters of one archetype.
// SpecialCooldown is the number of the owner's own turns that must pass
// before the special move can be used again.
type Character struct {
	Archetype       Archetype
	BaseHealth      int
	Attack          int
	Heal            int
	Special         int
	SpecialCooldown int
}

var catalog = []Character{
	{Archetype: Warrior, BaseHealth: 120, Attack: 15, Heal: 8, Special: 28, SpecialCooldown: 2},
	{Archetype: Mage, BaseHealth: 90, Attack: 12, Heal: 10, Special: 35, SpecialCooldown: 2},
	{Archetype: Archer, BaseHealth: 100, Attack: 14, Heal: 8, Special: 30, SpecialCooldown: 1},
	{Archetype: Healer, BaseHealth: 100, Attack: 9, Heal: 20, Special: 22, SpecialCooldown: 3},
}

// Lookup finds a character by archetype name, ignoring case and surrounding space.
func Lookup(name string) (Character, error) {
	n := strings.TrimSpace(name)
	for _, c := range catalog {
		if strings.EqualFold(string(c.Archetype), n) {
			return c, nil
		}
	}
	return Character{}, fmt.Errorf("%w: %q", ErrUnknownArchetype, name)
}

// Archetypes returns the playable archetypes in display order.
func Archetypes() []Archetype {
	out := make([]Archetype, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.Archetype)
	}
	return out
}
