package engine

// Clamp bounds a health value to [0, base].
func Clamp(health, base int) int {
	if health < 0 {
		return 0
	}
	if health > base {
		return base
	}
	return health
}

// ApplyAttack returns the target's health after the actor's basic attack.
func ApplyAttack(actor Character, targetHealth int) int {
	return max(targetHealth-actor.Attack, 0)
}

// ApplyHeal returns the actor's health after healing; it never exceeds the
// actor's base health.
func ApplyHeal(actor Character, actorHealth int) int {
	return Clamp(actorHealth+actor.Heal, actor.BaseHealth)
}

// ApplySpecial returns the target's health after the actor's special move.
func ApplySpecial(actor Character, targetHealth int) int {
	return max(targetHealth-actor.Special, 0)
}
