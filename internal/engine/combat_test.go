package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		name    string
		want    Archetype
		wantErr bool
	}{
		{name: "Warrior", want: Warrior},
		{name: " mage ", want: Mage},
		{name: "ARCHER", want: Archer},
		{name: "Healer", want: Healer},
		{name: "Necromancer", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Lookup(tc.name)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownArchetype)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Archetype)
			assert.Positive(t, c.BaseHealth)
			assert.Greater(t, c.Special, c.Attack, "special hits harder than attack")
		})
	}
	assert.Equal(t, []Archetype{Warrior, Mage, Archer, Healer}, Archetypes())
}

func TestResolver(t *testing.T) {
	mage, err := Lookup("Mage")
	require.NoError(t, err)

	cases := []struct {
		name string
		got  int
		want int
	}{
		{name: "attack subtracts", got: ApplyAttack(mage, 50), want: 38},
		{name: "attack clamps at zero", got: ApplyAttack(mage, 5), want: 0},
		{name: "special subtracts", got: ApplySpecial(mage, 100), want: 65},
		{name: "special clamps at zero", got: ApplySpecial(mage, 35), want: 0},
		{name: "heal adds", got: ApplyHeal(mage, 40), want: 50},
		{name: "heal caps at base", got: ApplyHeal(mage, 85), want: 90},
		{name: "heal at full stays full", got: ApplyHeal(mage, 90), want: 90},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-7, 100))
	assert.Equal(t, 100, Clamp(130, 100))
	assert.Equal(t, 42, Clamp(42, 100))
}
